package inmemdb

import (
	"context"
	"testing"

	"github.com/shulebot/shulebot/core/bot"
)

func TestConversationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(NewDB())

	if _, err := repo.GetConversation(ctx, "nope"); err != bot.ErrConversationNotFound {
		t.Fatalf("GetConversation() error = %v; want %v", err, bot.ErrConversationNotFound)
	}

	conv, err := repo.SaveConversation(ctx, bot.Conversation{
		ID:     "c1",
		UserID: "usr-1",
		Slots:  bot.Slots{"active_form": "student_form"},
	})
	if err != nil {
		t.Fatalf("SaveConversation() error = %v", err)
	}
	if conv.CreatedAt.IsZero() || conv.UpdatedAt.IsZero() {
		t.Error("timestamps not set on insert")
	}

	got, err := repo.GetConversation(ctx, "c1")
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if got.Slots.Get("active_form") != "student_form" {
		t.Errorf("slots = %v", got.Slots)
	}

	// mutating the returned snapshot must not touch the store
	got.Slots["active_form"] = "guardian_form"
	again, _ := repo.GetConversation(ctx, "c1")
	if again.Slots.Get("active_form") != "student_form" {
		t.Error("stored snapshot was mutated through a read")
	}

	// updates keep the creation time
	conv.Slots = bot.Slots{"student_name": "Joshua Mwangi"}
	updated, err := repo.SaveConversation(ctx, conv)
	if err != nil {
		t.Fatalf("SaveConversation() error = %v", err)
	}
	if !updated.CreatedAt.Equal(conv.CreatedAt) {
		t.Errorf("CreatedAt changed on update: %v -> %v", conv.CreatedAt, updated.CreatedAt)
	}

	if err := repo.DeleteConversation(ctx, "c1"); err != nil {
		t.Fatalf("DeleteConversation() error = %v", err)
	}
	if _, err := repo.GetConversation(ctx, "c1"); err != bot.ErrConversationNotFound {
		t.Errorf("GetConversation() after delete error = %v; want %v", err, bot.ErrConversationNotFound)
	}
}
