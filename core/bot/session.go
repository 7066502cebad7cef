package bot

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var ErrConversationNotFound = errors.New("conversation not found")

// Conversation is the stored slot state of one chat conversation.
type Conversation struct {
	ID        string
	UserID    string
	Slots     Slots
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionRepository persists conversation slot state between turns.
type SessionRepository interface {
	GetConversation(ctx context.Context, id string) (Conversation, error)
	SaveConversation(ctx context.Context, conv Conversation) (Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
}
