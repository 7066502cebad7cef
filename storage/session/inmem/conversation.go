package inmemdb

import (
	"context"
	"time"

	"github.com/shulebot/shulebot/core/bot"
)

type conversationRepository struct {
	db *DB
}

var _ bot.SessionRepository = (*conversationRepository)(nil)

func NewConversationRepository(db *DB) bot.SessionRepository {
	return &conversationRepository{db: db}
}

func (repo *conversationRepository) GetConversation(_ context.Context, id string) (bot.Conversation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if conv, ok := repo.db.table[id]; ok {
		out := *conv
		out.Slots = conv.Slots.Clone()
		return out, nil
	}
	return bot.Conversation{}, bot.ErrConversationNotFound
}

func (repo *conversationRepository) SaveConversation(_ context.Context, conv bot.Conversation) (bot.Conversation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := time.Now()
	if orig, ok := repo.db.table[conv.ID]; ok {
		conv.CreatedAt = orig.CreatedAt
	} else {
		conv.CreatedAt = now
	}
	conv.UpdatedAt = now
	if conv.Slots == nil {
		conv.Slots = make(bot.Slots)
	}

	stored := conv
	stored.Slots = conv.Slots.Clone()
	repo.db.table[conv.ID] = &stored
	return conv, nil
}

func (repo *conversationRepository) DeleteConversation(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.table, id)
	return nil
}
