package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/shulebot/shulebot/core/bot"
)

type conversationRepository struct {
	db *sqlx.DB
}

var _ bot.SessionRepository = (*conversationRepository)(nil)

func NewConversationRepository(db *sql.DB) bot.SessionRepository {
	return &conversationRepository{db: sqlx.NewDb(db, "postgres")}
}

type conversationRow struct {
	ID        string      `db:"id"`
	UserID    null.String `db:"user_id"`
	Slots     []byte      `db:"slots"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func (row conversationRow) conversation() (bot.Conversation, error) {
	conv := bot.Conversation{
		ID:        row.ID,
		UserID:    row.UserID.String,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if len(row.Slots) > 0 {
		if err := json.Unmarshal(row.Slots, &conv.Slots); err != nil {
			return bot.Conversation{}, errors.Wrap(err, "decoding slots")
		}
	}
	if conv.Slots == nil {
		conv.Slots = make(bot.Slots)
	}
	return conv, nil
}

func (repo *conversationRepository) GetConversation(ctx context.Context, id string) (bot.Conversation, error) {
	var row conversationRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT id, user_id, slots, created_at, updated_at FROM conversations WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return bot.Conversation{}, bot.ErrConversationNotFound
		}
		return bot.Conversation{}, errors.Wrap(err, "getting conversation")
	}
	return row.conversation()
}

func (repo *conversationRepository) SaveConversation(ctx context.Context, conv bot.Conversation) (bot.Conversation, error) {
	slots, err := json.Marshal(conv.Slots)
	if err != nil {
		return bot.Conversation{}, errors.Wrap(err, "encoding slots")
	}

	var row conversationRow
	err = repo.db.GetContext(ctx, &row, `
		INSERT INTO conversations (id, user_id, slots)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET user_id = $2, slots = $3, updated_at = now()
		RETURNING id, user_id, slots, created_at, updated_at`,
		conv.ID, null.NewString(conv.UserID, conv.UserID != ""), slots,
	)
	if err != nil {
		return bot.Conversation{}, errors.Wrap(err, "saving conversation")
	}
	return row.conversation()
}

func (repo *conversationRepository) DeleteConversation(ctx context.Context, id string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	return errors.Wrap(err, "deleting conversation")
}
