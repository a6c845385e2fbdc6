package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Tyrowin/pairchat/internal/errs"
	"github.com/Tyrowin/pairchat/internal/model"
)

const messageColumns = `id, client_id, sender_id, receiver_id, message, attachment, is_deleted, created_at`

// MessageRepo implements MessageRepository using PostgreSQL.
type MessageRepo struct{ db *DB }

// NewMessageRepo constructs a message repository.
func NewMessageRepo(db *DB) *MessageRepo { return &MessageRepo{db: db} }

// Create inserts a message row. A retry of the same write returns the stored row;
// any other reuse of the ClientID is errs.ErrAlreadyExists.
func (r *MessageRepo) Create(ctx context.Context, m model.NewMessage) (model.Message, error) {
	const q = `
INSERT INTO messages (client_id, sender_id, receiver_id, message, attachment)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + messageColumns
	msg, err := scanMessage(r.db.Pool.QueryRow(ctx, q, m.ClientID, m.SenderID, m.ReceiverID, m.Text, m.Attachment))
	if err == nil {
		return msg, nil
	}
	if !isUniqueViolation(err) {
		return model.Message{}, fmt.Errorf("insert message: %w", err)
	}

	existing, getErr := r.GetByClientID(ctx, m.ClientID)
	if getErr != nil {
		return model.Message{}, getErr
	}
	if !m.IsRetryOf(existing) {
		return model.Message{}, errs.ErrAlreadyExists
	}
	return existing, nil
}

// GetByID selects a message by store ID.
func (r *MessageRepo) GetByID(ctx context.Context, id int64) (model.Message, error) {
	const q = `SELECT ` + messageColumns + ` FROM messages WHERE id=$1`
	return r.getOne(ctx, q, id)
}

// GetByClientID selects a message by its provisional identifier.
func (r *MessageRepo) GetByClientID(ctx context.Context, clientID uuid.UUID) (model.Message, error) {
	const q = `SELECT ` + messageColumns + ` FROM messages WHERE client_id=$1`
	return r.getOne(ctx, q, clientID)
}

// ListBetween returns both directions of the conversation, oldest first.
func (r *MessageRepo) ListBetween(ctx context.Context, a, b model.UserID) ([]model.Message, error) {
	const q = `
SELECT ` + messageColumns + `
FROM messages
WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Pool.Query(ctx, q, a, b)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// SoftDelete flags the message deleted and clears its body when requester is the sender.
func (r *MessageRepo) SoftDelete(ctx context.Context, id int64, requester model.UserID) (model.Message, error) {
	const q = `
UPDATE messages
SET is_deleted = TRUE, message = '', attachment = ''
WHERE id = $1 AND sender_id = $2
RETURNING ` + messageColumns
	msg, err := scanMessage(r.db.Pool.QueryRow(ctx, q, id, requester))
	if err == nil {
		return msg, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Message{}, fmt.Errorf("delete message: %w", err)
	}

	// Nothing updated: tell a missing row apart from someone else's message.
	if _, err := r.GetByID(ctx, id); err != nil {
		return model.Message{}, err
	}
	return model.Message{}, errs.ErrNotOwner
}

func (r *MessageRepo) getOne(ctx context.Context, q string, arg any) (model.Message, error) {
	msg, err := scanMessage(r.db.Pool.QueryRow(ctx, q, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Message{}, errs.ErrNotFound
		}
		return model.Message{}, err
	}
	return msg, nil
}

func scanMessage(row pgx.Row) (model.Message, error) {
	var m model.Message
	err := row.Scan(&m.ID, &m.ClientID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Attachment, &m.Deleted, &m.CreatedAt)
	return m, err
}
