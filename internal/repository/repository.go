// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Tyrowin/pairchat/internal/model"
)

// MessageRepository stores direct messages.
type MessageRepository interface {
	// Create inserts a message and assigns its ID. Re-inserting the same ClientID for the
	// same sender returns the stored row instead of a duplicate.
	Create(ctx context.Context, m model.NewMessage) (model.Message, error)
	// GetByID loads a message by store ID.
	GetByID(ctx context.Context, id int64) (model.Message, error)
	// GetByClientID loads a message by its provisional identifier.
	GetByClientID(ctx context.Context, clientID uuid.UUID) (model.Message, error)
	// ListBetween returns the conversation of a and b ordered by creation time.
	ListBetween(ctx context.Context, a, b model.UserID) ([]model.Message, error)
	// SoftDelete marks a message deleted and clears its body, but only for its sender.
	// It returns errs.ErrNotFound or errs.ErrNotOwner.
	SoftDelete(ctx context.Context, id int64, requester model.UserID) (model.Message, error)
}

// UserRepository provides access to accounts.
type UserRepository interface {
	// Create inserts a new user. A taken email yields errs.ErrAlreadyExists.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id model.UserID) (*model.User, error)
	// GetByEmail loads a user by email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// List returns all users ordered by name.
	List(ctx context.Context) ([]model.User, error)
}
