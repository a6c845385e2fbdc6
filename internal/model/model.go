// Package model defines domain entities shared by services, repositories and the transport.
package model

import (
	"time"

	"github.com/google/uuid"
)

// UserID identifies a user. It is the primary key of the user store.
type UserID = uuid.UUID

// DeletedText replaces the body of a deleted message on display.
const DeletedText = "This message was deleted"

// Message is a single direct message between two users.
//
// ID is assigned by the store and is zero while the message only exists as a live hint.
// ClientID is the provisional identifier carried by both delivery paths.
type Message struct {
	ID         int64     `json:"id"`
	ClientID   uuid.UUID `json:"clientId"`
	SenderID   UserID    `json:"senderId"`
	ReceiverID UserID    `json:"receiverId"`
	Text       string    `json:"message"`
	Attachment string    `json:"attachment,omitempty"`
	Deleted    bool      `json:"isDeleted"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Persisted reports whether the store has assigned an identifier.
func (m Message) Persisted() bool { return m.ID != 0 }

// Participants returns sender and receiver.
func (m Message) Participants() []UserID { return []UserID{m.SenderID, m.ReceiverID} }

// NewMessage is a write intent handed to the store.
type NewMessage struct {
	ClientID   uuid.UUID
	SenderID   UserID
	ReceiverID UserID
	Text       string
	Attachment string
}

// IsRetryOf reports whether n repeats the write that produced m: same sender,
// receiver, text and attachment. A reused ClientID that differs is a conflict.
func (n NewMessage) IsRetryOf(m Message) bool {
	return n.SenderID == m.SenderID &&
		n.ReceiverID == m.ReceiverID &&
		n.Text == m.Text &&
		n.Attachment == m.Attachment
}

// User represents an account. PasswordHash is never serialized.
type User struct {
	ID           UserID    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Tokens collects an issued access token.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time
}
