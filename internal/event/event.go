// Package event defines the domain events routed to live connections and the JSON
// envelope they travel in.
package event

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Tyrowin/pairchat/internal/model"
)

// Type is the wire name of an envelope.
type Type string

// Inbound types, raised by live connections.
const (
	TypeRegisterUser  Type = "registerUser"
	TypeSendMessage   Type = "sendMessage"
	TypeDeleteMessage Type = "deleteMessage"
	TypeTyping        Type = "typing"
	TypeStopTyping    Type = "stopTyping"
)

// Outbound types, delivered to live connections.
const (
	TypeReceiveMessage Type = "receiveMessage"
	TypeMessageDeleted Type = "messageDeleted"
	TypeRegistered     Type = "registered"
	TypeAck            Type = "ack"
	TypeError          Type = "error"
)

// Envelope is the frame exchanged over a live connection in both directions.
type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DomainEvent is one of MessageSent, MessageDeleted or TypingChanged.
type DomainEvent interface {
	Type() Type
	Recipients() []model.UserID
	payload() any
}

// MessageSent announces a new message. The message is provisional while Message.ID is zero.
type MessageSent struct {
	Message model.Message
}

func (e MessageSent) Type() Type                  { return TypeReceiveMessage }
func (e MessageSent) Recipients() []model.UserID { return e.Message.Participants() }
func (e MessageSent) payload() any                { return e.Message }

// MessageDeleted announces a soft deletion. It carries identifiers only, never the body.
type MessageDeleted struct {
	ID         int64        `json:"id"`
	ClientID   uuid.UUID    `json:"clientId"`
	SenderID   model.UserID `json:"senderId"`
	ReceiverID model.UserID `json:"receiverId"`
	Deleted    bool         `json:"isDeleted"`
}

// DeletedFrom builds a MessageDeleted from a stored message.
func DeletedFrom(m model.Message) MessageDeleted {
	return MessageDeleted{
		ID:         m.ID,
		ClientID:   m.ClientID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Deleted:    true,
	}
}

func (e MessageDeleted) Type() Type { return TypeMessageDeleted }
func (e MessageDeleted) Recipients() []model.UserID {
	return []model.UserID{e.SenderID, e.ReceiverID}
}
func (e MessageDeleted) payload() any { return e }

// TypingChanged relays a typing indicator to the receiver only.
type TypingChanged struct {
	SenderID   model.UserID `json:"senderId"`
	ReceiverID model.UserID `json:"receiverId"`
	Typing     bool         `json:"-"`
}

func (e TypingChanged) Type() Type {
	if e.Typing {
		return TypeTyping
	}
	return TypeStopTyping
}
func (e TypingChanged) Recipients() []model.UserID { return []model.UserID{e.ReceiverID} }
func (e TypingChanged) payload() any                { return e }

// Encode renders a domain event as an outbound envelope.
func Encode(evt DomainEvent) ([]byte, error) {
	return marshalEnvelope(evt.Type(), evt.payload())
}

// Ack confirms that a message sent over the live connection reached the store.
type Ack struct {
	ClientID uuid.UUID `json:"clientId"`
	ID       int64     `json:"id"`
}

// Registered confirms registerUser.
type Registered struct {
	UserID model.UserID `json:"userId"`
	ConnID string       `json:"connId"`
}

// Error codes reported to the originating connection.
const (
	CodeInvalidEvent      = "invalid_event"
	CodeNotRegistered     = "not_registered"
	CodeAlreadyRegistered = "already_registered"
	CodeUnauthorized      = "unauthorized"
	CodeNotFound          = "not_found"
	CodeNotOwner          = "not_owner"
	CodeConflict          = "conflict"
	CodeStoreFailed       = "store_failed"
	CodeRateLimited       = "rate_limited"
)

// Error reports a rejected inbound event back to its origin only.
type Error struct {
	Code     string     `json:"code"`
	Message  string     `json:"message"`
	Event    Type       `json:"event,omitempty"`
	ClientID *uuid.UUID `json:"clientId,omitempty"`
	ID       int64      `json:"id,omitempty"`
}

// EncodeAck renders an ack envelope.
func EncodeAck(a Ack) ([]byte, error) { return marshalEnvelope(TypeAck, a) }

// EncodeRegistered renders a registered envelope.
func EncodeRegistered(r Registered) ([]byte, error) { return marshalEnvelope(TypeRegistered, r) }

// EncodeError renders an error envelope.
func EncodeError(e Error) ([]byte, error) { return marshalEnvelope(TypeError, e) }

func marshalEnvelope(t Type, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Data: data})
}
