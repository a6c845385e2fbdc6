package server

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Tyrowin/pairchat/internal/errs"
	"github.com/Tyrowin/pairchat/internal/event"
	"github.com/Tyrowin/pairchat/internal/model"
	"github.com/Tyrowin/pairchat/internal/presence"
	"github.com/Tyrowin/pairchat/internal/service"
)

// Ingress turns inbound frames into registry updates, store calls and fan-out.
//
// A message sent over a live connection travels twice: first as a provisional
// receiveMessage with id 0, then, once stored, as the confirmed receiveMessage with
// the store id. Both carry the same clientId. When the store write fails the origin
// gets an error and the provisional copy is left for history to correct.
type Ingress struct {
	registry     *presence.Registry
	router       *presence.Router
	messages     service.MessageService
	decoder      *event.Decoder
	storeTimeout time.Duration
	log          *zap.Logger
}

// NewIngress wires the registry, router and store collaborator together.
func NewIngress(registry *presence.Registry, router *presence.Router, messages service.MessageService, storeTimeout time.Duration, log *zap.Logger) *Ingress {
	if log == nil {
		log = zap.NewNop()
	}
	if storeTimeout <= 0 {
		storeTimeout = defaultConfig().StoreTimeout
	}
	return &Ingress{
		registry:     registry,
		router:       router,
		messages:     messages,
		decoder:      event.NewDecoder(),
		storeTimeout: storeTimeout,
		log:          log.Named("ingress"),
	}
}

// Handle decodes one frame from c and dispatches it. Frames on a closed connection are ignored.
func (in *Ingress) Handle(c *Client, raw []byte) {
	if c.State() == StateClosed {
		return
	}

	cmd, err := in.decoder.Decode(raw)
	if err != nil {
		in.log.Warn("invalid event", zap.String("conn", c.ID()), zap.Error(err))
		in.replyError(c, event.Error{Code: event.CodeInvalidEvent, Message: err.Error()})
		return
	}

	switch cmd := cmd.(type) {
	case event.RegisterUser:
		in.RegisterUser(c, cmd)
	case event.SendMessage:
		in.SendMessage(c, cmd)
	case event.DeleteMessage:
		in.DeleteMessage(c, cmd)
	case event.Typing:
		in.Typing(c, cmd)
	}
}

// RegisterUser binds c to an identity and confirms with a registered frame.
func (in *Ingress) RegisterUser(c *Client, cmd event.RegisterUser) {
	if err := c.bind(in.registry, cmd.UserID); err != nil {
		if errors.Is(err, errs.ErrConnClosed) {
			return
		}
		in.log.Warn("register rejected", zap.String("conn", c.ID()), zap.Stringer("user", cmd.UserID), zap.Error(err))
		in.replyError(c, event.Error{Code: codeFor(err), Message: err.Error(), Event: event.TypeRegisterUser})
		return
	}

	in.log.Debug("registered", zap.String("conn", c.ID()), zap.Stringer("user", cmd.UserID))
	payload, err := event.EncodeRegistered(event.Registered{UserID: cmd.UserID, ConnID: c.ID()})
	if err == nil {
		in.router.DeliverTo(c, payload)
	}
}

// SendMessage fans out a provisional message, stores it and then fans out the confirmation.
func (in *Ingress) SendMessage(c *Client, cmd event.SendMessage) {
	sender, ok := in.identity(c, event.TypeSendMessage)
	if !ok {
		return
	}
	if cmd.SenderID != uuid.Nil && cmd.SenderID != sender {
		in.replyError(c, event.Error{Code: event.CodeUnauthorized, Message: "senderId does not match the registered user", Event: event.TypeSendMessage})
		return
	}
	clientID := cmd.ClientID
	if clientID == uuid.Nil {
		clientID = uuid.New()
	}
	draft := model.NewMessage{
		ClientID:   clientID,
		SenderID:   sender,
		ReceiverID: cmd.ReceiverID,
		Text:       cmd.Text,
	}
	// Nothing reaches the receiver that the store would refuse.
	if err := service.ValidateNewMessage(draft); err != nil {
		in.replyError(c, event.Error{Code: codeFor(err), Message: err.Error(), Event: event.TypeSendMessage, ClientID: &clientID})
		return
	}

	provisional := model.Message{
		ClientID:   clientID,
		SenderID:   sender,
		ReceiverID: cmd.ReceiverID,
		Text:       cmd.Text,
		CreatedAt:  time.Now().UTC(),
	}
	in.router.Deliver(event.MessageSent{Message: provisional})

	ctx, cancel := context.WithTimeout(context.Background(), in.storeTimeout)
	defer cancel()
	stored, err := in.messages.PersistMessage(ctx, draft)
	if err != nil {
		code, msg := codeFor(err), err.Error()
		switch code {
		case event.CodeConflict:
			in.log.Debug("client id reused", zap.String("conn", c.ID()), zap.Stringer("clientId", clientID))
			msg = "clientId already used for another message"
		case event.CodeStoreFailed:
			in.log.Error("persist message", zap.String("conn", c.ID()), zap.Stringer("clientId", clientID), zap.Error(err))
			msg = "message could not be stored"
		}
		in.replyError(c, event.Error{
			Code:     code,
			Message:  msg,
			Event:    event.TypeSendMessage,
			ClientID: &clientID,
		})
		return
	}

	in.MessagePersisted(stored)
	if payload, err := event.EncodeAck(event.Ack{ClientID: stored.ClientID, ID: stored.ID}); err == nil {
		in.router.DeliverTo(c, payload)
	}
}

// DeleteMessage soft-deletes a stored message on behalf of the connection's identity.
func (in *Ingress) DeleteMessage(c *Client, cmd event.DeleteMessage) {
	requester, ok := in.identity(c, event.TypeDeleteMessage)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), in.storeTimeout)
	defer cancel()
	deleted, err := in.messages.MarkDeleted(ctx, cmd.ID, requester)
	if err != nil {
		code := codeFor(err)
		if code == event.CodeStoreFailed {
			in.log.Error("delete message", zap.String("conn", c.ID()), zap.Int64("id", cmd.ID), zap.Error(err))
		}
		in.replyError(c, event.Error{Code: code, Message: err.Error(), Event: event.TypeDeleteMessage, ID: cmd.ID})
		return
	}
	in.MessageDeletedByStore(deleted)
}

// Typing relays a typing indicator to the receiver's live connections.
func (in *Ingress) Typing(c *Client, cmd event.Typing) {
	sender, ok := in.identity(c, cmd.CommandType())
	if !ok {
		return
	}
	if cmd.ReceiverID == sender {
		return
	}
	in.router.Deliver(event.TypingChanged{SenderID: sender, ReceiverID: cmd.ReceiverID, Typing: !cmd.Stop})
}

// RateLimited tells c that a frame was dropped.
func (in *Ingress) RateLimited(c *Client) {
	in.replyError(c, event.Error{Code: event.CodeRateLimited, Message: "too many messages"})
}

// Disconnect moves c to Closed and removes it from the registry. It is idempotent.
func (in *Ingress) Disconnect(c *Client) {
	identity, last, wasOpen := c.shutdown(in.registry)
	if !wasOpen {
		return
	}
	if identity != uuid.Nil {
		in.log.Debug("unregistered", zap.String("conn", c.ID()), zap.Stringer("user", identity), zap.Bool("offline", last))
	}
}

// MessagePersisted fans out a stored message to both participants.
func (in *Ingress) MessagePersisted(m model.Message) int {
	return in.router.Deliver(event.MessageSent{Message: m})
}

// MessageDeletedByStore fans out a deletion to both participants.
func (in *Ingress) MessageDeletedByStore(m model.Message) int {
	return in.router.Deliver(event.DeletedFrom(m))
}

// identity returns the registered identity of c, replying not_registered otherwise.
func (in *Ingress) identity(c *Client, t event.Type) (model.UserID, bool) {
	id, ok := c.Identity()
	if !ok {
		if c.State() != StateClosed {
			in.replyError(c, event.Error{Code: event.CodeNotRegistered, Message: errs.ErrNotRegistered.Error(), Event: t})
		}
		return uuid.Nil, false
	}
	return id, true
}

func (in *Ingress) replyError(c *Client, e event.Error) {
	payload, err := event.EncodeError(e)
	if err != nil {
		in.log.Error("encode error reply", zap.Error(err))
		return
	}
	in.router.DeliverTo(c, payload)
}

// codeFor maps domain errors to wire error codes.
func codeFor(err error) string {
	switch {
	case errors.Is(err, errs.ErrInvalidEvent):
		return event.CodeInvalidEvent
	case errors.Is(err, errs.ErrNotRegistered):
		return event.CodeNotRegistered
	case errors.Is(err, errs.ErrAlreadyRegistered):
		return event.CodeAlreadyRegistered
	case errors.Is(err, errs.ErrUnauthorized):
		return event.CodeUnauthorized
	case errors.Is(err, errs.ErrNotFound):
		return event.CodeNotFound
	case errors.Is(err, errs.ErrNotOwner):
		return event.CodeNotOwner
	case errors.Is(err, errs.ErrAlreadyExists):
		return event.CodeConflict
	default:
		return event.CodeStoreFailed
	}
}
