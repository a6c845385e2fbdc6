package client

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/pairchat/internal/model"
	"github.com/Tyrowin/pairchat/internal/reconcile"
)

// Session keeps one reconciled Conversation per peer for the signed-in user and feeds it
// from the live connection and from history fetches.
type Session struct {
	api  *Client
	conn *Conn
	me   model.UserID
	log  *zap.Logger

	mu     sync.Mutex
	convs  map[model.UserID]*reconcile.Conversation
	typing map[model.UserID]bool
}

// NewSession creates a Session for me. conn may be nil when only history is needed.
func NewSession(api *Client, conn *Conn, me model.UserID, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		api:    api,
		conn:   conn,
		me:     me,
		log:    log.Named("session"),
		convs:  make(map[model.UserID]*reconcile.Conversation),
		typing: make(map[model.UserID]bool),
	}
}

// Conversation returns the conversation with peer, creating it on first use.
func (s *Session) Conversation(peer model.UserID) *reconcile.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[peer]
	if !ok {
		conv = reconcile.New()
		s.convs[peer] = conv
	}
	return conv
}

// IsTyping reports whether peer last signalled typing.
func (s *Session) IsTyping(peer model.UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing[peer]
}

// Load replaces the conversation with peer by the server's history.
func (s *Session) Load(ctx context.Context, peer model.UserID) error {
	history, err := s.api.History(ctx, peer)
	if err != nil {
		return err
	}
	s.Conversation(peer).Replace(history)
	return nil
}

// Apply merges ev into the matching conversation. It returns the peer the event concerns
// and whether anything visible changed.
func (s *Session) Apply(ev Event) (model.UserID, bool) {
	switch {
	case ev.Message != nil:
		peer := s.peerOf(ev.Message.SenderID, ev.Message.ReceiverID)
		conv := s.Conversation(peer)
		before := conv.Messages()
		added := conv.ApplySent(*ev.Message)
		return peer, added || confirmed(before, *ev.Message)
	case ev.Deleted != nil:
		peer := s.peerOf(ev.Deleted.SenderID, ev.Deleted.ReceiverID)
		return peer, s.Conversation(peer).ApplyDeleted(*ev.Deleted)
	case ev.Typing != nil:
		peer := ev.Typing.SenderID
		s.mu.Lock()
		changed := s.typing[peer] != ev.Typing.Typing
		s.typing[peer] = ev.Typing.Typing
		s.mu.Unlock()
		return peer, changed
	}
	return model.UserID{}, false
}

// Run reads the live connection until it closes or ctx is done, applying every event and
// passing it to fn together with the peer it concerns. A normal close returns nil.
func (s *Session) Run(ctx context.Context, fn func(ev Event, peer model.UserID, changed bool)) error {
	if s.conn == nil {
		return errors.New("session has no live connection")
	}

	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	for {
		ev, err := s.conn.Read()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if ev.Error != nil {
			s.log.Debug("server error", zap.String("code", ev.Error.Code), zap.String("message", ev.Error.Message))
		}
		peer, changed := s.Apply(ev)
		if fn != nil {
			fn(ev, peer, changed)
		}
	}
}

func (s *Session) peerOf(sender, receiver model.UserID) model.UserID {
	if sender == s.me {
		return receiver
	}
	return sender
}

// confirmed reports whether m fills in the store id of a provisional entry in before.
func confirmed(before []reconcile.View, m model.Message) bool {
	if m.ID == 0 {
		return false
	}
	for _, v := range before {
		if v.ClientID == m.ClientID && v.ID == 0 {
			return true
		}
	}
	return false
}
