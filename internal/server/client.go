package server

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/pairchat/internal/errs"
	"github.com/Tyrowin/pairchat/internal/model"
	"github.com/Tyrowin/pairchat/internal/presence"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ConnState is the lifecycle of one connection as seen by Ingress.
type ConnState int

const (
	StateUnregistered ConnState = iota
	StateRegistered
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client is one live WebSocket connection. It implements presence.Handle.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	addr    string
	authID  model.UserID
	limiter *rateLimiter
	log     *zap.Logger

	mu       sync.Mutex
	state    ConnState
	identity model.UserID
}

var _ presence.Handle = (*Client)(nil)

// NewClient creates a Client for conn. authID is the identity proven at upgrade time,
// or uuid.Nil for anonymous connections.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, authID model.UserID) *Client {
	cfg := hub.cfg
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	id := uuid.NewString()

	return &Client{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, cfg.SendBufferSize),
		hub:     hub,
		addr:    addr,
		authID:  authID,
		limiter: newRateLimiter(cfg.RateLimit),
		log:     hub.log.With(zap.String("conn", id), zap.String("addr", addr)),
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// Send enqueues payload without blocking. It reports false when the connection is
// closed or its buffer is full.
func (c *Client) Send(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// State returns the current lifecycle state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Identity returns the bound identity once registered.
func (c *Client) Identity() (model.UserID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity, c.state == StateRegistered
}

// GetSendChan returns the client's outgoing buffer.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// bind registers the connection under identity. Binding the current identity again is a no-op.
func (c *Client) bind(reg *presence.Registry, identity model.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state == StateClosed:
		return errs.ErrConnClosed
	case c.authID != uuid.Nil && identity != c.authID:
		return errs.ErrUnauthorized
	case c.state == StateRegistered && identity != c.identity:
		return errs.ErrAlreadyRegistered
	}
	c.state = StateRegistered
	c.identity = identity
	reg.Register(identity, c)
	return nil
}

// shutdown moves the connection to Closed, drops it from reg and closes the send buffer.
// Only the first call has an effect.
func (c *Client) shutdown(reg *presence.Registry) (identity model.UserID, last, wasOpen bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return uuid.Nil, false, false
	}
	c.state = StateClosed
	identity, last, _ = reg.Unregister(c)
	close(c.send)
	return identity, last, true
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Debug("set initial read deadline", zap.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// logReadError logs a read failure at a level matching how expected it is.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("message exceeded maximum size", zap.Int64("limit", c.hub.cfg.MaxMessageSize))
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		c.log.Debug("client disconnected", zap.Error(err))
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Debug("connection closed", zap.Error(err))
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseMessageTooBig):
		c.log.Warn("unexpected websocket close", zap.Error(err))
	default:
		c.log.Warn("websocket read error", zap.Error(err))
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Debug("close connection in readPump", zap.Error(err))
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.limiter.allow() {
			c.log.Info("rate limit exceeded; discarding message",
				zap.Int("burst", c.hub.cfg.RateLimit.Burst),
				zap.Duration("interval", c.hub.cfg.RateLimit.RefillInterval))
			c.hub.ingress.RateLimited(c)
			continue
		}

		c.hub.ingress.Handle(c, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Debug("close connection in writePump", zap.Error(err))
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeMessage(message, ok) {
				return
			}
		case <-ticker.C:
			if !c.writePing() {
				return
			}
		}
	}
}

// writeMessage writes one envelope per frame. It returns false once the connection should stop.
func (c *Client) writeMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Debug("set write deadline", zap.Error(err))
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
			c.log.Debug("write close message", zap.Error(err))
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("write message", zap.Error(err))
		}
		return false
	}
	return true
}

func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Debug("write ping", zap.Error(err))
		return false
	}
	return true
}
