package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/pairchat/internal/event"
	"github.com/Tyrowin/pairchat/internal/model"
)

const writeWait = 10 * time.Second

// Event is one decoded frame from the server. The field matching Type is set.
type Event struct {
	Type       event.Type
	Message    *model.Message
	Deleted    *event.MessageDeleted
	Typing     *event.TypingChanged
	Ack        *event.Ack
	Registered *event.Registered
	Error      *event.Error
}

// Conn is a live connection to /ws. Writes are serialized; Read must be called from one goroutine.
type Conn struct {
	ws  *websocket.Conn
	wmu sync.Mutex
}

// Dial opens a live connection, authenticated with the client's token when one is set.
func (c *Client) Dial(ctx context.Context) (*Conn, error) {
	u := *c.base
	u.Scheme = "ws"
	if c.base.Scheme == "https" {
		u.Scheme = "wss"
	}
	u.Path += "/ws"
	if c.token != "" {
		q := u.Query()
		q.Set("token", c.token)
		u.RawQuery = q.Encode()
	}

	header := http.Header{}
	header.Set("Origin", c.origin)
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Message: "websocket handshake rejected"}
		}
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	return &Conn{ws: ws}, nil
}

// Register binds the connection to user. The server answers with a registered or error event.
func (c *Conn) Register(user model.UserID) error {
	return c.write(event.TypeRegisterUser, map[string]any{"userId": user})
}

// SendMessage sends text to receiver and returns the client id both delivery paths will carry.
func (c *Conn) SendMessage(receiver model.UserID, text string) (uuid.UUID, error) {
	clientID := uuid.New()
	err := c.write(event.TypeSendMessage, map[string]any{
		"receiverId": receiver,
		"message":    text,
		"clientId":   clientID,
	})
	return clientID, err
}

// DeleteMessage asks for a soft deletion of a stored message.
func (c *Conn) DeleteMessage(id int64) error {
	return c.write(event.TypeDeleteMessage, map[string]any{"messageId": id})
}

// Typing starts or stops the typing indicator shown to receiver.
func (c *Conn) Typing(receiver model.UserID, typing bool) error {
	t := event.TypeStopTyping
	if typing {
		t = event.TypeTyping
	}
	return c.write(t, map[string]any{"receiverId": receiver})
}

// Read blocks until the next frame arrives.
func (c *Conn) Read() (Event, error) {
	_, raw, err := c.ws.ReadMessage()
	if err != nil {
		return Event{}, err
	}
	return decodeEvent(raw)
}

// Close sends a close frame and closes the socket.
func (c *Conn) Close() error {
	c.wmu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.wmu.Unlock()
	return c.ws.Close()
}

func (c *Conn) write(t event.Type, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(event.Envelope{Type: t, Data: raw})
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func decodeEvent(raw []byte) (Event, error) {
	var env event.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("decode frame: %w", err)
	}

	ev := Event{Type: env.Type}
	var target any
	switch env.Type {
	case event.TypeReceiveMessage:
		ev.Message = &model.Message{}
		target = ev.Message
	case event.TypeMessageDeleted:
		ev.Deleted = &event.MessageDeleted{}
		target = ev.Deleted
	case event.TypeTyping, event.TypeStopTyping:
		ev.Typing = &event.TypingChanged{Typing: env.Type == event.TypeTyping}
		target = ev.Typing
	case event.TypeAck:
		ev.Ack = &event.Ack{}
		target = ev.Ack
	case event.TypeRegistered:
		ev.Registered = &event.Registered{}
		target = ev.Registered
	case event.TypeError:
		ev.Error = &event.Error{}
		target = ev.Error
	default:
		return ev, nil
	}
	if err := json.Unmarshal(env.Data, target); err != nil {
		return Event{}, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return ev, nil
}
