package event

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Tyrowin/pairchat/internal/errs"
	"github.com/Tyrowin/pairchat/internal/model"
)

// MaxTextLength bounds the body of a single message.
const MaxTextLength = 4000

// Command is a decoded and validated inbound event.
type Command interface {
	CommandType() Type
}

// RegisterUser binds the connection to an identity.
type RegisterUser struct {
	UserID model.UserID
}

// SendMessage asks for a message to be persisted and fanned out.
// SenderID is optional on the wire and uuid.Nil when omitted.
type SendMessage struct {
	SenderID   model.UserID
	ReceiverID model.UserID
	Text       string
	ClientID   uuid.UUID
}

// DeleteMessage asks for a soft deletion of a stored message.
type DeleteMessage struct {
	ID int64
}

// Typing starts or stops a typing indicator towards the receiver.
type Typing struct {
	ReceiverID model.UserID
	Stop       bool
}

func (RegisterUser) CommandType() Type  { return TypeRegisterUser }
func (SendMessage) CommandType() Type   { return TypeSendMessage }
func (DeleteMessage) CommandType() Type { return TypeDeleteMessage }
func (t Typing) CommandType() Type {
	if t.Stop {
		return TypeStopTyping
	}
	return TypeTyping
}

type registerUserData struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

type sendMessageData struct {
	SenderID   string `json:"senderId" validate:"omitempty,uuid"`
	ReceiverID string `json:"receiverId" validate:"required,uuid"`
	Text       string `json:"message" validate:"required,max=4000"`
	ClientID   string `json:"clientId" validate:"omitempty,uuid"`
}

type deleteMessageData struct {
	ID int64 `json:"messageId" validate:"required,gt=0"`
}

type typingData struct {
	ReceiverID string `json:"receiverId" validate:"required,uuid"`
}

// Decoder turns raw frames into commands. It is safe for concurrent use.
type Decoder struct {
	validate *validator.Validate
}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{validate: validator.New()}
}

// Decode parses and validates one frame. Every failure wraps errs.ErrInvalidEvent.
func (d *Decoder) Decode(raw []byte) (Command, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidEvent, err)
	}

	switch env.Type {
	case TypeRegisterUser:
		var data registerUserData
		if err := d.bind(env, &data); err != nil {
			return nil, err
		}
		return RegisterUser{UserID: uuid.MustParse(data.UserID)}, nil

	case TypeSendMessage:
		var data sendMessageData
		if err := d.bind(env, &data); err != nil {
			return nil, err
		}
		cmd := SendMessage{
			ReceiverID: uuid.MustParse(data.ReceiverID),
			Text:       data.Text,
		}
		if data.SenderID != "" {
			cmd.SenderID = uuid.MustParse(data.SenderID)
		}
		if data.ClientID != "" {
			cmd.ClientID = uuid.MustParse(data.ClientID)
		}
		return cmd, nil

	case TypeDeleteMessage:
		var data deleteMessageData
		if err := d.bind(env, &data); err != nil {
			return nil, err
		}
		return DeleteMessage{ID: data.ID}, nil

	case TypeTyping, TypeStopTyping:
		var data typingData
		if err := d.bind(env, &data); err != nil {
			return nil, err
		}
		return Typing{ReceiverID: uuid.MustParse(data.ReceiverID), Stop: env.Type == TypeStopTyping}, nil

	case "":
		return nil, fmt.Errorf("%w: missing type", errs.ErrInvalidEvent)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", errs.ErrInvalidEvent, env.Type)
	}
}

func (d *Decoder) bind(env Envelope, dst any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s: missing data", errs.ErrInvalidEvent, env.Type)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrInvalidEvent, env.Type, err)
	}
	if err := d.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrInvalidEvent, env.Type, err)
	}
	return nil
}
