package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Tyrowin/pairchat/internal/errs"
	"github.com/Tyrowin/pairchat/internal/event"
	"github.com/Tyrowin/pairchat/internal/model"
	"github.com/Tyrowin/pairchat/internal/repository"
)

// MessageService is the durable side of messaging.
type MessageService interface {
	// PersistMessage stores a message and returns it with its assigned ID.
	PersistMessage(ctx context.Context, in model.NewMessage) (model.Message, error)
	// FetchHistory returns the conversation of a and b, oldest first.
	FetchHistory(ctx context.Context, a, b model.UserID) ([]model.Message, error)
	// MarkDeleted soft-deletes a message on behalf of requester.
	// It returns errs.ErrNotFound or errs.ErrNotOwner when the capability check fails.
	MarkDeleted(ctx context.Context, id int64, requester model.UserID) (model.Message, error)
}

// AttachmentRemover deletes stored attachment files.
type AttachmentRemover interface {
	Remove(name string) error
}

type MessageServiceImpl struct {
	repo  repository.MessageRepository
	files AttachmentRemover
	log   *zap.Logger
}

// NewMessageService constructs MessageService. files may be nil.
func NewMessageService(repo repository.MessageRepository, files AttachmentRemover, log *zap.Logger) *MessageServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &MessageServiceImpl{repo: repo, files: files, log: log}
}

// ValidateNewMessage rejects a message the store must not accept. Callers that
// fan out before persisting run it first.
func ValidateNewMessage(in model.NewMessage) error {
	switch {
	case in.SenderID == uuid.Nil || in.ReceiverID == uuid.Nil:
		return fmt.Errorf("%w: empty sender or receiver", errs.ErrInvalidEvent)
	case strings.TrimSpace(in.Text) == "" && in.Attachment == "":
		return fmt.Errorf("%w: empty message", errs.ErrInvalidEvent)
	case utf8.RuneCountInString(in.Text) > event.MaxTextLength:
		return fmt.Errorf("%w: message too long", errs.ErrInvalidEvent)
	}
	return nil
}

// PersistMessage validates the write intent and delegates to the repository.
func (s *MessageServiceImpl) PersistMessage(ctx context.Context, in model.NewMessage) (model.Message, error) {
	if err := ValidateNewMessage(in); err != nil {
		return model.Message{}, err
	}
	if in.ClientID == uuid.Nil {
		in.ClientID = uuid.New()
	}
	m, err := s.repo.Create(ctx, in)
	if err != nil {
		return model.Message{}, fmt.Errorf("persist message: %w", err)
	}
	return m, nil
}

// FetchHistory returns both directions of a conversation.
func (s *MessageServiceImpl) FetchHistory(ctx context.Context, a, b model.UserID) ([]model.Message, error) {
	msgs, err := s.repo.ListBetween(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}

// MarkDeleted performs the owner check and soft delete, then drops the attachment file.
func (s *MessageServiceImpl) MarkDeleted(ctx context.Context, id int64, requester model.UserID) (model.Message, error) {
	if id <= 0 {
		return model.Message{}, errs.ErrNotFound
	}
	var attachment string
	if s.files != nil {
		if before, err := s.repo.GetByID(ctx, id); err == nil {
			attachment = before.Attachment
		}
	}

	m, err := s.repo.SoftDelete(ctx, id, requester)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrNotOwner) {
			return model.Message{}, err
		}
		return model.Message{}, fmt.Errorf("delete message: %w", err)
	}

	if attachment != "" {
		if err := s.files.Remove(attachment); err != nil {
			s.log.Warn("remove attachment", zap.Int64("id", id), zap.String("file", attachment), zap.Error(err))
		}
	}
	return m, nil
}
