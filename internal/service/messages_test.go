package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/pairchat/internal/errs"
	"github.com/Tyrowin/pairchat/internal/event"
	"github.com/Tyrowin/pairchat/internal/model"
)

func TestMessages_Persist_Validation(t *testing.T) {
	req := require.New(t)
	s := NewMessageService(&fakeMessages{}, nil, nil)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	for _, in := range []model.NewMessage{
		{ReceiverID: bob, Text: "hi"},
		{SenderID: alice, Text: "hi"},
		{SenderID: alice, ReceiverID: bob, Text: "   "},
		{SenderID: alice, ReceiverID: bob, Text: strings.Repeat("x", event.MaxTextLength+1)},
	} {
		_, err := s.PersistMessage(ctx, in)
		req.ErrorIs(err, errs.ErrInvalidEvent)
	}

	m, err := s.PersistMessage(ctx, model.NewMessage{SenderID: alice, ReceiverID: bob, Attachment: "a.png"})
	req.NoError(err)
	req.NotEqual(uuid.Nil, m.ClientID, "client id minted when absent")
	req.True(m.Persisted())
}

func TestValidateNewMessage(t *testing.T) {
	req := require.New(t)
	alice, bob := uuid.New(), uuid.New()

	req.ErrorIs(ValidateNewMessage(model.NewMessage{SenderID: alice, ReceiverID: bob, Text: " \t\n"}), errs.ErrInvalidEvent)
	req.ErrorIs(ValidateNewMessage(model.NewMessage{SenderID: alice, Text: "hi"}), errs.ErrInvalidEvent)
	req.NoError(ValidateNewMessage(model.NewMessage{SenderID: alice, ReceiverID: bob, Text: strings.Repeat("é", event.MaxTextLength)}))
	req.NoError(ValidateNewMessage(model.NewMessage{SenderID: alice, ReceiverID: bob, Text: "  ", Attachment: "a.png"}))
}

func TestMessages_Persist_Store_Error_Wrapped(t *testing.T) {
	boom := errors.New("boom")
	s := NewMessageService(&fakeMessages{createErr: boom}, nil, nil)
	_, err := s.PersistMessage(context.Background(), model.NewMessage{SenderID: uuid.New(), ReceiverID: uuid.New(), Text: "hi"})
	require.ErrorIs(t, err, boom)
}

func TestMessages_FetchHistory_Never_Nil(t *testing.T) {
	req := require.New(t)
	s := NewMessageService(&fakeMessages{}, nil, nil)
	msgs, err := s.FetchHistory(context.Background(), uuid.New(), uuid.New())
	req.NoError(err)
	req.NotNil(msgs)
	req.Empty(msgs)
}

func TestMessages_MarkDeleted(t *testing.T) {
	req := require.New(t)
	files := &fakeFiles{}
	repo := &fakeMessages{}
	s := NewMessageService(repo, files, nil)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	m, err := s.PersistMessage(ctx, model.NewMessage{SenderID: alice, ReceiverID: bob, Text: "look", Attachment: "pic.png"})
	req.NoError(err)

	// Given a receiver trying to delete
	_, err = s.MarkDeleted(ctx, m.ID, bob)
	req.ErrorIs(err, errs.ErrNotOwner)
	req.Empty(files.removed)

	// When the id does not exist
	_, err = s.MarkDeleted(ctx, 999, alice)
	req.ErrorIs(err, errs.ErrNotFound)
	_, err = s.MarkDeleted(ctx, 0, alice)
	req.ErrorIs(err, errs.ErrNotFound)

	// Then the sender can delete, and the attachment file goes with it
	deleted, err := s.MarkDeleted(ctx, m.ID, alice)
	req.NoError(err)
	req.True(deleted.Deleted)
	req.Empty(deleted.Text)
	req.Equal([]string{"pic.png"}, files.removed)

	history, err := s.FetchHistory(ctx, bob, alice)
	req.NoError(err)
	req.Len(history, 1)
	req.True(history[0].Deleted)
}

func TestMessages_MarkDeleted_Store_Error(t *testing.T) {
	boom := errors.New("boom")
	repo := &fakeMessages{deleteErr: boom}
	s := NewMessageService(repo, nil, nil)
	_, err := s.MarkDeleted(context.Background(), 1, uuid.New())
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, errs.ErrNotFound)
}
