package badgerdb

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/pairchat/internal/errs"
	"github.com/Tyrowin/pairchat/internal/model"
	"github.com/Tyrowin/pairchat/internal/repository"
)

var (
	_ repository.MessageRepository = (*MessageRepo)(nil)
	_ repository.UserRepository    = (*UserRepo)(nil)
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Create_Assigns_Increasing_IDs(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepo(newStore(t))
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	first, err := repo.Create(ctx, model.NewMessage{ClientID: uuid.New(), SenderID: alice, ReceiverID: bob, Text: "hi"})
	req.NoError(err)
	second, err := repo.Create(ctx, model.NewMessage{ClientID: uuid.New(), SenderID: bob, ReceiverID: alice, Text: "hey"})
	req.NoError(err)

	req.Positive(first.ID)
	req.Greater(second.ID, first.ID)
	req.False(first.CreatedAt.IsZero())
}

func Test_Create_Same_ClientID_Returns_Stored_Row(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepo(newStore(t))
	ctx := context.Background()
	in := model.NewMessage{ClientID: uuid.New(), SenderID: uuid.New(), ReceiverID: uuid.New(), Text: "hi"}

	// Given a stored message
	first, err := repo.Create(ctx, in)
	req.NoError(err)

	// When the same sender retries with the same ClientID
	again, err := repo.Create(ctx, in)
	req.NoError(err)
	req.Equal(first.ID, again.ID)

	// Then a different sender cannot claim it
	in.SenderID = uuid.New()
	_, err = repo.Create(ctx, in)
	req.ErrorIs(err, errs.ErrAlreadyExists)

	history, err := repo.ListBetween(ctx, first.SenderID, first.ReceiverID)
	req.NoError(err)
	req.Len(history, 1)
}

func Test_Create_Reused_ClientID_With_Other_Content_Is_Rejected(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepo(newStore(t))
	ctx := context.Background()
	in := model.NewMessage{ClientID: uuid.New(), SenderID: uuid.New(), ReceiverID: uuid.New(), Text: "hi"}

	// Given a stored message
	first, err := repo.Create(ctx, in)
	req.NoError(err)

	// When the same sender reuses the ClientID for another receiver or text
	otherReceiver := in
	otherReceiver.ReceiverID = uuid.New()
	_, err = repo.Create(ctx, otherReceiver)
	req.ErrorIs(err, errs.ErrAlreadyExists)

	otherText := in
	otherText.Text = "something else"
	_, err = repo.Create(ctx, otherText)
	req.ErrorIs(err, errs.ErrAlreadyExists)

	otherAttachment := in
	otherAttachment.Attachment = "a.png"
	_, err = repo.Create(ctx, otherAttachment)
	req.ErrorIs(err, errs.ErrAlreadyExists)

	// Then the stored row is untouched and nothing new was written
	got, err := repo.GetByClientID(ctx, in.ClientID)
	req.NoError(err)
	req.Equal(first.ID, got.ID)
	req.Equal(first.ReceiverID, got.ReceiverID)
	req.Equal("hi", got.Text)

	history, err := repo.ListBetween(ctx, otherReceiver.SenderID, otherReceiver.ReceiverID)
	req.NoError(err)
	req.Empty(history)
}

func Test_ListBetween_Both_Directions_In_Order(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepo(newStore(t))
	ctx := context.Background()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()

	texts := []string{"one", "two", "three"}
	senders := []model.UserID{alice, bob, alice}
	for i, text := range texts {
		receiver := bob
		if senders[i] == bob {
			receiver = alice
		}
		_, err := repo.Create(ctx, model.NewMessage{ClientID: uuid.New(), SenderID: senders[i], ReceiverID: receiver, Text: text})
		req.NoError(err)
	}
	_, err := repo.Create(ctx, model.NewMessage{ClientID: uuid.New(), SenderID: alice, ReceiverID: carol, Text: "other"})
	req.NoError(err)

	history, err := repo.ListBetween(ctx, bob, alice)
	req.NoError(err)
	req.Len(history, 3)
	for i, m := range history {
		req.Equal(texts[i], m.Text)
	}
}

func Test_SoftDelete(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepo(newStore(t))
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	m, err := repo.Create(ctx, model.NewMessage{ClientID: uuid.New(), SenderID: alice, ReceiverID: bob, Text: "secret", Attachment: "a.png"})
	req.NoError(err)

	_, err = repo.SoftDelete(ctx, m.ID, bob)
	req.ErrorIs(err, errs.ErrNotOwner)

	_, err = repo.SoftDelete(ctx, m.ID+100, alice)
	req.ErrorIs(err, errs.ErrNotFound)

	deleted, err := repo.SoftDelete(ctx, m.ID, alice)
	req.NoError(err)
	req.True(deleted.Deleted)
	req.Empty(deleted.Text)
	req.Empty(deleted.Attachment)

	stored, err := repo.GetByClientID(ctx, m.ClientID)
	req.NoError(err)
	req.True(stored.Deleted)
	req.Empty(stored.Text)
}

func Test_Users(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepo(newStore(t))
	ctx := context.Background()

	bob := &model.User{ID: uuid.New(), Name: "Bob", Email: "Bob@Example.com", PasswordHash: []byte("hash")}
	alice := &model.User{ID: uuid.New(), Name: "Alice", Email: "alice@example.com", PasswordHash: []byte("hash")}
	req.NoError(repo.Create(ctx, bob))
	req.NoError(repo.Create(ctx, alice))

	dup := &model.User{ID: uuid.New(), Name: "Bobby", Email: "BOB@example.com"}
	req.ErrorIs(repo.Create(ctx, dup), errs.ErrAlreadyExists)

	got, err := repo.GetByEmail(ctx, "bob@EXAMPLE.com")
	req.NoError(err)
	req.Equal(bob.ID, got.ID)
	req.Equal([]byte("hash"), got.PasswordHash)

	_, err = repo.GetByID(ctx, uuid.New())
	req.ErrorIs(err, errs.ErrNotFound)

	users, err := repo.List(ctx)
	req.NoError(err)
	req.Len(users, 2)
	req.Equal("Alice", users[0].Name)
	req.Nil(users[1].PasswordHash)
}
