package badgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/Tyrowin/pairchat/internal/errs"
	"github.com/Tyrowin/pairchat/internal/model"
)

// MessageRepo implements MessageRepository on top of badger.
type MessageRepo struct{ s *Store }

// NewMessageRepo constructs a message repository.
func NewMessageRepo(s *Store) *MessageRepo { return &MessageRepo{s: s} }

// Create stores the message under a fresh id and indexes it by conversation and ClientID.
// A retry of the same write returns the stored row; any other reuse of the ClientID is
// errs.ErrAlreadyExists.
func (r *MessageRepo) Create(ctx context.Context, in model.NewMessage) (model.Message, error) {
	if err := ctx.Err(); err != nil {
		return model.Message{}, err
	}
	var out model.Message
	err := r.s.db.Update(func(txn *badger.Txn) error {
		existing, err := getByClientID(txn, in.ClientID)
		switch {
		case err == nil:
			if !in.IsRetryOf(existing) {
				return errs.ErrAlreadyExists
			}
			out = existing
			return nil
		case !errors.Is(err, errs.ErrNotFound):
			return err
		}

		id, err := r.s.nextID()
		if err != nil {
			return fmt.Errorf("next message id: %w", err)
		}
		out = model.Message{
			ID:         id,
			ClientID:   in.ClientID,
			SenderID:   in.SenderID,
			ReceiverID: in.ReceiverID,
			Text:       in.Text,
			Attachment: in.Attachment,
			CreatedAt:  now(),
		}
		if err := putMessage(txn, out); err != nil {
			return err
		}
		if err := txn.Set(pairKey(out), nil); err != nil {
			return err
		}
		return txn.Set(clientKey(out.ClientID), []byte(strconv.FormatInt(id, 10)))
	})
	if err != nil {
		return model.Message{}, err
	}
	return out, nil
}

// GetByID loads a message by store id.
func (r *MessageRepo) GetByID(_ context.Context, id int64) (model.Message, error) {
	var m model.Message
	err := r.s.db.View(func(txn *badger.Txn) error {
		var err error
		m, err = getMessage(txn, id)
		return err
	})
	return m, err
}

// GetByClientID loads a message by its provisional identifier.
func (r *MessageRepo) GetByClientID(_ context.Context, clientID uuid.UUID) (model.Message, error) {
	var m model.Message
	err := r.s.db.View(func(txn *badger.Txn) error {
		var err error
		m, err = getByClientID(txn, clientID)
		return err
	})
	return m, err
}

// ListBetween scans the pair index, oldest first.
func (r *MessageRepo) ListBetween(_ context.Context, a, b model.UserID) ([]model.Message, error) {
	var out []model.Message
	err := r.s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(pairPrefix(a, b))
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id, err := idFromPairKey(it.Item().Key())
			if err != nil {
				return err
			}
			m, err := getMessage(txn, id)
			if err != nil {
				return err
			}
			out = append(out, m)
		}
		return nil
	})
	return out, err
}

// SoftDelete flags the message deleted and clears its body when requester is the sender.
func (r *MessageRepo) SoftDelete(_ context.Context, id int64, requester model.UserID) (model.Message, error) {
	var m model.Message
	err := r.s.db.Update(func(txn *badger.Txn) error {
		var err error
		m, err = getMessage(txn, id)
		if err != nil {
			return err
		}
		if m.SenderID != requester {
			return errs.ErrNotOwner
		}
		m.Deleted = true
		m.Text = ""
		m.Attachment = ""
		return putMessage(txn, m)
	})
	if err != nil {
		return model.Message{}, err
	}
	return m, nil
}

func putMessage(txn *badger.Txn, m model.Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return txn.Set(messageKey(m.ID), b)
}

func getMessage(txn *badger.Txn, id int64) (model.Message, error) {
	var m model.Message
	item, err := txn.Get(messageKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return m, errs.ErrNotFound
	}
	if err != nil {
		return m, err
	}
	err = item.Value(func(v []byte) error { return json.Unmarshal(v, &m) })
	return m, err
}

func getByClientID(txn *badger.Txn, clientID uuid.UUID) (model.Message, error) {
	item, err := txn.Get(clientKey(clientID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return model.Message{}, errs.ErrNotFound
	}
	if err != nil {
		return model.Message{}, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return model.Message{}, err
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return model.Message{}, fmt.Errorf("client index: %w", err)
	}
	return getMessage(txn, id)
}
