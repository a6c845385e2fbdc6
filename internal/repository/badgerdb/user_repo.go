package badgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/Tyrowin/pairchat/internal/errs"
	"github.com/Tyrowin/pairchat/internal/model"
)

// userRecord is the stored form; model.User hides the hash from JSON.
type userRecord struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Hash      []byte    `json:"hash"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u userRecord) toModel() *model.User {
	return &model.User{ID: u.ID, Name: u.Name, Email: u.Email, PasswordHash: u.Hash, CreatedAt: u.CreatedAt}
}

// UserRepo implements UserRepository on top of badger.
type UserRepo struct{ s *Store }

// NewUserRepo constructs a user repository.
func NewUserRepo(s *Store) *UserRepo { return &UserRepo{s: s} }

// Create stores the user and reserves its email.
func (r *UserRepo) Create(_ context.Context, u *model.User) error {
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt = now()
	rec := userRecord{ID: u.ID, Name: u.Name, Email: u.Email, Hash: u.PasswordHash, CreatedAt: u.CreatedAt}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.s.db.Update(func(txn *badger.Txn) error {
		for _, k := range [][]byte{emailKey(u.Email), userKey(u.ID)} {
			if _, err := txn.Get(k); err == nil {
				return errs.ErrAlreadyExists
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		if err := txn.Set(emailKey(u.Email), []byte(u.ID.String())); err != nil {
			return err
		}
		return txn.Set(userKey(u.ID), b)
	})
}

// GetByID loads a user by ID.
func (r *UserRepo) GetByID(_ context.Context, id model.UserID) (*model.User, error) {
	var u *model.User
	err := r.s.db.View(func(txn *badger.Txn) error {
		var err error
		u, err = getUser(txn, id)
		return err
	})
	return u, err
}

// GetByEmail loads a user by email, case-insensitively.
func (r *UserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	var u *model.User
	err := r.s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errs.ErrNotFound
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		id, err := uuid.ParseBytes(raw)
		if err != nil {
			return err
		}
		u, err = getUser(txn, id)
		return err
	})
	return u, err
}

// List returns every user ordered by name, without password hashes.
func (r *UserRepo) List(_ context.Context) ([]model.User, error) {
	var out []model.User
	err := r.s.db.View(func(txn *badger.Txn) error {
		prefix := []byte("user:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec userRecord
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &rec) }); err != nil {
				return err
			}
			u := rec.toModel()
			u.PasswordHash = nil
			out = append(out, *u)
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func getUser(txn *badger.Txn, id model.UserID) (*model.User, error) {
	item, err := txn.Get(userKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec userRecord
	if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &rec) }); err != nil {
		return nil, err
	}
	return rec.toModel(), nil
}
