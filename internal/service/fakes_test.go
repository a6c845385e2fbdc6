package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tyrowin/pairchat/internal/errs"
	"github.com/Tyrowin/pairchat/internal/model"
	"github.com/Tyrowin/pairchat/internal/repository"
)

type fakeUsers struct {
	byEmail map[string]*model.User

	createErr error
	getErr    error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.byEmail == nil {
		f.byEmail = map[string]*model.User{}
	}
	if _, exists := f.byEmail[u.Email]; exists {
		return errs.ErrAlreadyExists
	}
	u.CreatedAt = time.Now()
	cpy := *u
	f.byEmail[u.Email] = &cpy
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id model.UserID) (*model.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) List(context.Context) ([]model.User, error) {
	out := make([]model.User, 0, len(f.byEmail))
	for _, u := range f.byEmail {
		c := *u
		c.PasswordHash = nil
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type fakeMessages struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]model.Message

	createErr error
	deleteErr error
}

var _ repository.MessageRepository = (*fakeMessages)(nil)

func (f *fakeMessages) Create(_ context.Context, in model.NewMessage) (model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return model.Message{}, f.createErr
	}
	if f.rows == nil {
		f.rows = map[int64]model.Message{}
	}
	f.nextID++
	m := model.Message{
		ID: f.nextID, ClientID: in.ClientID, SenderID: in.SenderID, ReceiverID: in.ReceiverID,
		Text: in.Text, Attachment: in.Attachment, CreatedAt: time.Now(),
	}
	f.rows[m.ID] = m
	return m, nil
}

func (f *fakeMessages) GetByID(_ context.Context, id int64) (model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok {
		return model.Message{}, errs.ErrNotFound
	}
	return m, nil
}

func (f *fakeMessages) GetByClientID(_ context.Context, clientID uuid.UUID) (model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.rows {
		if m.ClientID == clientID {
			return m, nil
		}
	}
	return model.Message{}, errs.ErrNotFound
}

func (f *fakeMessages) ListBetween(_ context.Context, a, b model.UserID) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, m := range f.rows {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeMessages) SoftDelete(_ context.Context, id int64, requester model.UserID) (model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return model.Message{}, f.deleteErr
	}
	m, ok := f.rows[id]
	if !ok {
		return model.Message{}, errs.ErrNotFound
	}
	if m.SenderID != requester {
		return model.Message{}, errs.ErrNotOwner
	}
	m.Deleted, m.Text, m.Attachment = true, "", ""
	f.rows[id] = m
	return m, nil
}

type fakeFiles struct{ removed []string }

func (f *fakeFiles) Remove(name string) error {
	f.removed = append(f.removed, name)
	return nil
}
