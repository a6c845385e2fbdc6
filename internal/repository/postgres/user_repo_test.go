package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/pairchat/internal/errs"
	"github.com/Tyrowin/pairchat/internal/model"
)

func TestUserRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	req := require.New(t)
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	now := time.Now().UTC()
	u := &model.User{ID: uuid.New(), Name: "Alice", Email: "Alice@Example.com", PasswordHash: []byte("h")}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (id, name, email, pwd_hash)")).
		WithArgs(u.ID, u.Name, "alice@example.com", u.PasswordHash).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
	req.NoError(r.Create(context.Background(), u))
	req.Equal(now, u.CreatedAt)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(u.ID, u.Name, "alice@example.com", u.PasswordHash).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	req.ErrorIs(r.Create(context.Background(), u), errs.ErrAlreadyExists)
}

func TestUserRepo_GetByEmail(t *testing.T) {
	req := require.New(t)
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	id := uuid.New()
	cols := []string{"id", "name", "email", "pwd_hash", "created_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=$1")).
		WithArgs("bob@example.com").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(id, "Bob", "bob@example.com", []byte("h"), time.Now()))
	u, err := r.GetByEmail(context.Background(), "BOB@example.com")
	req.NoError(err)
	req.Equal(id, u.ID)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=$1")).
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByEmail(context.Background(), "nobody@example.com")
	req.ErrorIs(err, errs.ErrNotFound)
}

func TestUserRepo_GetByID_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=$1")).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	_, err := r.GetByID(context.Background(), id)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_List(t *testing.T) {
	req := require.New(t)
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email, created_at FROM users ORDER BY name ASC")).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "created_at"}).
			AddRow(uuid.New(), "Alice", "alice@example.com", time.Now()).
			AddRow(uuid.New(), "Bob", "bob@example.com", time.Now()))

	users, err := r.List(context.Background())
	req.NoError(err)
	req.Len(users, 2)
	req.Nil(users[0].PasswordHash)
}
