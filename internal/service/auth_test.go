package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/pairchat/internal/errs"
)

func newAuth(users *fakeUsers) *AuthServiceImpl {
	s := NewAuthService(users, []byte("k"), time.Minute)
	s.cost = 4 // bcrypt.MinCost
	return s
}

func TestAuth_Register_Validation(t *testing.T) {
	req := require.New(t)
	s := newAuth(&fakeUsers{})

	for _, in := range []RegisterInput{
		{},
		{Name: "alice", Email: "not-an-email", Password: "secret1"},
		{Name: "alice", Email: "alice@example.com", Password: "123"},
		{Name: "  ", Email: "alice@example.com", Password: "secret1"},
	} {
		_, err := s.Register(context.Background(), in)
		req.ErrorIs(err, errs.ErrInvalidEvent, "%+v", in)
	}
}

func TestAuth_Register_And_Login(t *testing.T) {
	req := require.New(t)
	users := &fakeUsers{}
	s := newAuth(users)
	ctx := context.Background()

	u, err := s.Register(ctx, RegisterInput{Name: "Alice", Email: " Alice@Example.com ", Password: "secret1"})
	req.NoError(err)
	req.NotEqual(uuid.Nil, u.ID)
	req.Equal("alice@example.com", u.Email)
	req.Nil(u.PasswordHash)
	req.NotEqual([]byte("secret1"), users.byEmail["alice@example.com"].PasswordHash)

	_, err = s.Register(ctx, RegisterInput{Name: "Other", Email: "alice@example.com", Password: "secret2"})
	req.ErrorIs(err, errs.ErrAlreadyExists)

	tokens, logged, err := s.Login(ctx, "alice@example.com", "secret1")
	req.NoError(err)
	req.Equal(u.ID, logged.ID)
	req.NotEmpty(tokens.AccessToken)
	req.True(tokens.ExpiresAt.After(time.Now()))

	sub, err := s.Verify(tokens.AccessToken)
	req.NoError(err)
	req.Equal(u.ID, sub)
}

func TestAuth_Login_Failures_Are_Unauthorized(t *testing.T) {
	req := require.New(t)
	s := newAuth(&fakeUsers{})
	ctx := context.Background()
	_, err := s.Register(ctx, RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "secret1"})
	req.NoError(err)

	_, _, err = s.Login(ctx, "bob@example.com", "wrong")
	req.ErrorIs(err, errs.ErrUnauthorized)

	_, _, err = s.Login(ctx, "ghost@example.com", "secret1")
	req.ErrorIs(err, errs.ErrUnauthorized)
}

func TestAuth_Login_Store_Error_Propagates(t *testing.T) {
	boom := errors.New("boom")
	s := newAuth(&fakeUsers{getErr: boom})
	_, _, err := s.Login(context.Background(), "x@example.com", "secret1")
	require.ErrorIs(t, err, boom)
}

func TestAuth_Verify_Rejects_Bad_Tokens(t *testing.T) {
	req := require.New(t)
	s := newAuth(&fakeUsers{})

	_, err := s.Verify("garbage")
	req.ErrorIs(err, errs.ErrUnauthorized)

	// Signed with another key.
	other := NewAuthService(&fakeUsers{}, []byte("other"), time.Minute)
	tok, _, err := other.issueAccessToken(uuid.New())
	req.NoError(err)
	_, err = s.Verify(tok)
	req.ErrorIs(err, errs.ErrUnauthorized)

	// Expired beyond leeway.
	claims := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	req.NoError(err)
	_, err = s.Verify(expired)
	req.ErrorIs(err, errs.ErrUnauthorized)

	// Subject is not a uuid.
	bad, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"}).SignedString([]byte("k"))
	req.NoError(err)
	_, err = s.Verify(bad)
	req.ErrorIs(err, errs.ErrUnauthorized)
}
