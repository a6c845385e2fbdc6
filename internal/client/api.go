// Package client talks to a PairChat server: the REST API for accounts and history, and
// a live WebSocket connection whose events are merged per conversation by a Session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Tyrowin/pairchat/internal/errs"
	"github.com/Tyrowin/pairchat/internal/model"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Unwrap maps the status to the matching domain sentinel so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return errs.ErrInvalidEvent
	case http.StatusUnauthorized:
		return errs.ErrUnauthorized
	case http.StatusForbidden:
		return errs.ErrNotOwner
	case http.StatusNotFound:
		return errs.ErrNotFound
	case http.StatusConflict:
		return errs.ErrAlreadyExists
	case http.StatusUnsupportedMediaType:
		return errs.ErrUnsupportedType
	}
	return nil
}

// UserStatus is an account as listed by the server, with its live presence.
type UserStatus struct {
	model.User
	Online bool `json:"online"`
}

// Login is the result of a successful login.
type Login struct {
	Token     string
	ExpiresAt time.Time
	User      model.User
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithToken sets the access token sent with every request.
func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// WithOrigin sets the Origin header used for the WebSocket handshake.
// It defaults to the base URL.
func WithOrigin(origin string) Option { return func(c *Client) { c.origin = origin } }

// Client is a PairChat API client. It is safe for concurrent use once configured.
type Client struct {
	base   *url.URL
	http   *http.Client
	token  string
	origin string
}

// New creates a Client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https, got %q", baseURL)
	}
	c := &Client{base: u, http: http.DefaultClient, origin: u.Scheme + "://" + u.Host}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Token returns the access token in use.
func (c *Client) Token() string { return c.token }

// Register creates an account.
func (c *Client) Register(ctx context.Context, name, email, password string) (model.User, error) {
	var out struct {
		User model.User `json:"user"`
	}
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/users/register", body, &out); err != nil {
		return model.User{}, err
	}
	return out.User, nil
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (Login, error) {
	var out struct {
		Token     string     `json:"token"`
		ExpiresAt int64      `json:"expiresAt"`
		User      model.User `json:"user"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/users/login", body, &out); err != nil {
		return Login{}, err
	}
	c.token = out.Token
	return Login{Token: out.Token, ExpiresAt: time.Unix(out.ExpiresAt, 0), User: out.User}, nil
}

// Users lists every account with its online flag.
func (c *Client) Users(ctx context.Context) ([]UserStatus, error) {
	var out []UserStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// History fetches the authoritative conversation with peer.
func (c *Client) History(ctx context.Context, peer model.UserID) ([]model.Message, error) {
	var out []model.Message
	if err := c.doJSON(ctx, http.MethodGet, "/api/messages/"+peer.String(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Send stores a text message through the REST path. The server fans it out to live connections.
func (c *Client) Send(ctx context.Context, receiver model.UserID, text string) (model.Message, error) {
	var out model.Message
	body := map[string]string{"receiverId": receiver.String(), "message": text}
	if err := c.doJSON(ctx, http.MethodPost, "/api/messages/send", body, &out); err != nil {
		return model.Message{}, err
	}
	return out, nil
}

// SendFile stores a message with an attachment read from r.
func (c *Client) SendFile(ctx context.Context, receiver model.UserID, text, filename string, r io.Reader) (model.Message, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("receiverId", receiver.String())
	_ = mw.WriteField("message", text)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return model.Message{}, err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return model.Message{}, fmt.Errorf("read attachment: %w", err)
	}
	if err := mw.Close(); err != nil {
		return model.Message{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/messages/send", &buf)
	if err != nil {
		return model.Message{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var out model.Message
	if err := c.do(req, &out); err != nil {
		return model.Message{}, err
	}
	return out, nil
}

// Delete soft-deletes one of the caller's messages.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/messages/delete/%d", id), nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
