package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Tyrowin/pairchat/internal/attachment"
	"github.com/Tyrowin/pairchat/internal/event"
	"github.com/Tyrowin/pairchat/internal/model"
	"github.com/Tyrowin/pairchat/internal/presence"
	"github.com/Tyrowin/pairchat/internal/repository/badgerdb"
	"github.com/Tyrowin/pairchat/internal/service"
)

const testOrigin = "http://pairchat.test"

// stack is a full server over a temporary badger store.
type stack struct {
	srv      *httptest.Server
	hub      *Hub
	registry *presence.Registry
	files    *attachment.Store
}

func newStack(t *testing.T, mutate func(*Config)) *stack {
	t.Helper()
	req := require.New(t)

	cfg := *NewConfig()
	cfg.AllowedOrigins = []string{testOrigin}
	cfg.JWTSecret = "test-secret"
	if mutate != nil {
		mutate(&cfg)
	}

	log := zap.NewNop()
	store, err := badgerdb.Open(t.TempDir(), log)
	req.NoError(err)
	files, err := attachment.New(t.TempDir(), 1<<20)
	req.NoError(err)

	auth := service.NewAuthService(badgerdb.NewUserRepo(store), []byte(cfg.JWTSecret), cfg.JWTTTL)
	messages := service.NewMessageService(badgerdb.NewMessageRepo(store), files, log)

	registry := presence.NewRegistry()
	ingress := NewIngress(registry, presence.NewRouter(registry, log), messages, cfg.StoreTimeout, log)
	hub := NewHub(cfg, ingress, log)
	go hub.Run()

	h := NewHandlers(Deps{
		Config: cfg, Hub: hub, Ingress: ingress, Registry: registry,
		Auth: auth, Messages: messages, Files: files, Log: log,
	})
	srv := httptest.NewServer(SetupRoutes(h))

	t.Cleanup(func() {
		srv.Close()
		_ = hub.Shutdown(time.Second)
		_ = store.Close()
	})
	return &stack{srv: srv, hub: hub, registry: registry, files: files}
}

func (s *stack) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	r, err := http.NewRequest(method, s.srv.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

// signUp registers and logs in a user, returning the account and its token.
func (s *stack) signUp(t *testing.T, name string) (model.User, string) {
	t.Helper()
	email := strings.ToLower(name) + "@example.com"
	resp := s.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"name": name, "email": email, "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/users/login", "", map[string]string{"email": email, "password": "secret123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out loginResponse
	decodeBody(t, resp, &out)
	require.NotEmpty(t, out.Token)
	return out.User, out.Token
}

func (s *stack) wsURL(token string) string {
	u := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
	if token != "" {
		u += "?token=" + token
	}
	return u
}

// dial opens a WebSocket with the allowed origin.
func (s *stack) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Origin", testOrigin)
	conn, resp, err := websocket.DefaultDialer.Dial(s.wsURL(token), header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, typ event.Type, data any) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame(t, typ, data)))
}

func readFrame(t *testing.T, conn *websocket.Conn) event.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env event.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

// expectSilence asserts that nothing arrives on conn within d.
func expectSilence(t *testing.T, conn *websocket.Conn, d time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(d)))
	_, raw, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame %s", raw)
}
