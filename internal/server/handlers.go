package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Tyrowin/pairchat/internal/attachment"
	"github.com/Tyrowin/pairchat/internal/errs"
	"github.com/Tyrowin/pairchat/internal/model"
	"github.com/Tyrowin/pairchat/internal/presence"
	"github.com/Tyrowin/pairchat/internal/service"
)

// AttachmentStore keeps uploaded files.
type AttachmentStore interface {
	Save(r io.Reader) (string, error)
	Path(name string) (string, error)
	Remove(name string) error
}

// Deps collects what the HTTP handlers need.
type Deps struct {
	Config   Config
	Hub      *Hub
	Ingress  *Ingress
	Registry *presence.Registry
	Auth     service.AuthService
	Messages service.MessageService
	Files    AttachmentStore
	Log      *zap.Logger
}

// Handlers serves the health check, test page, WebSocket endpoint and REST API.
type Handlers struct {
	cfg      Config
	hub      *Hub
	ingress  *Ingress
	registry *presence.Registry
	auth     service.AuthService
	messages service.MessageService
	files    AttachmentStore
	upgrader websocket.Upgrader
	validate *validator.Validate
	log      *zap.Logger
}

// NewHandlers builds Handlers from d.
func NewHandlers(d Deps) *Handlers {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	cfg := sanitizeConfig(d.Config)
	origins := newOriginPolicy(cfg.AllowedOrigins, log)
	return &Handlers{
		cfg:      cfg,
		hub:      d.Hub,
		ingress:  d.Ingress,
		registry: d.Registry,
		auth:     d.Auth,
		messages: d.Messages,
		files:    d.Files,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
}

// WebSocketHandler upgrades the request and hands the connection to the hub.
// A token, when given, pins the identity the connection may register as.
func (h *Handlers) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	authID := uuid.Nil
	if token := bearerToken(r); token != "" {
		id, err := h.auth.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		authID = id
	} else if h.cfg.WSRequireAuth {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(conn, h.hub, r.RemoteAddr, authID)
	if !h.hub.Register(client) {
		_ = conn.Close()
	}
}

// HealthHandler reports that the server is up.
func (h *Handlers) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "PairChat server is running! %d users online", h.registry.Len())
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt int64      `json:"expiresAt"`
	User      model.User `json:"user"`
}

// RegisterUserHandler creates an account.
func (h *Handlers) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := h.auth.Register(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "User registered successfully", "user": u})
}

// LoginHandler exchanges credentials for an access token.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tokens, u, err := h.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: tokens.AccessToken, ExpiresAt: tokens.ExpiresAt.Unix(), User: u})
}

type userView struct {
	model.User
	Online bool `json:"online"`
}

// ListUsersHandler lists accounts with their live presence.
func (h *Handlers) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.ListUsers(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(users, func(u model.User, _ int) userView {
		return userView{User: u, Online: h.registry.IsOnline(u.ID)}
	}))
}

type sendRequest struct {
	ReceiverID string `json:"receiverId" validate:"required,uuid"`
	Text       string `json:"message" validate:"max=4000"`
	ClientID   string `json:"clientId" validate:"omitempty,uuid"`
}

// SendMessageHandler stores a message, optionally with an attachment, and fans it out.
func (h *Handlers) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	sender, _ := UserIDFromCtx(r.Context())

	var (
		in       sendRequest
		fileName string
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize+1<<20)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		in = sendRequest{
			ReceiverID: r.FormValue("receiverId"),
			Text:       r.FormValue("message"),
			ClientID:   r.FormValue("clientId"),
		}
		if err := h.validate.Struct(in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if file, _, err := r.FormFile("file"); err == nil {
			defer file.Close()
			if h.files == nil {
				writeError(w, http.StatusBadRequest, "attachments are disabled")
				return
			}
			name, err := h.files.Save(file)
			if err != nil {
				h.fail(w, err)
				return
			}
			fileName = name
		}
	} else {
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.validate.Struct(in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	nm := model.NewMessage{
		SenderID:   sender,
		ReceiverID: uuid.MustParse(in.ReceiverID),
		Text:       in.Text,
		Attachment: fileName,
	}
	if in.ClientID != "" {
		nm.ClientID = uuid.MustParse(in.ClientID)
	}

	stored, err := h.messages.PersistMessage(r.Context(), nm)
	if err != nil {
		if fileName != "" {
			_ = h.files.Remove(fileName)
		}
		h.fail(w, err)
		return
	}
	h.ingress.MessagePersisted(stored)
	writeJSON(w, http.StatusCreated, stored)
}

// HistoryHandler returns the conversation between the caller and {receiverId}.
func (h *Handlers) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	me, _ := UserIDFromCtx(r.Context())
	peer, err := uuid.Parse(r.PathValue("receiverId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid receiverId")
		return
	}
	msgs, err := h.messages.FetchHistory(r.Context(), me, peer)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// DeleteMessageHandler soft-deletes one of the caller's messages and fans out the deletion.
func (h *Handlers) DeleteMessageHandler(w http.ResponseWriter, r *http.Request) {
	me, _ := UserIDFromCtx(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}
	deleted, err := h.messages.MarkDeleted(r.Context(), id, me)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.ingress.MessageDeletedByStore(deleted)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Message deleted", "id": deleted.ID})
}

// UploadHandler serves a stored attachment.
func (h *Handlers) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		http.NotFound(w, r)
		return
	}
	p, err := h.files.Path(r.PathValue("name"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFile(w, r, p)
}

// fail maps a domain error to an HTTP status.
func (h *Handlers) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrInvalidEvent):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, errs.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrUnsupportedType):
		status = http.StatusUnsupportedMediaType
	case isTooLarge(err):
		status = http.StatusRequestEntityTooLarge
	}
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err))
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || errors.Is(err, attachment.ErrTooLarge)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
