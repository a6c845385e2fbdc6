package server

import "net/http"

// SetupRoutes configures the application routes and wraps them in recovery and logging.
func SetupRoutes(h *Handlers) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.HealthHandler)
	mux.HandleFunc("GET /ws", h.WebSocketHandler)
	mux.HandleFunc("GET /test", TestPageHandler)

	mux.HandleFunc("POST /api/users/register", h.RegisterUserHandler)
	mux.HandleFunc("POST /api/users/login", h.LoginHandler)
	mux.HandleFunc("GET /api/users", h.requireAuth(h.ListUsersHandler))

	mux.HandleFunc("POST /api/messages/send", h.requireAuth(h.SendMessageHandler))
	mux.HandleFunc("GET /api/messages/{receiverId}", h.requireAuth(h.HistoryHandler))
	mux.HandleFunc("DELETE /api/messages/delete/{id}", h.requireAuth(h.DeleteMessageHandler))

	mux.HandleFunc("GET /uploads/{name}", h.UploadHandler)

	return withRecover(h.log, withLogging(h.log.Named("http"), mux))
}
