package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"courier-dispatch/internal/domain/protocol"
	"courier-dispatch/internal/domain/user"
	"courier-dispatch/internal/general/contracts"
	"courier-dispatch/internal/general/jwt"
	"courier-dispatch/internal/general/logger"
	"courier-dispatch/internal/ports"

	"github.com/gorilla/mux"
)

// AdminHTTPHandler is the back-office REST surface: login, push registration,
// notification broadcast, the dashboard overview, and system flags.
type AdminHTTPHandler struct {
	svc    ports.AdminService
	logger *logger.Logger
	auth   *jwt.Manager
}

// NewAdminHTTPHandler wires an HTTP handler around the AdminService.
func NewAdminHTTPHandler(svc ports.AdminService, log *logger.Logger, auth *jwt.Manager) *AdminHTTPHandler {
	return &AdminHTTPHandler{svc: svc, logger: log, auth: auth}
}

// RegisterRoutes mounts admin endpoints on the provided router.
func (handler *AdminHTTPHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/login", handler.handleLogin).Methods(http.MethodPost)

	r.HandleFunc("/push-tokens",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleClient, user.RoleDriver, user.RoleAdmin)(handler.handleRegisterPushToken),
	).Methods(http.MethodPost)
	r.HandleFunc("/notifications",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleClient, user.RoleDriver, user.RoleAdmin)(handler.handleListNotifications),
	).Methods(http.MethodGet)
	r.HandleFunc("/notifications",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleAdmin)(handler.handleSendNotification),
	).Methods(http.MethodPost)
	r.HandleFunc("/overview",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleAdmin)(handler.handleOverview),
	).Methods(http.MethodGet)
	r.HandleFunc("/system/flags",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleAdmin)(handler.handleSystemFlags),
	).Methods(http.MethodGet)
	r.HandleFunc("/system/toggle",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleAdmin)(handler.handleSystemToggle),
	).Methods(http.MethodPost)

	r.HandleFunc("/health", handler.handleHealth).Methods(http.MethodGet)
}

// ----- general helpers -----

func (handler *AdminHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = contracts.NewCorrelationID()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

func (handler *AdminHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	buf := []byte("{}")
	if data != nil {
		var err error
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

func (handler *AdminHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		handler.logger.Error(ctx, "http_request_failed", message, err, map[string]any{"status": status})
	}
	handler.jsonResponse(ctx, w, status, map[string]string{"error": message})
}

// serviceError maps protocol kinds to HTTP statuses, hiding internals.
func (handler *AdminHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, err error) {
	status := protocol.StatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	handler.httpError(ctx, w, status, message, err)
}

func (handler *AdminHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	handler.jsonResponse(r.Context(), w, http.StatusOK, map[string]string{"status": "ok", "service": "admin-service"})
}
