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

// DispatchHTTPHandler adapts the back-office HTTP surface to the dispatch
// service. Everything here is admin territory except order creation, which
// the client app calls at checkout.
type DispatchHTTPHandler struct {
	svc    ports.DispatchService
	logger *logger.Logger
	auth   *jwt.Manager
}

// NewDispatchHTTPHandler wires an HTTP handler around the DispatchService.
func NewDispatchHTTPHandler(svc ports.DispatchService, log *logger.Logger, auth *jwt.Manager) *DispatchHTTPHandler {
	return &DispatchHTTPHandler{svc: svc, logger: log, auth: auth}
}

// RegisterRoutes mounts dispatch endpoints on the provided router.
func (handler *DispatchHTTPHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/orders",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleClient, user.RoleAdmin)(handler.handleCreateOrder),
	).Methods(http.MethodPost)
	r.HandleFunc("/orders/buckets/{bucket}",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleAdmin)(handler.handleListBucket),
	).Methods(http.MethodGet)
	r.HandleFunc("/orders/buckets/{bucket}/seen",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleAdmin)(handler.handleMarkBucketSeen),
	).Methods(http.MethodPost)
	r.HandleFunc("/orders/{order_id}",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleAdmin)(handler.handleGetOrder),
	).Methods(http.MethodGet)
	r.HandleFunc("/orders/{order_id}/assign",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleAdmin)(handler.handleAssignOrder),
	).Methods(http.MethodPost)
	r.HandleFunc("/orders/{order_id}/classify",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleAdmin)(handler.handleClassifyOrder),
	).Methods(http.MethodPost)

	r.HandleFunc("/health", handler.handleHealth).Methods(http.MethodGet)
}

// ----- general helpers -----

func (handler *DispatchHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = contracts.NewCorrelationID()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

func (handler *DispatchHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
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

func (handler *DispatchHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		handler.logger.Error(ctx, "http_request_failed", message, err, map[string]any{"status": status})
	}
	handler.jsonResponse(ctx, w, status, map[string]string{"error": message})
}

// serviceError maps protocol kinds to HTTP statuses, hiding internals.
func (handler *DispatchHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, err error) {
	status := protocol.StatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	handler.httpError(ctx, w, status, message, err)
}

func (handler *DispatchHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	handler.jsonResponse(r.Context(), w, http.StatusOK, map[string]string{"status": "ok", "service": "dispatch-service"})
}
