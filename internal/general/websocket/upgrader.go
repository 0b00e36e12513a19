package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"courier-dispatch/internal/domain/user"
	"courier-dispatch/internal/general/contracts"
	"courier-dispatch/internal/general/jwt"

	"github.com/gorilla/websocket"
)

// ConnectDriver handles WebSocket connections from driver devices.
func (h *Hub) ConnectDriver(w http.ResponseWriter, r *http.Request) {
	conn, sess, ok := h.accept(w, r, user.RoleDriver)
	if !ok {
		return
	}
	// Teardown order (LIFO on return):
	defer conn.Close()
	defer h.writeLocks.Delete(conn)

	// A connected driver starts UNAVAILABLE regardless of the last toggle;
	// availability is an explicit act after every connect.
	p, err := h.presenceSvc.Connect(r.Context(), sess.UserID, sess.DeviceID)
	if err != nil {
		h.logger.Error(r.Context(), "presence_connect_failed", "Failed to register driver presence", err,
			map[string]any{"driver_id": sess.UserID})
		h.wsWriteClose(conn, websocket.CloseInternalServerErr, "presence registration failed")
		return
	}
	_ = h.writeFrame(conn, contracts.EventActivationStatus, "", contracts.WSActivationStatus{
		Available: p.State.Dispatchable(),
	})

	h.register(sess)
	defer func() {
		// Skip the disconnect transition when a newer session superseded us,
		// otherwise we would knock the fresh connection offline.
		if h.remove(sess) {
			if _, err := h.presenceSvc.Disconnect(h.logCtx(), sess.UserID); err != nil {
				h.logger.Error(h.logCtx(), "presence_disconnect_failed", "Failed to mark driver offline", err,
					map[string]any{"driver_id": sess.UserID})
			}
		}
	}()

	h.readLoop(r, conn, sess, h.routeDriverFrame)
}

// ConnectClient handles WebSocket connections from client devices.
func (h *Hub) ConnectClient(w http.ResponseWriter, r *http.Request) {
	conn, sess, ok := h.accept(w, r, user.RoleClient)
	if !ok {
		return
	}
	defer conn.Close()
	defer h.writeLocks.Delete(conn)

	h.register(sess)
	h.BroadcastTopic(TopicClients, contracts.EventClientUpdate, contracts.WSClientUpdate{
		ClientID: sess.UserID, Online: true, Timestamp: time.Now().UTC(),
	})
	defer func() {
		if h.remove(sess) {
			h.BroadcastTopic(TopicClients, contracts.EventClientUpdate, contracts.WSClientUpdate{
				ClientID: sess.UserID, Online: false, Timestamp: time.Now().UTC(),
			})
		}
	}()

	h.readLoop(r, conn, sess, h.routeClientFrame)
}

// ConnectAdmin handles WebSocket connections from the back-office app.
func (h *Hub) ConnectAdmin(w http.ResponseWriter, r *http.Request) {
	conn, sess, ok := h.accept(w, r, user.RoleAdmin)
	if !ok {
		return
	}
	defer conn.Close()
	defer h.writeLocks.Delete(conn)

	h.register(sess)
	defer h.remove(sess)

	h.readLoop(r, conn, sess, h.routeAdminFrame)
}

// accept upgrades the request, runs the first-frame JWT handshake, and starts
// the ping loop. A false return means the socket is already closed.
func (h *Hub) accept(w http.ResponseWriter, r *http.Request, role user.Role) (*websocket.Conn, *Session, bool) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return nil, nil, false
	}

	conn.SetReadLimit(1 << 20) // 1 MiB
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		h.logger.Error(r.Context(), "ws_set_deadline_failed", "Failed to set initial read deadline", err, nil)
		h.sendAuthError(conn, "internal server error")
		_ = conn.Close()
		return nil, nil, false
	}

	msgType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			h.logger.Error(r.Context(), "ws_auth_timeout", "Client disconnected before authentication", err, nil)
		} else {
			h.logger.Error(r.Context(), "ws_auth_read_failed", "Failed to read auth message", err, nil)
		}
		h.sendAuthError(conn, "authentication timeout: please send auth message within 5 seconds")
		_ = conn.Close()
		return nil, nil, false
	}

	if msgType != websocket.TextMessage {
		h.sendAuthError(conn, "auth message must be in text format")
		_ = conn.Close()
		return nil, nil, false
	}

	res, err := jwt.ValidateWSAuth(firstFrame, h.jwtMgr, role)
	if err != nil {
		h.logger.Error(r.Context(), "ws_auth_failed", "Invalid auth message or token", err, nil)
		h.sendAuthError(conn, "authentication failed: invalid token")
		_ = conn.Close()
		return nil, nil, false
	}

	sess := &Session{
		UserID:   res.Claims.Subject,
		DeviceID: res.DeviceID,
		Role:     role,
		conn:     conn,
	}

	if err := h.sendAuthSuccess(conn, sess); err != nil {
		h.logger.Error(r.Context(), "ws_auth_success_failed", "Failed to send auth success message", err, nil)
		_ = conn.Close()
		return nil, nil, false
	}

	h.logger.Info(r.Context(), "ws_connected", "WebSocket session established",
		map[string]any{"user_id": sess.UserID, "role": role.String(), "device_id": sess.DeviceID})

	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(_ string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	// ping loop using the per-connection writer lock; a failed ping closes the
	// socket to unblock the reader
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for range ticker.C {
			mu := h.lockOf(conn)
			mu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(ctrlTimeout))
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctrlTimeout))
			mu.Unlock()
			if err != nil {
				_ = conn.Close()
				return
			}
		}
	}()

	return conn, sess, true
}

// readLoop pulls frames until the peer goes away and routes each one.
func (h *Hub) readLoop(r *http.Request, conn *websocket.Conn, sess *Session, route func(*http.Request, *Session, frame)) {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error(r.Context(), "ws_unexpected_close", "Connection closed unexpectedly", err,
					map[string]any{"user_id": sess.UserID, "role": sess.Role.String()})
				h.wsWriteClose(conn, websocket.CloseInternalServerErr, "internal error")
			} else {
				h.logger.Info(r.Context(), "ws_connection_closed", "Connection closed normally",
					map[string]any{"user_id": sess.UserID, "role": sess.Role.String()})
				h.wsWriteClose(conn, websocket.CloseNormalClosure, "bye")
			}
			return
		}

		var msg frame
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.writeErr(conn, "", errBadJSON)
			continue
		}

		route(r, sess, msg)
	}
}

func (h *Hub) sendAuthError(conn *websocket.Conn, message string) {
	errorMsg := map[string]any{
		"type":    "auth_error",
		"error":   message,
		"success": false,
	}
	payload, err := json.Marshal(errorMsg)
	if err != nil {
		return
	}
	mu := h.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *Hub) sendAuthSuccess(conn *websocket.Conn, sess *Session) error {
	successMsg := map[string]any{
		"type":      "auth_success",
		"message":   "Authentication successful",
		"success":   true,
		"user_id":   sess.UserID,
		"role":      sess.Role.String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(successMsg)
	if err != nil {
		return err
	}
	mu := h.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}
