package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"courier-dispatch/internal/domain/protocol"
	"courier-dispatch/internal/general/contracts"

	"github.com/gorilla/websocket"
)

func (h *Hub) logCtx() context.Context {
	return context.Background()
}

// lockOf returns the writer mutex for a specific connection.
func (h *Hub) lockOf(conn *websocket.Conn) *sync.Mutex {
	if v, ok := h.writeLocks.Load(conn); ok {
		if mu, ok := v.(*sync.Mutex); ok && mu != nil {
			return mu
		}
	}
	mu := &sync.Mutex{}
	actual, _ := h.writeLocks.LoadOrStore(conn, mu)
	return actual.(*sync.Mutex)
}

// wsWriteClose sends a close control frame with the given code and reason.
func (h *Hub) wsWriteClose(conn *websocket.Conn, code int, reason string) {
	mu := h.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(wsCloseAckWindow),
	)
	h.writeLocks.Delete(conn)
}

// writeFrame marshals data into the shared envelope and writes one text frame
// under the per-connection writer lock.
func (h *Hub) writeFrame(conn *websocket.Conn, frameType, correlationID string, data any) error {
	out := contracts.WSFrame{Type: frameType, CorrelationID: correlationID}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		out.Data = raw
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return err
	}

	mu := h.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// writeAck answers an intent with its correlation id.
func (h *Hub) writeAck(conn *websocket.Conn, correlationID string, data any) error {
	return h.writeFrame(conn, contracts.EventAck, correlationID, data)
}

// writeErr answers the initiating session with a coded error. Nothing here is
// ever broadcast; a failed intent stays between the server and its sender.
func (h *Hub) writeErr(conn *websocket.Conn, correlationID string, err error) {
	code := string(protocol.KindOf(err))
	if code == "" {
		code = "internal"
	}
	msg := err.Error()
	if code == "internal" {
		msg = "internal server error"
	}
	_ = h.writeFrame(conn, contracts.EventError, correlationID, contracts.WSError{Code: code, Message: msg})
}
