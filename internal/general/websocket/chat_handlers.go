package websocket

import (
	"encoding/json"
	"net/http"
	"strings"

	"courier-dispatch/internal/domain/chat"
	"courier-dispatch/internal/domain/protocol"
	"courier-dispatch/internal/domain/user"
	"courier-dispatch/internal/general/contracts"
	"courier-dispatch/internal/ports"
)

// handleChatInit opens (or resumes) a thread for the session and subscribes it
// for live delivery. Drivers and clients may only open their own support
// thread or an order thread; admins may open anything.
func (h *Hub) handleChatInit(r *http.Request, sess *Session, msg frame) {
	var in contracts.WSChatInit
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		h.writeErr(sess.conn, msg.CorrelationID, errBadJSON)
		return
	}

	kind, err := chat.ParseKind(in.Kind)
	if err != nil {
		h.writeErr(sess.conn, msg.CorrelationID, protocol.Validationf("unknown chat kind %q", in.Kind))
		return
	}

	var hist *ports.ChatHistory
	switch {
	case kind == chat.KindSupport && sess.Role != user.RoleAdmin:
		// non-admins always land in their own support thread, whatever key
		// the frame claims
		hist, err = h.chatSvc.InitSupport(r.Context(), sess.UserID, sess.Role)
	default:
		key := strings.TrimSpace(in.Key)
		if key == "" {
			h.writeErr(sess.conn, msg.CorrelationID, protocol.Validationf("chat key is required"))
			return
		}
		hist, err = h.chatSvc.Join(r.Context(), kind, key)
	}
	if err != nil {
		h.writeErr(sess.conn, msg.CorrelationID, err)
		return
	}

	h.subscribeChat(sess, hist.ThreadID)
	_ = h.writeFrame(sess.conn, contracts.EventChatHistory, msg.CorrelationID, contracts.WSChatHistory{
		ChatID:   hist.ThreadID,
		Kind:     hist.Kind.String(),
		Key:      hist.Key,
		Messages: hist.Messages,
		Full:     hist.Full,
	})
}

// handleChatJoin is the observer entry point: full history, no thread
// creation. Admin only.
func (h *Hub) handleChatJoin(r *http.Request, sess *Session, msg frame) {
	var in contracts.WSChatInit
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		h.writeErr(sess.conn, msg.CorrelationID, errBadJSON)
		return
	}

	kind, err := chat.ParseKind(in.Kind)
	if err != nil {
		h.writeErr(sess.conn, msg.CorrelationID, protocol.Validationf("unknown chat kind %q", in.Kind))
		return
	}

	hist, err := h.chatSvc.Join(r.Context(), kind, strings.TrimSpace(in.Key))
	if err != nil {
		h.writeErr(sess.conn, msg.CorrelationID, err)
		return
	}

	h.subscribeChat(sess, hist.ThreadID)
	_ = h.writeFrame(sess.conn, contracts.EventChatHistory, msg.CorrelationID, contracts.WSChatHistory{
		ChatID:   hist.ThreadID,
		Kind:     hist.Kind.String(),
		Key:      hist.Key,
		Messages: hist.Messages,
		Full:     true,
	})
}

// handleChatSend appends a message and fans it out to thread subscribers. The
// ack carries the stored message so the sender learns its server-assigned seq.
func (h *Hub) handleChatSend(r *http.Request, sess *Session, msg frame) {
	var in contracts.WSChatSend
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		h.writeErr(sess.conn, msg.CorrelationID, errBadJSON)
		return
	}

	res, err := h.chatSvc.Send(r.Context(), in.ChatID, sess.UserID, sess.Role, in.Content)
	if err != nil {
		h.writeErr(sess.conn, msg.CorrelationID, err)
		return
	}

	h.BroadcastChat(res.ThreadID, contracts.EventChatMessage, contracts.WSChatMessage{
		ChatID:  res.ThreadID,
		Message: res.Message,
	})
	_ = h.writeAck(sess.conn, msg.CorrelationID, contracts.WSChatMessage{
		ChatID:  res.ThreadID,
		Message: res.Message,
	})
}

// handleChatMarkSeen flips unseen messages from the other side. Repeats are
// harmless and ack with zero.
func (h *Hub) handleChatMarkSeen(r *http.Request, sess *Session, msg frame) {
	var in contracts.WSChatMarkSeen
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		h.writeErr(sess.conn, msg.CorrelationID, errBadJSON)
		return
	}

	n, err := h.chatSvc.MarkSeen(r.Context(), in.ChatID, sess.Role)
	if err != nil {
		h.writeErr(sess.conn, msg.CorrelationID, err)
		return
	}

	_ = h.writeAck(sess.conn, msg.CorrelationID, map[string]any{
		"chat_id": in.ChatID,
		"updated": n,
	})
}

// handleNotificationsFetch answers with the caller's notification feed.
func (h *Hub) handleNotificationsFetch(r *http.Request, sess *Session, msg frame) {
	items, err := h.feed.NotificationsFor(r.Context(), sess.UserID, 50)
	if err != nil {
		h.writeErr(sess.conn, msg.CorrelationID, err)
		return
	}

	_ = h.writeFrame(sess.conn, contracts.EventNotificationsAll, msg.CorrelationID, map[string]any{
		"notifications": items,
	})
}

// handleNotificationsMarkRead flips the read flag on the caller's delivery.
func (h *Hub) handleNotificationsMarkRead(r *http.Request, sess *Session, msg frame) {
	var in contracts.WSNotificationsMarkRead
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		h.writeErr(sess.conn, msg.CorrelationID, errBadJSON)
		return
	}

	if err := h.feed.MarkRead(r.Context(), in.NotificationID, sess.UserID); err != nil {
		h.writeErr(sess.conn, msg.CorrelationID, err)
		return
	}
	_ = h.writeAck(sess.conn, msg.CorrelationID, map[string]any{"notification_id": in.NotificationID, "read": true})
}
