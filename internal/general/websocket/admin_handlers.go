package websocket

import (
	"net/http"

	"courier-dispatch/internal/domain/protocol"
	"courier-dispatch/internal/domain/user"
	"courier-dispatch/internal/general/contracts"
)

func (h *Hub) routeClientFrame(r *http.Request, sess *Session, msg frame) {
	switch msg.Type {
	case contracts.EventChatInit:
		h.handleChatInit(r, sess, msg)
	case contracts.EventChatSend:
		h.handleChatSend(r, sess, msg)
	case contracts.EventChatMarkSeen:
		h.handleChatMarkSeen(r, sess, msg)
	case contracts.EventNotificationsFetch:
		h.handleNotificationsFetch(r, sess, msg)
	case contracts.EventNotificationsMarkRead:
		h.handleNotificationsMarkRead(r, sess, msg)
	default:
		h.writeErr(sess.conn, msg.CorrelationID, protocol.Validationf("unknown message type %q", msg.Type))
	}
}

func (h *Hub) routeAdminFrame(r *http.Request, sess *Session, msg frame) {
	switch msg.Type {
	case contracts.EventWatchOrders:
		h.handleWatchOrders(r, sess, msg)
	case contracts.EventWatchDrivers:
		h.handleWatchDrivers(r, sess, msg)
	case contracts.EventWatchClients:
		h.handleWatchClients(r, sess, msg)
	case contracts.EventChatInit:
		h.handleChatInit(r, sess, msg)
	case contracts.EventChatJoin:
		h.handleChatJoin(r, sess, msg)
	case contracts.EventChatSend:
		h.handleChatSend(r, sess, msg)
	case contracts.EventChatMarkSeen:
		h.handleChatMarkSeen(r, sess, msg)
	case contracts.EventNotificationsFetch:
		h.handleNotificationsFetch(r, sess, msg)
	case contracts.EventNotificationsMarkRead:
		h.handleNotificationsMarkRead(r, sess, msg)
	default:
		h.writeErr(sess.conn, msg.CorrelationID, protocol.Validationf("unknown message type %q", msg.Type))
	}
}

// handleWatchOrders subscribes the admin session to committed order
// transitions. The listings themselves come over the dispatch HTTP surface;
// the socket only streams deltas.
func (h *Hub) handleWatchOrders(_ *http.Request, sess *Session, msg frame) {
	h.subscribe(sess, TopicOrders)
	_ = h.writeAck(sess.conn, msg.CorrelationID, map[string]any{"watching": TopicOrders})
}

// handleWatchDrivers subscribes the admin session to presence deltas and
// seeds it with the current driver map.
func (h *Hub) handleWatchDrivers(r *http.Request, sess *Session, msg frame) {
	h.subscribe(sess, TopicDrivers)

	snapshot, err := h.presenceSvc.Snapshot(r.Context())
	if err != nil {
		h.writeErr(sess.conn, msg.CorrelationID, err)
		return
	}

	drivers := make([]contracts.WSPresenceUpdate, 0, len(snapshot))
	for _, p := range snapshot {
		u := contracts.WSPresenceUpdate{
			DriverID:  p.DriverID,
			State:     p.State.String(),
			Timestamp: p.UpdatedAt,
		}
		if p.Location != nil {
			u.Location = &contracts.GeoPoint{Lat: p.Location.Latitude, Lng: p.Location.Longitude}
		}
		drivers = append(drivers, u)
	}

	_ = h.writeAck(sess.conn, msg.CorrelationID, map[string]any{
		"watching": TopicDrivers,
		"drivers":  drivers,
	})
}

// handleWatchClients subscribes the admin session to client connectivity
// deltas and seeds it with who is online right now.
func (h *Hub) handleWatchClients(_ *http.Request, sess *Session, msg frame) {
	h.subscribe(sess, TopicClients)

	h.mu.RLock()
	online := make([]string, 0)
	for key := range h.sessions {
		if key.role == user.RoleClient {
			online = append(online, key.userID)
		}
	}
	h.mu.RUnlock()

	_ = h.writeAck(sess.conn, msg.CorrelationID, map[string]any{
		"watching": TopicClients,
		"clients":  online,
	})
}
