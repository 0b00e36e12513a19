package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"courier-dispatch/internal/domain/presence"
	"courier-dispatch/internal/domain/protocol"
	"courier-dispatch/internal/general/contracts"
)

var errBadJSON = protocol.Validationf("bad json")

func (h *Hub) routeDriverFrame(r *http.Request, sess *Session, msg frame) {
	switch msg.Type {
	case contracts.EventToggleAvailability:
		h.handleToggle(r, sess, msg)
	case contracts.EventLocationUpdate:
		h.handleLocationUpdate(r, sess, msg)
	case contracts.EventOrderDelivered:
		h.handleOrderIntent(r, sess, msg, contracts.IntentDeliver)
	case contracts.EventOrderCancelled:
		h.handleOrderIntent(r, sess, msg, contracts.IntentCancel)
	case contracts.EventOrderRedistributed:
		h.handleOrderIntent(r, sess, msg, contracts.IntentRedistribute)
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

// handleToggle flips the driver's availability. A toggle while an order is
// active is rejected and answered with a reconciling activation frame so the
// device's switch snaps back.
func (h *Hub) handleToggle(r *http.Request, sess *Session, msg frame) {
	var in contracts.WSToggleAvailability
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		h.writeErr(sess.conn, msg.CorrelationID, errBadJSON)
		return
	}

	p, err := h.presenceSvc.Toggle(r.Context(), sess.UserID, in.Available)
	if err != nil {
		h.writeErr(sess.conn, msg.CorrelationID, err)
		if errors.Is(err, presence.ErrToggleLocked) && p != nil {
			_ = h.writeFrame(sess.conn, contracts.EventActivationStatus, "", contracts.WSActivationStatus{
				Available: p.AvailablePref,
				Locked:    true,
				Reverted:  true,
				Reason:    "availability is locked while an order is active",
			})
		}
		return
	}

	_ = h.writeAck(sess.conn, msg.CorrelationID, contracts.WSActivationStatus{
		Available: p.State.Dispatchable(),
	})
}

func (h *Hub) handleLocationUpdate(r *http.Request, sess *Session, msg frame) {
	var in contracts.WSLocationUpdate
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		h.writeErr(sess.conn, msg.CorrelationID, errBadJSON)
		return
	}

	if _, err := h.presenceSvc.UpdateLocation(r.Context(), sess.UserID, in.Latitude, in.Longitude); err != nil {
		h.writeErr(sess.conn, msg.CorrelationID, err)
		return
	}

	_ = h.writeAck(sess.conn, msg.CorrelationID, nil)
}

// handleOrderIntent validates and forwards a driver order action to dispatch.
// The ack only confirms the intent was enqueued; the authoritative transition
// arrives later as an order_update, or a rejection frame on conflict.
func (h *Hub) handleOrderIntent(r *http.Request, sess *Session, msg frame, action string) {
	var in contracts.WSOrderAction
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		h.writeErr(sess.conn, msg.CorrelationID, errBadJSON)
		return
	}

	if strings.TrimSpace(in.OrderID) == "" {
		h.writeErr(sess.conn, msg.CorrelationID, protocol.Validationf("order_id is required"))
		return
	}
	if action == contracts.IntentCancel {
		// The asymmetry is deliberate: cancelling demands an explanation,
		// redistribution demands nothing.
		if strings.TrimSpace(in.Reason) == "" {
			h.writeErr(sess.conn, msg.CorrelationID, protocol.Validationf("cancellation reason is required"))
			return
		}
		if strings.TrimSpace(in.Comment) == "" {
			h.writeErr(sess.conn, msg.CorrelationID, protocol.Validationf("cancellation comment is required"))
			return
		}
	}

	correlationID := msg.CorrelationID
	if correlationID == "" {
		correlationID = contracts.NewCorrelationID()
	}

	intent := contracts.OrderIntentMessage{
		Action:   action,
		OrderID:  in.OrderID,
		DriverID: sess.UserID,
		DeviceID: sess.DeviceID,
		Comment:  in.Comment,
		Reason:   in.Reason,
		Envelope: contracts.Envelope{
			CorrelationID: correlationID,
			Producer:      "gateway-service",
			SentAt:        time.Now().UTC(),
		},
	}

	if err := h.pub.Publish(r.Context(), contracts.ExchangeOrderTopic, contracts.RouteOrderIntentPrefix+action, intent); err != nil {
		h.logger.Error(r.Context(), "order_intent_publish_failed", "Failed to publish order intent", err,
			map[string]any{"driver_id": sess.UserID, "order_id": in.OrderID, "action": action})
		h.writeErr(sess.conn, msg.CorrelationID, protocol.Conflictf("order action could not be submitted").Wrap(err))
		return
	}

	_ = h.writeAck(sess.conn, msg.CorrelationID, map[string]any{
		"order_id": in.OrderID,
		"action":   action,
		"accepted": true,
	})
}
