package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"courier-dispatch/internal/domain/order"
	"courier-dispatch/internal/general/jwt"
	"courier-dispatch/internal/ports"

	"github.com/gorilla/mux"
)

// --- Request DTOs (HTTP boundary) ---

type createOrderRequest struct {
	OrderNumber string           `json:"order_number"`
	ClientID    string           `json:"client_id,omitempty"` // admins may create on behalf of a client
	Items       []order.LineItem `json:"items"`
}

type assignOrderRequest struct {
	DriverID string `json:"driver_id"`
}

type classifyOrderRequest struct {
	Status string `json:"status"` // SPAMMED | TEST
}

// ----- POST /orders -----

func (handler *DispatchHTTPHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	defer r.Body.Close()

	var req createOrderRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			handler.httpError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return
		}
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON: "+err.Error(), err)
		return
	}

	claims := jwt.RequireClaims(r)
	clientID := claims.Subject
	if claims.Role.IsAdmin() && req.ClientID != "" {
		clientID = req.ClientID
	}

	o, err := order.New(req.OrderNumber, clientID, req.Items)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
		return
	}

	created, err := handler.svc.CreateOrder(ctx, o)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusCreated, orderResponse(created))
}

// ----- GET /orders/{order_id} -----

func (handler *DispatchHTTPHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	o, err := handler.svc.GetOrder(ctx, mux.Vars(r)["order_id"])
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, orderResponse(o))
}

// ----- POST /orders/{order_id}/assign -----

func (handler *DispatchHTTPHandler) handleAssignOrder(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req assignOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.DriverID) == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "driver_id is required", nil)
		return
	}

	o, err := handler.svc.AssignOrder(ctx, ports.AssignOrderInput{
		OrderID:  mux.Vars(r)["order_id"],
		DriverID: req.DriverID,
		AdminID:  jwt.RequireClaims(r).Subject,
	})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, orderResponse(o))
}

// ----- POST /orders/{order_id}/classify -----

func (handler *DispatchHTTPHandler) handleClassifyOrder(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req classifyOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	target, err := order.ParseStatus(req.Status)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "status must be SPAMMED or TEST", err)
		return
	}

	o, err := handler.svc.Classify(ctx, mux.Vars(r)["order_id"], target, jwt.RequireClaims(r).Subject)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, orderResponse(o))
}

// ----- GET /orders/buckets/{bucket} -----

func (handler *DispatchHTTPHandler) handleListBucket(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	status, err := order.ParseStatus(mux.Vars(r)["bucket"])
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "unknown order bucket", err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			handler.httpError(ctx, w, http.StatusBadRequest, "limit must be an integer", err)
			return
		}
	}

	view, err := handler.svc.ListBucket(ctx, status, limit)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	orders := make([]map[string]any, 0, len(view.Orders))
	for _, o := range view.Orders {
		orders = append(orders, orderResponse(o))
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{
		"bucket": view.Status.String(),
		"orders": orders,
		"unseen": view.Unseen,
	})
}

// ----- POST /orders/buckets/{bucket}/seen -----

func (handler *DispatchHTTPHandler) handleMarkBucketSeen(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	status, err := order.ParseStatus(mux.Vars(r)["bucket"])
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "unknown order bucket", err)
		return
	}

	n, err := handler.svc.MarkBucketSeen(ctx, status)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{
		"bucket": status.String(),
		"seen":   n,
	})
}

// orderResponse shapes an order for the wire.
func orderResponse(o *order.Order) map[string]any {
	resp := map[string]any{
		"id":            o.ID,
		"order_number":  o.Number,
		"client_id":     o.ClientID,
		"status":        o.Status.String(),
		"seen_by_admin": o.SeenByAdmin,
		"items":         o.Items,
		"total":         o.Total,
		"created_at":    o.CreatedAt,
		"updated_at":    o.UpdatedAt,
	}
	if o.DriverID != nil {
		resp["driver_id"] = *o.DriverID
	}
	if o.AssignedAt != nil {
		resp["assigned_at"] = *o.AssignedAt
	}
	if o.DeliveredAt != nil {
		resp["delivered_at"] = *o.DeliveredAt
	}
	if o.CancelledAt != nil {
		resp["cancelled_at"] = *o.CancelledAt
	}
	if o.DeliveryComment != nil {
		resp["delivery_comment"] = *o.DeliveryComment
	}
	if o.CancelReason != nil {
		resp["cancel_reason"] = *o.CancelReason
	}
	if o.CancelComment != nil {
		resp["cancel_comment"] = *o.CancelComment
	}
	return resp
}
