package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"courier-dispatch/internal/domain/notify"
	"courier-dispatch/internal/general/jwt"
	"courier-dispatch/internal/ports"
)

// --- Request DTOs (HTTP boundary) ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	DeviceID string `json:"device_id"`
}

type registerPushTokenRequest struct {
	DeviceID string `json:"device_id"`
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type sendNotificationRequest struct {
	Title      string   `json:"title"`
	Message    string   `json:"message"`
	Recipients []string `json:"recipients"`
}

type systemToggleRequest struct {
	Flag    string `json:"flag"` // system|drivers|clients
	Enabled bool   `json:"enabled"`
}

// ----- POST /login -----

func (handler *AdminHTTPHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	token, err := handler.svc.Login(ctx, req.Username, req.Password, req.DeviceID)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, map[string]string{"access_token": token})
}

// ----- POST /push-tokens -----

func (handler *AdminHTTPHandler) handleRegisterPushToken(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req registerPushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	claims := jwt.RequireClaims(r)
	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = claims.DeviceID
	}

	t, err := notify.NewPushToken(claims.Subject, deviceID, req.Token, req.Platform)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
		return
	}

	if err := handler.svc.RegisterPushToken(ctx, t); err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusCreated, map[string]string{"status": "registered"})
}

// ----- POST /notifications -----

func (handler *AdminHTTPHandler) handleSendNotification(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req sendNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	res, err := handler.svc.SendNotification(ctx, ports.SendNotificationInput{
		Title:      req.Title,
		Message:    req.Message,
		CreatedBy:  jwt.RequireClaims(r).Subject,
		Recipients: req.Recipients,
	})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	deliveries := make([]map[string]any, 0, len(res.Deliveries))
	for _, d := range res.Deliveries {
		entry := map[string]any{
			"user_id":     d.UserID,
			"push_status": string(d.PushStatus),
		}
		if d.PushError != "" {
			entry["push_error"] = d.PushError
		}
		deliveries = append(deliveries, entry)
	}

	handler.jsonResponse(ctx, w, http.StatusCreated, map[string]any{
		"notification_id": res.Notification.ID,
		"created_at":      res.Notification.CreatedAt,
		"deliveries":      deliveries,
	})
}

// ----- GET /notifications -----

func (handler *AdminHTTPHandler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var err error
		if limit, err = strconv.Atoi(raw); err != nil {
			handler.httpError(ctx, w, http.StatusBadRequest, "limit must be an integer", err)
			return
		}
	}

	items, err := handler.svc.ListNotifications(ctx, jwt.RequireClaims(r).Subject, limit)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	out := make([]map[string]any, 0, len(items))
	for _, n := range items {
		out = append(out, map[string]any{
			"id":         n.ID,
			"title":      n.Title,
			"message":    n.Message,
			"created_at": n.CreatedAt,
		})
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"notifications": out})
}

// ----- GET /overview -----

func (handler *AdminHTTPHandler) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	m, err := handler.svc.Overview(ctx, time.Now().UTC())
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{
		"pending_count":     m.PendingCount,
		"in_progress_count": m.InProgressCount,
		"delivered_today":   m.DeliveredToday,
		"cancelled_today":   m.CancelledToday,
		"revenue_today":     m.RevenueToday,
		"drivers_online":    m.DriversOnline,
		"drivers_ready":     m.DriversReady,
	})
}

// ----- GET /system/flags -----

func (handler *AdminHTTPHandler) handleSystemFlags(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	flags, err := handler.svc.SystemFlags(ctx)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"flags": flags})
}

// ----- POST /system/toggle -----

func (handler *AdminHTTPHandler) handleSystemToggle(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req systemToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := handler.svc.SetSystemFlag(ctx, req.Flag, req.Enabled, jwt.RequireClaims(r).Subject); err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{
		"flag":    req.Flag,
		"enabled": req.Enabled,
	})
}
