package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"courier-dispatch/internal/general/config"
	"courier-dispatch/internal/general/logger"
	"courier-dispatch/internal/ports"
)

// HTTPProvider posts notifications to an external push relay (Expo-style HTTP
// API). Push is best-effort everywhere in this system; callers record failures
// per recipient and move on.
type HTTPProvider struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *logger.Logger
}

type pushRequest struct {
	To    string `json:"to"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NewHTTPProvider builds a provider from config. When no endpoint is
// configured it falls back to a log-only provider so development setups work
// without a push relay.
func NewHTTPProvider(cfg *config.Config, log *logger.Logger) ports.PushProvider {
	if cfg.Push.Endpoint == "" {
		return &LogProvider{logger: log}
	}
	return &HTTPProvider{
		endpoint: cfg.Push.Endpoint,
		apiKey:   cfg.Push.APIKey,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   log,
	}
}

// Push delivers one payload to one device token.
func (p *HTTPProvider) Push(ctx context.Context, token, title, body string) error {
	payload, err := json.Marshal(pushRequest{To: token, Title: title, Body: body})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push relay returned %d", resp.StatusCode)
	}
	return nil
}

// LogProvider records push attempts in the log instead of sending them.
type LogProvider struct {
	logger *logger.Logger
}

// Push logs the would-be delivery and succeeds.
func (p *LogProvider) Push(ctx context.Context, token, title, body string) error {
	p.logger.Info(ctx, "push_logged", "Push delivery logged (no relay configured)", map[string]any{
		"token": token, "title": title,
	})
	return nil
}
