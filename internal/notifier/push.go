package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/good-yellow-bee/fieldsense/internal/logger"
	"github.com/good-yellow-bee/fieldsense/internal/models"
)

// TokenSource lists the device tokens a push should reach.
type TokenSource interface {
	DeviceTokens(ctx context.Context) ([]string, error)
}

// PushConfig holds push-delivery service configuration.
type PushConfig struct {
	Endpoint string // push-delivery service URL
	APIKey   string // sent as a bearer token when set
	Timeout  time.Duration
}

// Validate validates the push configuration.
func (c *PushConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint must be an http or https URL")
	}
	return nil
}

// PushNotifier posts alerts to a push-delivery service for the registered devices.
type PushNotifier struct {
	config     PushConfig
	tokens     TokenSource
	httpClient *http.Client
}

// NewPushNotifier creates a new push notifier.
func NewPushNotifier(config PushConfig, tokens TokenSource) (*PushNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid push config: %w", err)
	}
	if tokens == nil {
		return nil, fmt.Errorf("invalid push config: token source is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	return &PushNotifier{
		config: config,
		tokens: tokens,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Name returns "push".
func (p *PushNotifier) Name() string {
	return "push"
}

// pushPayload is the body accepted by the push-delivery service.
type pushPayload struct {
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Tokens []string          `json:"tokens"`
	Data   map[string]string `json:"data,omitempty"`
}

// Send delivers the alert to every registered device. With no devices registered it is a no-op.
func (p *PushNotifier) Send(ctx context.Context, alert *models.AlertEvent) error {
	tokens, err := p.tokens.DeviceTokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		log := logger.WithComponent("push")
		log.Debug().Str("kind", string(alert.Kind)).Msg("no device tokens registered")
		return nil
	}

	push := BuildPush(alert)
	payload := pushPayload{
		Title:  push.Title,
		Body:   push.Body,
		Tokens: tokens,
		Data: map[string]string{
			"kind":     string(alert.Kind),
			"severity": string(alert.Severity),
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("push service error: status %d, body: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Close is a no-op for the push notifier.
func (p *PushNotifier) Close() error {
	return nil
}
