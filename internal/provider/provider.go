// Package provider is the outbound boundary to the messaging gateway.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Dispatcher sends one text message and returns the provider's message
// SID. Exactly one attempt per call; retries are the caller's decision.
type Dispatcher interface {
	SendText(ctx context.Context, to, body string) (sid string, err error)
}

// Gateway dispatches through an SMS77-style HTTP API.
type Gateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewGateway creates a dispatcher against baseURL with the given API
// key. Credentials come from configuration, never from source.
func NewGateway(baseURL, apiKey string, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

type gatewayResponse struct {
	Success  string `json:"success"`
	Messages []struct {
		ID      string `json:"id"`
		Success bool   `json:"success"`
		Error   string `json:"error_text"`
	} `json:"messages"`
}

// SendText posts one message to the gateway.
func (g *Gateway) SendText(ctx context.Context, to, body string) (string, error) {
	form := url.Values{
		"p":    {g.apiKey},
		"to":   {to},
		"text": {body},
		"json": {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/sms", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway returned %s", resp.Status)
	}
	var parsed gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("parse gateway response: %w", err)
	}
	if parsed.Success != "100" || len(parsed.Messages) == 0 {
		return "", fmt.Errorf("gateway rejected send, code %s", parsed.Success)
	}
	msg := parsed.Messages[0]
	if !msg.Success {
		return "", fmt.Errorf("gateway message error: %s", msg.Error)
	}
	g.logger.Debug("message dispatched", zap.String("sid", msg.ID), zap.String("to", to))
	return msg.ID, nil
}
