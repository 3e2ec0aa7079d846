package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/autolumiku/dealership-ai-platform/pkg/logging"
)

const (
	defaultGatewayTimeout = 15 * time.Second
	gatewayUserAgent      = "autolumiku-engine/0.1"
)

// GatewayConfig controls how the WhatsApp gateway client behaves.
type GatewayConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// GatewayClient talks to the WhatsApp gateway REST API. One client serves
// every tenant; the account id on each request selects the linked device.
type GatewayClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

var _ Transport = (*GatewayClient)(nil)

func NewGatewayClient(cfg GatewayConfig) (*GatewayClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("messaging: gateway base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("messaging: gateway API key is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultGatewayTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &GatewayClient{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type gatewaySendResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// SendText delivers a plain chat message.
func (c *GatewayClient) SendText(ctx context.Context, msg OutboundText) (SendResult, error) {
	payload := map[string]any{
		"account_id": msg.AccountID,
		"to":         msg.To,
		"message":    msg.Text,
	}
	return c.send(ctx, "send_text", "/api/v1/messages/text", payload)
}

// SendImage delivers one image with an optional caption.
func (c *GatewayClient) SendImage(ctx context.Context, msg OutboundImage) (SendResult, error) {
	payload := map[string]any{
		"account_id": msg.AccountID,
		"to":         msg.To,
		"image_url":  msg.ImageURL,
		"caption":    msg.Caption,
	}
	return c.send(ctx, "send_image", "/api/v1/messages/image", payload)
}

// SendDocument delivers a file attachment.
func (c *GatewayClient) SendDocument(ctx context.Context, msg OutboundDocument) (SendResult, error) {
	payload := map[string]any{
		"account_id":   msg.AccountID,
		"to":           msg.To,
		"document_url": msg.DocumentURL,
		"file_name":    msg.FileName,
		"caption":      msg.Caption,
	}
	return c.send(ctx, "send_document", "/api/v1/messages/document", payload)
}

// DeleteMessage revokes a previously sent message.
func (c *GatewayClient) DeleteMessage(ctx context.Context, accountID, messageID string) error {
	payload := map[string]any{
		"account_id": accountID,
		"message_id": messageID,
	}
	_, err := c.send(ctx, "delete_message", "/api/v1/messages/delete", payload)
	return err
}

// GetConnectionStatus reports whether the tenant's device session is linked.
func (c *GatewayClient) GetConnectionStatus(ctx context.Context, accountID string) (ConnectionStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v1/accounts/%s/status", c.baseURL, accountID), nil)
	if err != nil {
		return ConnectionStatus{}, fmt.Errorf("messaging: build status request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ConnectionStatus{}, &TransportError{Op: "connection_status", Message: err.Error(), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return ConnectionStatus{}, &TransportError{
			Op:         "connection_status",
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Retryable:  retryableStatus(resp.StatusCode),
		}
	}

	var parsed struct {
		Connected bool   `json:"connected"`
		Detail    string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ConnectionStatus{}, fmt.Errorf("messaging: decode status response: %w", err)
	}
	return ConnectionStatus{AccountID: accountID, Connected: parsed.Connected, Detail: parsed.Detail}, nil
}

func (c *GatewayClient) send(ctx context.Context, op, path string, payload map[string]any) (SendResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return SendResult{}, fmt.Errorf("messaging: marshal %s payload: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, fmt.Errorf("messaging: build %s request: %w", op, err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return SendResult{}, ctx.Err()
		}
		return SendResult{}, &TransportError{Op: op, Message: err.Error(), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return SendResult{}, &TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
			Retryable:  retryableStatus(resp.StatusCode),
		}
	}

	var parsed gatewaySendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return SendResult{}, fmt.Errorf("messaging: decode %s response: %w", op, err)
	}
	if parsed.Error != "" {
		return SendResult{}, &TransportError{Op: op, Message: parsed.Error, Retryable: false}
	}
	return SendResult{MessageID: parsed.MessageID}, nil
}

func (c *GatewayClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", gatewayUserAgent)
}
