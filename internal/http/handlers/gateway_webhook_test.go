package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autolumiku/dealership-ai-platform/internal/engine"
)

const testSecret = "webhook-secret"

type fakeProcessor struct {
	events []engine.InboundEvent
	err    error
}

func (f *fakeProcessor) HandleInbound(_ context.Context, ev engine.InboundEvent) (*engine.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.events = append(f.events, ev)
	return &engine.Result{ConversationID: uuid.New(), Intent: "customer_greeting"}, nil
}

type fakeAccounts struct{ tenants map[string]string }

func (f *fakeAccounts) TenantForAccount(_ context.Context, accountID string) (string, error) {
	if t, ok := f.tenants[accountID]; ok {
		return t, nil
	}
	return "", errors.New("tenancy: gateway account not found")
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, h *GatewayWebhookHandler, payload map[string]any, signature string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(body))
	if signature == "auto" {
		signature = sign(testSecret, body)
	}
	if signature != "" {
		req.Header.Set("X-Gateway-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h.HandleInbound(rec, req)
	return rec
}

func newWebhookHandler(proc *fakeProcessor) *GatewayWebhookHandler {
	accounts := &fakeAccounts{tenants: map[string]string{"acct-1": "tenant-1"}}
	return NewGatewayWebhookHandler(proc, accounts, testSecret, nil)
}

func TestGatewayWebhookAccepted(t *testing.T) {
	proc := &fakeProcessor{}
	h := newWebhookHandler(proc)

	rec := postWebhook(t, h, map[string]any{
		"account_id": "acct-1",
		"sender":     "08123456789@s.whatsapp.net",
		"message":    "halo",
		"timestamp":  1700000000,
	}, "auto")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, proc.events, 1)
	assert.Equal(t, "tenant-1", proc.events[0].TenantID)
	assert.Equal(t, "halo", proc.events[0].Text)
	assert.Equal(t, int64(1700000000), proc.events[0].Timestamp.Unix())
}

func TestGatewayWebhookRejectsBadSignature(t *testing.T) {
	proc := &fakeProcessor{}
	h := newWebhookHandler(proc)

	rec := postWebhook(t, h, map[string]any{
		"account_id": "acct-1", "sender": "628@s.whatsapp.net", "message": "hi",
	}, "sha256=deadbeef")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, proc.events)
}

func TestGatewayWebhookRejectsMissingSignature(t *testing.T) {
	h := newWebhookHandler(&fakeProcessor{})
	rec := postWebhook(t, h, map[string]any{
		"account_id": "acct-1", "sender": "628@s.whatsapp.net",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGatewayWebhookUnknownAccount(t *testing.T) {
	h := newWebhookHandler(&fakeProcessor{})
	rec := postWebhook(t, h, map[string]any{
		"account_id": "acct-unknown", "sender": "628@s.whatsapp.net", "message": "hi",
	}, "auto")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGatewayWebhookMissingFields(t *testing.T) {
	h := newWebhookHandler(&fakeProcessor{})
	rec := postWebhook(t, h, map[string]any{"message": "hi"}, "auto")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGatewayWebhookProcessorError(t *testing.T) {
	h := newWebhookHandler(&fakeProcessor{err: errors.New("db down")})
	rec := postWebhook(t, h, map[string]any{
		"account_id": "acct-1", "sender": "628@s.whatsapp.net", "message": "hi",
	}, "auto")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
