package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/autolumiku/dealership-ai-platform/internal/engine"
	"github.com/autolumiku/dealership-ai-platform/pkg/logging"
)

const (
	signatureHeader = "X-Gateway-Signature"
	maxWebhookBody  = 1 << 20
)

// InboundProcessor runs one inbound event through the message pipeline.
type InboundProcessor interface {
	HandleInbound(ctx context.Context, ev engine.InboundEvent) (*engine.Result, error)
}

// AccountResolver maps a gateway account id onto the owning tenant.
type AccountResolver interface {
	TenantForAccount(ctx context.Context, accountID string) (string, error)
}

// GatewayWebhookHandler receives inbound message callbacks from the WhatsApp
// gateway. Every request must carry a valid HMAC signature over the raw body.
type GatewayWebhookHandler struct {
	processor InboundProcessor
	accounts  AccountResolver
	secret    string
	logger    *logging.Logger
}

func NewGatewayWebhookHandler(processor InboundProcessor, accounts AccountResolver, secret string, logger *logging.Logger) *GatewayWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &GatewayWebhookHandler{
		processor: processor,
		accounts:  accounts,
		secret:    secret,
		logger:    logger,
	}
}

type inboundPayload struct {
	AccountID string `json:"account_id"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	MediaURL  string `json:"media_url,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// HandleInbound is the POST endpoint the gateway calls for each received
// message.
func (h *GatewayWebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	if !verifySignature(h.secret, body, r.Header.Get(signatureHeader)) {
		h.logger.Warn("webhook signature rejected", "remote_ip", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var payload inboundPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}
	if payload.AccountID == "" || payload.Sender == "" {
		http.Error(w, "account_id and sender are required", http.StatusBadRequest)
		return
	}

	tenantID, err := h.accounts.TenantForAccount(r.Context(), payload.AccountID)
	if err != nil {
		h.logger.Warn("unknown gateway account", "account_id", payload.AccountID, "error", err)
		http.Error(w, "unknown account", http.StatusNotFound)
		return
	}

	ts := time.Now()
	if payload.Timestamp > 0 {
		ts = time.Unix(payload.Timestamp, 0)
	}

	log := h.logger.WithTenant(tenantID)
	res, err := h.processor.HandleInbound(r.Context(), engine.InboundEvent{
		TenantID:  tenantID,
		AccountID: payload.AccountID,
		Sender:    payload.Sender,
		Text:      payload.Message,
		MediaURL:  payload.MediaURL,
		MediaType: payload.MediaType,
		Timestamp: ts,
	})
	if err != nil {
		log.Error("inbound processing failed", "error", err, "account_id", payload.AccountID)
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"conversation_id": res.ConversationID,
		"intent":          res.Intent,
		"escalated":       res.Escalated,
	})
}

func verifySignature(secret string, payload []byte, header string) bool {
	if strings.TrimSpace(secret) == "" || strings.TrimSpace(header) == "" {
		return false
	}
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), provided)
}
