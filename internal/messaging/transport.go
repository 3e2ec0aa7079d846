package messaging

import (
	"context"
	"errors"
	"fmt"
)

// OutboundText is a plain text message addressed to a chat.
type OutboundText struct {
	AccountID string
	To        string
	Text      string
}

// OutboundImage is one image with an optional caption.
type OutboundImage struct {
	AccountID string
	To        string
	ImageURL  string
	Caption   string
}

// OutboundDocument is a file attachment send.
type OutboundDocument struct {
	AccountID   string
	To          string
	DocumentURL string
	FileName    string
	Caption     string
}

// SendResult carries the provider-assigned message id.
type SendResult struct {
	MessageID string
}

// ConnectionStatus reports whether a tenant's messaging account is linked
// and able to send.
type ConnectionStatus struct {
	AccountID string
	Connected bool
	Detail    string
}

// Transport abstracts the WhatsApp gateway. Implementations must be safe for
// concurrent use.
type Transport interface {
	SendText(ctx context.Context, msg OutboundText) (SendResult, error)
	SendImage(ctx context.Context, msg OutboundImage) (SendResult, error)
	SendDocument(ctx context.Context, msg OutboundDocument) (SendResult, error)
	DeleteMessage(ctx context.Context, accountID, messageID string) error
	GetConnectionStatus(ctx context.Context, accountID string) (ConnectionStatus, error)
}

// TransportError is a send failure with enough detail to decide whether a
// retry can help.
type TransportError struct {
	Op         string
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("messaging: %s failed (status %d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("messaging: %s failed: %s", e.Op, e.Message)
}

// IsRetryable reports whether retrying the send could succeed. Unknown error
// shapes (network errors, context cancellation aside) count as retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return true
}

// retryableStatus classifies an HTTP status from the gateway. Rate limiting
// and server-side failures are worth retrying; other client errors are not.
func retryableStatus(status int) bool {
	if status == 429 {
		return true
	}
	return status >= 500
}
