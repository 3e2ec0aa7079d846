package conversation

import (
	"context"
	"time"

	"github.com/autolumiku/dealership-ai-platform/pkg/logging"
)

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one turn of delegate context.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to the AI delegate.
type CompletionRequest struct {
	System    string
	Messages  []ChatMessage
	MaxTokens int
}

// CompletionClient is the AI delegate boundary.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// FallbackReply is sent when the delegate loses the deadline race.
const FallbackReply = "Mohon maaf, sistem kami sedang sibuk. Tim kami akan segera membalas pesan Anda."

// Responder generates free-form replies through the AI delegate, bounded by
// a hard deadline. When the deadline wins the race the canned fallback is
// used immediately; a late delegate result is discarded, never applied.
// The completion call is only abandoned client-side; whether the backend
// cancels server-side is up to the delegate implementation.
type Responder struct {
	client  CompletionClient
	logger  *logging.Logger
	timeout time.Duration
}

func NewResponder(client CompletionClient, logger *logging.Logger) *Responder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Responder{
		client:  client,
		logger:  logger,
		timeout: 45 * time.Second,
	}
}

// WithTimeout overrides the delegate deadline.
func (r *Responder) WithTimeout(d time.Duration) *Responder {
	if d > 0 {
		r.timeout = d
	}
	return r
}

type completionResult struct {
	text string
	err  error
}

// Reply races the delegate against the deadline and returns the winner.
// Delegate failures of any kind resolve to the fallback, never to an error.
func (r *Responder) Reply(ctx context.Context, req CompletionRequest) string {
	if r == nil || r.client == nil {
		return FallbackReply
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Buffered so the goroutine can finish after the race is lost.
	resultCh := make(chan completionResult, 1)
	go func() {
		text, err := r.client.Complete(callCtx, req)
		resultCh <- completionResult{text: text, err: err}
	}()

	select {
	case <-callCtx.Done():
		r.logger.Warn("ai delegate deadline exceeded; using fallback", "timeout", r.timeout)
		return FallbackReply
	case res := <-resultCh:
		if res.err != nil {
			r.logger.Error("ai delegate failed; using fallback", "error", res.err)
			return FallbackReply
		}
		if res.text == "" {
			return FallbackReply
		}
		return res.text
	}
}
