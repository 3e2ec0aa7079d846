package messaging

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/autolumiku/dealership-ai-platform/internal/observability/metrics"
	"github.com/autolumiku/dealership-ai-platform/pkg/logging"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
)

// Dispatcher sends outbound messages through the gateway with retry on
// transient failures. Delays grow threefold per attempt.
type Dispatcher struct {
	transport   Transport
	logger      *logging.Logger
	tracer      trace.Tracer
	metrics     *metrics.EngineMetrics
	limiter     *rate.Limiter
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(transport Transport, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		transport:   transport,
		logger:      logger,
		tracer:      otel.Tracer("autolumiku/messaging"),
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		sleep:       sleepCtx,
	}
}

// WithMetrics attaches engine metrics recording.
func (d *Dispatcher) WithMetrics(m *metrics.EngineMetrics) *Dispatcher {
	d.metrics = m
	return d
}

// WithRetry overrides the attempt count and the first retry delay.
func (d *Dispatcher) WithRetry(maxAttempts int, baseDelay time.Duration) *Dispatcher {
	if maxAttempts > 0 {
		d.maxAttempts = maxAttempts
	}
	if baseDelay > 0 {
		d.baseDelay = baseDelay
	}
	return d
}

// WithMediaPacing rate-limits consecutive media sends so the gateway does
// not reorder or drop a photo burst.
func (d *Dispatcher) WithMediaPacing(minInterval time.Duration) *Dispatcher {
	if minInterval > 0 {
		d.limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return d
}

// SendText dispatches a text message with retries.
func (d *Dispatcher) SendText(ctx context.Context, msg OutboundText) (SendResult, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch.send_text")
	defer span.End()
	span.SetAttributes(attribute.String("messaging.to", msg.To))

	res, err := d.withRetries(ctx, "text", func(ctx context.Context) (SendResult, error) {
		return d.transport.SendText(ctx, msg)
	})
	d.observe("text", err)
	return res, err
}

// SendImage dispatches one image with retries.
func (d *Dispatcher) SendImage(ctx context.Context, msg OutboundImage) (SendResult, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch.send_image")
	defer span.End()

	if err := d.pace(ctx); err != nil {
		return SendResult{}, err
	}
	res, err := d.withRetries(ctx, "image", func(ctx context.Context) (SendResult, error) {
		return d.transport.SendImage(ctx, msg)
	})
	d.observe("image", err)
	return res, err
}

// SendImages dispatches a photo batch in order. A failed item does not stop
// the rest; the error reported covers the failed subset.
func (d *Dispatcher) SendImages(ctx context.Context, msgs []OutboundImage) ([]SendResult, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch.send_images")
	defer span.End()
	span.SetAttributes(attribute.Int("messaging.batch_size", len(msgs)))

	results := make([]SendResult, len(msgs))
	var failed int
	var lastErr error
	for i, msg := range msgs {
		res, err := d.SendImage(ctx, msg)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			failed++
			lastErr = err
			d.logger.Warn("image send failed in batch",
				"index", i, "to", msg.To, "error", err)
			continue
		}
		results[i] = res
	}
	if failed > 0 {
		return results, fmt.Errorf("messaging: %d of %d images failed: %w", failed, len(msgs), lastErr)
	}
	return results, nil
}

// SendDocument dispatches a file attachment with retries.
func (d *Dispatcher) SendDocument(ctx context.Context, msg OutboundDocument) (SendResult, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch.send_document")
	defer span.End()

	if err := d.pace(ctx); err != nil {
		return SendResult{}, err
	}
	res, err := d.withRetries(ctx, "document", func(ctx context.Context) (SendResult, error) {
		return d.transport.SendDocument(ctx, msg)
	})
	d.observe("document", err)
	return res, err
}

func (d *Dispatcher) withRetries(ctx context.Context, class string, send func(ctx context.Context) (SendResult, error)) (SendResult, error) {
	var lastErr error
	delay := d.baseDelay
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		res, err := send(ctx)
		if err == nil {
			if attempt > 1 {
				d.logger.Info("send succeeded after retry", "class", class, "attempt", attempt)
			}
			return res, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			d.logger.Warn("send failed with non-retryable error", "class", class, "error", err)
			return SendResult{}, err
		}
		if d.metrics != nil {
			d.metrics.ObserveDispatchRetry(class)
		}
		d.logger.Warn("send failed; will retry",
			"class", class, "attempt", attempt, "delay", delay, "error", err)
		if err := d.sleep(ctx, delay); err != nil {
			return SendResult{}, err
		}
		delay *= 3
	}
	return SendResult{}, fmt.Errorf("messaging: giving up after %d attempts: %w", d.maxAttempts, lastErr)
}

func (d *Dispatcher) pace(ctx context.Context) error {
	if d.limiter == nil {
		return nil
	}
	return d.limiter.Wait(ctx)
}

func (d *Dispatcher) observe(kind string, err error) {
	if d.metrics == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	d.metrics.ObserveOutbound(kind, status)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
