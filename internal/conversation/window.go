package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	windowKeyPrefix = "recent_window:"
	windowTTL       = 30 * time.Minute
)

// WindowEntry is one recent inbound message kept for the photo look-back.
type WindowEntry struct {
	Text       string    `json:"text,omitempty"`
	MediaURL   string    `json:"media_url,omitempty"`
	MediaType  string    `json:"media_type,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// RecentWindow keeps a short Redis-backed tail of inbound messages per
// conversation. The upload workflow scans it newest-first for qualifying
// photos when the init command arrives after the photos.
type RecentWindow struct {
	redis      *redis.Client
	tracer     trace.Tracer
	maxEntries int64
}

func NewRecentWindow(redisClient *redis.Client) *RecentWindow {
	if redisClient == nil {
		return nil
	}
	return &RecentWindow{
		redis:      redisClient,
		tracer:     otel.Tracer("autolumiku/window"),
		maxEntries: 20,
	}
}

// WithMaxEntries bounds how many entries the window retains per conversation.
func (w *RecentWindow) WithMaxEntries(n int) *RecentWindow {
	if w != nil && n > 0 {
		w.maxEntries = int64(n)
	}
	return w
}

// Append records one inbound message in the window.
func (w *RecentWindow) Append(ctx context.Context, conversationID string, entry WindowEntry) error {
	if w == nil || w.redis == nil {
		return nil
	}
	if conversationID == "" {
		return errors.New("conversation: window conversationID required")
	}
	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("conversation: marshal window entry: %w", err)
	}

	ctx, span := w.tracer.Start(ctx, "conversation.window.append")
	defer span.End()

	key := windowKey(conversationID)
	pipe := w.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, windowTTL)
	pipe.LTrim(ctx, key, -w.maxEntries, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: append window entry: %w", err)
	}
	return nil
}

// RecentPhotos returns photos received within the look-back window,
// newest first, capped at the window size.
func (w *RecentWindow) RecentPhotos(ctx context.Context, conversationID string, lookback time.Duration) ([]MediaRef, error) {
	if w == nil || w.redis == nil {
		return nil, nil
	}

	ctx, span := w.tracer.Start(ctx, "conversation.window.recent_photos")
	defer span.End()

	raw, err := w.redis.LRange(ctx, windowKey(conversationID), -w.maxEntries, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: read window: %w", err)
	}

	cutoff := time.Now().Add(-lookback)
	var photos []MediaRef
	for i := len(raw) - 1; i >= 0; i-- {
		var entry WindowEntry
		if err := json.Unmarshal([]byte(raw[i]), &entry); err != nil {
			continue
		}
		if entry.ReceivedAt.Before(cutoff) {
			break
		}
		if entry.MediaURL == "" || !strings.HasPrefix(entry.MediaType, "image") {
			continue
		}
		photos = append(photos, MediaRef{
			URL:        entry.MediaURL,
			MediaType:  entry.MediaType,
			ReceivedAt: entry.ReceivedAt,
		})
	}

	return photos, nil
}

func windowKey(conversationID string) string {
	return windowKeyPrefix + conversationID
}
