package vehicle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const dupeKeyPrefix = "vehicle_dupe:"

// DupeChecker suppresses accidental repeat listing creation. A (make, model,
// year) tuple created for a tenant within the window is treated as the same
// listing; tuples never collide across tenants.
type DupeChecker struct {
	redis  *redis.Client
	tracer trace.Tracer
	window time.Duration
}

func NewDupeChecker(redisClient *redis.Client) *DupeChecker {
	if redisClient == nil {
		return nil
	}
	return &DupeChecker{
		redis:  redisClient,
		tracer: otel.Tracer("autolumiku/vehicle"),
		window: 5 * time.Minute,
	}
}

// WithWindow overrides the duplicate window.
func (d *DupeChecker) WithWindow(window time.Duration) *DupeChecker {
	if window > 0 {
		d.window = window
	}
	return d
}

// Check returns the previously created vehicle id when the tuple was seen
// within the window for this tenant.
func (d *DupeChecker) Check(ctx context.Context, tenantID string, f Fields) (string, bool, error) {
	if d == nil || d.redis == nil {
		return "", false, nil
	}

	ctx, span := d.tracer.Start(ctx, "vehicle.dedup.check")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	existing, err := d.redis.Get(ctx, dupeKey(tenantID, f)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("vehicle: duplicate check: %w", err)
	}
	span.SetAttributes(attribute.Bool("vehicle.duplicate", true))
	return existing, true, nil
}

// Remember records a created vehicle so repeats inside the window are caught.
// SETNX keeps the first creation authoritative when two workflows race.
func (d *DupeChecker) Remember(ctx context.Context, tenantID string, f Fields, vehicleID string) error {
	if d == nil || d.redis == nil {
		return nil
	}
	if err := d.redis.SetNX(ctx, dupeKey(tenantID, f), vehicleID, d.window).Err(); err != nil {
		return fmt.Errorf("vehicle: remember created listing: %w", err)
	}
	return nil
}

func dupeKey(tenantID string, f Fields) string {
	return fmt.Sprintf("%s%s:%s:%s:%d",
		dupeKeyPrefix,
		tenantID,
		strings.ToLower(f.Make),
		strings.ToLower(f.Model),
		f.Year,
	)
}
