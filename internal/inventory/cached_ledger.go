package inventory

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/communa-labs/ticketing/pkg/redis"
	"github.com/communa-labs/ticketing/pkg/telemetry"
)

const (
	availabilityKeyPrefix  = "availability:"
	defaultAvailabilityTTL = 2 * time.Second
)

// CachedLedger decorates a Ledger with a short-lived Redis cache on
// CheckAvailability. The cache is advisory only: writes always go to
// the inner ledger, and mutations invalidate the cached snapshot.
type CachedLedger struct {
	inner Ledger
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedLedger wraps a ledger with an availability cache
func NewCachedLedger(inner Ledger, client *redis.Client, ttl time.Duration) *CachedLedger {
	if ttl <= 0 {
		ttl = defaultAvailabilityTTL
	}
	return &CachedLedger{inner: inner, redis: client, ttl: ttl}
}

// TryReserve delegates to the inner ledger and invalidates the cache
func (l *CachedLedger) TryReserve(ctx context.Context, ticketTypeID string, qty int64) error {
	if err := l.inner.TryReserve(ctx, ticketTypeID, qty); err != nil {
		return err
	}
	l.invalidate(ctx, ticketTypeID)
	return nil
}

// Release delegates to the inner ledger and invalidates the cache
func (l *CachedLedger) Release(ctx context.Context, ticketTypeID string, qty int64) error {
	if err := l.inner.Release(ctx, ticketTypeID, qty); err != nil {
		return err
	}
	l.invalidate(ctx, ticketTypeID)
	return nil
}

// CheckAvailability serves from cache when possible, reading through on miss
func (l *CachedLedger) CheckAvailability(ctx context.Context, ticketTypeID string) (*Availability, error) {
	ctx, span := telemetry.StartSpan(ctx, "inventory.cache.check_availability")
	defer span.End()

	span.SetAttributes(attribute.String("ticket_type_id", ticketTypeID))
	key := availabilityKeyPrefix + ticketTypeID

	if cached, err := l.redis.Get(ctx, key).Result(); err == nil {
		avail := &Availability{}
		if jsonErr := json.Unmarshal([]byte(cached), avail); jsonErr == nil {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			span.SetStatus(codes.Ok, "")
			return avail, nil
		}
	} else if err != goredis.Nil {
		// Redis trouble is not fatal for an advisory read
		span.RecordError(err)
	}

	avail, err := l.inner.CheckAvailability(ctx, ticketTypeID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if data, jsonErr := json.Marshal(avail); jsonErr == nil {
		_ = l.redis.Set(ctx, key, string(data), l.ttl).Err()
	}

	span.SetAttributes(attribute.Bool("cache_hit", false))
	span.SetStatus(codes.Ok, "")
	return avail, nil
}

func (l *CachedLedger) invalidate(ctx context.Context, ticketTypeID string) {
	_ = l.redis.Del(ctx, availabilityKeyPrefix+ticketTypeID).Err()
}

// Ensure CachedLedger implements Ledger
var _ Ledger = (*CachedLedger)(nil)
