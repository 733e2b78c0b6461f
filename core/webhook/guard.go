package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	processedKeyPrefix = "webhook:processed:"

	// ProcessedTTL is how long a handled event is remembered. Providers stop
	// retrying well before that.
	ProcessedTTL = 24 * time.Hour
)

// CacheError is returned by Guard.Lookup when the store could not answer.
type CacheError struct {
	Op      string
	EventID string
	Err     error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("idempotency store %s for event[%s]: %v", e.Op, e.EventID, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// Guard remembers which provider events were already handled. It is an
// optimisation: the order status checks in Pipeline are what keep duplicate
// deliveries safe, so the guard fails open.
type Guard struct {
	rdb redis.Cmdable
	log logrus.FieldLogger
	now func() time.Time
}

func NewGuard(rdb redis.Cmdable, log logrus.FieldLogger) *Guard {
	return &Guard{rdb: rdb, log: log, now: time.Now}
}

func processedKey(eventID string) string {
	return processedKeyPrefix + eventID
}

func (g *Guard) Lookup(ctx context.Context, eventID string) (bool, error) {
	n, err := g.rdb.Exists(ctx, processedKey(eventID)).Result()
	if err != nil {
		return false, &CacheError{Op: "lookup", EventID: eventID, Err: err}
	}
	return n > 0, nil
}

// IsProcessed collapses a store failure to false so that a cache outage
// never blocks payment processing.
func (g *Guard) IsProcessed(ctx context.Context, eventID string) bool {
	done, err := g.Lookup(ctx, eventID)
	if err != nil {
		g.log.WithField("event_id", eventID).WithError(err).Warn("idempotency lookup failed, processing event")
		return false
	}
	return done
}

func (g *Guard) MarkProcessed(ctx context.Context, eventID string) {
	ts := g.now().UTC().Format(time.RFC3339)

	if err := g.rdb.Set(ctx, processedKey(eventID), ts, ProcessedTTL).Err(); err != nil {
		cerr := &CacheError{Op: "mark", EventID: eventID, Err: err}
		g.log.WithField("event_id", eventID).WithError(cerr).Warn("could not mark event processed")
	}
}

// Forget drops the marker so the next delivery of the event is handled again.
func (g *Guard) Forget(ctx context.Context, eventID string) error {
	if err := g.rdb.Del(ctx, processedKey(eventID)).Err(); err != nil {
		return &CacheError{Op: "forget", EventID: eventID, Err: err}
	}
	return nil
}
