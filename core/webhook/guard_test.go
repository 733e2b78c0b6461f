package webhook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T) (*Guard, *miniredis.Miniredis, *test.Hook) {
	t.Helper()

	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })

	log, hook := test.NewNullLogger()
	return NewGuard(rdb, log), s, hook
}

func TestGuardMarkAndLookup(t *testing.T) {
	g, s, _ := newGuard(t)
	ctx := context.Background()

	assert.False(t, g.IsProcessed(ctx, "evt_1"))

	g.MarkProcessed(ctx, "evt_1")
	assert.True(t, g.IsProcessed(ctx, "evt_1"))
	assert.False(t, g.IsProcessed(ctx, "evt_2"))

	assert.True(t, s.Exists("webhook:processed:evt_1"))
	assert.Equal(t, ProcessedTTL, s.TTL("webhook:processed:evt_1"))

	v, err := s.Get("webhook:processed:evt_1")
	require.NoError(t, err)
	_, err = time.Parse(time.RFC3339, v)
	assert.NoError(t, err)
}

func TestGuardMarkerExpires(t *testing.T) {
	g, s, _ := newGuard(t)
	ctx := context.Background()

	g.MarkProcessed(ctx, "evt_1")

	s.FastForward(ProcessedTTL - time.Second)
	assert.True(t, g.IsProcessed(ctx, "evt_1"))

	s.FastForward(2 * time.Second)
	assert.False(t, g.IsProcessed(ctx, "evt_1"))
}

func TestGuardForget(t *testing.T) {
	g, _, _ := newGuard(t)
	ctx := context.Background()

	g.MarkProcessed(ctx, "evt_1")
	require.NoError(t, g.Forget(ctx, "evt_1"))
	assert.False(t, g.IsProcessed(ctx, "evt_1"))
}

func TestGuardFailsOpen(t *testing.T) {
	g, s, hook := newGuard(t)
	ctx := context.Background()

	s.Close()

	_, err := g.Lookup(ctx, "evt_1")
	var cerr *CacheError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "lookup", cerr.Op)
	assert.Equal(t, "evt_1", cerr.EventID)

	assert.False(t, g.IsProcessed(ctx, "evt_1"))
	g.MarkProcessed(ctx, "evt_1")

	require.NotEmpty(t, hook.AllEntries())
	for _, e := range hook.AllEntries() {
		assert.Equal(t, logrus.WarnLevel, e.Level)
	}

	assert.True(t, errors.As(g.Forget(ctx, "evt_1"), &cerr))
}
