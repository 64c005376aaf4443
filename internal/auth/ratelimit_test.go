package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, max int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLimiter(client, max, window), mr
}

func TestLimiterAllowsWithinBudget(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.NoError(t, limiter.Allow(ctx, "login", "alice"))
	}
	assert.ErrorIs(t, limiter.Allow(ctx, "login", "alice"), ErrRateLimited)
}

func TestLimiterScopesAndIdentifiersAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, limiter.Allow(ctx, "login", "alice"))
	assert.ErrorIs(t, limiter.Allow(ctx, "login", "alice"), ErrRateLimited)

	// a different identifier and a different scope still have budget
	assert.NoError(t, limiter.Allow(ctx, "login", "bob"))
	assert.NoError(t, limiter.Allow(ctx, "pwd_reset", "alice"))
}

func TestLimiterWindowExpiry(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, limiter.Allow(ctx, "login", "alice"))
	assert.ErrorIs(t, limiter.Allow(ctx, "login", "alice"), ErrRateLimited)

	mr.FastForward(time.Minute + time.Second)
	assert.NoError(t, limiter.Allow(ctx, "login", "alice"))
}

func TestLimiterDisabledWithoutClient(t *testing.T) {
	var limiter *Limiter
	assert.NoError(t, limiter.Allow(context.Background(), "login", "alice"))

	limiter = NewLimiter(nil, 1, time.Minute)
	assert.NoError(t, limiter.Allow(context.Background(), "login", "alice"))
	assert.NoError(t, limiter.Allow(context.Background(), "login", "alice"))
}
