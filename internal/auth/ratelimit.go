package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRateLimited signals that an identifier exceeded its attempt budget.
var ErrRateLimited = errors.New("too many attempts")

// Limiter throttles login and password-reset attempts with Redis counters.
// A nil Limiter (or one without a client) allows everything, so deployments
// without Redis degrade to unthrottled behavior.
type Limiter struct {
	client *redis.Client
	max    int64
	window time.Duration
}

// NewLimiter builds a limiter allowing max attempts per window.
func NewLimiter(client *redis.Client, max int, window time.Duration) *Limiter {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Limiter{client: client, max: int64(max), window: window}
}

// Allow counts an attempt for the identifier within the scope and rejects it
// once the budget is exhausted. Counters expire after the window.
func (l *Limiter) Allow(ctx context.Context, scope, identifier string) error {
	if l == nil || l.client == nil || identifier == "" {
		return nil
	}

	key := "authsvc:rl:" + scope + ":" + identifier
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("rate limiter unavailable: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("rate limiter unavailable: %w", err)
		}
	}
	if count > l.max {
		return ErrRateLimited
	}
	return nil
}
