// Package ratelimit caps how much of the text-generation service a run may use.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/deusflow/newsbrief/internal/logger"
)

// ErrBudgetExhausted is returned once a run has used all its requests.
var ErrBudgetExhausted = errors.New("request budget exhausted")

// Budget combines a per-run request cap with a token-bucket pace.
type Budget struct {
	mu      sync.Mutex
	used    int
	max     int // 0 = unlimited
	limiter *rate.Limiter
}

// NewBudget allows max requests per run, at most one every interval.
// A non-positive interval disables pacing.
func NewBudget(max int, interval time.Duration) *Budget {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Budget{max: max, limiter: rate.NewLimiter(limit, 1)}
}

// Acquire reserves one request, waiting for the pace if needed.
func (b *Budget) Acquire(ctx context.Context) error {
	b.mu.Lock()
	if b.max > 0 && b.used >= b.max {
		b.mu.Unlock()
		logger.Warn("request budget reached", "used", b.used, "max", b.max)
		return ErrBudgetExhausted
	}
	b.used++
	used := b.used
	b.mu.Unlock()

	if err := b.limiter.Wait(ctx); err != nil {
		b.mu.Lock()
		b.used--
		b.mu.Unlock()
		return err
	}
	logger.Debug("request budget", "used", used, "max", b.max)
	return nil
}

func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}
