package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetCap(t *testing.T) {
	b := NewBudget(2, 0)
	ctx := context.Background()

	require.NoError(t, b.Acquire(ctx))
	require.NoError(t, b.Acquire(ctx))
	assert.ErrorIs(t, b.Acquire(ctx), ErrBudgetExhausted)
	assert.Equal(t, 2, b.Used())
}

func TestBudgetUnlimited(t *testing.T) {
	b := NewBudget(0, 0)
	for i := 0; i < 20; i++ {
		require.NoError(t, b.Acquire(context.Background()))
	}
	assert.Equal(t, 20, b.Used())
}

func TestBudgetPaceHonoursContext(t *testing.T) {
	b := NewBudget(5, time.Hour)
	require.NoError(t, b.Acquire(context.Background()), "first token is available immediately")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, b.Acquire(ctx))
	assert.Equal(t, 1, b.Used(), "a cancelled wait does not spend the budget")
}
