package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowWithinBurst(t *testing.T) {
	l := New(10, 5)

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(), "request %d within burst", i)
	}
	assert.False(t, l.Allow(), "burst exhausted")
}

func TestZeroRateDisablesThrottling(t *testing.T) {
	l := New(0, 0)

	for i := 0; i < 10_000; i++ {
		require.True(t, l.Allow())
	}
}

func TestWaitHonorsContext(t *testing.T) {
	l := New(1, 1)
	require.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.Error(t, err)
}

func TestWaitAdmitsWhenTokenArrives(t *testing.T) {
	l := New(100, 1)
	require.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// The next token arrives after ~10ms; well inside the deadline.
	assert.NoError(t, l.Wait(ctx))
}

func TestSetLimit(t *testing.T) {
	l := New(1, 1)
	require.True(t, l.Allow())
	assert.False(t, l.Allow())

	l.SetLimit(0)
	time.Sleep(5 * time.Millisecond)
	assert.True(t, l.Allow(), "tokens accrue at the new rate")
}

func TestTokensObservable(t *testing.T) {
	l := New(10, 5)
	assert.InDelta(t, 5, l.Tokens(), 1)

	require.True(t, l.Allow())
	assert.Less(t, l.Tokens(), 5.0)
}
