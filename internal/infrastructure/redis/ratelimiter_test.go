package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladosShikos/losb-back/internal/domain"
)

func newLimiter(t *testing.T) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return NewFixedWindowLimiter(c), mr
}

func TestFixedWindowLimiter_RedisNil_Allows(t *testing.T) {
	t.Parallel()

	l := NewFixedWindowLimiter(nil)

	d, err := l.AllowFixedWindow(context.Background(), "k", 10, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 10, d.Remaining)
}

func TestFixedWindowLimiter_LimitZero_Allows(t *testing.T) {
	t.Parallel()

	l, _ := newLimiter(t)

	d, err := l.AllowFixedWindow(context.Background(), "k", 0, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestFixedWindowLimiter_BlocksAfterLimit(t *testing.T) {
	t.Parallel()

	l, mr := newLimiter(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := l.AllowFixedWindow(ctx, "phone_request:42", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "hit %d", i)
		assert.Equal(t, 3-i, d.Remaining)
	}

	d, err := l.AllowFixedWindow(ctx, "phone_request:42", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 4, d.Count)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	// other keys have their own window
	d, err = l.AllowFixedWindow(ctx, "phone_request:43", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	assert.True(t, mr.Exists(keyPrefix+"phone_request:42"))
}

func TestFixedWindowLimiter_WindowExpiryResets(t *testing.T) {
	t.Parallel()

	l, mr := newLimiter(t)
	ctx := context.Background()

	_, err := l.AllowFixedWindow(ctx, "k", 1, time.Second)
	require.NoError(t, err)
	d, err := l.AllowFixedWindow(ctx, "k", 1, time.Second)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	mr.FastForward(2 * time.Second)

	d, err = l.AllowFixedWindow(ctx, "k", 1, time.Second)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count)
}

func TestFixedWindowLimiter_RedisDown_ReturnsInfraError(t *testing.T) {
	t.Parallel()

	l, mr := newLimiter(t)
	mr.Close()

	_, err := l.AllowFixedWindow(context.Background(), "k", 1, time.Minute)
	require.Error(t, err)
	assert.True(t, domain.Is(err, "redis_unavailable"))
}
