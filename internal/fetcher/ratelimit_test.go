package fetcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostRateLimiter_SpacesSameHost(t *testing.T) {
	l := NewHostRateLimiter(100 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://example.com/a.xml"))
	require.NoError(t, l.Wait(ctx, "https://example.com/b.xml"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestHostRateLimiter_HostsAreIndependent(t *testing.T) {
	l := NewHostRateLimiter(time.Hour)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example.com/feed"))
	require.NoError(t, l.Wait(ctx, "https://b.example.com/feed"))
	assert.Len(t, l.limiters, 2)
}

func TestHostRateLimiter_ContextCancelled(t *testing.T) {
	l := NewHostRateLimiter(time.Hour)
	require.NoError(t, l.Wait(context.Background(), "https://example.com/feed"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "https://example.com/feed"))
}

func TestHostRateLimiter_MissingHost(t *testing.T) {
	l := NewHostRateLimiter(time.Second)
	assert.Error(t, l.Wait(context.Background(), "/relative/path"))
}
