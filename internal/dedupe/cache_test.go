package dedupe_test

import (
	"testing"
	"time"

	"github.com/shDupont/merculy/internal/dedupe"
	"github.com/stretchr/testify/require"
)

func TestCacheSeenDuplicate(t *testing.T) {
	cache := dedupe.NewCache(10, time.Minute)
	require.False(t, cache.IsSeen("job-alpha"))
	cache.MarkSeen("job-alpha")
	require.True(t, cache.IsSeen("job-alpha"))
}

func TestCacheTTLExpiry(t *testing.T) {
	cache := dedupe.NewCache(10, 20*time.Millisecond)
	require.False(t, cache.IsSeen("beta"))
	cache.MarkSeen("beta")
	time.Sleep(25 * time.Millisecond)
	require.False(t, cache.IsSeen("beta"))
}

func TestCacheCapacityEvictsOldest(t *testing.T) {
	cache := dedupe.NewCache(1, time.Minute)
	require.False(t, cache.IsSeen("first"))
	cache.MarkSeen("first")

	require.False(t, cache.IsSeen("second"))
	cache.MarkSeen("second")

	require.False(t, cache.IsSeen("first"))
	require.True(t, cache.IsSeen("second"))
}

func TestCacheClaim(t *testing.T) {
	cache := dedupe.NewCache(10, time.Minute)
	require.True(t, cache.Claim("article-1"))
	require.False(t, cache.Claim("article-1"))
	require.Equal(t, 1, cache.Len())

	cache.Forget("article-1")
	require.Equal(t, 0, cache.Len())
	require.True(t, cache.Claim("article-1"))
}
