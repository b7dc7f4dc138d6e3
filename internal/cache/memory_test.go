package cache

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geohealth/envfuse/internal/domain"
)

// countingStore tracks how often the backing store is consulted.
type countingStore struct {
	entries map[string]*domain.HarmonizedResult
	gets    int
	puts    int
}

func newCountingStore() *countingStore {
	return &countingStore{entries: map[string]*domain.HarmonizedResult{}}
}

func (s *countingStore) Get(key Key) (*domain.HarmonizedResult, error) {
	s.gets++
	return s.entries[key.String()], nil
}

func (s *countingStore) Put(key Key, result *domain.HarmonizedResult) error {
	s.puts++
	s.entries[key.String()] = result
	return nil
}

func keyFor(east float64, end time.Time) Key {
	return NewKey(
		domain.Bounds{West: 0, South: 0, East: east, North: 5},
		end.AddDate(0, 0, -90), end,
		domain.Resolution1km,
	)
}

func TestCachedServesRepeatsFromMemory(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	inner := newCountingStore()
	cached := NewCached(inner, 4, clock)

	key := keyFor(5, now)
	require.NoError(t, cached.Put(key, sampleResult(now)))
	assert.Equal(t, 1, inner.puts)

	for i := 0; i < 3; i++ {
		got, err := cached.Get(key)
		require.NoError(t, err)
		require.NotNil(t, got)
	}
	assert.Equal(t, 0, inner.gets, "memory hits must not touch the backing store")
}

func TestCachedReadsThroughOnMemoryMiss(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	inner := newCountingStore()
	cached := NewCached(inner, 4, clock)

	// Entry exists only in the backing store, as after a restart.
	key := keyFor(5, now)
	require.NoError(t, inner.Put(key, sampleResult(now)))

	got, err := cached.Get(key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, inner.gets)

	_, err = cached.Get(key)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.gets, "second read should be served from memory")
}

func TestCachedMissPassesThrough(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	inner := newCountingStore()
	cached := NewCached(inner, 4, clock)

	got, err := cached.Get(keyFor(5, clock.Now()))
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, inner.gets)
}

func TestCachedEvictsLeastRecentlyUsed(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	inner := newCountingStore()
	cached := NewCached(inner, 2, clock)

	first := keyFor(1, now)
	second := keyFor(2, now)
	third := keyFor(3, now)
	require.NoError(t, cached.Put(first, sampleResult(now)))
	require.NoError(t, cached.Put(second, sampleResult(now)))

	// Touch first so second becomes the eviction candidate.
	_, err := cached.Get(first)
	require.NoError(t, err)
	require.NoError(t, cached.Put(third, sampleResult(now)))

	assert.Equal(t, 0, inner.gets)
	_, err = cached.Get(first)
	require.NoError(t, err)
	_, err = cached.Get(third)
	require.NoError(t, err)
	assert.Equal(t, 0, inner.gets, "first and third should still be resident")

	_, err = cached.Get(second)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.gets, "evicted entry falls back to the store")
}

func TestCachedMemoryEntriesObeyFreshness(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	inner := newCountingStore()
	cached := NewCached(inner, 4, clock)

	key := keyFor(5, now)
	require.NoError(t, cached.Put(key, sampleResult(now)))

	clock.Advance(6 * time.Hour)
	_, err := cached.Get(key)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.gets, "stale memory entry must re-consult the backing store")
}
