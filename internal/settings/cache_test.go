package settings

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lottoloop/chain-custody/internal/domain"
	"github.com/lottoloop/chain-custody/internal/repository"
)

type fakeSource struct {
	mu     sync.Mutex
	values map[string]string
	calls  int
	err    error
}

func (f *fakeSource) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	val, ok := f.values[key]
	if !ok {
		return "", repository.ErrSettingNotFound
	}
	return val, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestGetCachesWithinTTL(t *testing.T) {
	source := &fakeSource{values: map[string]string{"k": "v"}}
	clock := newFakeClock()
	cache := NewCache(source, nil, 30*time.Second, clock.now)

	for i := 0; i < 5; i++ {
		val, err := cache.Get(context.Background(), "k")
		require.NoError(t, err)
		assert.Equal(t, "v", val)
	}
	assert.Equal(t, 1, source.callCount(), "repeated reads inside the TTL hit the local tier")
}

func TestGetRefetchesAfterTTLExpiry(t *testing.T) {
	source := &fakeSource{values: map[string]string{"k": "v1"}}
	clock := newFakeClock()
	cache := NewCache(source, nil, 30*time.Second, clock.now)

	val, err := cache.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", val)

	source.mu.Lock()
	source.values["k"] = "v2"
	source.mu.Unlock()
	clock.advance(31 * time.Second)

	val, err = cache.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", val, "an expired entry is re-read from the source")
	assert.Equal(t, 2, source.callCount())
}

func TestGetMissingKeyNotCached(t *testing.T) {
	source := &fakeSource{values: map[string]string{}}
	cache := NewCache(source, nil, 30*time.Second, newFakeClock().now)

	_, err := cache.Get(context.Background(), "absent")
	require.ErrorIs(t, err, repository.ErrSettingNotFound)

	_, err = cache.Get(context.Background(), "absent")
	require.ErrorIs(t, err, repository.ErrSettingNotFound)
	assert.Equal(t, 2, source.callCount(), "misses are not negatively cached")
}

func TestMinGasWeiUsesOverride(t *testing.T) {
	source := &fakeSource{values: map[string]string{domain.SettingMinGasWei: "42000000000"}}
	cache := NewCache(source, nil, 30*time.Second, newFakeClock().now)

	got := cache.MinGasWei(context.Background(), big.NewInt(1))
	assert.Equal(t, 0, got.Cmp(big.NewInt(42_000_000_000)))
}

func TestMinGasWeiFallsBackOnMissingKey(t *testing.T) {
	source := &fakeSource{values: map[string]string{}}
	cache := NewCache(source, nil, 30*time.Second, newFakeClock().now)

	fallback := big.NewInt(300_000_000_000_000)
	assert.Equal(t, fallback, cache.MinGasWei(context.Background(), fallback))
}

func TestMinGasWeiFallsBackOnMalformedValue(t *testing.T) {
	source := &fakeSource{values: map[string]string{domain.SettingMinGasWei: "not-a-number"}}
	cache := NewCache(source, nil, 30*time.Second, newFakeClock().now)

	fallback := big.NewInt(7)
	assert.Equal(t, fallback, cache.MinGasWei(context.Background(), fallback))
}

func TestMinGasWeiFallsBackOnSourceError(t *testing.T) {
	source := &fakeSource{err: errors.New("connection refused")}
	cache := NewCache(source, nil, 30*time.Second, newFakeClock().now)

	fallback := big.NewInt(9)
	assert.Equal(t, fallback, cache.MinGasWei(context.Background(), fallback))
}
