package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestGetMissingKey(t *testing.T) {
	c := New()

	value, ok := c.Get("never-set")

	assert.False(t, ok)
	assert.Nil(t, value)
	assert.Equal(t, uint64(1), c.Stats().Misses)
}

func TestSetAndGet(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))

	c.Set("k", "v", time.Minute)

	value, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", value)

	clock.Advance(59 * time.Second)
	_, ok = c.Get("k")
	assert.True(t, ok, "entry should be visible before expiry")

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry should be absent once now reaches expires_at")
	assert.Equal(t, 0, c.Size(), "expired entry should be removed lazily by Get")
}

func TestZeroTTLIsImmediatelyExpired(t *testing.T) {
	c := New(WithClock(newFakeClock().Now))

	c.Set("k", 42, 0)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestNoExpirationSurvivesLongDelay(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))

	c.Set("k", "forever", NoExpiration)
	clock.Advance(100 * 365 * 24 * time.Hour)

	value, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "forever", value)
	assert.Zero(t, c.SweepExpired())
}

func TestSetOverwrites(t *testing.T) {
	c := New()

	c.Set("k", 1, time.Minute)
	c.Set("k", 2, time.Minute)

	value, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, value)
	assert.Equal(t, 1, c.Size())
}

func TestInvalidateAndClear(t *testing.T) {
	c := New()
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	c.Invalidate("a")
	c.Invalidate("missing")

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestSizeCountsExpiredUntilSwept(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))

	c.Set("short-1", 1, time.Second)
	c.Set("short-2", 2, time.Second)
	c.Set("long", 3, time.Hour)
	clock.Advance(2 * time.Second)

	assert.Equal(t, 3, c.Size())
	assert.Equal(t, 2, c.SweepExpired())
	assert.Equal(t, 1, c.Size())
	assert.Equal(t, 0, c.SweepExpired())
}

func TestConcurrentAccess(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("key-%d", j%10)
				c.Set(key, worker, time.Millisecond*time.Duration(j%3))
				c.Get(key)
				if j%50 == 0 {
					c.Invalidate(key)
					c.SweepExpired()
				}
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Size(), 10)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")
	clock := newFakeClock()
	c := New(WithClock(clock.Now), WithMetrics(m))

	c.Set("k", 1, time.Second)
	c.Get("k")
	c.Get("missing")
	clock.Advance(time.Second)
	c.Get("k")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.hits))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.misses))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.evictions.WithLabelValues(reasonExpired)))

	stats := c.Stats()
	assert.Equal(t, Stats{Size: 0, Hits: 1, Misses: 2, Evictions: 1}, stats)
}
