package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperRemovesExpired(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	c.Set("a", 1, time.Second)
	c.Set("b", 2, NoExpiration)
	clock.Advance(time.Minute)

	s, err := NewSweeper(c, time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, c.Size())
	_, ok := c.Get("b")
	assert.True(t, ok)
}

func TestSweeperStartStop(t *testing.T) {
	s, err := NewSweeper(New(), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, s.interval)
	assert.Len(t, s.cron.Entries(), 1)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestNilSweeper(t *testing.T) {
	var s *Sweeper
	assert.Equal(t, 0, s.Sweep())
	s.Start()
	s.Stop(context.Background())
}
