package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShutdownRunsHooksInReverse(t *testing.T) {
	m := New(time.Second, nil)
	var order []string
	for _, name := range []string{"postgres", "cache", "http_server"} {
		name := name
		m.Register(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	assert.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"http_server", "cache", "postgres"}, order)

	assert.NoError(t, m.Shutdown(context.Background()))
	assert.Len(t, order, 3, "hooks run once")
}

func TestShutdownJoinsErrors(t *testing.T) {
	m := New(time.Second, nil)
	boom := errors.New("boom")
	ran := false
	m.Register("first", func(context.Context) error {
		ran = true
		return nil
	})
	m.Register("second", func(context.Context) error { return boom })

	err := m.Shutdown(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.True(t, ran, "a failing hook does not stop the others")
}
