package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeKey(t *testing.T) {
	t.Run("equal arguments give equal keys", func(t *testing.T) {
		a := MakeKey("stats", []any{"a@example.com", 5}, map[string]any{"limit": 10, "page": "home"})
		b := MakeKey("stats", []any{"a@example.com", 5}, map[string]any{"page": "home", "limit": 10})
		assert.Equal(t, a, b)
		assert.Len(t, a, 64)
	})

	t.Run("identity is part of the key", func(t *testing.T) {
		assert.NotEqual(t,
			MakeKey("user_stats", []any{"x"}, nil),
			MakeKey("app_stats", []any{"x"}, nil))
	})

	t.Run("argument order matters", func(t *testing.T) {
		assert.NotEqual(t,
			MakeKey("f", []any{1, 2}, nil),
			MakeKey("f", []any{2, 1}, nil))
	})

	t.Run("kwargs are distinguished from args", func(t *testing.T) {
		assert.NotEqual(t,
			MakeKey("f", []any{"limit", 10}, nil),
			MakeKey("f", nil, map[string]any{"limit": 10}))
	})

	t.Run("structs compare by value", func(t *testing.T) {
		type filter struct {
			Email string
			Limit int
		}
		assert.Equal(t,
			MakeKey("f", []any{filter{"a", 1}}, nil),
			MakeKey("f", []any{filter{"a", 1}}, nil))
		assert.NotEqual(t,
			MakeKey("f", []any{filter{"a", 1}}, nil),
			MakeKey("f", []any{filter{"a", 2}}, nil))
	})

	t.Run("unencodable values still produce a key", func(t *testing.T) {
		ch := make(chan int)
		key := MakeKey("f", []any{ch}, nil)
		assert.NotEmpty(t, key)
		assert.Equal(t, key, MakeKey("f", []any{ch}, nil))
	})
}
