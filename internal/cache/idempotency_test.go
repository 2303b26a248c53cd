package cache

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_RequestCache(t *testing.T) {
	t.Run("first add returns true, repeat returns false", func(t *testing.T) {
		c := NewRequestCache(10, time.Hour)
		id := uuid.New()

		require.True(t, c.Add(id))
		require.False(t, c.Add(id))
		require.True(t, c.Seen(id))
	})

	t.Run("expired ids can be re-added", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		c := NewRequestCacheWithClock(10, time.Minute, func() time.Time { return now })
		id := uuid.New()

		require.True(t, c.Add(id))
		require.False(t, c.Add(id))

		now = now.Add(2 * time.Minute)
		require.False(t, c.Seen(id))
		require.True(t, c.Add(id))
	})

	t.Run("capacity evicts oldest", func(t *testing.T) {
		c := NewRequestCache(2, time.Hour)
		first := uuid.New()
		second := uuid.New()
		third := uuid.New()

		require.True(t, c.Add(first))
		require.True(t, c.Add(second))
		require.True(t, c.Add(third))

		require.Equal(t, 2, c.Len())
		require.False(t, c.Seen(first))
		require.True(t, c.Seen(second))
		require.True(t, c.Seen(third))
	})
}
