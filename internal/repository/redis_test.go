package repository

import (
	"context"
	"testing"
	"time"

	"cabinrent/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer client.Close()

	repo := NewRedisCache(client)
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "stats:2025-07-01", []byte(`{"cabins":3}`), time.Minute))

		got, ok, err := repo.Get(ctx, "stats:2025-07-01")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.JSONEq(t, `{"cabins":3}`, string(got))
		assert.True(t, s.Exists("cabinrent:stats:2025-07-01"))
	})

	t.Run("Expiry", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "short", []byte("x"), time.Second))
		s.FastForward(2 * time.Second)

		_, ok, err := repo.Get(ctx, "short")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "a", []byte("1"), 0))
		require.NoError(t, repo.Set(ctx, "b", []byte("2"), 0))
		require.NoError(t, repo.Delete(ctx, "a", "b"))
		require.NoError(t, repo.Delete(ctx))

		_, ok, err := repo.Get(ctx, "a")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("RateLimit", func(t *testing.T) {
		key := "login:admin"
		limit := 2
		window := time.Second

		allowed, err := repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		// Third request (exceeds limit)
		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		// Wait for window to expire
		s.FastForward(window + time.Millisecond)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("JSONHelpers", func(t *testing.T) {
		type snapshot struct {
			Cabins int `json:"cabins"`
		}
		require.NoError(t, SetJSON(ctx, repo, "snap", snapshot{Cabins: 4}, time.Minute))

		var got snapshot
		ok, err := GetJSON(ctx, repo, "snap", &got)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 4, got.Cabins)

		ok, err = GetJSON(ctx, repo, "missing", &got)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("NilClient", func(t *testing.T) {
		repo := NewRedisCache(nil)
		_, _, err := repo.Get(ctx, "x")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "redis client is nil")
		assert.Error(t, Ping(ctx, nil))
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})

	t.Run("ServerDown", func(t *testing.T) {
		s.Close()
		_, _, err := repo.Get(ctx, "x")
		assert.Error(t, err)
	})
}
