package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (RefreshCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	c, err := NewRedisCache("redis://"+mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c, mr
}

func TestNewRedisCache_BadURL(t *testing.T) {
	t.Parallel()

	_, err := NewRedisCache("not-a-url", "")
	require.Error(t, err)
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	t.Parallel()

	// Порт без слушателя: ping на старте должен провалиться.
	_, err := NewRedisCache("redis://127.0.0.1:1", "")
	require.Error(t, err)
}

func TestCache_SetGetRoundTrip(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)
	ctx := context.Background()

	jti := uuid.New()
	entry := &RefreshEntry{
		UserID:    uuid.New(),
		Revoked:   false,
		ExpiresAt: time.Now().UTC().Add(time.Hour).Truncate(time.Second),
	}

	require.NoError(t, c.Set(ctx, jti, entry, time.Hour))

	got, ok, err := c.Get(ctx, jti)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entry.UserID, got.UserID)
	require.False(t, got.Revoked)
	require.Equal(t, entry.ExpiresAt.Unix(), got.ExpiresAt.Unix())
}

func TestCache_GetMiss(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)

	got, ok, err := c.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, got)
}

func TestCache_MarkRevoked(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)
	ctx := context.Background()

	jti := uuid.New()
	require.NoError(t, c.Set(ctx, jti, &RefreshEntry{
		UserID:    uuid.New(),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}, time.Hour))

	require.NoError(t, c.MarkRevoked(ctx, jti))

	got, ok, err := c.Get(ctx, jti)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Revoked)
}

func TestCache_TTLExpiry(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	ctx := context.Background()

	jti := uuid.New()
	require.NoError(t, c.Set(ctx, jti, &RefreshEntry{
		UserID:    uuid.New(),
		ExpiresAt: time.Now().UTC().Add(time.Minute),
	}, time.Minute))

	// miniredis: время двигается вручную.
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, jti)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCache_KeyPrefixIsolation(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	first, err := NewRedisCache("redis://"+mr.Addr(), "svc-a:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close() })

	second, err := NewRedisCache("redis://"+mr.Addr(), "svc-b:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	ctx := context.Background()
	jti := uuid.New()

	require.NoError(t, first.Set(ctx, jti, &RefreshEntry{
		UserID:    uuid.New(),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}, time.Hour))

	_, ok, err := second.Get(ctx, jti)
	require.NoError(t, err)
	require.False(t, ok)
}
