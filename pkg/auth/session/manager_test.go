package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/uninote/uninote-backend/pkg/config"
	"github.com/uninote/uninote-backend/pkg/redis"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.Wrap(redislib.NewClient(&redislib.Options{Addr: mr.Addr()}))
	manager, err := NewManager(client, config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60})
	require.NoError(t, err)
	return manager, mr, client
}

func TestStartAndRotate(t *testing.T) {
	ctx := context.Background()
	manager, mr, client := newTestManager(t)

	token, err := manager.Start(ctx, "access-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	stored, err := mr.Get(client.AccessSessionKey("access-1"))
	require.NoError(t, err)
	require.NotEqual(t, token, stored, "raw refresh token must not be stored")
	require.Equal(t, time.Hour, mr.TTL(client.AccessSessionKey("access-1")))

	_, _, err = manager.Rotate(ctx, "access-1", "wrong")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	newID, newToken, err := manager.Rotate(ctx, "access-1", token)
	require.NoError(t, err)
	require.NotEqual(t, "access-1", newID)
	require.NotEqual(t, token, newToken)

	ok, err := manager.HasSession(ctx, "access-1")
	require.NoError(t, err)
	require.False(t, ok, "old session should be gone")

	ok, err = manager.HasSession(ctx, newID)
	require.NoError(t, err)
	require.True(t, ok)

	_, _, err = manager.Rotate(ctx, "access-1", token)
	require.ErrorIs(t, err, ErrInvalidRefreshToken, "refresh tokens are single use")
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	manager, _, _ := newTestManager(t)

	_, err := manager.Start(ctx, "access-2")
	require.NoError(t, err)
	require.NoError(t, manager.Revoke(ctx, "access-2"))

	ok, err := manager.HasSession(ctx, "access-2")
	require.NoError(t, err)
	require.False(t, ok)
	require.Error(t, manager.Revoke(ctx, " "))
}

func TestNewManagerValidatesTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.Wrap(redislib.NewClient(&redislib.Options{Addr: mr.Addr()}))

	_, err := NewManager(client, config.JWTConfig{ExpirationMinutes: 15})
	require.Error(t, err)

	_, err = NewManager(client, config.JWTConfig{ExpirationMinutes: 60, RefreshTokenTTLMinutes: 30})
	require.Error(t, err)
}
