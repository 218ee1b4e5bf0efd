package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("APP_TEST_STR", "  value ")
	t.Setenv("APP_TEST_BLANK", "   ")
	t.Setenv("APP_TEST_BOOL", "off")
	t.Setenv("APP_TEST_BAD_BOOL", "maybe")
	t.Setenv("APP_TEST_FLOAT", "0.25")
	t.Setenv("APP_TEST_MS", "750")

	require.Equal(t, "value", EnvOrDefault("APP_TEST_STR", "x"))
	require.Equal(t, "x", EnvOrDefault("APP_TEST_BLANK", "x"))
	require.Equal(t, "x", EnvOrDefault("APP_TEST_MISSING", "x"))
	require.False(t, EnvBool("APP_TEST_BOOL", true))
	require.True(t, EnvBool("APP_TEST_BAD_BOOL", true))
	require.Equal(t, 0.25, EnvFloat("APP_TEST_FLOAT", 1))
	require.Equal(t, 750*time.Millisecond, EnvDurationMillis("APP_TEST_MS", 10))
	require.Equal(t, 10*time.Millisecond, EnvDurationMillis("APP_TEST_MISSING", 10))
}

func TestPingWithoutConnections(t *testing.T) {
	var d *Dependencies
	require.EqualError(t, d.PingDB(context.Background(), time.Second), "db not configured")
	require.EqualError(t, d.PingRedis(context.Background(), time.Second), "redis not configured")
	d.Close()
}

func TestPingRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	d := &Dependencies{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	require.NoError(t, d.PingRedis(context.Background(), time.Second))

	mr.Close()
	require.Error(t, d.PingRedis(context.Background(), 200*time.Millisecond))
	require.Error(t, d.PingDB(context.Background(), time.Second))
}
