package lock

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRedisLockerIntegration(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("PEAKPARTNER_TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("PEAKPARTNER_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	prefix := "peakpartner_test:" + uuid.NewString() + ":"
	l := NewRedisLocker(client, prefix, time.Second)

	release, err := l.Acquire(context.Background(), "slot-1", "slot-2")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "slot-2")
	require.ErrorIs(t, err, ErrTimeout)

	release()

	again, err := l.Acquire(context.Background(), "slot-2")
	require.NoError(t, err)
	again()

	n, err := client.Exists(context.Background(), prefix+"slot-1", prefix+"slot-2").Result()
	require.NoError(t, err)
	require.Zero(t, n)
}
