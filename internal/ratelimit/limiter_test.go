package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestLimiter_PerKeyBuckets(t *testing.T) {
	l := New(rate.Every(time.Hour), 2, time.Minute)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	assert.True(t, l.Allow("b"))
	assert.Equal(t, 2, l.Len())
}

func TestLimiter_SameBucketForKey(t *testing.T) {
	l := New(rate.Inf, 1, time.Minute)
	require.Same(t, l.Bucket("x"), l.Bucket("x"))
}

func TestLimiter_IdleBucketsExpire(t *testing.T) {
	l := New(rate.Every(time.Hour), 1, 20*time.Millisecond)

	require.True(t, l.Allow("a"))
	require.False(t, l.Allow("a"))

	time.Sleep(40 * time.Millisecond)
	assert.True(t, l.Allow("a"), "expired bucket should be replaced by a fresh one")
}
