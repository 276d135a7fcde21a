package deviceflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-grant-engine/deviceflow"
	devicerepofake "github.com/jrsteele09/go-grant-engine/deviceflow/repofake"
)

func pollingAuthorization(now time.Time) *deviceflow.Authorization {
	return &deviceflow.Authorization{
		ClientID:     "device-client",
		CreationTime: now,
		Lifetime:     5 * time.Minute,
		Interval:     5 * time.Second,
	}
}

func newThrottleFixture(t *testing.T, now *time.Time) *deviceflow.Throttle {
	t.Helper()
	nowFunc := func() time.Time { return *now }
	throttle, err := deviceflow.NewThrottle(
		devicerepofake.NewFakeThrottleCache(nowFunc),
		deviceflow.WithThrottleNowFunc(nowFunc),
	)
	require.NoError(t, err)
	return throttle
}

func TestShouldSlowDown(t *testing.T) {
	ctx := context.Background()

	t.Run("first poll always passes", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		throttle := newThrottleFixture(t, &now)

		slow, err := throttle.ShouldSlowDown(ctx, "device-code", pollingAuthorization(now))
		require.NoError(t, err)
		require.False(t, slow)
	})

	t.Run("a poll inside the interval slows down", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		throttle := newThrottleFixture(t, &now)
		authorization := pollingAuthorization(now)

		_, err := throttle.ShouldSlowDown(ctx, "device-code", authorization)
		require.NoError(t, err)

		now = now.Add(2 * time.Second)
		slow, err := throttle.ShouldSlowDown(ctx, "device-code", authorization)
		require.NoError(t, err)
		require.True(t, slow)
	})

	t.Run("a poll after the interval passes", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		throttle := newThrottleFixture(t, &now)
		authorization := pollingAuthorization(now)

		_, err := throttle.ShouldSlowDown(ctx, "device-code", authorization)
		require.NoError(t, err)

		now = now.Add(6 * time.Second)
		slow, err := throttle.ShouldSlowDown(ctx, "device-code", authorization)
		require.NoError(t, err)
		require.False(t, slow)
	})

	t.Run("a too-fast poll still resets the window", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		throttle := newThrottleFixture(t, &now)
		authorization := pollingAuthorization(now)

		_, err := throttle.ShouldSlowDown(ctx, "device-code", authorization)
		require.NoError(t, err)

		now = now.Add(4 * time.Second)
		slow, err := throttle.ShouldSlowDown(ctx, "device-code", authorization)
		require.NoError(t, err)
		require.True(t, slow)

		// 4s after the rejected poll is still within 5s of it.
		now = now.Add(4 * time.Second)
		slow, err = throttle.ShouldSlowDown(ctx, "device-code", authorization)
		require.NoError(t, err)
		require.True(t, slow)
	})

	t.Run("throttle state expires with the device code", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		throttle := newThrottleFixture(t, &now)
		authorization := pollingAuthorization(now)

		_, err := throttle.ShouldSlowDown(ctx, "device-code", authorization)
		require.NoError(t, err)

		// Past the authorization lifetime the cache entry is gone, so the
		// poll reads as a first poll.
		now = now.Add(6 * time.Minute)
		slow, err := throttle.ShouldSlowDown(ctx, "device-code", authorization)
		require.NoError(t, err)
		require.False(t, slow)
	})

	t.Run("device codes are throttled independently", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		throttle := newThrottleFixture(t, &now)
		authorization := pollingAuthorization(now)

		_, err := throttle.ShouldSlowDown(ctx, "device-code-a", authorization)
		require.NoError(t, err)

		now = now.Add(time.Second)
		slow, err := throttle.ShouldSlowDown(ctx, "device-code-b", authorization)
		require.NoError(t, err)
		require.False(t, slow)
	})
}
