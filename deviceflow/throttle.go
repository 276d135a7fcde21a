package deviceflow

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ThrottleCache stores the last poll time per device code. Entries carry a
// TTL matching the device code's remaining lifetime so throttle state never
// outlives the authorization it guards. Implementations may be eventually
// consistent; a missed too-fast poll is acceptable.
type ThrottleCache interface {
	Get(ctx context.Context, deviceCodeHash string) (time.Time, bool, error)
	Set(ctx context.Context, deviceCodeHash string, lastPoll time.Time, ttl time.Duration) error
}

// Throttle enforces the minimum polling interval between device-code polls.
type Throttle struct {
	cache   ThrottleCache
	nowFunc func() time.Time
}

// ThrottleOption defines a function type to modify the Throttle instance.
type ThrottleOption func(*Throttle)

// WithThrottleNowFunc sets the now time function (primarily for testing)
func WithThrottleNowFunc(now func() time.Time) ThrottleOption {
	return func(t *Throttle) {
		t.nowFunc = now
	}
}

// NewThrottle creates a polling throttle backed by the given cache.
func NewThrottle(cache ThrottleCache, options ...ThrottleOption) (*Throttle, error) {
	if cache == nil {
		return nil, errors.New("[NewThrottle] throttle cache is required")
	}

	t := &Throttle{
		cache:   cache,
		nowFunc: time.Now,
	}

	for _, opt := range options {
		opt(t)
	}

	return t, nil
}

// ShouldSlowDown records the poll and reports whether the client polled
// before the authorization's minimum interval elapsed. The first poll for a
// device code always passes.
func (t *Throttle) ShouldSlowDown(ctx context.Context, deviceCode string, authorization *Authorization) (bool, error) {
	key := HashCode(deviceCode)
	now := t.nowFunc()
	ttl := authorization.Expiration().Sub(now)

	lastPoll, found, err := t.cache.Get(ctx, key)
	if err != nil {
		return false, errors.Wrap(err, "[ShouldSlowDown] cache Get")
	}

	if err := t.cache.Set(ctx, key, now, ttl); err != nil {
		return false, errors.Wrap(err, "[ShouldSlowDown] cache Set")
	}

	if !found {
		return false, nil
	}

	return now.Before(lastPoll.Add(authorization.Interval)), nil
}
