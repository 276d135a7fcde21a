package refresh

import "time"

// ConsumedPolicy decides whether an already-consumed refresh token may still
// be redeemed. The default is to never accept one; deployments that want a
// bounded grace window (for lossy clients that never saw the rotated handle)
// must opt in explicitly.
type ConsumedPolicy interface {
	AcceptConsumed(rt *StoredRefreshToken, now time.Time) bool
}

// RejectConsumed is the default policy: a consumed handle is always invalid.
type RejectConsumed struct{}

func (RejectConsumed) AcceptConsumed(*StoredRefreshToken, time.Time) bool {
	return false
}

// GraceWindow accepts a consumed handle for a bounded window after its
// consumption time.
type GraceWindow struct {
	Window time.Duration
}

func (p GraceWindow) AcceptConsumed(rt *StoredRefreshToken, now time.Time) bool {
	if rt.ConsumedTime == nil {
		return true
	}
	return now.Sub(*rt.ConsumedTime) <= p.Window
}
