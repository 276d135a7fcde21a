package deviceflow

import (
	"context"
	"time"
)

// Authorization is the pairing record behind a device/user code pair. The
// codes themselves are never stored; the store is keyed by their hashes.
type Authorization struct {
	ClientID        string   `json:"clientId"`
	RequestedScopes []string `json:"requestedScopes"`

	CreationTime time.Time     `json:"creationTime"`
	Lifetime     time.Duration `json:"lifetime"`
	Interval     time.Duration `json:"interval"` // minimum polling interval

	// Resolution state, written exactly once by user-code resolution.
	IsAuthorized     bool     `json:"isAuthorized"`
	IsDenied         bool     `json:"isDenied"`
	SubjectID        string   `json:"subjectId,omitempty"`
	SessionID        string   `json:"sessionId,omitempty"`
	AuthorizedScopes []string `json:"authorizedScopes,omitempty"`
	Description      string   `json:"description,omitempty"`
}

// Resolved reports whether the user has already acted on the user code.
func (a *Authorization) Resolved() bool {
	return a.IsAuthorized || a.IsDenied
}

// Expiration returns the instant the code pair stops being valid.
func (a *Authorization) Expiration() time.Time {
	return a.CreationTime.Add(a.Lifetime)
}

// Expired reports whether the code pair is past its lifetime.
func (a *Authorization) Expired(now time.Time) bool {
	return now.After(a.Expiration())
}

// Repo manages device authorizations keyed by hashed device code with a
// secondary lookup by hashed user code. Update must be a read-modify-write
// so a user code can only be resolved once.
type Repo interface {
	Store(ctx context.Context, deviceCodeHash, userCodeHash string, a *Authorization) error
	GetByDeviceCode(ctx context.Context, deviceCodeHash string) (*Authorization, error)
	GetByUserCode(ctx context.Context, userCodeHash string) (*Authorization, error)
	UpdateByUserCode(ctx context.Context, userCodeHash string, a *Authorization) error
	Remove(ctx context.Context, deviceCodeHash string) error
}
