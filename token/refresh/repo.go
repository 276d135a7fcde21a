package refresh

import (
	"context"
	"time"

	"github.com/jrsteele09/go-grant-engine/token"
)

// StoredRefreshToken is the server-side record behind a refresh token handle.
// The client only ever sees the handle; everything here is metadata used for
// validation and rotation.
type StoredRefreshToken struct {
	CreationTime time.Time     `json:"creationTime"`
	Lifetime     time.Duration `json:"lifetime"`
	ConsumedTime *time.Time    `json:"consumedTime,omitempty"` // set once the handle is rotation-replaced

	ClientID    string       `json:"clientId"`
	SubjectID   string       `json:"subjectId"`
	SessionID   string       `json:"sessionId,omitempty"`
	Scopes      []string     `json:"scopes"`
	AccessToken *token.Token `json:"accessToken"` // snapshot of the linked access token
	Description string       `json:"description,omitempty"`
}

// Expiration returns the instant the refresh token stops being valid.
func (rt *StoredRefreshToken) Expiration() time.Time {
	return rt.CreationTime.Add(rt.Lifetime)
}

// Expired reports whether the token is past its lifetime at the given time.
func (rt *StoredRefreshToken) Expired(now time.Time) bool {
	return now.After(rt.Expiration())
}

// Consumed reports whether the handle has been rotation-replaced.
func (rt *StoredRefreshToken) Consumed() bool {
	return rt.ConsumedTime != nil
}

// Repo manages server-side storage of refresh tokens keyed by opaque handle.
// Store generates a fresh handle; Update must be a read-modify-write against
// the given handle so two concurrent rotations cannot both succeed.
type Repo interface {
	Store(ctx context.Context, rt *StoredRefreshToken) (string, error)
	Update(ctx context.Context, handle string, rt *StoredRefreshToken) error
	Get(ctx context.Context, handle string) (*StoredRefreshToken, error)
	Remove(ctx context.Context, handle string) error
	GetAll(ctx context.Context, subjectID string) ([]*StoredRefreshToken, error)
	RemoveAll(ctx context.Context, subjectID, clientID, sessionID string) error
}
