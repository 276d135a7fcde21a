package authcode

import (
	"context"
	"time"
)

// AuthorizationCode is the server-side record behind an authorization code
// handle, redeemable exactly once at the token endpoint.
type AuthorizationCode struct {
	ClientID  string   `json:"clientId"`
	SubjectID string   `json:"subjectId"`
	SessionID string   `json:"sessionId,omitempty"`
	Scopes    []string `json:"scopes"`
	Nonce     string   `json:"nonce,omitempty"`

	RedirectURI         string `json:"redirectUri"`
	CodeChallenge       string `json:"codeChallenge,omitempty"`
	CodeChallengeMethod string `json:"codeChallengeMethod,omitempty"`

	CreationTime time.Time     `json:"creationTime"`
	Lifetime     time.Duration `json:"lifetime"`
}

// Expiration returns the instant the code stops being redeemable.
func (c *AuthorizationCode) Expiration() time.Time {
	return c.CreationTime.Add(c.Lifetime)
}

// Expired reports whether the code is past its lifetime at the given time.
func (c *AuthorizationCode) Expired(now time.Time) bool {
	return now.After(c.Expiration())
}

// Repo manages server-side storage of authorization codes keyed by opaque
// handle. Store generates the handle.
type Repo interface {
	Store(ctx context.Context, code *AuthorizationCode) (string, error)
	Get(ctx context.Context, handle string) (*AuthorizationCode, error)
	Remove(ctx context.Context, handle string) error
	GetAll(ctx context.Context, subjectID string) ([]*AuthorizationCode, error)
	RemoveAll(ctx context.Context, subjectID, clientID, sessionID string) error
}
