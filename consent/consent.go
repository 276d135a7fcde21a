package consent

import (
	"context"
	"time"
)

// Consent is a subject's remembered authorization of a client for a scope
// set. Exactly one record exists per (subject, client) pair.
type Consent struct {
	SubjectID    string     `json:"subjectId"`
	ClientID     string     `json:"clientId"`
	Scopes       []string   `json:"scopes"`
	CreationTime time.Time  `json:"creationTime"`
	Expiration   *time.Time `json:"expiration,omitempty"` // nil = never expires
}

// Expired reports whether the remembered consent has lapsed.
func (c *Consent) Expired(now time.Time) bool {
	return c.Expiration != nil && now.After(*c.Expiration)
}

// Repo manages remembered consent decisions keyed by (subject, client).
type Repo interface {
	Store(ctx context.Context, c *Consent) error
	Get(ctx context.Context, subjectID, clientID string) (*Consent, error)
	Remove(ctx context.Context, subjectID, clientID string) error
	GetAll(ctx context.Context, subjectID string) ([]*Consent, error)
}
