package grants

import "time"

// Kind discriminates the stored grant representations that feed the
// consolidated view.
type Kind string

const (
	KindAuthorizationCode Kind = "authorization_code"
	KindRefreshToken      Kind = "refresh_token"
	KindReferenceToken    Kind = "reference_token"
	KindConsent           Kind = "user_consent"
)

// Grant is the read-only per-subject/per-client projection merged from all
// stored grant kinds. It is computed on read and never persisted.
type Grant struct {
	ClientID     string     `json:"clientId"`
	SubjectID    string     `json:"subjectId"`
	Description  string     `json:"description,omitempty"`
	Scopes       []string   `json:"scopes"`
	CreationTime time.Time  `json:"creationTime"`
	Expiration   *time.Time `json:"expiration,omitempty"` // nil = unbounded
}
