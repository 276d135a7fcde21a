package token

import (
	"time"

	"github.com/jrsteele09/go-grant-engine/claims"
	"github.com/jrsteele09/go-grant-engine/clients"
	"github.com/jrsteele09/go-grant-engine/resources"
)

// Token types issued by the engine.
const (
	TypeIdentity = "id_token"
	TypeAccess   = "access_token"
)

// Token is an issued artifact before materialization. It is immutable once
// handed to CreateSecurityToken: JWTs are never stored server-side, reference
// tokens persist until expiry or revocation.
type Token struct {
	Type         string         `json:"type"`
	SubjectID    string         `json:"subjectId,omitempty"` // empty for client-only grants
	SessionID    string         `json:"sessionId,omitempty"`
	ClientID     string         `json:"clientId"`
	Issuer       string         `json:"issuer"`
	CreationTime time.Time      `json:"creationTime"`
	Lifetime     time.Duration  `json:"lifetime"`
	Claims       []claims.Claim `json:"claims"`
	Audiences    []string       `json:"audiences"`
	Confirmation string         `json:"confirmation,omitempty"` // cnf member for proof-of-possession

	AccessTokenType          clients.AccessTokenType `json:"accessTokenType,omitempty"`
	AllowedSigningAlgorithms []string                `json:"allowedSigningAlgorithms,omitempty"`
}

// Expiration returns the instant the token stops being valid.
func (t *Token) Expiration() time.Time {
	return t.CreationTime.Add(t.Lifetime)
}

// Expired reports whether the token is past its lifetime at the given time.
func (t *Token) Expired(now time.Time) bool {
	return now.After(t.Expiration())
}

// Scopes returns the scope claims carried by the token.
func (t *Token) Scopes() []string {
	var scopes []string
	for _, c := range t.Claims {
		if c.Type == claims.TypeScope {
			scopes = append(scopes, c.Value)
		}
	}
	return scopes
}

// CreationRequest is the validated request context a token is built from.
// Client and Resources are required; Subject is nil for client-only grants.
type CreationRequest struct {
	Subject   *claims.Subject
	Client    *clients.Client
	Resources *resources.Resources

	// Identity token inputs
	Nonce                    string
	IncludeAllIdentityClaims bool
	AccessTokenToHash        string // paired access token, hashed into at_hash
	AuthorizationCodeToHash  string // paired authorization code, hashed into c_hash

	// Access token inputs
	Confirmation string
}
