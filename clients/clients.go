package clients

import "time"

// AccessTokenType controls how an access token is materialized.
type AccessTokenType string

const (
	AccessTokenTypeJWT       AccessTokenType = "jwt"       // Self-contained signed JWT
	AccessTokenTypeReference AccessTokenType = "reference" // Opaque handle backed by server-side storage
)

// RefreshTokenUsage controls refresh-token handle rotation.
type RefreshTokenUsage string

const (
	RefreshTokenUsageReUse       RefreshTokenUsage = "reuse"
	RefreshTokenUsageOneTimeOnly RefreshTokenUsage = "one_time_only"
)

// RefreshTokenExpiration controls refresh-token lifetime recomputation.
type RefreshTokenExpiration string

const (
	RefreshTokenExpirationSliding  RefreshTokenExpiration = "sliding"
	RefreshTokenExpirationAbsolute RefreshTokenExpiration = "absolute"
)

// Claim is a custom claim configured on a client, emitted into access tokens
// for client-credential grants (or always, when AlwaysSendClientClaims is set).
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Client holds the policy fields the lifecycle engine reads. Secrets,
// redirect URIs and the rest of the registration surface are validated
// upstream and deliberately absent here.
type Client struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	AllowedScopes []string `json:"allowedScopes"`

	// Token policy
	AccessTokenType       AccessTokenType `json:"accessTokenType"`
	AccessTokenLifetime   time.Duration   `json:"accessTokenLifetime"`
	IdentityTokenLifetime time.Duration   `json:"identityTokenLifetime"`

	// Refresh token policy
	AllowOfflineAccess           bool                   `json:"allowOfflineAccess"`
	RefreshTokenUsage            RefreshTokenUsage      `json:"refreshTokenUsage"`
	RefreshTokenExpiration       RefreshTokenExpiration `json:"refreshTokenExpiration"`
	SlidingRefreshTokenLifetime  time.Duration          `json:"slidingRefreshTokenLifetime"`
	AbsoluteRefreshTokenLifetime time.Duration          `json:"absoluteRefreshTokenLifetime"` // 0 = no absolute cap

	// Consent policy
	RequireConsent       bool          `json:"requireConsent"`
	AllowRememberConsent bool          `json:"allowRememberConsent"`
	ConsentLifetime      time.Duration `json:"consentLifetime"` // 0 = remembered consent never expires

	// Claims policy
	AlwaysSendClientClaims bool    `json:"alwaysSendClientClaims"`
	ClientClaimsPrefix     string  `json:"clientClaimsPrefix"`
	Claims                 []Claim `json:"claims"`

	// Device flow policy
	DeviceCodeLifetime time.Duration `json:"deviceCodeLifetime"`
	PollingInterval    time.Duration `json:"pollingInterval"`
}

// HasScope checks if the client has permission for a specific scope
func (c *Client) HasScope(scope string) bool {
	for _, s := range c.AllowedScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ValidateScopes checks if all requested scopes are allowed for this client
func (c *Client) ValidateScopes(requestedScopes []string) error {
	for _, scope := range requestedScopes {
		if !c.HasScope(scope) {
			return ErrInvalidScope
		}
	}
	return nil
}
