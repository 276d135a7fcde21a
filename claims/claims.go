package claims

import "time"

// Standard claim type names used by the engine.
const (
	TypeSubject               = "sub"
	TypeAuthenticationTime    = "auth_time"
	TypeIdentityProvider      = "idp"
	TypeAuthenticationMethod  = "amr"
	TypeScope                 = "scope"
	TypeClientID              = "client_id"
	TypeNonce                 = "nonce"
	TypeIssuedAt              = "iat"
	TypeAccessTokenHash       = "at_hash"
	TypeAuthorizationCodeHash = "c_hash"
	TypeJWTID                 = "jti"
	TypeSessionID             = "sid"
	TypeConfirmation          = "cnf"
)

// ValueTypeString is the default claim value type.
const ValueTypeString = "string"

// Claim is a single (type, value, value-type) triple. Ordering of a claim set
// is not significant.
type Claim struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	ValueType string `json:"valueType,omitempty"`
}

// New builds a string-typed claim.
func New(claimType, value string) Claim {
	return Claim{Type: claimType, Value: value, ValueType: ValueTypeString}
}

// filteredTypes are protocol-internal claim types a profile source must never
// inject; they are stripped before merging profile claims into a token.
var filteredTypes = map[string]struct{}{
	"acr":       {},
	"amr":       {},
	"at_hash":   {},
	"aud":       {},
	"auth_time": {},
	"azp":       {},
	"c_hash":    {},
	"exp":       {},
	"iat":       {},
	"idp":       {},
	"iss":       {},
	"jti":       {},
	"nbf":       {},
	"nonce":     {},
	"sub":       {},
}

// FilterProtocolClaims removes protocol-internal claim types from a claim
// sequence sourced outside the engine.
func FilterProtocolClaims(in []Claim) []Claim {
	out := make([]Claim, 0, len(in))
	for _, c := range in {
		if _, reserved := filteredTypes[c.Type]; reserved {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Subject is the authenticated end user a grant belongs to.
type Subject struct {
	ID                    string
	SessionID             string
	AuthenticationTime    time.Time
	IdentityProvider      string
	AuthenticationMethods []string
}
