package claims

import "context"

// Caller identities passed to the profile Provider so implementations can
// vary behavior by call site.
const (
	CallerIdentityToken           = "claims_provider_identity_token"
	CallerAccessToken             = "claims_provider_access_token"
	CallerRefreshTokenValidation  = "refresh_token_validation"
	CallerDeviceFlowAuthorization = "device_flow_authorization"
)

// ProfileRequest asks the profile collaborator for additional claims about a
// subject, restricted to the given claim types.
type ProfileRequest struct {
	Subject             *Subject
	ClientID            string
	RequestedClaimTypes []string
	Caller              string
}

// IsActiveRequest asks the profile collaborator whether a subject is still
// allowed to receive tokens.
type IsActiveRequest struct {
	Subject  *Subject
	ClientID string
	Caller   string
}

// Provider is the external profile collaborator. The engine never reads user
// data directly; all subject claims beyond the standard set come from here.
type Provider interface {
	GetProfileData(ctx context.Context, req ProfileRequest) ([]Claim, error)
	IsActive(ctx context.Context, req IsActiveRequest) (bool, error)
}
