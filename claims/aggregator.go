package claims

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-grant-engine/clients"
	"github.com/jrsteele09/go-grant-engine/resources"
)

// Aggregator assembles the claim sets for identity and access tokens from
// the subject, the client and the validated resource set. Profile claims come
// from the external Provider, restricted to the claim types declared by the
// requested resources and stripped of protocol-internal types.
type Aggregator struct {
	profile Provider
}

// NewAggregator creates a claims aggregator backed by the given profile
// collaborator.
func NewAggregator(profile Provider) (*Aggregator, error) {
	if profile == nil {
		return nil, errors.New("[NewAggregator] profile provider is required")
	}
	return &Aggregator{profile: profile}, nil
}

// IdentityTokenClaims returns the claims for an identity token. When
// includeAllIdentityClaims is false only the standard subject claims are
// returned and the relying party is expected to use the userinfo endpoint.
func (a *Aggregator) IdentityTokenClaims(ctx context.Context, subject *Subject, client *clients.Client, res *resources.Resources, includeAllIdentityClaims bool) ([]Claim, error) {
	if subject == nil {
		return nil, errors.New("[IdentityTokenClaims] subject is required")
	}

	outputClaims := standardSubjectClaims(subject)

	if !includeAllIdentityClaims {
		return outputClaims, nil
	}

	requestedTypes := res.IdentityClaimTypes()
	if len(requestedTypes) == 0 {
		return outputClaims, nil
	}

	profileClaims, err := a.profile.GetProfileData(ctx, ProfileRequest{
		Subject:             subject,
		ClientID:            client.ID,
		RequestedClaimTypes: requestedTypes,
		Caller:              CallerIdentityToken,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[IdentityTokenClaims] GetProfileData")
	}

	return append(outputClaims, FilterProtocolClaims(profileClaims)...), nil
}

// AccessTokenClaims returns the claims for an access token: standard subject
// claims (when a subject is present), one scope claim per granted scope,
// client claims per policy, and profile claims restricted to the API claim
// types.
func (a *Aggregator) AccessTokenClaims(ctx context.Context, subject *Subject, client *clients.Client, res *resources.Resources) ([]Claim, error) {
	var outputClaims []Claim

	if subject != nil {
		outputClaims = append(outputClaims, standardSubjectClaims(subject)...)
	}

	for _, scope := range res.ScopeNames() {
		outputClaims = append(outputClaims, New(TypeScope, scope))
	}

	// Client claims go out for client-only grants, or always when the client
	// opts in. A configured prefix guards against collisions with user claims.
	if subject == nil || client.AlwaysSendClientClaims {
		for _, cc := range client.Claims {
			claimType := cc.Type
			if client.ClientClaimsPrefix != "" {
				claimType = client.ClientClaimsPrefix + claimType
			}
			outputClaims = append(outputClaims, New(claimType, cc.Value))
		}
	}

	if subject == nil {
		return outputClaims, nil
	}

	requestedTypes := res.APIClaimTypes()
	if len(requestedTypes) == 0 {
		return outputClaims, nil
	}

	profileClaims, err := a.profile.GetProfileData(ctx, ProfileRequest{
		Subject:             subject,
		ClientID:            client.ID,
		RequestedClaimTypes: requestedTypes,
		Caller:              CallerAccessToken,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[AccessTokenClaims] GetProfileData")
	}

	return append(outputClaims, FilterProtocolClaims(profileClaims)...), nil
}

// standardSubjectClaims returns the claims every subject-bound token carries:
// subject id, authentication time, identity-provider marker and the
// authentication-method markers.
func standardSubjectClaims(subject *Subject) []Claim {
	out := []Claim{
		New(TypeSubject, subject.ID),
	}
	if !subject.AuthenticationTime.IsZero() {
		out = append(out, Claim{
			Type:      TypeAuthenticationTime,
			Value:     strconv.FormatInt(subject.AuthenticationTime.Unix(), 10),
			ValueType: "int64",
		})
	}
	if subject.IdentityProvider != "" {
		out = append(out, New(TypeIdentityProvider, subject.IdentityProvider))
	}
	for _, amr := range subject.AuthenticationMethods {
		out = append(out, New(TypeAuthenticationMethod, amr))
	}
	return out
}
