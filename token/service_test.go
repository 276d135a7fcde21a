package token_test

import (
	"context"
	"crypto"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-grant-engine/claims"
	"github.com/jrsteele09/go-grant-engine/clients"
	interrors "github.com/jrsteele09/go-grant-engine/internal/errors"
	"github.com/jrsteele09/go-grant-engine/resources"
	"github.com/jrsteele09/go-grant-engine/token"
	tokenrepofake "github.com/jrsteele09/go-grant-engine/token/repofake"
)

const testIssuer = "https://auth.example.com"

type fakeProfile struct{}

func (fakeProfile) GetProfileData(context.Context, claims.ProfileRequest) ([]claims.Claim, error) {
	return nil, nil
}

func (fakeProfile) IsActive(context.Context, claims.IsActiveRequest) (bool, error) {
	return true, nil
}

type serviceFixture struct {
	service *token.Service
	signer  *token.KeyPairSigner
	keyPair *token.KeyPair
	repo    *tokenrepofake.FakeReferenceRepo
}

func newServiceFixture(t *testing.T, options ...token.ServiceOption) *serviceFixture {
	t.Helper()

	keyPair, err := token.GenerateRSAKeyPair("test-key", 2048)
	require.NoError(t, err)
	signer := token.NewKeyPairSigner(keyPair)

	aggregator, err := claims.NewAggregator(fakeProfile{})
	require.NoError(t, err)

	repo := tokenrepofake.NewFakeReferenceRepo()
	service, err := token.NewService(aggregator, signer, repo, testIssuer, options...)
	require.NoError(t, err)

	return &serviceFixture{service: service, signer: signer, keyPair: keyPair, repo: repo}
}

func identityRequest() token.CreationRequest {
	return token.CreationRequest{
		Subject: &claims.Subject{ID: "subject-1", SessionID: "session-1", AuthenticationTime: time.Now()},
		Client:  &clients.Client{ID: "client-1"},
		Resources: &resources.Resources{
			Identity: []resources.IdentityResource{{Name: "openid", ClaimTypes: []string{"sub"}}},
		},
	}
}

func accessRequest(tokenType clients.AccessTokenType) token.CreationRequest {
	return token.CreationRequest{
		Subject: &claims.Subject{ID: "subject-1", SessionID: "session-1", AuthenticationTime: time.Now()},
		Client:  &clients.Client{ID: "client-1", AccessTokenType: tokenType},
		Resources: &resources.Resources{
			Identity:     []resources.IdentityResource{{Name: "openid"}},
			APIScopes:    []resources.APIScope{{Name: "api.read"}},
			APIResources: []resources.APIResource{{Name: "orders-api", Scopes: []string{"api.read"}}},
		},
	}
}

func claimByType(t *testing.T, cs []claims.Claim, claimType string) claims.Claim {
	t.Helper()
	for _, c := range cs {
		if c.Type == claimType {
			return c
		}
	}
	t.Fatalf("claim %q not found", claimType)
	return claims.Claim{}
}

func TestCreateIdentityToken(t *testing.T) {
	t.Run("echoes the nonce and hashes the paired artifacts", func(t *testing.T) {
		f := newServiceFixture(t)

		req := identityRequest()
		req.Nonce = "nonce-value"
		req.AccessTokenToHash = "the-access-token"
		req.AuthorizationCodeToHash = "the-auth-code"

		identityToken, err := f.service.CreateIdentityToken(context.Background(), req)
		require.NoError(t, err)

		require.Equal(t, "nonce-value", claimByType(t, identityToken.Claims, claims.TypeNonce).Value)
		require.Equal(t, "session-1", claimByType(t, identityToken.Claims, claims.TypeSessionID).Value)

		wantAtHash, err := token.HashedClaimValue("RS256", "the-access-token")
		require.NoError(t, err)
		require.Equal(t, wantAtHash, claimByType(t, identityToken.Claims, claims.TypeAccessTokenHash).Value)

		wantCHash, err := token.HashedClaimValue("RS256", "the-auth-code")
		require.NoError(t, err)
		require.Equal(t, wantCHash, claimByType(t, identityToken.Claims, claims.TypeAuthorizationCodeHash).Value)
	})

	t.Run("audience is the requesting client", func(t *testing.T) {
		f := newServiceFixture(t)

		identityToken, err := f.service.CreateIdentityToken(context.Background(), identityRequest())
		require.NoError(t, err)
		require.Equal(t, []string{"client-1"}, identityToken.Audiences)
	})

	t.Run("client lifetime overrides the default", func(t *testing.T) {
		f := newServiceFixture(t, token.WithDefaultLifetimes(5*time.Minute, time.Hour))

		req := identityRequest()
		req.Client.IdentityTokenLifetime = 2 * time.Minute

		identityToken, err := f.service.CreateIdentityToken(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, 2*time.Minute, identityToken.Lifetime)

		identityToken, err = f.service.CreateIdentityToken(context.Background(), identityRequest())
		require.NoError(t, err)
		require.Equal(t, 5*time.Minute, identityToken.Lifetime)
	})

	t.Run("requires a subject", func(t *testing.T) {
		f := newServiceFixture(t)

		req := identityRequest()
		req.Subject = nil
		_, err := f.service.CreateIdentityToken(context.Background(), req)
		require.Error(t, err)
	})
}

func TestCreateAccessToken(t *testing.T) {
	t.Run("audiences come from the API resources plus the static audience", func(t *testing.T) {
		f := newServiceFixture(t, token.WithStaticAudience("https://auth.example.com/resources"))

		accessToken, err := f.service.CreateAccessToken(context.Background(), accessRequest(clients.AccessTokenTypeJWT))
		require.NoError(t, err)
		require.Equal(t, []string{"orders-api", "https://auth.example.com/resources"}, accessToken.Audiences)
	})

	t.Run("carries the client_id and scope claims", func(t *testing.T) {
		f := newServiceFixture(t)

		accessToken, err := f.service.CreateAccessToken(context.Background(), accessRequest(clients.AccessTokenTypeJWT))
		require.NoError(t, err)

		require.Equal(t, "client-1", claimByType(t, accessToken.Claims, claims.TypeClientID).Value)
		require.ElementsMatch(t, []string{"openid", "api.read"}, accessToken.Scopes())
	})

	t.Run("allows client-only grants", func(t *testing.T) {
		f := newServiceFixture(t)

		req := accessRequest(clients.AccessTokenTypeJWT)
		req.Subject = nil

		accessToken, err := f.service.CreateAccessToken(context.Background(), req)
		require.NoError(t, err)
		require.Empty(t, accessToken.SubjectID)
	})
}

func TestCreateSecurityToken(t *testing.T) {
	t.Run("identity tokens verify against the published key", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()

		accessToken, err := f.service.CreateAccessToken(ctx, accessRequest(clients.AccessTokenTypeJWT))
		require.NoError(t, err)
		signedAccess, err := f.service.CreateSecurityToken(ctx, accessToken)
		require.NoError(t, err)

		req := identityRequest()
		req.Nonce = "nonce-value"
		req.AccessTokenToHash = signedAccess
		identityToken, err := f.service.CreateIdentityToken(ctx, req)
		require.NoError(t, err)

		signedIdentity, err := f.service.CreateSecurityToken(ctx, identityToken)
		require.NoError(t, err)

		keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{f.keyPair.PublicKey}}
		verifier := oidc.NewVerifier(testIssuer, keySet, &oidc.Config{ClientID: "client-1"})

		idToken, err := verifier.Verify(ctx, signedIdentity)
		require.NoError(t, err)
		require.Equal(t, "subject-1", idToken.Subject)
		require.Equal(t, "nonce-value", idToken.Nonce)
		require.NoError(t, idToken.VerifyAccessToken(signedAccess))
		require.Error(t, idToken.VerifyAccessToken("a-different-access-token"))
	})

	t.Run("registered envelope claims are single-valued", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()

		req := identityRequest()
		req.Nonce = "nonce-value"
		identityToken, err := f.service.CreateIdentityToken(ctx, req)
		require.NoError(t, err)

		signed, err := f.service.CreateSecurityToken(ctx, identityToken)
		require.NoError(t, err)

		parsed, err := jwt.Parse(signed, f.signer.GetVerificationKey)
		require.NoError(t, err)

		mapClaims, ok := parsed.Claims.(jwt.MapClaims)
		require.True(t, ok)
		require.IsType(t, "", mapClaims["iss"])
		for _, registered := range []string{"iat", "nbf", "exp"} {
			require.IsType(t, float64(0), mapClaims[registered], "claim %q must not accumulate into an array", registered)
		}
	})

	t.Run("jwt access tokens are signed, not stored", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()

		accessToken, err := f.service.CreateAccessToken(ctx, accessRequest(clients.AccessTokenTypeJWT))
		require.NoError(t, err)

		signed, err := f.service.CreateSecurityToken(ctx, accessToken)
		require.NoError(t, err)

		parsed, err := jwt.Parse(signed, f.signer.GetVerificationKey)
		require.NoError(t, err)
		require.True(t, parsed.Valid)

		mapClaims, ok := parsed.Claims.(jwt.MapClaims)
		require.True(t, ok)
		require.Equal(t, "client-1", mapClaims["client_id"])
	})

	t.Run("reference access tokens are stored, not signed", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()

		accessToken, err := f.service.CreateAccessToken(ctx, accessRequest(clients.AccessTokenTypeReference))
		require.NoError(t, err)

		handle, err := f.service.CreateSecurityToken(ctx, accessToken)
		require.NoError(t, err)
		require.NotEmpty(t, handle)

		stored, err := f.repo.Get(ctx, handle)
		require.NoError(t, err)
		require.Equal(t, "subject-1", stored.SubjectID)
	})

	t.Run("unrecognized token types are an internal error", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.service.CreateSecurityToken(context.Background(), &token.Token{Type: "saml"})
		require.ErrorIs(t, err, interrors.ErrInternal)
	})
}

func TestHydrate(t *testing.T) {
	t.Run("resolves a stored reference token", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()

		accessToken, err := f.service.CreateAccessToken(ctx, accessRequest(clients.AccessTokenTypeReference))
		require.NoError(t, err)
		handle, err := f.service.CreateSecurityToken(ctx, accessToken)
		require.NoError(t, err)

		hydrated, err := f.service.Hydrate(ctx, handle)
		require.NoError(t, err)
		require.Equal(t, accessToken.ClientID, hydrated.ClientID)
		require.ElementsMatch(t, accessToken.Scopes(), hydrated.Scopes())
	})

	t.Run("unknown handles report invalid grant", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.service.Hydrate(context.Background(), "no-such-handle")
		require.ErrorIs(t, err, interrors.ErrInvalidGrant)
	})

	t.Run("expired reference tokens report expired", func(t *testing.T) {
		now := time.Now()
		clock := &now
		f := newServiceFixture(t, token.WithNowFunc(func() time.Time { return *clock }))
		ctx := context.Background()

		req := accessRequest(clients.AccessTokenTypeReference)
		req.Client.AccessTokenLifetime = time.Minute
		accessToken, err := f.service.CreateAccessToken(ctx, req)
		require.NoError(t, err)
		handle, err := f.service.CreateSecurityToken(ctx, accessToken)
		require.NoError(t, err)

		later := now.Add(2 * time.Minute)
		clock = &later

		_, err = f.service.Hydrate(ctx, handle)
		require.ErrorIs(t, err, interrors.ErrExpiredToken)
	})
}
