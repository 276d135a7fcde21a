package grants_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-grant-engine/authcode"
	authcoderepofake "github.com/jrsteele09/go-grant-engine/authcode/repofake"
	"github.com/jrsteele09/go-grant-engine/claims"
	"github.com/jrsteele09/go-grant-engine/consent"
	consentrepofake "github.com/jrsteele09/go-grant-engine/consent/repofake"
	"github.com/jrsteele09/go-grant-engine/grants"
	"github.com/jrsteele09/go-grant-engine/token"
	"github.com/jrsteele09/go-grant-engine/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-grant-engine/token/refresh/repofake"
	tokenrepofake "github.com/jrsteele09/go-grant-engine/token/repofake"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type consolidatorFixture struct {
	consolidator *grants.Consolidator
	stores       grants.Stores
	authCodes    *authcoderepofake.FakeAuthCodeRepo
	refresh      *refreshrepofake.FakeRefreshTokenRepo
	reference    *tokenrepofake.FakeReferenceRepo
	consents     *consentrepofake.FakeConsentRepo
}

func newConsolidatorFixture(t *testing.T) *consolidatorFixture {
	t.Helper()

	f := &consolidatorFixture{
		authCodes: authcoderepofake.NewFakeAuthCodeRepo(),
		refresh:   refreshrepofake.NewFakeRefreshTokenRepo(),
		reference: tokenrepofake.NewFakeReferenceRepo(),
		consents:  consentrepofake.NewFakeConsentRepo(),
	}
	f.stores = grants.Stores{
		AuthorizationCodes: f.authCodes,
		RefreshTokens:      f.refresh,
		ReferenceTokens:    f.reference,
		Consents:           f.consents,
	}

	consolidator, err := grants.NewConsolidator(f.stores)
	require.NoError(t, err)
	f.consolidator = consolidator
	return f
}

func (f *consolidatorFixture) storeAuthCode(t *testing.T, clientID string, scopes []string, creation time.Time, lifetime time.Duration) {
	t.Helper()
	_, err := f.authCodes.Store(context.Background(), &authcode.AuthorizationCode{
		ClientID:     clientID,
		SubjectID:    "subject-1",
		Scopes:       scopes,
		CreationTime: creation,
		Lifetime:     lifetime,
	})
	require.NoError(t, err)
}

func (f *consolidatorFixture) storeRefreshToken(t *testing.T, clientID, sessionID string, scopes []string, creation time.Time, lifetime time.Duration) {
	t.Helper()
	_, err := f.refresh.Store(context.Background(), &refresh.StoredRefreshToken{
		ClientID:     clientID,
		SubjectID:    "subject-1",
		SessionID:    sessionID,
		Scopes:       scopes,
		CreationTime: creation,
		Lifetime:     lifetime,
	})
	require.NoError(t, err)
}

func (f *consolidatorFixture) storeReferenceToken(t *testing.T, clientID string, scopes []string, creation time.Time, lifetime time.Duration) {
	t.Helper()
	tokenClaims := make([]claims.Claim, 0, len(scopes))
	for _, s := range scopes {
		tokenClaims = append(tokenClaims, claims.New(claims.TypeScope, s))
	}
	_, err := f.reference.Store(context.Background(), &token.Token{
		Type:         token.TypeAccess,
		ClientID:     clientID,
		SubjectID:    "subject-1",
		Claims:       tokenClaims,
		CreationTime: creation,
		Lifetime:     lifetime,
	})
	require.NoError(t, err)
}

func (f *consolidatorFixture) storeConsent(t *testing.T, clientID string, scopes []string, creation time.Time, expiration *time.Time) {
	t.Helper()
	err := f.consents.Store(context.Background(), &consent.Consent{
		SubjectID:    "subject-1",
		ClientID:     clientID,
		Scopes:       scopes,
		CreationTime: creation,
		Expiration:   expiration,
	})
	require.NoError(t, err)
}

func TestGetAllGrants(t *testing.T) {
	ctx := context.Background()

	t.Run("merges all kinds for a client into one grant", func(t *testing.T) {
		f := newConsolidatorFixture(t)

		expiration := baseTime.Add(48 * time.Hour)
		f.storeAuthCode(t, "client-1", []string{"openid"}, baseTime.Add(time.Hour), 5*time.Minute)
		f.storeRefreshToken(t, "client-1", "session-1", []string{"openid", "offline_access"}, baseTime.Add(30*time.Minute), 24*time.Hour)
		f.storeReferenceToken(t, "client-1", []string{"api.read"}, baseTime.Add(2*time.Hour), time.Hour)
		f.storeConsent(t, "client-1", []string{"openid", "api.read"}, baseTime, &expiration)

		merged, err := f.consolidator.GetAllGrants(ctx, "subject-1")
		require.NoError(t, err)
		require.Len(t, merged, 1)

		grant := merged[0]
		require.Equal(t, "client-1", grant.ClientID)
		require.Equal(t, []string{"api.read", "offline_access", "openid"}, grant.Scopes)
		require.True(t, grant.CreationTime.Equal(baseTime))
		require.NotNil(t, grant.Expiration)
		require.True(t, grant.Expiration.Equal(expiration))
	})

	t.Run("an unbounded consent makes the merged grant unbounded", func(t *testing.T) {
		f := newConsolidatorFixture(t)

		f.storeRefreshToken(t, "client-1", "", []string{"openid"}, baseTime, 24*time.Hour)
		f.storeConsent(t, "client-1", []string{"openid"}, baseTime, nil)

		merged, err := f.consolidator.GetAllGrants(ctx, "subject-1")
		require.NoError(t, err)
		require.Len(t, merged, 1)
		require.Nil(t, merged[0].Expiration)
	})

	t.Run("grants come back sorted by client", func(t *testing.T) {
		f := newConsolidatorFixture(t)

		f.storeRefreshToken(t, "client-b", "", []string{"openid"}, baseTime, time.Hour)
		f.storeRefreshToken(t, "client-a", "", []string{"openid"}, baseTime, time.Hour)
		f.storeConsent(t, "client-c", []string{"openid"}, baseTime, nil)

		merged, err := f.consolidator.GetAllGrants(ctx, "subject-1")
		require.NoError(t, err)
		require.Len(t, merged, 3)
		require.Equal(t, "client-a", merged[0].ClientID)
		require.Equal(t, "client-b", merged[1].ClientID)
		require.Equal(t, "client-c", merged[2].ClientID)
	})

	t.Run("the merged view is deterministic across reads", func(t *testing.T) {
		f := newConsolidatorFixture(t)

		f.storeAuthCode(t, "client-1", []string{"openid"}, baseTime, 5*time.Minute)
		f.storeRefreshToken(t, "client-1", "", []string{"offline_access", "openid"}, baseTime, time.Hour)
		f.storeRefreshToken(t, "client-2", "", []string{"api.read"}, baseTime, time.Hour)
		f.storeConsent(t, "client-1", []string{"api.read"}, baseTime, nil)

		first, err := f.consolidator.GetAllGrants(ctx, "subject-1")
		require.NoError(t, err)

		// Stores iterate maps, so repeated reads feed the merge in different
		// orders; the result must not depend on that order.
		for i := 0; i < 5; i++ {
			again, err := f.consolidator.GetAllGrants(ctx, "subject-1")
			require.NoError(t, err)
			require.Equal(t, first, again)
		}
	})

	t.Run("a subject with nothing stored gets an empty view", func(t *testing.T) {
		f := newConsolidatorFixture(t)

		merged, err := f.consolidator.GetAllGrants(ctx, "subject-1")
		require.NoError(t, err)
		require.Empty(t, merged)
	})

	t.Run("one failing store degrades instead of failing the call", func(t *testing.T) {
		f := newConsolidatorFixture(t)
		f.storeRefreshToken(t, "client-1", "", []string{"openid"}, baseTime, time.Hour)

		stores := f.stores
		stores.AuthorizationCodes = failingAuthCodeRepo{}
		consolidator, err := grants.NewConsolidator(stores)
		require.NoError(t, err)

		merged, err := consolidator.GetAllGrants(ctx, "subject-1")
		require.NoError(t, err)
		require.Len(t, merged, 1)
		require.Equal(t, "client-1", merged[0].ClientID)
	})
}

func TestRemoveAllGrants(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes every kind for the subject and client", func(t *testing.T) {
		f := newConsolidatorFixture(t)

		f.storeAuthCode(t, "client-1", []string{"openid"}, baseTime, 5*time.Minute)
		f.storeRefreshToken(t, "client-1", "session-1", []string{"openid"}, baseTime, time.Hour)
		f.storeReferenceToken(t, "client-1", []string{"api.read"}, baseTime, time.Hour)
		f.storeConsent(t, "client-1", []string{"openid"}, baseTime, nil)

		require.NoError(t, f.consolidator.RemoveAllGrants(ctx, "subject-1", "client-1", ""))

		merged, err := f.consolidator.GetAllGrants(ctx, "subject-1")
		require.NoError(t, err)
		require.Empty(t, merged)
	})

	t.Run("leaves other clients untouched", func(t *testing.T) {
		f := newConsolidatorFixture(t)

		f.storeRefreshToken(t, "client-1", "", []string{"openid"}, baseTime, time.Hour)
		f.storeRefreshToken(t, "client-2", "", []string{"openid"}, baseTime, time.Hour)

		require.NoError(t, f.consolidator.RemoveAllGrants(ctx, "subject-1", "client-1", ""))

		merged, err := f.consolidator.GetAllGrants(ctx, "subject-1")
		require.NoError(t, err)
		require.Len(t, merged, 1)
		require.Equal(t, "client-2", merged[0].ClientID)
	})

	t.Run("a session filter only revokes that session's tokens", func(t *testing.T) {
		f := newConsolidatorFixture(t)

		f.storeRefreshToken(t, "client-1", "session-1", []string{"openid"}, baseTime, time.Hour)
		f.storeRefreshToken(t, "client-1", "session-2", []string{"api.read"}, baseTime, time.Hour)

		require.NoError(t, f.consolidator.RemoveAllGrants(ctx, "subject-1", "client-1", "session-1"))

		remaining, err := f.refresh.GetAll(ctx, "subject-1")
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		require.Equal(t, "session-2", remaining[0].SessionID)
	})
}

// failingAuthCodeRepo simulates an unavailable store.
type failingAuthCodeRepo struct{}

var errStoreDown = errors.New("store unavailable")

func (failingAuthCodeRepo) Store(context.Context, *authcode.AuthorizationCode) (string, error) {
	return "", errStoreDown
}

func (failingAuthCodeRepo) Get(context.Context, string) (*authcode.AuthorizationCode, error) {
	return nil, errStoreDown
}

func (failingAuthCodeRepo) Remove(context.Context, string) error {
	return errStoreDown
}

func (failingAuthCodeRepo) GetAll(context.Context, string) ([]*authcode.AuthorizationCode, error) {
	return nil, errStoreDown
}

func (failingAuthCodeRepo) RemoveAll(context.Context, string, string, string) error {
	return errStoreDown
}
