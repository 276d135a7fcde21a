package authcode_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-grant-engine/authcode"
	authcoderepofake "github.com/jrsteele09/go-grant-engine/authcode/repofake"
	"github.com/jrsteele09/go-grant-engine/clients"
	interrors "github.com/jrsteele09/go-grant-engine/internal/errors"
)

func newManager(t *testing.T, nowFunc func() time.Time) (*authcode.Manager, *authcoderepofake.FakeAuthCodeRepo) {
	t.Helper()
	repo := authcoderepofake.NewFakeAuthCodeRepo()

	var options []authcode.ManagerOption
	if nowFunc != nil {
		options = append(options, authcode.WithNowFunc(nowFunc))
	}
	manager, err := authcode.NewManager(repo, options...)
	require.NoError(t, err)
	return manager, repo
}

func testCode() *authcode.AuthorizationCode {
	return &authcode.AuthorizationCode{
		ClientID:    "client-1",
		SubjectID:   "subject-1",
		SessionID:   "session-1",
		Scopes:      []string{"openid", "api.read"},
		Nonce:       "nonce-value",
		RedirectURI: "https://client.example.com/callback",
	}
}

func TestIssueAndRedeem(t *testing.T) {
	ctx := context.Background()

	t.Run("a code round-trips through redemption", func(t *testing.T) {
		manager, _ := newManager(t, nil)

		handle, err := manager.Issue(ctx, testCode())
		require.NoError(t, err)
		require.NotEmpty(t, handle)

		code, err := manager.Redeem(ctx, handle, &clients.Client{ID: "client-1"})
		require.NoError(t, err)
		require.Equal(t, "subject-1", code.SubjectID)
		require.Equal(t, "nonce-value", code.Nonce)
		require.ElementsMatch(t, []string{"openid", "api.read"}, code.Scopes)
	})

	t.Run("a code is single use", func(t *testing.T) {
		manager, _ := newManager(t, nil)
		client := &clients.Client{ID: "client-1"}

		handle, err := manager.Issue(ctx, testCode())
		require.NoError(t, err)

		_, err = manager.Redeem(ctx, handle, client)
		require.NoError(t, err)

		_, err = manager.Redeem(ctx, handle, client)
		require.ErrorIs(t, err, interrors.ErrInvalidGrant)
	})

	t.Run("a failed redemption still burns the code", func(t *testing.T) {
		manager, repo := newManager(t, nil)

		handle, err := manager.Issue(ctx, testCode())
		require.NoError(t, err)

		_, err = manager.Redeem(ctx, handle, &clients.Client{ID: "client-2"})
		require.ErrorIs(t, err, interrors.ErrInvalidGrant)

		_, err = repo.Get(ctx, handle)
		require.Error(t, err)
	})

	t.Run("an expired code is invalid", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		manager, _ := newManager(t, func() time.Time { return now })

		handle, err := manager.Issue(ctx, testCode())
		require.NoError(t, err)

		now = now.Add(10 * time.Minute)

		_, err = manager.Redeem(ctx, handle, &clients.Client{ID: "client-1"})
		require.ErrorIs(t, err, interrors.ErrInvalidGrant)
	})

	t.Run("an unknown handle is invalid", func(t *testing.T) {
		manager, _ := newManager(t, nil)

		_, err := manager.Redeem(ctx, "no-such-code", &clients.Client{ID: "client-1"})
		require.ErrorIs(t, err, interrors.ErrInvalidGrant)
	})

	t.Run("a custom lifetime survives storage", func(t *testing.T) {
		manager, repo := newManager(t, nil)

		code := testCode()
		code.Lifetime = time.Minute
		handle, err := manager.Issue(ctx, code)
		require.NoError(t, err)

		stored, err := repo.Get(ctx, handle)
		require.NoError(t, err)
		require.Equal(t, time.Minute, stored.Lifetime)
	})
}
