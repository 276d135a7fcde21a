package refresh

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-grant-engine/claims"
	"github.com/jrsteele09/go-grant-engine/clients"
	interrors "github.com/jrsteele09/go-grant-engine/internal/errors"
	"github.com/jrsteele09/go-grant-engine/token"
)

// Manager handles refresh token creation, validation, and rotation.
//
// Validation is a four-state machine per handle: valid, consumed, expired,
// invalid. Unknown handles and ownership mismatches both come back as
// ErrInvalidGrant so a caller cannot tell them apart.
type Manager struct {
	repo           Repo
	profile        claims.Provider
	consumedPolicy ConsumedPolicy
	nowFunc        func() time.Time
	log            zerolog.Logger
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithConsumedPolicy overrides the default reject-consumed policy.
func WithConsumedPolicy(policy ConsumedPolicy) ManagerOption {
	return func(m *Manager) {
		m.consumedPolicy = policy
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithLogger sets the manager logger.
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager creates a new refresh token manager.
func NewManager(repo Repo, profile claims.Provider, options ...ManagerOption) (*Manager, error) {
	if repo == nil {
		return nil, errors.New("[NewManager] refresh token repo is required")
	}
	if profile == nil {
		return nil, errors.New("[NewManager] profile provider is required")
	}

	m := &Manager{
		repo:           repo,
		profile:        profile,
		consumedPolicy: RejectConsumed{},
		nowFunc:        time.Now,
		log:            zerolog.Nop(),
	}

	for _, opt := range options {
		opt(m)
	}

	return m, nil
}

// Validate checks a refresh token handle against the presenting client and
// returns the stored record when the handle is still redeemable.
func (m *Manager) Validate(ctx context.Context, handle string, client *clients.Client) (*StoredRefreshToken, error) {
	rt, err := m.repo.Get(ctx, handle)
	if err != nil {
		return nil, interrors.ErrInvalidGrant
	}

	now := m.nowFunc()
	if rt.Expired(now) {
		return nil, interrors.ErrExpiredGrant
	}

	if rt.ClientID != client.ID {
		// Ownership mismatch is a security event; the response stays
		// indistinguishable from an unknown handle.
		m.log.Warn().
			Str("clientId", client.ID).
			Str("tokenClientId", rt.ClientID).
			Msg("refresh token presented by a client that does not own it")
		return nil, interrors.ErrInvalidGrant
	}

	if !client.AllowOfflineAccess {
		return nil, interrors.ErrInvalidGrant
	}

	if rt.Consumed() && !m.consumedPolicy.AcceptConsumed(rt, now) {
		return nil, interrors.ErrConsumedGrant
	}

	active, err := m.profile.IsActive(ctx, claims.IsActiveRequest{
		Subject:  &claims.Subject{ID: rt.SubjectID, SessionID: rt.SessionID},
		ClientID: client.ID,
		Caller:   claims.CallerRefreshTokenValidation,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Validate] IsActive")
	}
	if !active {
		return nil, interrors.ErrInvalidGrant
	}

	return rt, nil
}

// Create stores a new refresh token for the subject/client pair, snapshotting
// the linked access token. The lifetime follows the client's expiration
// policy: the absolute lifetime for absolute expiration, otherwise the
// sliding lifetime capped by a nonzero absolute lifetime.
func (m *Manager) Create(ctx context.Context, subject *claims.Subject, accessToken *token.Token, client *clients.Client) (string, error) {
	if subject == nil {
		return "", errors.New("[Create] subject is required")
	}

	lifetime := client.SlidingRefreshTokenLifetime
	if client.RefreshTokenExpiration == clients.RefreshTokenExpirationAbsolute {
		lifetime = client.AbsoluteRefreshTokenLifetime
	} else if client.AbsoluteRefreshTokenLifetime > 0 && lifetime > client.AbsoluteRefreshTokenLifetime {
		lifetime = client.AbsoluteRefreshTokenLifetime
	}

	rt := &StoredRefreshToken{
		CreationTime: m.nowFunc(),
		Lifetime:     lifetime,
		ClientID:     client.ID,
		SubjectID:    subject.ID,
		SessionID:    subject.SessionID,
		Scopes:       accessToken.Scopes(),
		AccessToken:  accessToken,
	}

	handle, err := m.repo.Store(ctx, rt)
	if err != nil {
		return "", errors.Wrap(err, "[Create] Store")
	}
	return handle, nil
}

// Update rotates a redeemed refresh token per client policy and returns the
// handle the client should use next. One-time-only usage marks the old
// record consumed and allocates a brand-new handle; sliding expiration
// recomputes the lifetime from total elapsed time, capped by a nonzero
// absolute lifetime. Both adjustments may apply to the same rotation.
func (m *Manager) Update(ctx context.Context, handle string, rt *StoredRefreshToken, client *clients.Client) (string, error) {
	now := m.nowFunc()
	needsUpdate := false

	if client.RefreshTokenExpiration == clients.RefreshTokenExpirationSliding {
		newLifetime := now.Sub(rt.CreationTime) + client.SlidingRefreshTokenLifetime
		if client.AbsoluteRefreshTokenLifetime > 0 && newLifetime > client.AbsoluteRefreshTokenLifetime {
			newLifetime = client.AbsoluteRefreshTokenLifetime
		}
		if newLifetime != rt.Lifetime {
			rt.Lifetime = newLifetime
			needsUpdate = true
		}
	}

	if client.RefreshTokenUsage == clients.RefreshTokenUsageOneTimeOnly {
		// Retire the old handle first, then hand out a fresh one. Handles are
		// never reused; the creation time carries over so the absolute
		// lifetime keeps counting from the original grant.
		consumed := *rt
		consumed.ConsumedTime = &now
		if err := m.repo.Update(ctx, handle, &consumed); err != nil {
			return "", errors.Wrap(err, "[Update] consume old handle")
		}

		rt.ConsumedTime = nil
		newHandle, err := m.repo.Store(ctx, rt)
		if err != nil {
			return "", errors.Wrap(err, "[Update] store rotated token")
		}
		return newHandle, nil
	}

	if needsUpdate {
		if err := m.repo.Update(ctx, handle, rt); err != nil {
			return "", errors.Wrap(err, "[Update] extend lifetime")
		}
	}

	return handle, nil
}
