package authcode

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-grant-engine/clients"
	interrors "github.com/jrsteele09/go-grant-engine/internal/errors"
)

const defaultCodeLifetime = 5 * time.Minute

// Manager issues and redeems authorization codes. Codes are single use:
// redemption deletes the record before returning it.
type Manager struct {
	repo    Repo
	nowFunc func() time.Time
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// NewManager creates a new authorization code manager.
func NewManager(repo Repo, options ...ManagerOption) (*Manager, error) {
	if repo == nil {
		return nil, errors.New("[NewManager] authorization code repo is required")
	}

	m := &Manager{
		repo:    repo,
		nowFunc: time.Now,
	}

	for _, opt := range options {
		opt(m)
	}

	return m, nil
}

// Issue stores a new authorization code and returns its handle.
func (m *Manager) Issue(ctx context.Context, code *AuthorizationCode) (string, error) {
	code.CreationTime = m.nowFunc()
	if code.Lifetime == 0 {
		code.Lifetime = defaultCodeLifetime
	}

	handle, err := m.repo.Store(ctx, code)
	if err != nil {
		return "", errors.Wrap(err, "[Issue] Store")
	}
	return handle, nil
}

// Redeem resolves a code handle for the presenting client and removes it so
// it can never be redeemed twice. Unknown, expired and foreign codes all
// return ErrInvalidGrant.
func (m *Manager) Redeem(ctx context.Context, handle string, client *clients.Client) (*AuthorizationCode, error) {
	code, err := m.repo.Get(ctx, handle)
	if err != nil {
		return nil, interrors.ErrInvalidGrant
	}

	// Single use regardless of outcome.
	if err := m.repo.Remove(ctx, handle); err != nil {
		return nil, errors.Wrap(err, "[Redeem] Remove")
	}

	if code.ClientID != client.ID {
		return nil, interrors.ErrInvalidGrant
	}
	if code.Expired(m.nowFunc()) {
		return nil, interrors.ErrInvalidGrant
	}

	return code, nil
}
