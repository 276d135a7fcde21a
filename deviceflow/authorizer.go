package deviceflow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-grant-engine/claims"
	"github.com/jrsteele09/go-grant-engine/clients"
	interrors "github.com/jrsteele09/go-grant-engine/internal/errors"
)

const (
	deviceCodeLength       = 32 // 32 bytes = 256 bits
	userCodeDigits         = 9
	defaultCodeLifetime    = 5 * time.Minute
	defaultPollingInterval = 5 * time.Second
)

// StartResponse carries the freshly issued code pair back to the caller. The
// plaintext codes exist only here; storage sees their hashes.
type StartResponse struct {
	DeviceCode string
	UserCode   string
	Interval   time.Duration
	ExpiresIn  time.Duration
}

// Authorizer issues and resolves device/user code pairs.
//
// The authorization record transitions to resolved exactly once, when the
// user acts on the displayed user code. Token exchange deletes the record.
type Authorizer struct {
	repo    Repo
	nowFunc func() time.Time
	log     zerolog.Logger
}

// AuthorizerOption defines a function type to modify the Authorizer instance.
type AuthorizerOption func(*Authorizer)

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) AuthorizerOption {
	return func(a *Authorizer) {
		a.nowFunc = now
	}
}

// WithLogger sets the authorizer logger.
func WithLogger(log zerolog.Logger) AuthorizerOption {
	return func(a *Authorizer) {
		a.log = log
	}
}

// NewAuthorizer creates a device flow authorizer backed by the given store.
func NewAuthorizer(repo Repo, options ...AuthorizerOption) (*Authorizer, error) {
	if repo == nil {
		return nil, errors.New("[NewAuthorizer] device authorization repo is required")
	}

	a := &Authorizer{
		repo:    repo,
		nowFunc: time.Now,
		log:     zerolog.Nop(),
	}

	for _, opt := range options {
		opt(a)
	}

	return a, nil
}

// Start creates a new device authorization for the client and returns the
// code pair to display and poll with.
func (a *Authorizer) Start(ctx context.Context, client *clients.Client, requestedScopes []string) (*StartResponse, error) {
	if err := client.ValidateScopes(requestedScopes); err != nil {
		return nil, interrors.Wrapf(interrors.ErrInvalidScope, "[Start] scopes %v", requestedScopes)
	}

	deviceCode, err := generateDeviceCode()
	if err != nil {
		return nil, errors.Wrap(err, "[Start] device code")
	}
	userCode, err := generateUserCode()
	if err != nil {
		return nil, errors.Wrap(err, "[Start] user code")
	}

	lifetime := client.DeviceCodeLifetime
	if lifetime == 0 {
		lifetime = defaultCodeLifetime
	}
	interval := client.PollingInterval
	if interval == 0 {
		interval = defaultPollingInterval
	}

	authorization := &Authorization{
		ClientID:        client.ID,
		RequestedScopes: requestedScopes,
		CreationTime:    a.nowFunc(),
		Lifetime:        lifetime,
		Interval:        interval,
	}

	if err := a.repo.Store(ctx, HashCode(deviceCode), HashCode(userCode), authorization); err != nil {
		return nil, errors.Wrap(err, "[Start] Store")
	}

	return &StartResponse{
		DeviceCode: deviceCode,
		UserCode:   userCode,
		Interval:   interval,
		ExpiresIn:  lifetime,
	}, nil
}

// FindByUserCode resolves a user-supplied code to its pending authorization.
func (a *Authorizer) FindByUserCode(ctx context.Context, userCode string) (*Authorization, error) {
	authorization, err := a.repo.GetByUserCode(ctx, HashCode(userCode))
	if err != nil {
		return nil, interrors.ErrNotFound
	}
	if authorization.Expired(a.nowFunc()) {
		return nil, interrors.ErrExpiredToken
	}
	return authorization, nil
}

// Authorize records the user's consent decision against the user code. The
// granted scopes may be a subset of the requested ones; the eventual token
// carries exactly the consented set.
func (a *Authorizer) Authorize(ctx context.Context, userCode string, subject *claims.Subject, grantedScopes []string, description string) error {
	return a.resolve(ctx, userCode, func(authorization *Authorization) {
		authorization.IsAuthorized = true
		authorization.SubjectID = subject.ID
		authorization.SessionID = subject.SessionID
		authorization.AuthorizedScopes = grantedScopes
		authorization.Description = description
	})
}

// Deny records the user's refusal against the user code.
func (a *Authorizer) Deny(ctx context.Context, userCode string, subject *claims.Subject) error {
	return a.resolve(ctx, userCode, func(authorization *Authorization) {
		authorization.IsDenied = true
		authorization.SubjectID = subject.ID
		authorization.SessionID = subject.SessionID
	})
}

func (a *Authorizer) resolve(ctx context.Context, userCode string, mutate func(*Authorization)) error {
	userCodeHash := HashCode(userCode)

	authorization, err := a.repo.GetByUserCode(ctx, userCodeHash)
	if err != nil {
		return interrors.ErrNotFound
	}
	if authorization.Expired(a.nowFunc()) {
		return interrors.ErrExpiredToken
	}
	if authorization.Resolved() {
		return interrors.Wrapf(interrors.ErrInvalidRequest, "[resolve] user code already resolved")
	}

	mutate(authorization)

	if err := a.repo.UpdateByUserCode(ctx, userCodeHash, authorization); err != nil {
		return errors.Wrap(err, "[resolve] UpdateByUserCode")
	}
	return nil
}

// Exchange redeems a device code at the token endpoint. Pending codes report
// authorization_pending; denied codes report access_denied; a successful
// exchange deletes the record and returns the authorization with the scopes
// the user actually consented to.
func (a *Authorizer) Exchange(ctx context.Context, deviceCode string, client *clients.Client) (*Authorization, error) {
	deviceCodeHash := HashCode(deviceCode)

	authorization, err := a.repo.GetByDeviceCode(ctx, deviceCodeHash)
	if err != nil {
		return nil, interrors.ErrInvalidGrant
	}

	if authorization.ClientID != client.ID {
		a.log.Warn().
			Str("clientId", client.ID).
			Str("codeClientId", authorization.ClientID).
			Msg("device code presented by a client that does not own it")
		return nil, interrors.ErrInvalidGrant
	}

	if authorization.Expired(a.nowFunc()) {
		return nil, interrors.ErrExpiredToken
	}

	if authorization.IsDenied {
		if err := a.repo.Remove(ctx, deviceCodeHash); err != nil {
			return nil, errors.Wrap(err, "[Exchange] Remove denied")
		}
		return nil, interrors.ErrAccessDenied
	}

	if !authorization.IsAuthorized {
		return nil, interrors.ErrAuthorizationPending
	}

	if err := a.repo.Remove(ctx, deviceCodeHash); err != nil {
		return nil, errors.Wrap(err, "[Exchange] Remove")
	}

	return authorization, nil
}

func generateDeviceCode() (string, error) {
	codeBytes := make([]byte, deviceCodeLength)
	if _, err := rand.Read(codeBytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(codeBytes), nil
}

// generateUserCode returns a short numeric code a human can type on a
// secondary device.
func generateUserCode() (string, error) {
	digits := make([]byte, userCodeDigits)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
