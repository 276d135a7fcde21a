package consent

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-grant-engine/claims"
	"github.com/jrsteele09/go-grant-engine/clients"
	"github.com/jrsteele09/go-grant-engine/resources"
)

// Evaluator decides whether a subject must be re-prompted for consent and
// records consent decisions.
type Evaluator struct {
	repo    Repo
	nowFunc func() time.Time
	log     zerolog.Logger
}

// EvaluatorOption defines a function type to modify the Evaluator instance.
type EvaluatorOption func(*Evaluator)

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) {
		e.nowFunc = now
	}
}

// WithLogger sets the evaluator logger.
func WithLogger(log zerolog.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		e.log = log
	}
}

// NewEvaluator creates a consent evaluator backed by the given store.
func NewEvaluator(repo Repo, options ...EvaluatorOption) (*Evaluator, error) {
	if repo == nil {
		return nil, errors.New("[NewEvaluator] consent repo is required")
	}

	e := &Evaluator{
		repo:    repo,
		nowFunc: time.Now,
		log:     zerolog.Nop(),
	}

	for _, opt := range options {
		opt(e)
	}

	return e, nil
}

// RequiresConsent reports whether the subject must be prompted for the
// requested scopes. Parameterized scopes and offline_access always force a
// fresh prompt; otherwise the remembered scope set decides.
func (e *Evaluator) RequiresConsent(ctx context.Context, subject *claims.Subject, client *clients.Client, parsedScopes []resources.ParsedScope) (bool, error) {
	if !client.RequireConsent {
		return false, nil
	}
	if len(parsedScopes) == 0 {
		return false, nil
	}
	if !client.AllowRememberConsent {
		return true, nil
	}

	for _, scope := range parsedScopes {
		if scope.IsParameterized() {
			return true, nil
		}
		if scope.Name == resources.OfflineAccess {
			return true, nil
		}
	}

	stored, err := e.repo.Get(ctx, subject.ID, client.ID)
	if err != nil || stored == nil {
		return true, nil
	}

	if stored.Expired(e.nowFunc()) {
		e.log.Debug().
			Str("subjectId", subject.ID).
			Str("clientId", client.ID).
			Msg("remembered consent expired, removing")
		if err := e.repo.Remove(ctx, subject.ID, client.ID); err != nil {
			return true, errors.Wrap(err, "[RequiresConsent] remove expired consent")
		}
		return true, nil
	}

	return !isSubset(resources.Names(parsedScopes), stored.Scopes), nil
}

// UpdateConsent records a consent decision. A grant with scopes is
// remembered (overwriting any prior record) when the client allows it; a
// grant with no scopes removes the remembered record.
func (e *Evaluator) UpdateConsent(ctx context.Context, subject *claims.Subject, client *clients.Client, grantedScopes []string) error {
	if client.AllowRememberConsent && len(grantedScopes) > 0 {
		now := e.nowFunc()
		stored := &Consent{
			SubjectID:    subject.ID,
			ClientID:     client.ID,
			Scopes:       grantedScopes,
			CreationTime: now,
		}
		if client.ConsentLifetime > 0 {
			expiration := now.Add(client.ConsentLifetime)
			stored.Expiration = &expiration
		}
		if err := e.repo.Store(ctx, stored); err != nil {
			return errors.Wrap(err, "[UpdateConsent] Store")
		}
		return nil
	}

	if err := e.repo.Remove(ctx, subject.ID, client.ID); err != nil {
		return errors.Wrap(err, "[UpdateConsent] Remove")
	}
	return nil
}

// isSubset reports whether every requested scope is remembered.
func isSubset(requested, remembered []string) bool {
	rememberedSet := make(map[string]struct{}, len(remembered))
	for _, s := range remembered {
		rememberedSet[s] = struct{}{}
	}
	for _, s := range requested {
		if _, ok := rememberedSet[s]; !ok {
			return false
		}
	}
	return true
}
