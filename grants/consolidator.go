package grants

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-grant-engine/authcode"
	"github.com/jrsteele09/go-grant-engine/consent"
	"github.com/jrsteele09/go-grant-engine/token"
	"github.com/jrsteele09/go-grant-engine/token/refresh"
)

// Stores holds the four grant stores the consolidator fans out over.
type Stores struct {
	AuthorizationCodes authcode.Repo
	RefreshTokens      refresh.Repo
	ReferenceTokens    token.ReferenceRepo
	Consents           consent.Repo
}

// Consolidator merges the heterogeneous stored grants for a subject into one
// per-client view, and revokes them uniformly.
type Consolidator struct {
	stores Stores
	log    zerolog.Logger
}

// ConsolidatorOption defines a function type to modify the Consolidator.
type ConsolidatorOption func(*Consolidator)

// WithLogger sets the consolidator logger.
func WithLogger(log zerolog.Logger) ConsolidatorOption {
	return func(c *Consolidator) {
		c.log = log
	}
}

// NewConsolidator creates a consolidator over the given stores.
func NewConsolidator(stores Stores, options ...ConsolidatorOption) (*Consolidator, error) {
	if stores.AuthorizationCodes == nil {
		return nil, errors.New("[NewConsolidator] AuthorizationCodes store is required")
	}
	if stores.RefreshTokens == nil {
		return nil, errors.New("[NewConsolidator] RefreshTokens store is required")
	}
	if stores.ReferenceTokens == nil {
		return nil, errors.New("[NewConsolidator] ReferenceTokens store is required")
	}
	if stores.Consents == nil {
		return nil, errors.New("[NewConsolidator] Consents store is required")
	}

	c := &Consolidator{
		stores: stores,
		log:    zerolog.Nop(),
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// candidate is the typed intermediate a stored grant maps into before the
// pure merge.
type candidate struct {
	kind  Kind
	grant Grant
}

// GetAllGrants loads every stored grant for the subject, maps each kind into
// a candidate grant, and merges candidates per client. A store failure for
// one kind degrades to an empty contribution from that kind rather than
// failing the whole call.
func (c *Consolidator) GetAllGrants(ctx context.Context, subjectID string) ([]Grant, error) {
	loaders := []struct {
		kind Kind
		load func(context.Context, string) ([]candidate, error)
	}{
		{KindAuthorizationCode, c.loadAuthorizationCodes},
		{KindRefreshToken, c.loadRefreshTokens},
		{KindReferenceToken, c.loadReferenceTokens},
		{KindConsent, c.loadConsents},
	}

	results := make([][]candidate, len(loaders))

	var wg sync.WaitGroup
	for i, loader := range loaders {
		wg.Add(1)
		go func(i int, kind Kind, load func(context.Context, string) ([]candidate, error)) {
			defer wg.Done()
			candidates, err := load(ctx, subjectID)
			if err != nil {
				c.log.Warn().
					Err(err).
					Str("subjectId", subjectID).
					Str("grantKind", string(kind)).
					Msg("failed to load grants for kind, skipping")
				return
			}
			results[i] = candidates
		}(i, loader.kind, loader.load)
	}
	wg.Wait()

	var all []candidate
	for _, candidates := range results {
		all = append(all, candidates...)
	}

	return merge(all), nil
}

// RemoveAllGrants revokes every stored grant for the subject/client pairing
// across all grant kinds. An empty sessionID matches every session. This is
// the single mechanism for "log out everywhere for this client".
func (c *Consolidator) RemoveAllGrants(ctx context.Context, subjectID, clientID, sessionID string) error {
	if err := c.stores.AuthorizationCodes.RemoveAll(ctx, subjectID, clientID, sessionID); err != nil {
		return errors.Wrap(err, "[RemoveAllGrants] authorization codes")
	}
	if err := c.stores.RefreshTokens.RemoveAll(ctx, subjectID, clientID, sessionID); err != nil {
		return errors.Wrap(err, "[RemoveAllGrants] refresh tokens")
	}
	if err := c.stores.ReferenceTokens.RemoveAll(ctx, subjectID, clientID, sessionID); err != nil {
		return errors.Wrap(err, "[RemoveAllGrants] reference tokens")
	}
	if err := c.stores.Consents.Remove(ctx, subjectID, clientID); err != nil {
		return errors.Wrap(err, "[RemoveAllGrants] consents")
	}
	return nil
}

func (c *Consolidator) loadAuthorizationCodes(ctx context.Context, subjectID string) ([]candidate, error) {
	codes, err := c.stores.AuthorizationCodes.GetAll(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	candidates := make([]candidate, 0, len(codes))
	for _, code := range codes {
		expiration := code.Expiration()
		candidates = append(candidates, candidate{
			kind: KindAuthorizationCode,
			grant: Grant{
				ClientID:     code.ClientID,
				SubjectID:    code.SubjectID,
				Scopes:       code.Scopes,
				CreationTime: code.CreationTime,
				Expiration:   &expiration,
			},
		})
	}
	return candidates, nil
}

func (c *Consolidator) loadRefreshTokens(ctx context.Context, subjectID string) ([]candidate, error) {
	tokens, err := c.stores.RefreshTokens.GetAll(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	candidates := make([]candidate, 0, len(tokens))
	for _, rt := range tokens {
		expiration := rt.Expiration()
		candidates = append(candidates, candidate{
			kind: KindRefreshToken,
			grant: Grant{
				ClientID:     rt.ClientID,
				SubjectID:    rt.SubjectID,
				Description:  rt.Description,
				Scopes:       rt.Scopes,
				CreationTime: rt.CreationTime,
				Expiration:   &expiration,
			},
		})
	}
	return candidates, nil
}

func (c *Consolidator) loadReferenceTokens(ctx context.Context, subjectID string) ([]candidate, error) {
	tokens, err := c.stores.ReferenceTokens.GetAll(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	candidates := make([]candidate, 0, len(tokens))
	for _, t := range tokens {
		expiration := t.Expiration()
		candidates = append(candidates, candidate{
			kind: KindReferenceToken,
			grant: Grant{
				ClientID:     t.ClientID,
				SubjectID:    t.SubjectID,
				Scopes:       t.Scopes(),
				CreationTime: t.CreationTime,
				Expiration:   &expiration,
			},
		})
	}
	return candidates, nil
}

func (c *Consolidator) loadConsents(ctx context.Context, subjectID string) ([]candidate, error) {
	consents, err := c.stores.Consents.GetAll(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	candidates := make([]candidate, 0, len(consents))
	for _, uc := range consents {
		candidates = append(candidates, candidate{
			kind: KindConsent,
			grant: Grant{
				ClientID:     uc.ClientID,
				SubjectID:    uc.SubjectID,
				Scopes:       uc.Scopes,
				CreationTime: uc.CreationTime,
				Expiration:   uc.Expiration, // nil = consent never expires
			},
		})
	}
	return candidates, nil
}

// merge folds candidates into one grant per client: scope union, earliest
// creation time, latest expiration. Any unbounded contributor makes the
// merged grant unbounded. The result is independent of input ordering.
func merge(candidates []candidate) []Grant {
	byClient := make(map[string]*Grant)
	unbounded := make(map[string]bool)

	for _, cand := range candidates {
		g := cand.grant
		existing, ok := byClient[g.ClientID]
		if !ok {
			merged := g
			merged.Scopes = append([]string(nil), g.Scopes...)
			byClient[g.ClientID] = &merged
			unbounded[g.ClientID] = g.Expiration == nil
			continue
		}

		existing.Scopes = append(existing.Scopes, g.Scopes...)
		if g.CreationTime.Before(existing.CreationTime) {
			existing.CreationTime = g.CreationTime
		}
		if g.Expiration == nil {
			unbounded[g.ClientID] = true
		} else if !unbounded[g.ClientID] && (existing.Expiration == nil || g.Expiration.After(*existing.Expiration)) {
			existing.Expiration = g.Expiration
		}
		if existing.Description == "" {
			existing.Description = g.Description
		}
	}

	grants := make([]Grant, 0, len(byClient))
	for clientID, g := range byClient {
		if unbounded[clientID] {
			g.Expiration = nil
		}
		g.Scopes = dedupeSorted(g.Scopes)
		grants = append(grants, *g)
	}

	sort.Slice(grants, func(i, j int) bool {
		return grants[i].ClientID < grants[j].ClientID
	})
	return grants
}

func dedupeSorted(scopes []string) []string {
	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
