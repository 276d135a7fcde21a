package token

import (
	"context"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-grant-engine/claims"
	"github.com/jrsteele09/go-grant-engine/clients"
	interrors "github.com/jrsteele09/go-grant-engine/internal/errors"
)

// Service builds identity and access tokens from a validated request context
// and materializes them into their wire form (signed JWT or stored reference
// handle).
type Service struct {
	aggregator            *claims.Aggregator
	signer                Signer
	referenceRepo         ReferenceRepo
	issuer                string
	staticAudience        string
	identityTokenLifetime time.Duration
	accessTokenLifetime   time.Duration
	nowFunc               func() time.Time
	log                   zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithStaticAudience adds a fixed audience to every access token.
func WithStaticAudience(audience string) ServiceOption {
	return func(s *Service) {
		s.staticAudience = audience
	}
}

// WithDefaultLifetimes sets the fallback token lifetimes used when a client
// has none configured.
func WithDefaultLifetimes(identity, access time.Duration) ServiceOption {
	return func(s *Service) {
		s.identityTokenLifetime = identity
		s.accessTokenLifetime = access
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = now
	}
}

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

// NewService initializes a token Service with required dependencies.
func NewService(aggregator *claims.Aggregator, signer Signer, referenceRepo ReferenceRepo, issuer string, options ...ServiceOption) (*Service, error) {
	if aggregator == nil {
		return nil, errors.New("[NewService] claims aggregator is required")
	}
	if signer == nil {
		return nil, errors.New("[NewService] signer is required")
	}
	if referenceRepo == nil {
		return nil, errors.New("[NewService] reference token repo is required")
	}
	if issuer == "" {
		return nil, errors.New("[NewService] issuer is required")
	}

	s := &Service{
		aggregator:            aggregator,
		signer:                signer,
		referenceRepo:         referenceRepo,
		issuer:                issuer,
		identityTokenLifetime: 5 * time.Minute,
		accessTokenLifetime:   time.Hour,
		nowFunc:               time.Now,
		log:                   zerolog.Nop(),
	}

	for _, opt := range options {
		opt(s)
	}

	return s, nil
}

// CreateIdentityToken builds an identity token: standard and profile claims
// from the aggregator, a nonce echo, and truncated-hash claims for any paired
// access token or authorization code. The registered envelope claims
// (iss/iat/nbf/exp/aud) are emitted at materialization from the token's own
// fields, never duplicated here.
func (s *Service) CreateIdentityToken(ctx context.Context, req CreationRequest) (*Token, error) {
	if req.Client == nil || req.Resources == nil {
		return nil, errors.New("[CreateIdentityToken] client and resources are required")
	}
	if req.Subject == nil {
		return nil, errors.New("[CreateIdentityToken] subject is required")
	}

	now := s.nowFunc()
	signingAlg := s.signer.GetSigningMethod().Alg()

	outputClaims := []claims.Claim{
		claims.New(claims.TypeJWTID, uuid.New().String()),
	}

	if req.Nonce != "" {
		outputClaims = append(outputClaims, claims.New(claims.TypeNonce, req.Nonce))
	}

	if req.AccessTokenToHash != "" {
		atHash, err := HashedClaimValue(signingAlg, req.AccessTokenToHash)
		if err != nil {
			return nil, errors.Wrap(err, "[CreateIdentityToken] at_hash")
		}
		outputClaims = append(outputClaims, claims.New(claims.TypeAccessTokenHash, atHash))
	}

	if req.AuthorizationCodeToHash != "" {
		cHash, err := HashedClaimValue(signingAlg, req.AuthorizationCodeToHash)
		if err != nil {
			return nil, errors.Wrap(err, "[CreateIdentityToken] c_hash")
		}
		outputClaims = append(outputClaims, claims.New(claims.TypeAuthorizationCodeHash, cHash))
	}

	if req.Subject.SessionID != "" {
		outputClaims = append(outputClaims, claims.New(claims.TypeSessionID, req.Subject.SessionID))
	}

	subjectClaims, err := s.aggregator.IdentityTokenClaims(ctx, req.Subject, req.Client, req.Resources, req.IncludeAllIdentityClaims)
	if err != nil {
		return nil, errors.Wrap(err, "[CreateIdentityToken] IdentityTokenClaims")
	}
	outputClaims = append(outputClaims, subjectClaims...)

	lifetime := req.Client.IdentityTokenLifetime
	if lifetime == 0 {
		lifetime = s.identityTokenLifetime
	}

	return &Token{
		Type:                     TypeIdentity,
		SubjectID:                req.Subject.ID,
		SessionID:                req.Subject.SessionID,
		ClientID:                 req.Client.ID,
		Issuer:                   s.issuer,
		CreationTime:             now,
		Lifetime:                 lifetime,
		Claims:                   outputClaims,
		Audiences:                []string{req.Client.ID},
		AllowedSigningAlgorithms: []string{signingAlg},
	}, nil
}

// CreateAccessToken builds an access token: aggregated subject, scope and
// client claims, a jti and client_id claim, audiences from the requested API
// resources plus the optional static audience.
func (s *Service) CreateAccessToken(ctx context.Context, req CreationRequest) (*Token, error) {
	if req.Client == nil || req.Resources == nil {
		return nil, errors.New("[CreateAccessToken] client and resources are required")
	}

	now := s.nowFunc()

	outputClaims := []claims.Claim{
		claims.New(claims.TypeJWTID, uuid.New().String()),
		claims.New(claims.TypeClientID, req.Client.ID),
	}

	aggregated, err := s.aggregator.AccessTokenClaims(ctx, req.Subject, req.Client, req.Resources)
	if err != nil {
		return nil, errors.Wrap(err, "[CreateAccessToken] AccessTokenClaims")
	}
	outputClaims = append(outputClaims, aggregated...)

	audiences := make([]string, 0, len(req.Resources.APIResources)+1)
	for _, api := range req.Resources.APIResources {
		audiences = append(audiences, api.Name)
	}
	if s.staticAudience != "" {
		audiences = append(audiences, s.staticAudience)
	}

	lifetime := req.Client.AccessTokenLifetime
	if lifetime == 0 {
		lifetime = s.accessTokenLifetime
	}

	var subjectID, sessionID string
	if req.Subject != nil {
		subjectID = req.Subject.ID
		sessionID = req.Subject.SessionID
	}

	return &Token{
		Type:                     TypeAccess,
		SubjectID:                subjectID,
		SessionID:                sessionID,
		ClientID:                 req.Client.ID,
		Issuer:                   s.issuer,
		CreationTime:             now,
		Lifetime:                 lifetime,
		Claims:                   outputClaims,
		Audiences:                audiences,
		Confirmation:             req.Confirmation,
		AccessTokenType:          req.Client.AccessTokenType,
		AllowedSigningAlgorithms: []string{s.signer.GetSigningMethod().Alg()},
	}, nil
}

// CreateSecurityToken materializes a token into its wire form. Identity
// tokens are always signed JWTs. Access tokens are signed or stored as a
// reference handle depending on the client's access token type. An
// unrecognized token type is a bug, not bad input, and surfaces as an
// internal error.
func (s *Service) CreateSecurityToken(ctx context.Context, t *Token) (string, error) {
	switch t.Type {
	case TypeIdentity:
		return s.signToken(t)

	case TypeAccess:
		if t.AccessTokenType == clients.AccessTokenTypeReference {
			handle, err := s.referenceRepo.Store(ctx, t)
			if err != nil {
				return "", errors.Wrap(err, "[CreateSecurityToken] reference store")
			}
			return handle, nil
		}
		return s.signToken(t)

	default:
		s.log.Error().Str("tokenType", t.Type).Msg("unrecognized token type reached the materializer")
		return "", interrors.Wrapf(interrors.ErrInternal, "[CreateSecurityToken] unrecognized token type %q", t.Type)
	}
}

// Hydrate resolves a reference-token handle back into its stored token.
// Unknown handles and expired tokens both report invalid so callers cannot
// probe for existence.
func (s *Service) Hydrate(ctx context.Context, handle string) (*Token, error) {
	t, err := s.referenceRepo.Get(ctx, handle)
	if err != nil {
		return nil, interrors.ErrInvalidGrant
	}
	if t.Expired(s.nowFunc()) {
		return nil, interrors.ErrExpiredToken
	}
	return t, nil
}

func (s *Service) signToken(t *Token) (string, error) {
	alg := s.signer.GetSigningMethod().Alg()
	if len(t.AllowedSigningAlgorithms) > 0 && !contains(t.AllowedSigningAlgorithms, alg) {
		return "", errors.Errorf("[signToken] signer algorithm %q not allowed for token", alg)
	}

	signedToken, err := s.signer.Sign(jwtClaims(t))
	if err != nil {
		return "", errors.Wrap(err, "[signToken] Sign")
	}
	return signedToken, nil
}

// jwtClaims flattens a Token into JWT map claims. Repeated claim types
// (scope, amr) accumulate into arrays.
func jwtClaims(t *Token) jwt.MapClaims {
	mapClaims := jwt.MapClaims{
		"iss": t.Issuer,
		"iat": t.CreationTime.Unix(),
		"nbf": t.CreationTime.Unix(),
		"exp": t.Expiration().Unix(),
	}

	if len(t.Audiences) == 1 {
		mapClaims["aud"] = t.Audiences[0]
	} else if len(t.Audiences) > 1 {
		mapClaims["aud"] = t.Audiences
	}

	if t.Confirmation != "" {
		mapClaims["cnf"] = t.Confirmation
	}

	for _, c := range t.Claims {
		value := claimValue(c)
		existing, ok := mapClaims[c.Type]
		if !ok {
			mapClaims[c.Type] = value
			continue
		}
		if arr, isArray := existing.([]interface{}); isArray {
			mapClaims[c.Type] = append(arr, value)
		} else {
			mapClaims[c.Type] = []interface{}{existing, value}
		}
	}

	return mapClaims
}

func claimValue(c claims.Claim) interface{} {
	if c.ValueType == "int64" {
		if n, err := strconv.ParseInt(c.Value, 10, 64); err == nil {
			return n
		}
	}
	return c.Value
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
