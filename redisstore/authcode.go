package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-grant-engine/authcode"
)

var _ authcode.Repo = (*AuthCodeStore)(nil)

// AuthCodeStore is the Redis-backed authorization code store.
type AuthCodeStore struct {
	rdb     redis.UniversalClient
	nowFunc func() time.Time
	log     zerolog.Logger
}

// NewAuthCodeStore creates an authorization code store on the given client.
func NewAuthCodeStore(rdb redis.UniversalClient, options ...StoreOption) *AuthCodeStore {
	s := &AuthCodeStore{rdb: rdb, nowFunc: time.Now, log: zerolog.Nop()}
	applyOptions(&s.nowFunc, &s.log, options)
	return s
}

func (s *AuthCodeStore) Store(ctx context.Context, code *authcode.AuthorizationCode) (string, error) {
	payload, err := json.Marshal(code)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal authorization code")
	}
	rec := &record{
		Kind:      kindAuthorizationCode,
		SubjectID: code.SubjectID,
		ClientID:  code.ClientID,
		SessionID: code.SessionID,
		Payload:   payload,
	}
	return storeRecord(ctx, s.rdb, rec, ttlFor(code.Expiration(), s.nowFunc()))
}

func (s *AuthCodeStore) Get(ctx context.Context, handle string) (*authcode.AuthorizationCode, error) {
	rec, err := getRecord(ctx, s.rdb, handle, kindAuthorizationCode)
	if err != nil {
		return nil, err
	}
	var code authcode.AuthorizationCode
	if err := json.Unmarshal(rec.Payload, &code); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal authorization code")
	}
	return &code, nil
}

func (s *AuthCodeStore) Remove(ctx context.Context, handle string) error {
	rec, err := getRecord(ctx, s.rdb, handle, kindAuthorizationCode)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, grantKey(handle))
	pipe.SRem(ctx, subjectKey(rec.SubjectID), grantKey(handle))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *AuthCodeStore) GetAll(ctx context.Context, subjectID string) ([]*authcode.AuthorizationCode, error) {
	records, err := getAllRecords(ctx, s.rdb, s.log, subjectID, kindAuthorizationCode)
	if err != nil {
		return nil, err
	}

	codes := make([]*authcode.AuthorizationCode, 0, len(records))
	for _, rec := range records {
		var code authcode.AuthorizationCode
		if err := json.Unmarshal(rec.Payload, &code); err != nil {
			s.log.Warn().Err(err).Msg("skipping undecodable authorization code")
			continue
		}
		codes = append(codes, &code)
	}
	return codes, nil
}

func (s *AuthCodeStore) RemoveAll(ctx context.Context, subjectID, clientID, sessionID string) error {
	return removeAllRecords(ctx, s.rdb, s.log, subjectID, clientID, sessionID, kindAuthorizationCode)
}
