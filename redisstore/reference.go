package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-grant-engine/token"
)

var _ token.ReferenceRepo = (*ReferenceTokenStore)(nil)

// ReferenceTokenStore is the Redis-backed reference access token store.
type ReferenceTokenStore struct {
	rdb     redis.UniversalClient
	nowFunc func() time.Time
	log     zerolog.Logger
}

// NewReferenceTokenStore creates a reference token store on the given client.
func NewReferenceTokenStore(rdb redis.UniversalClient, options ...StoreOption) *ReferenceTokenStore {
	s := &ReferenceTokenStore{rdb: rdb, nowFunc: time.Now, log: zerolog.Nop()}
	applyOptions(&s.nowFunc, &s.log, options)
	return s
}

func (s *ReferenceTokenStore) Store(ctx context.Context, t *token.Token) (string, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal token")
	}
	rec := &record{
		Kind:      kindReferenceToken,
		SubjectID: t.SubjectID,
		ClientID:  t.ClientID,
		SessionID: t.SessionID,
		Payload:   payload,
	}
	return storeRecord(ctx, s.rdb, rec, ttlFor(t.Expiration(), s.nowFunc()))
}

func (s *ReferenceTokenStore) Get(ctx context.Context, handle string) (*token.Token, error) {
	rec, err := getRecord(ctx, s.rdb, handle, kindReferenceToken)
	if err != nil {
		return nil, err
	}
	var t token.Token
	if err := json.Unmarshal(rec.Payload, &t); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal token")
	}
	return &t, nil
}

func (s *ReferenceTokenStore) Remove(ctx context.Context, handle string) error {
	rec, err := getRecord(ctx, s.rdb, handle, kindReferenceToken)
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

func (s *ReferenceTokenStore) GetAll(ctx context.Context, subjectID string) ([]*token.Token, error) {
	records, err := getAllRecords(ctx, s.rdb, s.log, subjectID, kindReferenceToken)
	if err != nil {
		return nil, err
	}

	tokens := make([]*token.Token, 0, len(records))
	for _, rec := range records {
		var t token.Token
		if err := json.Unmarshal(rec.Payload, &t); err != nil {
			s.log.Warn().Err(err).Msg("skipping undecodable reference token")
			continue
		}
		tokens = append(tokens, &t)
	}
	return tokens, nil
}

func (s *ReferenceTokenStore) RemoveAll(ctx context.Context, subjectID, clientID, sessionID string) error {
	return removeAllRecords(ctx, s.rdb, s.log, subjectID, clientID, sessionID, kindReferenceToken)
}
