package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-grant-engine/token/refresh"
)

var _ refresh.Repo = (*RefreshTokenStore)(nil)

// RefreshTokenStore is the Redis-backed refresh token store. Update uses an
// optimistic WATCH transaction so two concurrent rotations of the same
// handle cannot both succeed.
type RefreshTokenStore struct {
	rdb     redis.UniversalClient
	nowFunc func() time.Time
	log     zerolog.Logger
}

// NewRefreshTokenStore creates a refresh token store on the given client.
func NewRefreshTokenStore(rdb redis.UniversalClient, options ...StoreOption) *RefreshTokenStore {
	s := &RefreshTokenStore{rdb: rdb, nowFunc: time.Now, log: zerolog.Nop()}
	applyOptions(&s.nowFunc, &s.log, options)
	return s
}

func (s *RefreshTokenStore) Store(ctx context.Context, rt *refresh.StoredRefreshToken) (string, error) {
	rec, err := refreshRecord(rt)
	if err != nil {
		return "", err
	}
	return storeRecord(ctx, s.rdb, rec, ttlFor(rt.Expiration(), s.nowFunc()))
}

func (s *RefreshTokenStore) Update(ctx context.Context, handle string, rt *refresh.StoredRefreshToken) error {
	rec, err := refreshRecord(rt)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "failed to marshal refresh token")
	}

	key := grantKey(handle)
	ttl := ttlFor(rt.Expiration(), s.nowFunc())

	// Optimistic read-modify-write: fail if the record changed or vanished
	// between the read and the write.
	return s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		if err := tx.Get(ctx, key).Err(); err != nil {
			return errors.Wrap(err, "refresh token not found")
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}, key)
}

func (s *RefreshTokenStore) Get(ctx context.Context, handle string) (*refresh.StoredRefreshToken, error) {
	rec, err := getRecord(ctx, s.rdb, handle, kindRefreshToken)
	if err != nil {
		return nil, err
	}
	return decodeRefreshToken(rec)
}

func (s *RefreshTokenStore) Remove(ctx context.Context, handle string) error {
	rec, err := getRecord(ctx, s.rdb, handle, kindRefreshToken)
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

func (s *RefreshTokenStore) GetAll(ctx context.Context, subjectID string) ([]*refresh.StoredRefreshToken, error) {
	records, err := getAllRecords(ctx, s.rdb, s.log, subjectID, kindRefreshToken)
	if err != nil {
		return nil, err
	}

	tokens := make([]*refresh.StoredRefreshToken, 0, len(records))
	for _, rec := range records {
		rt, err := decodeRefreshToken(rec)
		if err != nil {
			s.log.Warn().Err(err).Msg("skipping undecodable refresh token")
			continue
		}
		tokens = append(tokens, rt)
	}
	return tokens, nil
}

func (s *RefreshTokenStore) RemoveAll(ctx context.Context, subjectID, clientID, sessionID string) error {
	return removeAllRecords(ctx, s.rdb, s.log, subjectID, clientID, sessionID, kindRefreshToken)
}

func refreshRecord(rt *refresh.StoredRefreshToken) (*record, error) {
	payload, err := json.Marshal(rt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal refresh token")
	}
	return &record{
		Kind:      kindRefreshToken,
		SubjectID: rt.SubjectID,
		ClientID:  rt.ClientID,
		SessionID: rt.SessionID,
		Payload:   payload,
	}, nil
}

func decodeRefreshToken(rec *record) (*refresh.StoredRefreshToken, error) {
	var rt refresh.StoredRefreshToken
	if err := json.Unmarshal(rec.Payload, &rt); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal refresh token")
	}
	return &rt, nil
}
