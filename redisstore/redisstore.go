// Package redisstore provides Redis-backed implementations of the engine's
// store interfaces. Every grant kind shares one record envelope tagged with a
// type discriminator, keyed by opaque handle, with a per-subject index set so
// the consolidator can fan in across kinds. Record TTLs track the grant's
// own lifetime.
package redisstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Grant kind discriminators stored in the shared record envelope.
const (
	kindAuthorizationCode = "authorization_code"
	kindRefreshToken      = "refresh_token"
	kindReferenceToken    = "reference_token"
	kindConsent           = "user_consent"
	kindDeviceCode        = "device_code"
)

const (
	grantKeyPrefix   = "grant:"
	subjectKeyPrefix = "grantsub:"
	userCodePrefix   = "usercode:"
	throttlePrefix   = "throttle:"
)

// record is the shared serialized form for all grant kinds.
type record struct {
	Kind      string          `json:"type"`
	SubjectID string          `json:"subjectId,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// StoreOption configures a store in this package.
type StoreOption func(*storeSettings)

type storeSettings struct {
	nowFunc func() time.Time
	log     zerolog.Logger
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) StoreOption {
	return func(s *storeSettings) {
		s.nowFunc = now
	}
}

// WithLogger sets the store logger.
func WithLogger(log zerolog.Logger) StoreOption {
	return func(s *storeSettings) {
		s.log = log
	}
}

func applyOptions(nowFunc *func() time.Time, log *zerolog.Logger, options []StoreOption) {
	settings := storeSettings{nowFunc: *nowFunc, log: *log}
	for _, opt := range options {
		opt(&settings)
	}
	*nowFunc = settings.nowFunc
	*log = settings.log
}

func grantKey(handle string) string {
	return grantKeyPrefix + handle
}

func subjectKey(subjectID string) string {
	return subjectKeyPrefix + subjectID
}

func newHandle() (string, error) {
	handleBytes := make([]byte, 32) // 256 bits
	if _, err := rand.Read(handleBytes); err != nil {
		return "", errors.Wrap(err, "failed to generate handle")
	}
	return hex.EncodeToString(handleBytes), nil
}

// storeRecord writes a record under a fresh handle and indexes it by subject.
func storeRecord(ctx context.Context, rdb redis.UniversalClient, rec *record, ttl time.Duration) (string, error) {
	handle, err := newHandle()
	if err != nil {
		return "", err
	}
	if err := writeRecord(ctx, rdb, handle, rec, ttl); err != nil {
		return "", err
	}
	return handle, nil
}

func writeRecord(ctx context.Context, rdb redis.UniversalClient, handle string, rec *record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "failed to marshal record")
	}

	pipe := rdb.TxPipeline()
	pipe.Set(ctx, grantKey(handle), data, ttl)
	if rec.SubjectID != "" {
		pipe.SAdd(ctx, subjectKey(rec.SubjectID), grantKey(handle))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to write record")
	}
	return nil
}

// getRecord loads and decodes a single record, enforcing its kind. A missing
// key or a kind mismatch both come back as redis.Nil so callers treat them
// as not found.
func getRecord(ctx context.Context, rdb redis.UniversalClient, handle, kind string) (*record, error) {
	data, err := rdb.Get(ctx, grantKey(handle)).Bytes()
	if err != nil {
		return nil, err
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal record")
	}
	if rec.Kind != kind {
		return nil, redis.Nil
	}
	return &rec, nil
}

// getAllRecords loads every indexed record for a subject and keeps those of
// the wanted kind. Records that fail to deserialize are logged and skipped;
// index members whose keys have expired are pruned lazily.
func getAllRecords(ctx context.Context, rdb redis.UniversalClient, log zerolog.Logger, subjectID, kind string) ([]*record, error) {
	keys, err := rdb.SMembers(ctx, subjectKey(subjectID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read subject index")
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load records")
	}

	var records []*record
	for i, value := range values {
		if value == nil {
			rdb.SRem(ctx, subjectKey(subjectID), keys[i])
			continue
		}
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			log.Warn().Err(err).Str("key", keys[i]).Msg("skipping undecodable grant record")
			continue
		}
		if rec.Kind != kind {
			continue
		}
		recCopy := rec
		recCopy.Payload = append(json.RawMessage(nil), rec.Payload...)
		records = append(records, &recCopy)
	}
	return records, nil
}

// removeAllRecords deletes every record of the given kind for the
// subject/client pairing. An empty sessionID matches all sessions.
func removeAllRecords(ctx context.Context, rdb redis.UniversalClient, log zerolog.Logger, subjectID, clientID, sessionID, kind string) error {
	keys, err := rdb.SMembers(ctx, subjectKey(subjectID)).Result()
	if err != nil {
		return errors.Wrap(err, "failed to read subject index")
	}

	for _, key := range keys {
		data, err := rdb.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				rdb.SRem(ctx, subjectKey(subjectID), key)
			}
			continue
		}
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("skipping undecodable grant record during revocation")
			continue
		}
		if rec.Kind != kind || rec.ClientID != clientID {
			continue
		}
		if sessionID != "" && rec.SessionID != sessionID {
			continue
		}
		pipe := rdb.TxPipeline()
		pipe.Del(ctx, key)
		pipe.SRem(ctx, subjectKey(subjectID), key)
		if _, err := pipe.Exec(ctx); err != nil {
			return errors.Wrap(err, "failed to delete record")
		}
	}
	return nil
}

func ttlFor(expiration, now time.Time) time.Duration {
	ttl := expiration.Sub(now)
	if ttl <= 0 {
		ttl = time.Second
	}
	return ttl
}
