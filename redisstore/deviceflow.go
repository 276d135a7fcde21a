package redisstore

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-grant-engine/deviceflow"
)

var _ deviceflow.Repo = (*DeviceFlowStore)(nil)

// DeviceFlowStore is the Redis-backed device authorization store. The record
// lives under the hashed device code; the hashed user code holds a pointer
// to it with the same TTL.
type DeviceFlowStore struct {
	rdb     redis.UniversalClient
	nowFunc func() time.Time
	log     zerolog.Logger
}

// NewDeviceFlowStore creates a device authorization store on the given client.
func NewDeviceFlowStore(rdb redis.UniversalClient, options ...StoreOption) *DeviceFlowStore {
	s := &DeviceFlowStore{rdb: rdb, nowFunc: time.Now, log: zerolog.Nop()}
	applyOptions(&s.nowFunc, &s.log, options)
	return s
}

func userCodeKey(userCodeHash string) string {
	return userCodePrefix + userCodeHash
}

func (s *DeviceFlowStore) Store(ctx context.Context, deviceCodeHash, userCodeHash string, a *deviceflow.Authorization) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, "failed to marshal device authorization")
	}
	rec := &record{
		Kind:      kindDeviceCode,
		SubjectID: a.SubjectID,
		ClientID:  a.ClientID,
		SessionID: a.SessionID,
		Payload:   payload,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "failed to marshal record")
	}

	ttl := ttlFor(a.Expiration(), s.nowFunc())
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, grantKey(deviceCodeHash), data, ttl)
	pipe.Set(ctx, userCodeKey(userCodeHash), deviceCodeHash, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *DeviceFlowStore) GetByDeviceCode(ctx context.Context, deviceCodeHash string) (*deviceflow.Authorization, error) {
	rec, err := getRecord(ctx, s.rdb, deviceCodeHash, kindDeviceCode)
	if err != nil {
		return nil, err
	}
	return decodeAuthorization(rec)
}

func (s *DeviceFlowStore) GetByUserCode(ctx context.Context, userCodeHash string) (*deviceflow.Authorization, error) {
	deviceCodeHash, err := s.rdb.Get(ctx, userCodeKey(userCodeHash)).Result()
	if err != nil {
		return nil, err
	}
	return s.GetByDeviceCode(ctx, deviceCodeHash)
}

func (s *DeviceFlowStore) UpdateByUserCode(ctx context.Context, userCodeHash string, a *deviceflow.Authorization) error {
	deviceCodeHash, err := s.rdb.Get(ctx, userCodeKey(userCodeHash)).Result()
	if err != nil {
		return errors.Wrap(err, "device authorization not found")
	}

	payload, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, "failed to marshal device authorization")
	}
	rec := &record{
		Kind:      kindDeviceCode,
		SubjectID: a.SubjectID,
		ClientID:  a.ClientID,
		SessionID: a.SessionID,
		Payload:   payload,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "failed to marshal record")
	}

	key := grantKey(deviceCodeHash)
	ttl := ttlFor(a.Expiration(), s.nowFunc())

	// Optimistic read-modify-write so a user code resolves exactly once even
	// under concurrent submissions.
	return s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		if err := tx.Get(ctx, key).Err(); err != nil {
			return errors.Wrap(err, "device authorization not found")
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}, key)
}

func (s *DeviceFlowStore) Remove(ctx context.Context, deviceCodeHash string) error {
	return s.rdb.Del(ctx, grantKey(deviceCodeHash)).Err()
}

func decodeAuthorization(rec *record) (*deviceflow.Authorization, error) {
	var a deviceflow.Authorization
	if err := json.Unmarshal(rec.Payload, &a); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal device authorization")
	}
	return &a, nil
}

var _ deviceflow.ThrottleCache = (*ThrottleCache)(nil)

// ThrottleCache stores last poll times with TTLs matching the device code's
// remaining lifetime, per the polling back-off semantics.
type ThrottleCache struct {
	rdb redis.UniversalClient
}

// NewThrottleCache creates a throttle cache on the given client.
func NewThrottleCache(rdb redis.UniversalClient) *ThrottleCache {
	return &ThrottleCache{rdb: rdb}
}

func (c *ThrottleCache) Get(ctx context.Context, deviceCodeHash string) (time.Time, bool, error) {
	value, err := c.rdb.Get(ctx, throttlePrefix+deviceCodeHash).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}

	nanos, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, "corrupt throttle entry")
	}
	return time.Unix(0, nanos), true, nil
}

func (c *ThrottleCache) Set(ctx context.Context, deviceCodeHash string, lastPoll time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Second
	}
	return c.rdb.Set(ctx, throttlePrefix+deviceCodeHash, strconv.FormatInt(lastPoll.UnixNano(), 10), ttl).Err()
}
