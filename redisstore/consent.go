package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-grant-engine/consent"
)

var _ consent.Repo = (*ConsentStore)(nil)

// ConsentStore is the Redis-backed remembered consent store. Consent is
// keyed by (subject, client) rather than an opaque handle, so the key is
// derived instead of generated.
type ConsentStore struct {
	rdb     redis.UniversalClient
	nowFunc func() time.Time
	log     zerolog.Logger
}

// NewConsentStore creates a consent store on the given client.
func NewConsentStore(rdb redis.UniversalClient, options ...StoreOption) *ConsentStore {
	s := &ConsentStore{rdb: rdb, nowFunc: time.Now, log: zerolog.Nop()}
	applyOptions(&s.nowFunc, &s.log, options)
	return s
}

func consentHandle(subjectID, clientID string) string {
	return "consent:" + subjectID + "|" + clientID
}

func (s *ConsentStore) Store(ctx context.Context, c *consent.Consent) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal consent")
	}
	rec := &record{
		Kind:      kindConsent,
		SubjectID: c.SubjectID,
		ClientID:  c.ClientID,
		Payload:   payload,
	}

	var ttl time.Duration // 0 = no expiry
	if c.Expiration != nil {
		ttl = ttlFor(*c.Expiration, s.nowFunc())
	}
	return writeRecord(ctx, s.rdb, consentHandle(c.SubjectID, c.ClientID), rec, ttl)
}

func (s *ConsentStore) Get(ctx context.Context, subjectID, clientID string) (*consent.Consent, error) {
	rec, err := getRecord(ctx, s.rdb, consentHandle(subjectID, clientID), kindConsent)
	if err != nil {
		return nil, err
	}
	var c consent.Consent
	if err := json.Unmarshal(rec.Payload, &c); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal consent")
	}
	return &c, nil
}

func (s *ConsentStore) Remove(ctx context.Context, subjectID, clientID string) error {
	handle := consentHandle(subjectID, clientID)
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, grantKey(handle))
	pipe.SRem(ctx, subjectKey(subjectID), grantKey(handle))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *ConsentStore) GetAll(ctx context.Context, subjectID string) ([]*consent.Consent, error) {
	records, err := getAllRecords(ctx, s.rdb, s.log, subjectID, kindConsent)
	if err != nil {
		return nil, err
	}

	consents := make([]*consent.Consent, 0, len(records))
	for _, rec := range records {
		var c consent.Consent
		if err := json.Unmarshal(rec.Payload, &c); err != nil {
			s.log.Warn().Err(err).Msg("skipping undecodable consent record")
			continue
		}
		consents = append(consents, &c)
	}
	return consents, nil
}
