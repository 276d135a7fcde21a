package consentrepofake

import (
	"context"
	"errors"
	"sync"

	"github.com/jrsteele09/go-grant-engine/consent"
)

var _ consent.Repo = (*FakeConsentRepo)(nil)

type FakeConsentRepo struct {
	consents map[string]*consent.Consent // key: subjectID + "|" + clientID
	lock     sync.RWMutex
}

func NewFakeConsentRepo() *FakeConsentRepo {
	return &FakeConsentRepo{
		consents: make(map[string]*consent.Consent),
	}
}

func key(subjectID, clientID string) string {
	return subjectID + "|" + clientID
}

func (cr *FakeConsentRepo) Store(_ context.Context, c *consent.Consent) error {
	cr.lock.Lock()
	defer cr.lock.Unlock()
	copied := *c
	cr.consents[key(c.SubjectID, c.ClientID)] = &copied
	return nil
}

func (cr *FakeConsentRepo) Get(_ context.Context, subjectID, clientID string) (*consent.Consent, error) {
	cr.lock.RLock()
	defer cr.lock.RUnlock()
	c, ok := cr.consents[key(subjectID, clientID)]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *c
	return &copied, nil
}

func (cr *FakeConsentRepo) Remove(_ context.Context, subjectID, clientID string) error {
	cr.lock.Lock()
	defer cr.lock.Unlock()
	delete(cr.consents, key(subjectID, clientID))
	return nil
}

func (cr *FakeConsentRepo) GetAll(_ context.Context, subjectID string) ([]*consent.Consent, error) {
	cr.lock.RLock()
	defer cr.lock.RUnlock()

	var consents []*consent.Consent
	for _, c := range cr.consents {
		if c.SubjectID == subjectID {
			copied := *c
			consents = append(consents, &copied)
		}
	}
	return consents, nil
}
