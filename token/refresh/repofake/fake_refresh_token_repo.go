package refreshrepofake

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/jrsteele09/go-grant-engine/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

// FakeRefreshTokenRepo is an in-memory refresh token store. The mutex gives
// the read-modify-write atomicity the rotator relies on.
type FakeRefreshTokenRepo struct {
	tokens map[string]*refresh.StoredRefreshToken
	lock   sync.RWMutex
}

func NewFakeRefreshTokenRepo() *FakeRefreshTokenRepo {
	return &FakeRefreshTokenRepo{
		tokens: make(map[string]*refresh.StoredRefreshToken),
	}
}

func (tr *FakeRefreshTokenRepo) Store(_ context.Context, rt *refresh.StoredRefreshToken) (string, error) {
	handleBytes := make([]byte, 32) // 256 bits
	if _, err := rand.Read(handleBytes); err != nil {
		return "", err
	}
	handle := hex.EncodeToString(handleBytes)

	tr.lock.Lock()
	defer tr.lock.Unlock()
	copied := *rt
	tr.tokens[handle] = &copied
	return handle, nil
}

func (tr *FakeRefreshTokenRepo) Update(_ context.Context, handle string, rt *refresh.StoredRefreshToken) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	if _, ok := tr.tokens[handle]; !ok {
		return errors.New("not found")
	}
	copied := *rt
	tr.tokens[handle] = &copied
	return nil
}

func (tr *FakeRefreshTokenRepo) Get(_ context.Context, handle string) (*refresh.StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	rt, ok := tr.tokens[handle]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *rt
	return &copied, nil
}

func (tr *FakeRefreshTokenRepo) Remove(_ context.Context, handle string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	delete(tr.tokens, handle)
	return nil
}

func (tr *FakeRefreshTokenRepo) GetAll(_ context.Context, subjectID string) ([]*refresh.StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	var tokens []*refresh.StoredRefreshToken
	for _, rt := range tr.tokens {
		if rt.SubjectID == subjectID {
			copied := *rt
			tokens = append(tokens, &copied)
		}
	}
	return tokens, nil
}

func (tr *FakeRefreshTokenRepo) RemoveAll(_ context.Context, subjectID, clientID, sessionID string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	for handle, rt := range tr.tokens {
		if rt.SubjectID != subjectID || rt.ClientID != clientID {
			continue
		}
		if sessionID != "" && rt.SessionID != sessionID {
			continue
		}
		delete(tr.tokens, handle)
	}
	return nil
}
