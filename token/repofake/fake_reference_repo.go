package tokenrepofake

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/jrsteele09/go-grant-engine/token"
)

var _ token.ReferenceRepo = (*FakeReferenceRepo)(nil)

// FakeReferenceRepo is an in-memory reference token store for tests and
// single-process deployments.
type FakeReferenceRepo struct {
	tokens map[string]*token.Token
	lock   sync.RWMutex
}

func NewFakeReferenceRepo() *FakeReferenceRepo {
	return &FakeReferenceRepo{
		tokens: make(map[string]*token.Token),
	}
}

func (tr *FakeReferenceRepo) Store(_ context.Context, t *token.Token) (string, error) {
	handleBytes := make([]byte, 32) // 256 bits
	if _, err := rand.Read(handleBytes); err != nil {
		return "", err
	}
	handle := hex.EncodeToString(handleBytes)

	tr.lock.Lock()
	defer tr.lock.Unlock()
	tr.tokens[handle] = t
	return handle, nil
}

func (tr *FakeReferenceRepo) Get(_ context.Context, handle string) (*token.Token, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	t, ok := tr.tokens[handle]
	if !ok {
		return nil, errors.New("not found")
	}
	return t, nil
}

func (tr *FakeReferenceRepo) Remove(_ context.Context, handle string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	delete(tr.tokens, handle)
	return nil
}

func (tr *FakeReferenceRepo) GetAll(_ context.Context, subjectID string) ([]*token.Token, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	var tokens []*token.Token
	for _, t := range tr.tokens {
		if t.SubjectID == subjectID {
			tokens = append(tokens, t)
		}
	}
	return tokens, nil
}

func (tr *FakeReferenceRepo) RemoveAll(_ context.Context, subjectID, clientID, sessionID string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	for handle, t := range tr.tokens {
		if t.SubjectID != subjectID || t.ClientID != clientID {
			continue
		}
		if sessionID != "" && t.SessionID != sessionID {
			continue
		}
		delete(tr.tokens, handle)
	}
	return nil
}
