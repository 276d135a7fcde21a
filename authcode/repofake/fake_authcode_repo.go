package authcoderepofake

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/jrsteele09/go-grant-engine/authcode"
)

var _ authcode.Repo = (*FakeAuthCodeRepo)(nil)

type FakeAuthCodeRepo struct {
	codes map[string]*authcode.AuthorizationCode
	lock  sync.RWMutex
}

func NewFakeAuthCodeRepo() *FakeAuthCodeRepo {
	return &FakeAuthCodeRepo{
		codes: make(map[string]*authcode.AuthorizationCode),
	}
}

func (cr *FakeAuthCodeRepo) Store(_ context.Context, code *authcode.AuthorizationCode) (string, error) {
	handleBytes := make([]byte, 32) // 256 bits
	if _, err := rand.Read(handleBytes); err != nil {
		return "", err
	}
	handle := hex.EncodeToString(handleBytes)

	cr.lock.Lock()
	defer cr.lock.Unlock()
	copied := *code
	cr.codes[handle] = &copied
	return handle, nil
}

func (cr *FakeAuthCodeRepo) Get(_ context.Context, handle string) (*authcode.AuthorizationCode, error) {
	cr.lock.RLock()
	defer cr.lock.RUnlock()
	code, ok := cr.codes[handle]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *code
	return &copied, nil
}

func (cr *FakeAuthCodeRepo) Remove(_ context.Context, handle string) error {
	cr.lock.Lock()
	defer cr.lock.Unlock()
	delete(cr.codes, handle)
	return nil
}

func (cr *FakeAuthCodeRepo) GetAll(_ context.Context, subjectID string) ([]*authcode.AuthorizationCode, error) {
	cr.lock.RLock()
	defer cr.lock.RUnlock()

	var codes []*authcode.AuthorizationCode
	for _, code := range cr.codes {
		if code.SubjectID == subjectID {
			copied := *code
			codes = append(codes, &copied)
		}
	}
	return codes, nil
}

func (cr *FakeAuthCodeRepo) RemoveAll(_ context.Context, subjectID, clientID, sessionID string) error {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	for handle, code := range cr.codes {
		if code.SubjectID != subjectID || code.ClientID != clientID {
			continue
		}
		if sessionID != "" && code.SessionID != sessionID {
			continue
		}
		delete(cr.codes, handle)
	}
	return nil
}
