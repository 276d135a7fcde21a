package devicerepofake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jrsteele09/go-grant-engine/deviceflow"
)

var _ deviceflow.Repo = (*FakeDeviceRepo)(nil)

// FakeDeviceRepo is an in-memory device authorization store keyed by hashed
// device code with a user-code hash index.
type FakeDeviceRepo struct {
	byDeviceCode map[string]*deviceflow.Authorization
	userToDevice map[string]string
	lock         sync.RWMutex
}

func NewFakeDeviceRepo() *FakeDeviceRepo {
	return &FakeDeviceRepo{
		byDeviceCode: make(map[string]*deviceflow.Authorization),
		userToDevice: make(map[string]string),
	}
}

func (dr *FakeDeviceRepo) Store(_ context.Context, deviceCodeHash, userCodeHash string, a *deviceflow.Authorization) error {
	dr.lock.Lock()
	defer dr.lock.Unlock()
	copied := *a
	dr.byDeviceCode[deviceCodeHash] = &copied
	dr.userToDevice[userCodeHash] = deviceCodeHash
	return nil
}

func (dr *FakeDeviceRepo) GetByDeviceCode(_ context.Context, deviceCodeHash string) (*deviceflow.Authorization, error) {
	dr.lock.RLock()
	defer dr.lock.RUnlock()
	a, ok := dr.byDeviceCode[deviceCodeHash]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *a
	return &copied, nil
}

func (dr *FakeDeviceRepo) GetByUserCode(_ context.Context, userCodeHash string) (*deviceflow.Authorization, error) {
	dr.lock.RLock()
	defer dr.lock.RUnlock()
	deviceCodeHash, ok := dr.userToDevice[userCodeHash]
	if !ok {
		return nil, errors.New("not found")
	}
	a, ok := dr.byDeviceCode[deviceCodeHash]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *a
	return &copied, nil
}

func (dr *FakeDeviceRepo) UpdateByUserCode(_ context.Context, userCodeHash string, a *deviceflow.Authorization) error {
	dr.lock.Lock()
	defer dr.lock.Unlock()
	deviceCodeHash, ok := dr.userToDevice[userCodeHash]
	if !ok {
		return errors.New("not found")
	}
	copied := *a
	dr.byDeviceCode[deviceCodeHash] = &copied
	return nil
}

func (dr *FakeDeviceRepo) Remove(_ context.Context, deviceCodeHash string) error {
	dr.lock.Lock()
	defer dr.lock.Unlock()
	delete(dr.byDeviceCode, deviceCodeHash)
	for userHash, deviceHash := range dr.userToDevice {
		if deviceHash == deviceCodeHash {
			delete(dr.userToDevice, userHash)
		}
	}
	return nil
}

var _ deviceflow.ThrottleCache = (*FakeThrottleCache)(nil)

// FakeThrottleCache is an in-memory ThrottleCache honoring entry TTLs.
type FakeThrottleCache struct {
	entries map[string]throttleEntry
	nowFunc func() time.Time
	lock    sync.Mutex
}

type throttleEntry struct {
	lastPoll time.Time
	expires  time.Time
}

func NewFakeThrottleCache(nowFunc func() time.Time) *FakeThrottleCache {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &FakeThrottleCache{
		entries: make(map[string]throttleEntry),
		nowFunc: nowFunc,
	}
}

func (tc *FakeThrottleCache) Get(_ context.Context, deviceCodeHash string) (time.Time, bool, error) {
	tc.lock.Lock()
	defer tc.lock.Unlock()
	entry, ok := tc.entries[deviceCodeHash]
	if !ok || tc.nowFunc().After(entry.expires) {
		return time.Time{}, false, nil
	}
	return entry.lastPoll, true, nil
}

func (tc *FakeThrottleCache) Set(_ context.Context, deviceCodeHash string, lastPoll time.Time, ttl time.Duration) error {
	tc.lock.Lock()
	defer tc.lock.Unlock()
	tc.entries[deviceCodeHash] = throttleEntry{
		lastPoll: lastPoll,
		expires:  lastPoll.Add(ttl),
	}
	return nil
}
