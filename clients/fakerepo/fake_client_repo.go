package fakeclientrepo

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-grant-engine/clients"
)

var _ clients.Repo = (*FakeClientRepo)(nil)

type FakeClientRepo struct {
	clientsByID map[string]*clients.Client
	lock        sync.RWMutex
}

func NewFakeClientRepo() *FakeClientRepo {
	return &FakeClientRepo{
		clientsByID: make(map[string]*clients.Client),
	}
}

func (cr *FakeClientRepo) Add(client *clients.Client) {
	cr.lock.Lock()
	defer cr.lock.Unlock()
	cr.clientsByID[client.ID] = client
}

func (cr *FakeClientRepo) Get(_ context.Context, clientID string) (*clients.Client, error) {
	cr.lock.RLock()
	defer cr.lock.RUnlock()
	client, ok := cr.clientsByID[clientID]
	if !ok {
		return nil, clients.ErrClientNotFound
	}
	return client, nil
}
