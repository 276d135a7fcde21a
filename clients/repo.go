package clients

import (
	"context"
	"errors"
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrInvalidScope   = errors.New("invalid scope")
)

// Repo is the read-only client metadata store the engine consults for policy
// fields (lifetimes, usage/expiration modes, consent flags, polling interval).
type Repo interface {
	Get(ctx context.Context, clientID string) (*Client, error)
}
