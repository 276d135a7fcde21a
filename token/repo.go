package token

import "context"

// ReferenceRepo stores reference access tokens server-side, keyed by an
// opaque handle the implementation generates on Store. The handle is the only
// thing the client ever sees.
type ReferenceRepo interface {
	Store(ctx context.Context, t *Token) (string, error)
	Get(ctx context.Context, handle string) (*Token, error)
	Remove(ctx context.Context, handle string) error
	GetAll(ctx context.Context, subjectID string) ([]*Token, error)
	RemoveAll(ctx context.Context, subjectID, clientID, sessionID string) error
}
