package session

import (
	"context"
)

// Store persists sessions by ID. Expiry and eviction are the store's policy;
// Get on an expired or evicted ID returns common.ErrSessionNotFound.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
