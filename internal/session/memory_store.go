package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/joseph-ayodele/medilink/internal/common"
)

// MemoryStore keeps sessions in process with a sliding TTL (refreshed on
// every Put) and an optional cap on entries. When the cap is reached the
// least recently written session is evicted.
type MemoryStore struct {
	c          *cache.Cache
	ttl        time.Duration
	maxEntries int
	logger     *slog.Logger

	mu sync.Mutex // serializes capacity checks on Put
}

type MemoryOption func(*MemoryStore)

func WithMaxEntries(n int) MemoryOption {
	return func(m *MemoryStore) {
		if n > 0 {
			m.maxEntries = n
		}
	}
}

func WithMemoryLogger(l *slog.Logger) MemoryOption {
	return func(m *MemoryStore) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMemoryStore returns a store whose entries expire ttl after their last
// write. A non-positive ttl disables expiry.
func NewMemoryStore(ttl time.Duration, opts ...MemoryOption) *MemoryStore {
	exp := ttl
	cleanup := ttl / 2
	if ttl <= 0 {
		exp = cache.NoExpiration
		cleanup = 0
	} else if cleanup < time.Second {
		cleanup = time.Second
	}
	m := &MemoryStore{
		c:      cache.New(exp, cleanup),
		ttl:    exp,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	m.c.OnEvicted(func(id string, _ interface{}) {
		m.logger.Debug("session.store.expired", "session_id", id)
	})
	return m
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	v, ok := m.c.Get(id)
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, common.ErrSessionNotFound)
	}
	return v.(*Session).clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("put session: %w", common.ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxEntries > 0 {
		if _, exists := m.c.Get(s.ID); !exists && m.c.ItemCount() >= m.maxEntries {
			m.evictOldest()
		}
	}
	m.c.Set(s.ID, s.clone(), cache.DefaultExpiration)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.c.Delete(id)
	return nil
}

// Len reports the number of unexpired sessions.
func (m *MemoryStore) Len() int {
	return m.c.ItemCount()
}

func (m *MemoryStore) evictOldest() {
	var (
		oldestID string
		oldestAt time.Time
	)
	for id, item := range m.c.Items() {
		s, ok := item.Object.(*Session)
		if !ok {
			continue
		}
		if oldestID == "" || s.UpdatedAt.Before(oldestAt) {
			oldestID, oldestAt = id, s.UpdatedAt
		}
	}
	if oldestID != "" {
		m.c.Delete(oldestID)
		m.logger.Info("session.store.evicted", "session_id", oldestID, "reason", "max_entries", "max_entries", m.maxEntries)
	}
}
