package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/medilink/constants"
	"github.com/joseph-ayodele/medilink/internal/common"
)

// Seed is everything needed to open a session after a successful analysis.
type Seed struct {
	Text         string // redacted
	DocType      constants.DocType
	Structured   json.RawMessage
	SystemPrompt string
	Analysis     string // the assistant's first reply
}

// Manager mediates every read and write of session state. Mutations of one
// session are serialized; different sessions never contend.
type Manager struct {
	store  Store
	locks  *keyedMutex
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		locks:  newKeyedMutex(),
		logger: logger,
		now:    time.Now,
	}
}

// Create stores a new session seeded with the system instruction, a user turn
// embedding the redacted text, and the first analysis.
func (m *Manager) Create(ctx context.Context, seed Seed) (string, error) {
	id := uuid.NewString()
	now := m.now().UTC()
	s := &Session{
		ID:         id,
		Text:       seed.Text,
		DocType:    seed.DocType,
		Structured: seed.Structured,
		Log: []Message{
			{Role: RoleSystem, Content: seed.SystemPrompt},
			{Role: RoleUser, Content: "Here is the text extracted from a medical document: " + seed.Text},
			{Role: RoleAssistant, Content: seed.Analysis},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Put(ctx, s); err != nil {
		m.logger.Error("session.create.failed", "error", err)
		return "", fmt.Errorf("store session: %w", err)
	}
	m.logger.Info("session.create.ok",
		"session_id", id,
		"document_type", seed.DocType,
		"text_len", len(seed.Text),
		"has_structured", len(seed.Structured) > 0,
	)
	return id, nil
}

// Get returns a copy of the session.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	return m.store.Get(ctx, id)
}

// Append adds one message to the session's log.
func (m *Manager) Append(ctx context.Context, id string, role Role, content string) error {
	if err := validateTurn(role, content); err != nil {
		return err
	}
	return m.Update(ctx, id, func(s *Session) error {
		s.Log = append(s.Log, Message{Role: role, Content: content})
		return nil
	})
}

// Window returns the bounded view of the session's log.
func (m *Manager) Window(ctx context.Context, id string) ([]Message, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	w := BuildWindow(s)
	if len(w) != len(s.Log) {
		m.logger.Debug("session.window.collapsed", "session_id", id, "log_len", len(s.Log), "window_len", len(w))
	}
	return w, nil
}

// Replace swaps the session's log wholesale, e.g. with a compacted copy.
func (m *Manager) Replace(ctx context.Context, id string, log []Message) error {
	if len(log) == 0 || log[0].Role != RoleSystem {
		return common.NewAppError("INVALID_LOG", "log must start with the system message", common.ErrInvalidInput)
	}
	for _, msg := range log {
		if !msg.Role.Valid() {
			return common.NewAppError("INVALID_ROLE", fmt.Sprintf("unknown role %q", msg.Role), common.ErrInvalidRole)
		}
	}
	return m.Update(ctx, id, func(s *Session) error {
		s.Log = append([]Message(nil), log...)
		return nil
	})
}

// Update runs fn on the session under its key lock and stores the result.
// fn may call out to slow collaborators; other sessions are unaffected.
// If fn returns an error nothing is written.
func (m *Manager) Update(ctx context.Context, id string, fn func(s *Session) error) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	s.UpdatedAt = m.now().UTC()
	if err := m.store.Put(ctx, s); err != nil {
		m.logger.Error("session.update.failed", "session_id", id, "error", err)
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func validateTurn(role Role, content string) error {
	if !role.Valid() {
		return common.NewAppError("INVALID_ROLE", fmt.Sprintf("unknown role %q", role), common.ErrInvalidRole)
	}
	if role == RoleUser && strings.TrimSpace(content) == "" {
		return common.NewAppError("EMPTY_MESSAGE", "Message cannot be empty", common.ErrEmptyMessage)
	}
	return nil
}

// keyedMutex hands out one mutex per key, dropping it once no one holds or
// waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*refMutex{}}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refMutex{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
