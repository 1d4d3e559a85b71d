package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-gate/internal/errors"
	"github.com/jrsteele09/go-session-gate/sessions"
	"github.com/jrsteele09/go-session-gate/token"
)

var _ sessions.Store = (*Store)(nil)

// Store is an in-memory session store
type Store struct {
	mu       sync.RWMutex
	sessions map[string]sessions.Record
	nowFunc  func() time.Time
}

type Option func(*Store)

// WithNowFunc overrides the clock used for session expiry
func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		s.nowFunc = now
	}
}

// New creates a new in-memory session store
func New(options ...Option) *Store {
	s := &Store{
		sessions: make(map[string]sessions.Record),
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Store) Create(_ context.Context, record *sessions.Record) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("session id is required: %w", errors.ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy so callers can't mutate the stored session
	s.sessions[record.ID] = *record
	return nil
}

func (s *Store) Read(_ context.Context, id string) (*sessions.Record, error) {
	s.mu.RLock()
	record, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	if s.expired(record) {
		s.deleteIfExpired(id)
		return nil, errors.ErrSessionNotFound
	}
	return &record, nil
}

func (s *Store) expired(record sessions.Record) bool {
	return !record.ExpiresAt.IsZero() && !record.ExpiresAt.After(s.nowFunc())
}

// deleteIfExpired drops the session only if it is still expired once the
// write lock is held; it may have been re-created since it was read
func (s *Store) deleteIfExpired(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.sessions[id]; ok && s.expired(record) {
		delete(s.sessions, id)
	}
}

func (s *Store) UpdateTokens(_ context.Context, id string, pair token.Pair) error {
	if !pair.Complete() {
		return errors.ErrIncompletePair
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.sessions[id]
	if !ok {
		return errors.ErrSessionNotFound
	}
	record.AccessToken = pair.AccessToken
	record.RefreshToken = pair.RefreshToken
	s.sessions[id] = record
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Len returns the number of stored sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
