package oauthflow

import (
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-gate/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a thread-safe in-memory Repo whose entries expire after ttl
type InMemoryRepo struct {
	mu      sync.RWMutex
	states  map[string]*FlowState
	ttl     time.Duration
	nowFunc func() time.Time
}

type Option func(*InMemoryRepo)

func WithNowFunc(now func() time.Time) Option {
	return func(r *InMemoryRepo) {
		r.nowFunc = now
	}
}

func NewInMemoryRepo(ttl time.Duration, options ...Option) *InMemoryRepo {
	r := &InMemoryRepo{
		states:  make(map[string]*FlowState),
		ttl:     ttl,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Upsert stores a flow state and drops any that have expired
func (r *InMemoryRepo) Upsert(state string, flow *FlowState) error {
	if state == "" || flow == nil {
		return fmt.Errorf("%w: state and flow are required", errors.ErrInvalidRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, existing := range r.states {
		if r.expired(existing) {
			delete(r.states, key)
		}
	}

	// Store a copy to prevent external modifications
	stored := *flow
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.nowFunc()
	}
	r.states[state] = &stored
	return nil
}

func (r *InMemoryRepo) Get(state string) (*FlowState, error) {
	if state == "" {
		return nil, errors.ErrInvalidState
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	flow, ok := r.states[state]
	if !ok || r.expired(flow) {
		return nil, errors.ErrInvalidState
	}

	copied := *flow
	return &copied, nil
}

func (r *InMemoryRepo) Delete(state string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, state)
	return nil
}

// Len returns the number of stored states, expired ones included
func (r *InMemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}

func (r *InMemoryRepo) expired(flow *FlowState) bool {
	return r.ttl > 0 && r.nowFunc().Sub(flow.CreatedAt) > r.ttl
}
