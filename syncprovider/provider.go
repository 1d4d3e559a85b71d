// Package syncprovider keeps one session's tokens fresh for as long as a
// client stays connected.
package syncprovider

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-gate/bus"
	"github.com/jrsteele09/go-session-gate/internal/metrics"
	"github.com/jrsteele09/go-session-gate/sessions"
	"github.com/jrsteele09/go-session-gate/token"
	"github.com/rs/zerolog/log"
)

const DefaultInterval = 5 * time.Minute

// Check outcomes
const (
	CheckFresh      = "fresh"
	CheckRefreshing = "refreshing"
	CheckNoSession  = "no_session"
)

// Refresher renews a session's access token
type Refresher interface {
	Refresh(ctx context.Context, sessionID string) (string, error)
}

// RenewedFunc is called after a renewed pair has been written to the store
type RenewedFunc func(pair token.Pair)

type Provider struct {
	sessionID string
	store     sessions.Store
	bus       *bus.Bus
	policy    *token.ExpiryPolicy
	refresher Refresher

	interval  time.Duration
	onRenewed RenewedFunc
	metrics   *metrics.Metrics

	mu      sync.Mutex
	mounted bool
	sub     bus.Subscription
	cancel  context.CancelFunc
	done    chan struct{}
	pending sync.WaitGroup
}

type Option func(*Provider)

// WithInterval sets how often the expiry check runs while mounted
func WithInterval(interval time.Duration) Option {
	return func(p *Provider) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

func WithRenewedHook(fn RenewedFunc) Option {
	return func(p *Provider) {
		p.onRenewed = fn
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Provider) {
		p.metrics = m
	}
}

func New(sessionID string, store sessions.Store, b *bus.Bus, policy *token.ExpiryPolicy, refresher Refresher, options ...Option) *Provider {
	p := &Provider{
		sessionID: sessionID,
		store:     store,
		bus:       b,
		policy:    policy,
		refresher: refresher,
		interval:  DefaultInterval,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Mount subscribes to renewals for the session, runs an immediate expiry
// check and starts the periodic one. Mounting twice is a no-op.
func (p *Provider) Mount(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mounted {
		return
	}

	p.sub = p.bus.Subscribe(p.handleEvent)
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.mounted = true
	p.metrics.SyncMounted(1)

	p.Check(ctx)
	go p.loop(ctx, p.done)
}

func (p *Provider) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}

// Check starts a refresh in the background when the session's access token
// is expired or about to be. It never blocks on the renewal.
func (p *Provider) Check(ctx context.Context) {
	record, err := p.store.Read(ctx, p.sessionID)
	if err != nil {
		p.metrics.SyncCheck(CheckNoSession)
		log.Debug().Err(err).Str("session", p.sessionID).Msg("sync check found no session")
		return
	}

	if !p.policy.IsExpired(record.AccessToken) {
		p.metrics.SyncCheck(CheckFresh)
		return
	}

	p.metrics.SyncCheck(CheckRefreshing)
	refreshCtx := context.WithoutCancel(ctx)
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		if _, err := p.refresher.Refresh(refreshCtx, p.sessionID); err != nil {
			log.Warn().Err(err).Str("session", p.sessionID).Msg("background refresh failed")
		}
	}()
}

func (p *Provider) handleEvent(ev bus.Event) {
	if ev.Name != bus.EventTokenRefreshed || ev.SessionID != p.sessionID {
		return
	}

	if err := p.store.UpdateTokens(context.Background(), p.sessionID, ev.Pair); err != nil {
		log.Warn().Err(err).Str("session", p.sessionID).Str("origin", ev.Origin).Msg("failed to store renewed tokens")
		return
	}

	if p.onRenewed != nil {
		p.onRenewed(ev.Pair)
	}
}

// Unmount stops the periodic check and unsubscribes from the bus. It waits
// for the loop to exit but not for refreshes already handed to the
// coordinator. Safe to call more than once.
func (p *Provider) Unmount() {
	p.mu.Lock()
	if !p.mounted {
		p.mu.Unlock()
		return
	}
	p.mounted = false
	p.bus.Unsubscribe(p.sub)
	p.cancel()
	done := p.done
	p.mu.Unlock()

	<-done
	p.metrics.SyncMounted(-1)
}

// Wait blocks until background refreshes started by Check have returned
func (p *Provider) Wait() {
	p.pending.Wait()
}

// Mounted reports whether the provider is active
func (p *Provider) Mounted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mounted
}
