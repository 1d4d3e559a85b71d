package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-gate/bus"
	"github.com/jrsteele09/go-session-gate/internal/errors"
	"github.com/jrsteele09/go-session-gate/internal/metrics"
	"github.com/jrsteele09/go-session-gate/sessions"
	"github.com/jrsteele09/go-session-gate/token"
	"github.com/rs/zerolog/log"
)

// Renewer exchanges the current credential pair for a new one
type Renewer interface {
	Renew(ctx context.Context, current token.Pair) (token.Pair, error)
}

// Locker claims a session's renewal across processes sharing one store
type Locker interface {
	// TryLock claims the session. ok is false when another process holds it.
	TryLock(ctx context.Context, sessionID string) (unlock func(), ok bool, err error)
	// Wait blocks until no process holds the session's claim
	Wait(ctx context.Context, sessionID string) error
}

// SignOutFunc is told when the coordinator clears a session
type SignOutFunc func(ctx context.Context, sessionID string, reason error)

type result struct {
	accessToken string
	err         error
}

// state is the refresh state of one session. It is only touched by the
// Coordinator while holding its mutex.
type state struct {
	inFlight bool
	waiters  []chan result
}

// Coordinator performs single-flight token renewal per session: concurrent
// callers for the same session share the outcome of one network call, and a
// failed renewal signs the session out.
type Coordinator struct {
	store     sessions.Store
	renewer   Renewer
	publisher bus.Publisher
	onSignOut SignOutFunc
	metrics   *metrics.Metrics

	locker     Locker
	remoteWait time.Duration

	mu     sync.Mutex
	states map[string]*state
}

const defaultRemoteWait = 30 * time.Second

type Option func(*Coordinator)

// WithLocker shares the single-flight claim with other processes. A caller
// that finds the claim taken elsewhere waits up to wait for it to clear and
// returns the stored access token.
func WithLocker(locker Locker, wait time.Duration) Option {
	return func(c *Coordinator) {
		c.locker = locker
		if wait > 0 {
			c.remoteWait = wait
		}
	}
}

func WithSignOutHook(fn SignOutFunc) Option {
	return func(c *Coordinator) {
		c.onSignOut = fn
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func NewCoordinator(store sessions.Store, renewer Renewer, publisher bus.Publisher, options ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		renewer:   renewer,
		publisher: publisher,
		states:    make(map[string]*state),

		remoteWait: defaultRemoteWait,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Refresh renews the session's access token and returns the new one.
//
// If a renewal for the session is already running the caller waits for its
// result instead of starting another. Otherwise the caller claims the session
// and only then reads the stored pair, so it always presents the latest
// refresh token. No session returns errors.ErrNoSession without a network
// call. A session without a refresh token is signed out. Any renewal failure
// signs the session out and is returned wrapped in errors.ErrRenewalFailed to
// the caller and every waiter.
func (c *Coordinator) Refresh(ctx context.Context, sessionID string) (string, error) {
	c.mu.Lock()
	if st, ok := c.states[sessionID]; ok && st.inFlight {
		wait := make(chan result, 1)
		st.waiters = append(st.waiters, wait)
		c.mu.Unlock()
		c.metrics.WaiterJoined()

		select {
		case res := <-wait:
			return res.accessToken, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	st := &state{inFlight: true}
	c.states[sessionID] = st
	c.mu.Unlock()

	// The renewal outlives a cancelled caller; waiters depend on it
	accessToken, err := c.lead(context.WithoutCancel(ctx), sessionID)

	c.mu.Lock()
	waiters := st.waiters
	st.inFlight = false
	st.waiters = nil
	delete(c.states, sessionID)
	c.mu.Unlock()

	for _, w := range waiters {
		w <- result{accessToken: accessToken, err: err}
	}
	return accessToken, err
}

// lead runs the renewal for a claimed session
func (c *Coordinator) lead(ctx context.Context, sessionID string) (string, error) {
	if c.locker != nil {
		unlock, ok, err := c.locker.TryLock(ctx, sessionID)
		if err != nil {
			return "", fmt.Errorf("[refresh Refresh] claim renewal: %w", err)
		}
		if !ok {
			return c.awaitRemote(ctx, sessionID)
		}
		defer unlock()
	}

	record, err := c.store.Read(ctx, sessionID)
	if errors.Is(err, errors.ErrSessionNotFound) {
		c.metrics.Renewal(metrics.RenewalNoSession)
		return "", errors.ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("[refresh Refresh] read session: %w", err)
	}

	if record.RefreshToken == "" {
		c.metrics.Renewal(metrics.RenewalNoRefresh)
		c.signOut(ctx, sessionID, errors.ErrMissingRefreshToken)
		return "", errors.ErrMissingRefreshToken
	}

	accessToken, err := c.renew(ctx, sessionID, record.Pair())
	if err != nil {
		c.signOut(ctx, sessionID, err)
	}
	return accessToken, err
}

// awaitRemote waits out a renewal claimed by another process and returns
// whatever access token it left in the store
func (c *Coordinator) awaitRemote(ctx context.Context, sessionID string) (string, error) {
	c.metrics.WaiterJoined()
	log.Debug().Str("session", sessionID).Msg("renewal running in another process, waiting")

	waitCtx, cancel := context.WithTimeout(ctx, c.remoteWait)
	defer cancel()
	if err := c.locker.Wait(waitCtx, sessionID); err != nil {
		return "", fmt.Errorf("[refresh Refresh] wait for remote renewal: %w", err)
	}

	record, err := c.store.Read(ctx, sessionID)
	if errors.Is(err, errors.ErrSessionNotFound) {
		c.metrics.Renewal(metrics.RenewalNoSession)
		return "", errors.ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("[refresh Refresh] read session: %w", err)
	}
	return record.AccessToken, nil
}

func (c *Coordinator) renew(ctx context.Context, sessionID string, current token.Pair) (string, error) {
	c.metrics.RenewalCall()

	pair, err := c.renewer.Renew(ctx, current)
	if err == nil && !pair.Complete() {
		err = errors.ErrRenewalMissingFields
	}
	if err != nil {
		c.metrics.Renewal(outcome(err))
		return "", fmt.Errorf("%w: %w", errors.ErrRenewalFailed, err)
	}

	if err := c.store.UpdateTokens(ctx, sessionID, pair); err != nil {
		c.metrics.Renewal(metrics.RenewalUnavailable)
		return "", fmt.Errorf("%w: store update: %w", errors.ErrRenewalFailed, err)
	}

	c.metrics.Renewal(metrics.RenewalSucceeded)
	c.publisher.Publish(sessionID, pair)
	log.Debug().Str("session", sessionID).Msg("access token renewed")
	return pair.AccessToken, nil
}

func (c *Coordinator) signOut(ctx context.Context, sessionID string, reason error) {
	log.Warn().Err(reason).Str("session", sessionID).Msg("signing session out")
	c.metrics.SignOut(outcome(reason))

	if err := c.store.Delete(ctx, sessionID); err != nil {
		log.Err(err).Str("session", sessionID).Msg("failed to delete session during sign-out")
	}
	if c.onSignOut != nil {
		c.onSignOut(ctx, sessionID, reason)
	}
}

// InFlight reports whether a renewal is running for the session
func (c *Coordinator) InFlight(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[sessionID]
	return ok && st.inFlight
}

// Waiting returns how many callers are queued behind the running renewal
func (c *Coordinator) Waiting(sessionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.states[sessionID]; ok {
		return len(st.waiters)
	}
	return 0
}

func outcome(err error) string {
	switch {
	case errors.Is(err, errors.ErrMissingRefreshToken):
		return metrics.RenewalNoRefresh
	case errors.Is(err, errors.ErrRenewalRejected), errors.Is(err, errors.ErrRenewalMissingFields):
		return metrics.RenewalRejected
	default:
		return metrics.RenewalUnavailable
	}
}
