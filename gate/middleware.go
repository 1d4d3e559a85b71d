package gate

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-session-gate/internal/errors"
	"github.com/jrsteele09/go-session-gate/internal/metrics"
	"github.com/jrsteele09/go-session-gate/sessions"
	"github.com/jrsteele09/go-session-gate/token"
	"github.com/rs/zerolog/log"
)

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal stores the request's principal in ctx
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the principal placed in ctx by the gate
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// Resolver finds the principal of a request, nil when it has none
type Resolver interface {
	Resolve(r *http.Request) *Principal
}

type ResolverFunc func(r *http.Request) *Principal

func (f ResolverFunc) Resolve(r *http.Request) *Principal {
	return f(r)
}

// SessionResolver reads the session cookie and decodes the stored access token
type SessionResolver struct {
	store      sessions.Store
	cookieName string
}

var _ Resolver = (*SessionResolver)(nil)

func NewSessionResolver(store sessions.Store, cookieName string) *SessionResolver {
	return &SessionResolver{store: store, cookieName: cookieName}
}

// Resolve does no network calls of its own beyond the store read. Tokens that
// cannot be decoded or carry an unknown role count as no session.
func (s *SessionResolver) Resolve(r *http.Request) *Principal {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	record, err := s.store.Read(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, errors.ErrSessionNotFound) {
			log.Err(err).Msg("gate failed to read session")
		}
		return nil
	}

	payload := token.Decode(record.AccessToken)
	if payload == nil || !payload.Role.Valid() {
		return nil
	}

	subjectID := payload.SubjectID
	if subjectID == "" {
		subjectID = record.SubjectID
	}
	return &Principal{SubjectID: subjectID, Role: payload.Role}
}

type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	metrics *metrics.Metrics
}

func WithMetrics(m *metrics.Metrics) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.metrics = m
	}
}

// Middleware evaluates policy for every request the matcher selects and
// redirects with 307 when the decision is not to allow it.
func Middleware(policy *Policy, resolver Resolver, matcher *Matcher, options ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{}
	for _, opt := range options {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if matcher != nil && !matcher.Match(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			principal := resolver.Resolve(r)
			decision := policy.Evaluate(principal, r.URL.Path)

			if !decision.Allowed() {
				cfg.metrics.GateDecision(decision.State.String(), "redirect")
				log.Debug().
					Str("path", r.URL.Path).
					Str("state", decision.State.String()).
					Str("redirect", decision.Redirect).
					Msg("gate redirect")
				http.Redirect(w, r, decision.Redirect, http.StatusTemporaryRedirect)
				return
			}

			cfg.metrics.GateDecision(decision.State.String(), "allow")
			if principal != nil {
				r = r.WithContext(WithPrincipal(r.Context(), principal))
			}
			next.ServeHTTP(w, r)
		})
	}
}
