package gate_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-gate/gate"
	"github.com/jrsteele09/go-session-gate/internal/metrics"
	"github.com/jrsteele09/go-session-gate/sessions/memstore"
	"github.com/jrsteele09/go-session-gate/sessions/storetest"
	"github.com/jrsteele09/go-session-gate/token/tokentest"
	"github.com/jrsteele09/go-session-gate/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const cookieName = "course_session"

func newGate(t *testing.T, options ...gate.MiddlewareOption) (http.Handler, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := gate.PrincipalFrom(r.Context()); ok {
			w.Header().Set("X-Subject", p.SubjectID)
		}
		w.WriteHeader(http.StatusOK)
	})
	mw := gate.Middleware(gate.DefaultPolicy(), gate.NewSessionResolver(store, cookieName), gate.DefaultMatcher(), options...)
	return mw(next), store
}

func signIn(t *testing.T, store *memstore.Store, id string, accessToken string) *http.Cookie {
	t.Helper()
	record := storetest.NewRecord(id)
	record.AccessToken = accessToken
	require.NoError(t, store.Create(context.Background(), record))
	return &http.Cookie{Name: cookieName, Value: id}
}

func serve(h http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_AnonymousScopedPathRedirectsToLogin(t *testing.T) {
	h, _ := newGate(t)

	rec := serve(h, "/instructor/courses", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.Equal(t, "/login?redirect=/instructor/courses", rec.Header().Get("Location"))
}

func TestMiddleware_SignedInStudent(t *testing.T) {
	h, store := newGate(t)
	cookie := signIn(t, store, "s1", tokentest.Access(t, "u-1", users.RoleStudent, time.Now().Add(time.Hour)))

	rec := serve(h, "/student/dashboard", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "u-1", rec.Header().Get("X-Subject"))

	rec = serve(h, "/instructor/anything", cookie)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.Equal(t, "/student/dashboard", rec.Header().Get("Location"))
}

func TestMiddleware_SignedInInstructorOnLogin(t *testing.T) {
	h, store := newGate(t)
	cookie := signIn(t, store, "s1", tokentest.Access(t, "u-2", users.RoleInstructor, time.Now().Add(time.Hour)))

	rec := serve(h, "/login", cookie)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.Equal(t, "/instructor/dashboard", rec.Header().Get("Location"))
}

func TestMiddleware_ExpiredTokenStillIdentifiesSession(t *testing.T) {
	h, store := newGate(t)
	cookie := signIn(t, store, "s1", tokentest.Access(t, "u-1", users.RoleStudent, time.Now().Add(-time.Minute)))

	rec := serve(h, "/student/dashboard", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_UnusableSessionsAreAnonymous(t *testing.T) {
	h, store := newGate(t)

	tests := map[string]*http.Cookie{
		"unknown session":  {Name: cookieName, Value: "nope"},
		"malformed token":  signIn(t, store, "bad", "not-a-jwt"),
		"unknown role":     signIn(t, store, "admin", tokentest.Access(t, "u-3", users.RoleType("admin"), time.Now().Add(time.Hour))),
		"empty cookie val": {Name: cookieName, Value: ""},
	}
	for name, cookie := range tests {
		t.Run(name, func(t *testing.T) {
			rec := serve(h, "/student/dashboard", cookie)
			require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
			require.Equal(t, "/login?redirect=/student/dashboard", rec.Header().Get("Location"))
		})
	}
}

func TestMiddleware_ExcludedPathsSkipTheGate(t *testing.T) {
	h, store := newGate(t)
	cookie := signIn(t, store, "s1", tokentest.Access(t, "u-2", users.RoleInstructor, time.Now().Add(time.Hour)))

	// An instructor would be bounced from these if they were gated
	for _, p := range []string{"/api/session", "/static/app.css", "/metrics"} {
		rec := serve(h, p, cookie)
		require.Equal(t, http.StatusOK, rec.Code, p)
		require.Empty(t, rec.Header().Get("X-Subject"), p)
	}
}

func TestMiddleware_RecordsDecisions(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, _ := newGate(t, gate.WithMetrics(metrics.New(reg)))

	serve(h, "/", nil)
	serve(h, "/student/dashboard", nil)

	count, err := testutil.GatherAndCount(reg, "session_gate_gate_decisions_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
