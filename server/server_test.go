package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jrsteele09/go-session-gate/authbridge"
	"github.com/jrsteele09/go-session-gate/bus"
	"github.com/jrsteele09/go-session-gate/identity"
	"github.com/jrsteele09/go-session-gate/identity/devserver"
	"github.com/jrsteele09/go-session-gate/internal/config"
	"github.com/jrsteele09/go-session-gate/internal/metrics"
	"github.com/jrsteele09/go-session-gate/refresh"
	"github.com/jrsteele09/go-session-gate/server"
	"github.com/jrsteele09/go-session-gate/sessions/memstore"
	"github.com/jrsteele09/go-session-gate/token"
	"github.com/jrsteele09/go-session-gate/users"
	fakeuserrepo "github.com/jrsteele09/go-session-gate/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	cookieName = "course_session"
	password   = "Password123"
)

type fixture struct {
	srv   *server.Server
	store *memstore.Store
	bus   *bus.Bus
	dev   *devserver.Server
}

type renewerFunc func(ctx context.Context, current token.Pair) (token.Pair, error)

func (f renewerFunc) Renew(ctx context.Context, current token.Pair) (token.Pair, error) {
	return f(ctx, current)
}

func newFixture(t *testing.T, mutate ...func(*server.Services)) *fixture {
	t.Helper()
	t.Setenv("ENV", "TEST")

	store := memstore.New()
	b := bus.New()
	dev := devserver.New(fakeuserrepo.NewFakeUserRepo(), []byte("server-test-key"))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	services := server.Services{
		Store:       store,
		Bus:         b,
		Coordinator: refresh.NewCoordinator(store, dev, b, refresh.WithMetrics(m)),
		Bridge:      authbridge.New(dev),
		Metrics:     m,
		Gatherer:    reg,
		DevIdentity: dev.Handler(),
	}
	for _, fn := range mutate {
		fn(&services)
	}

	srv, err := server.New(config.New(), services, nil)
	require.NoError(t, err)
	return &fixture{srv: srv, store: store, bus: b, dev: dev}
}

func (f *fixture) signup(t *testing.T, email string, role users.RoleType) *identity.SignupResult {
	t.Helper()
	result, err := f.dev.Signup(context.Background(), identity.SignupRequest{
		Email:     email,
		FirstName: "Ada",
		LastName:  "Lovelace",
		UserType:  role,
		Password:  password,
	})
	require.NoError(t, err)
	return result
}

// login signs in through the API and returns the session cookie
func (f *fixture) login(t *testing.T, email string) (*http.Cookie, server.SessionResponse) {
	t.Helper()
	rec := f.do(t, http.MethodPost, server.RouteAPILogin, server.LoginRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response server.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	return sessionCookie(t, rec), response
}

func (f *fixture) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", cookieName)
	return nil
}

func TestNew_RequiresCoreServices(t *testing.T) {
	_, err := server.New(config.New(), server.Services{}, nil)
	require.Error(t, err)
}

func TestRoutes_Registered(t *testing.T) {
	f := newFixture(t)
	routes := f.srv.Routes()
	require.Contains(t, routes, "POST "+server.RouteAPILogin)
	require.Contains(t, routes, "GET "+server.RouteAPISessionSocket)
	require.Contains(t, routes, "GET "+server.RouteMetrics)
	require.Contains(t, routes, "* "+server.RouteDevIdentity+"/*")
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, server.RouteHealth, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/nothing-here", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGate_AnonymousScopedPageRedirectsToLogin(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/instructor/courses/new", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.Equal(t, "/login?redirect=/instructor/courses/new", rec.Header().Get("Location"))
}

func TestGate_PublicPagesRenderForAnonymous(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/", "/courses", "/courses/go-101", "/login"} {
		rec := f.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.Equal(t, path+"\n", rec.Body.String())
	}
}

func TestGate_RoleScopes(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "ada@example.com", users.RoleStudent)
	cookie, _ := f.login(t, "ada@example.com")

	rec := f.do(t, http.MethodGet, "/student/dashboard", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "/student/dashboard (student)\n", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/instructor/dashboard", nil, cookie)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.Equal(t, "/student/dashboard", rec.Header().Get("Location"))

	rec = f.do(t, http.MethodGet, "/login", nil, cookie)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.Equal(t, "/student/dashboard", rec.Header().Get("Location"))
}

func TestGate_InstructorConfinedToWorkspace(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "grace@example.com", users.RoleInstructor)
	cookie, _ := f.login(t, "grace@example.com")

	rec := f.do(t, http.MethodGet, "/courses", nil, cookie)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.Equal(t, "/instructor/dashboard", rec.Header().Get("Location"))

	rec = f.do(t, http.MethodGet, "/instructor/courses", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGate_DoesNotApplyToAPI(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, server.RouteAPISession, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetrics_ExposesLifecycleCounters(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/instructor/courses", nil)

	rec := f.do(t, http.MethodGet, server.RouteMetrics, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `session_gate_gate_decisions_total{action="redirect",state="unauthenticated"} 1`)
}

func TestCors_PreflightFromAllowedOrigin(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, server.RouteAPILogin, nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCors_UnknownOriginGetsNoHeaders(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, server.RouteAPISession, nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestFrameSecurityHeaders(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/", nil)
	require.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
}

func TestDevIdentity_Mounted(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, server.RouteDevIdentity+"/signup", identity.SignupRequest{
		Email:    "new@example.com",
		Password: password,
		UserType: users.RoleStudent,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.True(t, strings.Contains(rec.Body.String(), "new@example.com"))
}

func TestDevIdentity_NotMountedWhenAbsent(t *testing.T) {
	f := newFixture(t, func(s *server.Services) { s.DevIdentity = nil })
	rec := f.do(t, http.MethodPost, server.RouteDevIdentity+"/signup", identity.SignupRequest{Email: "x@example.com", Password: password})
	require.Equal(t, http.StatusNotFound, rec.Code)
}
