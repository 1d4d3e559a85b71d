package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/jrsteele09/go-session-gate/authbridge"
	"github.com/jrsteele09/go-session-gate/bus"
	"github.com/jrsteele09/go-session-gate/gate"
	"github.com/jrsteele09/go-session-gate/internal/config"
	"github.com/jrsteele09/go-session-gate/internal/errors"
	"github.com/jrsteele09/go-session-gate/internal/metrics"
	"github.com/jrsteele09/go-session-gate/refresh"
	"github.com/jrsteele09/go-session-gate/server/oauthflow"
	"github.com/jrsteele09/go-session-gate/sessions"
	"github.com/jrsteele09/go-session-gate/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

type OidcConfig struct {
	OAuth2Config *oauth2.Config
	OidcVerifier *oidc.IDTokenVerifier
}

// Services are the collaborators the HTTP surface is built on
type Services struct {
	Store       sessions.Store
	Bus         *bus.Bus
	Coordinator *refresh.Coordinator
	Bridge      *authbridge.Bridge
	Expiry      *token.ExpiryPolicy // defaults to the configured expiry buffer
	Metrics     *metrics.Metrics    // optional
	Gatherer    prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	OIDC        *OidcConfig         // nil disables OAuth sign-in
	DevIdentity http.Handler        // mounted at /identity when set
	AccessRules *gate.Policy        // defaults to gate.DefaultPolicy()
}

type Server struct {
	env       string
	router    chi.Router
	routes    []string
	config    config.Config
	services  Services
	authState oauthflow.Repo
	upgrader  websocket.Upgrader
}

func New(config config.Config, services Services, authStateRepo oauthflow.Repo) (*Server, error) {
	if services.Store == nil || services.Bus == nil || services.Coordinator == nil || services.Bridge == nil {
		return nil, fmt.Errorf("[Server New] store, bus, coordinator and bridge are required: %w", errors.ErrInvalidRequest)
	}
	if services.Expiry == nil {
		services.Expiry = token.NewExpiryPolicy(token.WithBuffer(config.GetExpiryBuffer()))
	}
	if services.Gatherer == nil {
		services.Gatherer = prometheus.DefaultGatherer
	}
	if services.AccessRules == nil {
		services.AccessRules = gate.DefaultPolicy()
	}
	if authStateRepo == nil {
		authStateRepo = oauthflow.NewInMemoryRepo(config.GetOAuthFlowTimeout())
	}

	s := &Server{
		env:       config.GetEnv(),
		router:    chi.NewRouter(),
		config:    config,
		services:  services,
		authState: authStateRepo,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(method, pattern string, handler http.Handler) {
	s.routes = append(s.routes, method+" "+pattern)
	s.router.Method(method, pattern, handler)
}

func (s *Server) RegisterRouteFunc(method, pattern string, handler http.HandlerFunc) {
	s.RegisterRouteHandler(method, pattern, handler)
}

// Routes returns the registered routes as "METHOD pattern"
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}

// checkOrigin accepts same-host and configured origins for the session socket
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if s.config.GetAllowedOrigins().IsAllowedOrigin(origin) {
		return true
	}
	return strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://") == r.Host
}
