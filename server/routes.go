package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/go-session-gate/gate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	s.router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		s.WWWRedirectMiddleware,
		s.LoggingMiddleware,
		s.FrameSecurityMiddleware,
		s.CorsMiddleware,
		gate.Middleware(
			s.services.AccessRules,
			gate.NewSessionResolver(s.services.Store, s.config.GetSessionCookieName()),
			gate.DefaultMatcher(),
			gate.WithMetrics(s.services.Metrics),
		),
	)

	// Auth API
	s.RegisterRouteFunc(http.MethodPost, RouteAPILogin, s.LoginHandler())
	s.RegisterRouteFunc(http.MethodPost, RouteAPILogout, s.LogoutHandler())
	s.RegisterRouteFunc(http.MethodGet, RouteAPIOAuthStart, s.OAuthStartHandler())
	s.RegisterRouteFunc(http.MethodGet, RouteAPIOAuthCallback, s.OAuthCallbackHandler())
	s.RegisterRouteFunc(http.MethodPost, RouteAPIOAuthCallback, s.OAuthCallbackHandler()) // For form_post response mode

	// Session API
	s.RegisterRouteFunc(http.MethodGet, RouteAPISession, s.SessionHandler())
	s.RegisterRouteFunc(http.MethodPost, RouteAPISessionRefresh, s.RefreshHandler())
	s.RegisterRouteFunc(http.MethodGet, RouteAPISessionSocket, s.SessionSocketHandler())

	s.RegisterRouteHandler(http.MethodGet, RouteMetrics, promhttp.HandlerFor(s.services.Gatherer, promhttp.HandlerOpts{}))
	s.RegisterRouteFunc(http.MethodGet, RouteHealth, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if s.services.DevIdentity != nil {
		s.routes = append(s.routes, "* "+RouteDevIdentity+"/*")
		s.router.Mount(RouteDevIdentity, s.services.DevIdentity)
	}

	// Pages
	for _, pattern := range []string{
		RouteHome,
		RouteLoginPage,
		RouteSignupPage,
		RouteCourses,
		RouteCourses + "/*",
		RouteStudent + "/*",
		RouteInstructor + "/*",
	} {
		s.RegisterRouteFunc(http.MethodGet, pattern, s.PageHandler())
	}

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "404 - Page Not Found", http.StatusNotFound)
	})
}

// PageHandler stands in for the page renderer; it only reports what would be rendered
func (s *Server) PageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if principal, ok := gate.PrincipalFrom(r.Context()); ok {
			fmt.Fprintf(w, "%s (%s)\n", r.URL.Path, principal.Role)
			return
		}
		fmt.Fprintf(w, "%s\n", r.URL.Path)
	}
}
