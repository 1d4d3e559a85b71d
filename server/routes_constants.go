package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth API
	RouteAPILogin         = "/api/auth/login"
	RouteAPILogout        = "/api/auth/logout"
	RouteAPIOAuthStart    = "/api/auth/oauth/start"
	RouteAPIOAuthCallback = "/api/auth/oauth/callback"

	// Session API
	RouteAPISession        = "/api/session"
	RouteAPISessionRefresh = "/api/session/refresh"
	RouteAPISessionSocket  = "/api/session/ws"

	// Operations
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"

	// Development account service
	RouteDevIdentity = "/identity"

	// Pages (rendered elsewhere, gated here)
	RouteHome       = "/"
	RouteLoginPage  = "/login"
	RouteSignupPage = "/signup"
	RouteCourses    = "/courses"
	RouteStudent    = "/student"
	RouteInstructor = "/instructor"
)
