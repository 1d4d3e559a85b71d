package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-gate/authbridge"
	"github.com/jrsteele09/go-session-gate/internal/config"
	"github.com/jrsteele09/go-session-gate/internal/errors"
	"github.com/jrsteele09/go-session-gate/sessions"
	"golang.org/x/oauth2"
)

const contentTypeJSON = "application/json"

// generateRandomString creates a random base64url string
func generateRandomString(length int) string {
	b := make([]byte, length)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// NewOidcConfig discovers the provider at the configured issuer. It returns
// nil when no OAuth client is configured.
func NewOidcConfig(ctx context.Context, cfg config.Config) (*OidcConfig, error) {
	if cfg.GetOAuthClientID() == "" {
		return nil, nil
	}

	provider, err := oidc.NewProvider(ctx, cfg.GetOAuthIssuer())
	if err != nil {
		return nil, fmt.Errorf("[server NewOidcConfig] discover %s: %w", cfg.GetOAuthIssuer(), err)
	}

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.GetOAuthClientID(),
		ClientSecret: cfg.GetOAuthClientSecret(),
		Endpoint:     provider.Endpoint(),
		RedirectURL:  strings.TrimSuffix(cfg.GetBaseURL(), "/") + RouteAPIOAuthCallback,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}

	return &OidcConfig{
		OAuth2Config: oauth2Config,
		OidcVerifier: provider.Verifier(&oidc.Config{ClientID: oauth2Config.ClientID}),
	}, nil
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetSessionCookieName(),
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.config.GetSessionMaxAge().Seconds()),
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetSessionCookieName(),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// startSession stores a new session for a sign-in and sets its cookie
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, result *authbridge.Result) (*sessions.Record, error) {
	record := result.Record(uuid.New().String(), s.config.GetSessionMaxAge())
	if err := s.services.Store.Create(r.Context(), record); err != nil {
		return nil, fmt.Errorf("[server startSession] %w", err)
	}
	s.setSessionCookie(w, r, record.ID)
	return record, nil
}

// currentSession returns the session named by the request's cookie
func (s *Server) currentSession(r *http.Request) (*sessions.Record, error) {
	cookie, err := r.Cookie(s.config.GetSessionCookieName())
	if err != nil || cookie.Value == "" {
		return nil, errors.ErrNoSession
	}
	record, err := s.services.Store.Read(r.Context(), cookie.Value)
	if errors.Is(err, errors.ErrSessionNotFound) {
		return nil, errors.ErrNoSession
	}
	return record, err
}

// safeReturnURL only allows local absolute paths, falling back to fallback
func safeReturnURL(raw, fallback string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return fallback
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host != "" || parsed.Scheme != "" {
		return fallback
	}
	return raw
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError helper for htmx-aware error redirects
func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg string) {
	fullPath := path + "?error=" + url.QueryEscape(errorMsg)
	redirectSuccess(w, r, fullPath)
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeJSONError writes an error response in the OAuth2 error shape
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
