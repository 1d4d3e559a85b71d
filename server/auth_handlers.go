package server

import (
	"encoding/json"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-session-gate/internal/errors"
	"github.com/jrsteele09/go-session-gate/server/oauthflow"
	"github.com/jrsteele09/go-session-gate/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Redirect string `json:"redirect,omitempty"`
}

// LoginHandler signs in with email and password and starts a session
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "malformed body", http.StatusBadRequest)
			return
		}
		if req.Email == "" || req.Password == "" {
			writeJSONError(w, "invalid_request", "email and password are required", http.StatusBadRequest)
			return
		}

		result, err := s.services.Bridge.SignIn(r.Context(), req.Email, req.Password)
		if err != nil {
			writeSignInError(w, err)
			return
		}

		record, err := s.startSession(w, r, result)
		if err != nil {
			log.Err(err).Msg("failed to start session")
			writeJSONError(w, "server_error", "failed to start session", http.StatusInternalServerError)
			return
		}

		response := s.sessionResponse(record)
		response.Redirect = safeReturnURL(req.Redirect, s.services.AccessRules.Home(record.Role))
		writeJSON(w, http.StatusOK, response)
	}
}

// LogoutHandler ends the session. It succeeds whether or not one existed.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(s.config.GetSessionCookieName()); err == nil && cookie.Value != "" {
			if err := s.services.Store.Delete(r.Context(), cookie.Value); err != nil {
				log.Err(err).Msg("failed to delete session on logout")
			}
		}
		s.clearSessionCookie(w, r)
		w.WriteHeader(http.StatusNoContent)
	}
}

// OAuthStartHandler redirects to the identity provider with PKCE and a nonce
func (s *Server) OAuthStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services.OIDC == nil {
			writeJSONError(w, "unavailable", errors.ErrOAuthUnavailable.Error(), http.StatusServiceUnavailable)
			return
		}

		state := generateRandomString(32)
		nonce := generateRandomString(32)
		verifier := oauth2.GenerateVerifier()

		if err := s.authState.Upsert(state, &oauthflow.FlowState{
			CodeVerifier: verifier,
			Nonce:        nonce,
			ReturnURL:    safeReturnURL(r.URL.Query().Get("redirect"), ""),
		}); err != nil {
			log.Err(err).Msg("failed to store oauth flow state")
			writeJSONError(w, "server_error", "failed to start sign-in", http.StatusInternalServerError)
			return
		}

		authURL := s.services.OIDC.OAuth2Config.AuthCodeURL(state, oidc.Nonce(nonce), oauth2.S256ChallengeOption(verifier))
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

func writeSignInError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrInvalidCredentials), errors.Is(err, errors.ErrAccountNotFound):
		writeJSONError(w, "unauthorized", "invalid email or password", http.StatusUnauthorized)
	case errors.Is(err, errors.ErrInvalidRequest):
		writeJSONError(w, "invalid_request", err.Error(), http.StatusBadRequest)
	default:
		log.Err(err).Msg("sign-in failed")
		writeJSONError(w, "bad_gateway", "identity service unavailable", http.StatusBadGateway)
	}
}

// SessionResponse describes the caller's session
type SessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	SubjectID     string `json:"subjectId,omitempty"`
	Role          string `json:"role,omitempty"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	AccessToken   string `json:"accessToken,omitempty"`
	ExpiresIn     int64  `json:"expiresIn,omitempty"` // seconds until the access token's exp claim
	Redirect      string `json:"redirect,omitempty"`
}

func (s *Server) sessionResponse(record *sessions.Record) SessionResponse {
	return SessionResponse{
		Authenticated: true,
		SubjectID:     record.SubjectID,
		Role:          string(record.Role),
		Email:         record.Email,
		Name:          record.Name,
		AccessToken:   record.AccessToken,
		ExpiresIn:     int64(s.services.Expiry.TimeLeft(record.AccessToken).Seconds()),
	}
}

