package devserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-session-gate/identity"
	"github.com/jrsteele09/go-session-gate/internal/errors"
	"github.com/jrsteele09/go-session-gate/refresh"
	"github.com/jrsteele09/go-session-gate/token"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json"

// Handler exposes /login, /signup and /refresh
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/login", s.loginHandler())
	r.Post("/signup", s.signupHandler())
	r.Post("/refresh", s.refreshHandler())
	return r
}

func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds identity.Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			writeJSONError(w, "invalid_request", "malformed body", http.StatusBadRequest)
			return
		}

		result, err := s.Login(r.Context(), creds)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) signupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req identity.SignupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "malformed body", http.StatusBadRequest)
			return
		}

		result, err := s.Signup(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

func (s *Server) refreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refresh.RenewalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			writeJSONError(w, "invalid_request", "token and refresh_token are required", http.StatusBadRequest)
			return
		}

		pair, err := s.Renew(r.Context(), token.Pair{AccessToken: req.Token, RefreshToken: req.RefreshToken})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, refresh.RenewalResponse{Token: pair.AccessToken, RefreshToken: pair.RefreshToken})
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrAccountNotFound):
		writeJSONError(w, "not_found", err.Error(), http.StatusNotFound)
	case errors.Is(err, errors.ErrAccountExists):
		writeJSONError(w, "conflict", err.Error(), http.StatusConflict)
	case errors.Is(err, errors.ErrInvalidCredentials), errors.Is(err, errors.ErrRenewalRejected):
		writeJSONError(w, "unauthorized", err.Error(), http.StatusUnauthorized)
	case errors.Is(err, errors.ErrInvalidRequest):
		writeJSONError(w, "invalid_request", err.Error(), http.StatusBadRequest)
	default:
		log.Err(err).Msg("dev identity service error")
		writeJSONError(w, "server_error", "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, identity.ErrorResponse{Error: errorCode, Description: description})
}
