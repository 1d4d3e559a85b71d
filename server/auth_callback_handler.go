package server

import (
	"net/http"

	"github.com/jrsteele09/go-session-gate/authbridge"
	"github.com/jrsteele09/go-session-gate/users"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// OAuthCallbackHandler finishes an OAuth sign-in: code exchange, ID token
// verification, account reconciliation and session creation.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services.OIDC == nil {
			redirectWithError(w, r, RouteLoginPage, "OAuth sign-in is not available")
			return
		}

		// r.FormValue works for both query params and POST form data
		state := r.FormValue("state")
		code := r.FormValue("code")
		errorParam := r.FormValue("error")

		if errorParam != "" {
			log.Warn().Str("error", errorParam).Str("description", r.FormValue("error_description")).Msg("provider refused sign-in")
			redirectWithError(w, r, RouteLoginPage, "Sign-in was cancelled")
			return
		}

		if code == "" || state == "" {
			http.Error(w, "Missing code or state parameter", http.StatusBadRequest)
			return
		}

		authState, err := s.authState.Get(state)
		if err != nil {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		// States are single use
		if err := s.authState.Delete(state); err != nil {
			http.Error(w, "Invalid state parameter", http.StatusInternalServerError)
			return
		}

		oidcConfig := s.services.OIDC
		oauth2Token, err := oidcConfig.OAuth2Config.Exchange(r.Context(), code, oauth2.VerifierOption(authState.CodeVerifier))
		if err != nil {
			log.Err(err).Msg("token exchange failed")
			redirectWithError(w, r, RouteLoginPage, "Sign-in failed")
			return
		}

		rawIDToken, ok := oauth2Token.Extra("id_token").(string)
		if !ok {
			log.Error().Msg("no id_token in token response")
			redirectWithError(w, r, RouteLoginPage, "Sign-in failed")
			return
		}

		idToken, err := oidcConfig.OidcVerifier.Verify(r.Context(), rawIDToken)
		if err != nil {
			log.Err(err).Msg("id token verification failed")
			redirectWithError(w, r, RouteLoginPage, "Sign-in failed")
			return
		}

		var claims struct {
			Nonce string `json:"nonce"`
			Sub   string `json:"sub"`
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := idToken.Claims(&claims); err != nil {
			log.Err(err).Msg("failed to extract id token claims")
			redirectWithError(w, r, RouteLoginPage, "Sign-in failed")
			return
		}

		// Validate nonce to prevent replay attacks
		if claims.Nonce != authState.Nonce {
			http.Error(w, "Invalid nonce", http.StatusUnauthorized)
			return
		}
		if claims.Email == "" {
			redirectWithError(w, r, RouteLoginPage, "Your account has no email address")
			return
		}

		defaultType, _ := users.ParseRole(s.config.GetDefaultUserType())
		result, err := s.services.Bridge.Reconcile(r.Context(), authbridge.Identity{
			Email:       claims.Email,
			ProviderID:  claims.Sub,
			Provider:    s.config.GetOAuthProviderName(),
			DisplayName: claims.Name,
			UserType:    defaultType,
		})
		if err != nil {
			log.Err(err).Str("email", claims.Email).Msg("account reconciliation failed")
			redirectWithError(w, r, RouteLoginPage, "Sign-in failed")
			return
		}

		record, err := s.startSession(w, r, result)
		if err != nil {
			log.Err(err).Msg("failed to start session")
			redirectWithError(w, r, RouteLoginPage, "Sign-in failed")
			return
		}

		redirectSuccess(w, r, safeReturnURL(authState.ReturnURL, s.services.AccessRules.Home(record.Role)))
	}
}
