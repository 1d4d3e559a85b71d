// Package identity is the boundary to the account service that issues
// credential pairs.
package identity

import (
	"context"

	"github.com/jrsteele09/go-session-gate/token"
	"github.com/jrsteele09/go-session-gate/users"
)

// Credentials identify an account either by password or by an external provider identity
type Credentials struct {
	Email      string `json:"email"`
	Password   string `json:"password,omitempty"`
	Provider   string `json:"provider,omitempty"`
	ProviderID string `json:"providerId,omitempty"`
}

// IsOAuth reports whether the credentials carry an external provider identity
func (c Credentials) IsOAuth() bool {
	return c.Provider != "" && c.ProviderID != ""
}

type LoginResult struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (r *LoginResult) Pair() token.Pair {
	return token.Pair{AccessToken: r.Token, RefreshToken: r.RefreshToken}
}

type SignupRequest struct {
	Email      string         `json:"email"`
	FirstName  string         `json:"first_name"`
	LastName   string         `json:"last_name"`
	UserType   users.RoleType `json:"user_type"`
	Password   string         `json:"password,omitempty"`
	Provider   string         `json:"provider,omitempty"`
	ProviderID string         `json:"providerId,omitempty"`
}

type SignupResult struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Service is the account service. Login returns errors.ErrAccountNotFound when
// no account matches an external provider identity.
type Service interface {
	Login(ctx context.Context, creds Credentials) (*LoginResult, error)
	Signup(ctx context.Context, req SignupRequest) (*SignupResult, error)
}

// ErrorResponse is the error body returned by the account service
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}
