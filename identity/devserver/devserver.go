// Package devserver is an in-memory account service for development and
// tests. It speaks the same JSON protocol identity.Client expects.
package devserver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-gate/identity"
	"github.com/jrsteele09/go-session-gate/internal/errors"
	"github.com/jrsteele09/go-session-gate/refresh"
	"github.com/jrsteele09/go-session-gate/token"
	"github.com/jrsteele09/go-session-gate/users"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
	DefaultIssuer          = "session-gate-dev"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

type Server struct {
	users    users.UserRepo
	issuer   *issuer
	refresh  *refreshTokens
	userLock sync.Mutex // serialises signup and last-login writes

	accessTTL  time.Duration
	refreshTTL time.Duration
	issuerName string
	now        func() time.Time
}

var (
	_ identity.Service = (*Server)(nil)
	_ refresh.Renewer  = (*Server)(nil)
)

type Option func(*Server)

func WithAccessTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

func WithRefreshTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.refreshTTL = ttl
	}
}

func WithIssuer(name string) Option {
	return func(s *Server) {
		s.issuerName = name
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func New(userRepo users.UserRepo, signingKey []byte, options ...Option) *Server {
	s := &Server{
		users:      userRepo,
		accessTTL:  DefaultAccessTokenTTL,
		refreshTTL: DefaultRefreshTokenTTL,
		issuerName: DefaultIssuer,
		now:        func() time.Time { return NowTimeFunc() },
	}
	for _, opt := range options {
		opt(s)
	}

	s.issuer = &issuer{signingKey: signingKey, issuer: s.issuerName, ttl: s.accessTTL, now: s.now}
	s.refresh = newRefreshTokens(s.refreshTTL, s.now)
	return s
}

// Login authenticates by password, or by provider identity when one is given.
// Unknown provider identities return errors.ErrAccountNotFound.
func (s *Server) Login(_ context.Context, creds identity.Credentials) (*identity.LoginResult, error) {
	user, err := s.authenticate(creds)
	if err != nil {
		return nil, err
	}
	if user.Blocked {
		return nil, fmt.Errorf("%w: account blocked", errors.ErrInvalidCredentials)
	}

	s.userLock.Lock()
	updated := *user
	updated.LastLogin = s.now()
	err = s.users.Upsert(&updated)
	s.userLock.Unlock()
	if err != nil {
		return nil, fmt.Errorf("[devserver Login] record login: %w", err)
	}

	return s.issue(&updated)
}

func (s *Server) authenticate(creds identity.Credentials) (*users.User, error) {
	if creds.IsOAuth() {
		user, err := s.users.GetByProvider(creds.Provider, creds.ProviderID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, errors.ErrAccountNotFound) {
			return nil, err
		}
		// An account with the same email but another sign-in method is not linked automatically
		if existing, err := s.users.GetByEmail(creds.Email); err == nil && existing != nil {
			return nil, fmt.Errorf("%w: email registered with another sign-in method", errors.ErrAccountExists)
		}
		return nil, errors.ErrAccountNotFound
	}

	if creds.Email == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", errors.ErrInvalidRequest)
	}
	user, err := s.users.GetByEmail(creds.Email)
	if err != nil || user.PasswordHash == "" || !users.CheckPasswordHash(creds.Password, user.PasswordHash) {
		return nil, errors.ErrInvalidCredentials
	}
	return user, nil
}

// Signup creates a password account or an account linked to a provider identity
func (s *Server) Signup(_ context.Context, req identity.SignupRequest) (*identity.SignupResult, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", errors.ErrInvalidRequest)
	}

	role := req.UserType
	if role == "" {
		role = users.RoleStudent
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown user type %q", errors.ErrInvalidRequest, req.UserType)
	}

	user := &users.User{
		ID:         uuid.New().String(),
		Email:      email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		UserType:   role,
		Provider:   req.Provider,
		ProviderID: req.ProviderID,
		DateJoined: s.now(),
	}

	switch {
	case req.Password != "":
		if err := users.ValidatePasswordStrength(req.Password); err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrInvalidRequest, err)
		}
		hash, err := users.HashPassword(req.Password)
		if err != nil {
			return nil, fmt.Errorf("[devserver Signup] hash password: %w", err)
		}
		user.PasswordHash = hash
	case req.Provider == "" || req.ProviderID == "":
		return nil, fmt.Errorf("%w: password or provider identity is required", errors.ErrInvalidRequest)
	}

	s.userLock.Lock()
	defer s.userLock.Unlock()

	if _, err := s.users.GetByEmail(email); err == nil {
		return nil, errors.ErrAccountExists
	}
	if err := s.users.Upsert(user); err != nil {
		return nil, fmt.Errorf("[devserver Signup] store user: %w", err)
	}

	log.Info().Str("user", user.ID).Str("type", string(role)).Msg("dev account created")
	return &identity.SignupResult{UserID: user.ID, Email: user.Email}, nil
}

// Renew rotates the refresh token. The presented access token must be
// correctly signed and belong to the refresh token's user; expiry is not checked.
func (s *Server) Renew(_ context.Context, current token.Pair) (token.Pair, error) {
	userID, err := s.refresh.consume(current.RefreshToken)
	if err != nil {
		return token.Pair{}, fmt.Errorf("%w: %w", errors.ErrRenewalRejected, err)
	}

	claims, err := s.issuer.verify(current.AccessToken)
	if err != nil {
		return token.Pair{}, fmt.Errorf("%w: %w", errors.ErrRenewalRejected, err)
	}
	if sub, _ := claims.GetSubject(); sub != userID {
		return token.Pair{}, fmt.Errorf("%w: token subject does not match refresh token", errors.ErrRenewalRejected)
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		return token.Pair{}, fmt.Errorf("%w: %w", errors.ErrRenewalRejected, err)
	}
	if user.Blocked {
		return token.Pair{}, fmt.Errorf("%w: account blocked", errors.ErrRenewalRejected)
	}

	result, err := s.issue(user)
	if err != nil {
		return token.Pair{}, err
	}
	return result.Pair(), nil
}

// Revoke drops the user's refresh token
func (s *Server) Revoke(userID string) {
	s.refresh.revokeUser(userID)
}

func (s *Server) issue(user *users.User) (*identity.LoginResult, error) {
	accessToken, err := s.issuer.accessToken(user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.refresh.issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &identity.LoginResult{Token: accessToken, RefreshToken: refreshToken}, nil
}
