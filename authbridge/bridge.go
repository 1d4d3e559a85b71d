// Package authbridge turns a sign-in at the account service into the claims
// a session is built from, provisioning accounts for first-time OAuth users.
package authbridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/go-session-gate/identity"
	"github.com/jrsteele09/go-session-gate/internal/errors"
	"github.com/jrsteele09/go-session-gate/sessions"
	"github.com/jrsteele09/go-session-gate/token"
	"github.com/jrsteele09/go-session-gate/users"
	"github.com/rs/zerolog/log"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Identity is a user as asserted by an external identity provider
type Identity struct {
	Email       string
	ProviderID  string
	Provider    string
	DisplayName string
	UserType    users.RoleType // role for a newly provisioned account, student when empty
}

// Result is a signed-in user's credential pair and normalised claims
type Result struct {
	Pair      token.Pair
	SubjectID string
	Role      users.RoleType
	Email     string
	Name      string
	ExpiresAt time.Time // access token expiry, zero when the token has none
}

// Record builds a session record for the result that lives for ttl
func (r *Result) Record(id string, ttl time.Duration) *sessions.Record {
	now := NowTimeFunc()
	return &sessions.Record{
		ID:           id,
		AccessToken:  r.Pair.AccessToken,
		RefreshToken: r.Pair.RefreshToken,
		Role:         r.Role,
		SubjectID:    r.SubjectID,
		Email:        r.Email,
		Name:         r.Name,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
}

type Bridge struct {
	service         identity.Service
	defaultUserType users.RoleType
}

type Option func(*Bridge)

// WithDefaultUserType sets the role given to provisioned accounts that don't declare one
func WithDefaultUserType(role users.RoleType) Option {
	return func(b *Bridge) {
		if role.Valid() {
			b.defaultUserType = role
		}
	}
}

func New(service identity.Service, options ...Option) *Bridge {
	b := &Bridge{service: service, defaultUserType: users.RoleStudent}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Reconcile signs in an external identity. When the account service has no
// account for it, one is provisioned and the login retried once. Any other
// failure is returned as is. It makes at most two logins and one signup.
func (b *Bridge) Reconcile(ctx context.Context, id Identity) (*Result, error) {
	if id.Email == "" || id.Provider == "" || id.ProviderID == "" {
		return nil, fmt.Errorf("%w: email, provider and provider id are required", errors.ErrInvalidRequest)
	}

	creds := identity.Credentials{Email: id.Email, Provider: id.Provider, ProviderID: id.ProviderID}
	login, err := b.service.Login(ctx, creds)

	var declared users.RoleType
	if errors.Is(err, errors.ErrAccountNotFound) {
		declared = id.UserType
		if !declared.Valid() {
			declared = b.defaultUserType
		}

		firstName, lastName := SplitDisplayName(id.DisplayName)
		if _, err := b.service.Signup(ctx, identity.SignupRequest{
			Email:      id.Email,
			FirstName:  firstName,
			LastName:   lastName,
			UserType:   declared,
			Provider:   id.Provider,
			ProviderID: id.ProviderID,
		}); err != nil {
			return nil, fmt.Errorf("[authbridge Reconcile] provision account: %w", err)
		}
		log.Info().Str("provider", id.Provider).Str("email", id.Email).Msg("provisioned account for external identity")

		login, err = b.service.Login(ctx, creds)
	}
	if err != nil {
		return nil, fmt.Errorf("[authbridge Reconcile] login: %w", err)
	}

	return normalise(login, declared, id.Email, id.DisplayName)
}

// SignIn signs in with an email and password
func (b *Bridge) SignIn(ctx context.Context, email, password string) (*Result, error) {
	login, err := b.service.Login(ctx, identity.Credentials{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("[authbridge SignIn] login: %w", err)
	}
	return normalise(login, "", email, "")
}

func normalise(login *identity.LoginResult, declared users.RoleType, email, name string) (*Result, error) {
	payload := token.Decode(login.Token)
	if payload == nil {
		return nil, fmt.Errorf("%w: access token could not be decoded", errors.ErrInvalidToken)
	}
	if payload.SubjectID == "" {
		return nil, fmt.Errorf("%w: access token has no subject", errors.ErrInvalidToken)
	}

	role := payload.Role
	if !role.Valid() {
		role = declared
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: access token has no recognised role", errors.ErrInvalidToken)
	}

	result := &Result{
		Pair:      login.Pair(),
		SubjectID: payload.SubjectID,
		Role:      role,
		Email:     firstNonEmpty(payload.Email, email),
		Name:      firstNonEmpty(payload.Name, name),
	}
	if payload.HasExpiry() {
		result.ExpiresAt = time.Unix(payload.ExpiresAt, 0)
	}
	return result, nil
}

// SplitDisplayName splits on the first run of whitespace. The remainder,
// possibly empty, is the last name.
func SplitDisplayName(displayName string) (firstName, lastName string) {
	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
