package sessions

import (
	"context"
	"time"

	"github.com/jrsteele09/go-session-gate/token"
	"github.com/jrsteele09/go-session-gate/users"
)

// Record is the server-side session held for a signed-in browser.
// Access and refresh tokens change only together, through Store.UpdateTokens.
type Record struct {
	ID           string         `json:"id"`           // Session identifier carried in the session cookie (UUID)
	AccessToken  string         `json:"accessToken"`  // Short-lived bearer token (JWT)
	RefreshToken string         `json:"refreshToken"` // Long-lived renewal credential
	Role         users.RoleType `json:"role"`         // Role at sign-in
	SubjectID    string         `json:"subjectId"`    // Account ID at the identity service
	Email        string         `json:"email,omitempty"`
	Name         string         `json:"name,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	ExpiresAt    time.Time      `json:"expiresAt"` // Session (not token) expiry
}

// Pair returns the session's credential pair
func (r *Record) Pair() token.Pair {
	return token.Pair{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
}

// Store is the session store shared by the refresh coordinator, the sync
// providers and the access gate.
type Store interface {
	// Create stores a new session
	Create(ctx context.Context, record *Record) error

	// Read returns the session or errors.ErrSessionNotFound
	Read(ctx context.Context, id string) (*Record, error)

	// UpdateTokens replaces both tokens in one step. Incomplete pairs are rejected
	// with errors.ErrIncompletePair and unknown sessions with errors.ErrSessionNotFound.
	UpdateTokens(ctx context.Context, id string, pair token.Pair) error

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
}
