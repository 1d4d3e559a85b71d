package devserver

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-gate/internal/errors"
	"github.com/jrsteele09/go-session-gate/users"
)

const refreshTokenBytes = 32

// issuer mints HS256 access tokens
type issuer struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

func (i *issuer) accessToken(user *users.User) (string, error) {
	now := i.now()
	claims := jwtlib.MapClaims{
		"iss":   i.issuer,
		"sub":   user.ID,
		"role":  string(user.UserType),
		"email": user.Email,
		"name":  user.DisplayName(),
		"iat":   now.Unix(),
		"exp":   now.Add(i.ttl).Unix(),
		"jti":   uuid.New().String(),
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(i.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// verify checks the signature of an access token without enforcing exp, so
// an expired token can still be presented alongside its refresh token.
func (i *issuer) verify(raw string) (jwtlib.MapClaims, error) {
	parsed, err := jwtlib.Parse(raw, func(t *jwtlib.Token) (any, error) {
		return i.signingKey, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}), jwtlib.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}

type storedRefreshToken struct {
	token  string
	userID string
	iat    time.Time
}

// refreshTokens holds one opaque refresh token per user. Issuing a new token
// revokes the previous one.
type refreshTokens struct {
	lock    sync.Mutex
	tokens  map[string]*storedRefreshToken
	userIDs map[string]string // user ID to token
	ttl     time.Duration
	now     func() time.Time
}

func newRefreshTokens(ttl time.Duration, now func() time.Time) *refreshTokens {
	return &refreshTokens{
		tokens:  make(map[string]*storedRefreshToken),
		userIDs: make(map[string]string),
		ttl:     ttl,
		now:     now,
	}
}

func (rt *refreshTokens) issue(userID string) (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	tokenStr := hex.EncodeToString(b)

	rt.lock.Lock()
	defer rt.lock.Unlock()

	if existing, ok := rt.userIDs[userID]; ok {
		delete(rt.tokens, existing)
	}
	rt.tokens[tokenStr] = &storedRefreshToken{token: tokenStr, userID: userID, iat: rt.now()}
	rt.userIDs[userID] = tokenStr
	return tokenStr, nil
}

// consume validates and revokes a refresh token, returning its user
func (rt *refreshTokens) consume(tokenStr string) (string, error) {
	rt.lock.Lock()
	defer rt.lock.Unlock()

	stored, ok := rt.tokens[tokenStr]
	if !ok {
		return "", errors.ErrInvalidToken
	}
	delete(rt.tokens, tokenStr)
	delete(rt.userIDs, stored.userID)

	if rt.now().Sub(stored.iat) > rt.ttl {
		return "", fmt.Errorf("%w: refresh token expired", errors.ErrInvalidToken)
	}
	return stored.userID, nil
}

func (rt *refreshTokens) revokeUser(userID string) {
	rt.lock.Lock()
	defer rt.lock.Unlock()
	if existing, ok := rt.userIDs[userID]; ok {
		delete(rt.tokens, existing)
		delete(rt.userIDs, userID)
	}
}
