// Package tokentest mints signed JWTs for tests.
package tokentest

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-session-gate/users"
)

// SigningKey is the HMAC key used for every minted token
var SigningKey = []byte("tokentest-signing-key")

// Mint signs the given claims with HS256
func Mint(t testing.TB, claims jwtlib.MapClaims) string {
	t.Helper()
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(SigningKey)
	if err != nil {
		t.Fatalf("tokentest: sign: %v", err)
	}
	return signed
}

// Access mints an access token for a subject and role expiring at exp
func Access(t testing.TB, subject string, role users.RoleType, exp time.Time) string {
	t.Helper()
	return Mint(t, jwtlib.MapClaims{
		"sub":   subject,
		"role":  string(role),
		"email": subject + "@example.com",
		"exp":   exp.Unix(),
		"iat":   exp.Add(-time.Hour).Unix(),
	})
}
