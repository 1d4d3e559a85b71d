package token

import (
	"encoding/json"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-session-gate/users"
)

// Payload is the decoded, unverified claim set of an access token.
// It is derived on demand from the raw token and never cached.
type Payload struct {
	ExpiresAt int64          // exp claim in epoch seconds, 0 when absent
	SubjectID string         // sub, falling back to user_id
	Role      users.RoleType // role, falling back to user_type; empty when unknown
	Email     string
	Name      string
	Claims    jwtlib.MapClaims // every claim as decoded
}

// HasExpiry reports whether the token carried an exp claim
func (p *Payload) HasExpiry() bool {
	return p.ExpiresAt > 0
}

var parser = jwtlib.NewParser()

// Decode reads a bearer token's claims without verifying its signature.
// Signature verification belongs to the identity provider at issuance; this is
// introspection only. The header is not read. It returns nil when the token
// does not have exactly three segments or the middle one is not base64url JSON.
func Decode(raw string) *Payload {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil
	}

	segment, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return nil
	}

	var claims jwtlib.MapClaims
	if err := json.Unmarshal(segment, &claims); err != nil || claims == nil {
		return nil
	}

	p := &Payload{
		SubjectID: firstString(claims, "sub", "user_id"),
		Email:     firstString(claims, "email"),
		Name:      firstString(claims, "name"),
		Claims:    claims,
	}

	if role, ok := users.ParseRole(firstString(claims, "role", "user_type")); ok {
		p.Role = role
	}

	// A malformed exp is treated the same as a missing one
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		p.ExpiresAt = exp.Unix()
	}

	return p
}

func firstString(claims jwtlib.MapClaims, keys ...string) string {
	for _, k := range keys {
		if v, ok := claims[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
