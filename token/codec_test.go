package token_test

import (
	"encoding/base64"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-session-gate/token"
	"github.com/jrsteele09/go-session-gate/token/tokentest"
	"github.com/jrsteele09/go-session-gate/users"
	"github.com/stretchr/testify/require"
)

func TestDecode_ExtractsClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := tokentest.Mint(t, jwtlib.MapClaims{
		"sub":   "user-1",
		"role":  "instructor",
		"email": "ada@example.com",
		"name":  "Ada Lovelace",
		"exp":   exp.Unix(),
	})

	p := token.Decode(raw)
	require.NotNil(t, p)
	require.Equal(t, "user-1", p.SubjectID)
	require.Equal(t, users.RoleInstructor, p.Role)
	require.Equal(t, "ada@example.com", p.Email)
	require.Equal(t, "Ada Lovelace", p.Name)
	require.Equal(t, exp.Unix(), p.ExpiresAt)
	require.True(t, p.HasExpiry())
}

func TestDecode_FallbackClaimNames(t *testing.T) {
	raw := tokentest.Mint(t, jwtlib.MapClaims{
		"user_id":   "42",
		"user_type": "Student",
	})

	p := token.Decode(raw)
	require.NotNil(t, p)
	require.Equal(t, "42", p.SubjectID)
	require.Equal(t, users.RoleStudent, p.Role)
	require.False(t, p.HasExpiry())
}

func TestDecode_UnknownRoleIsEmpty(t *testing.T) {
	p := token.Decode(tokentest.Mint(t, jwtlib.MapClaims{"sub": "x", "role": "admin"}))
	require.NotNil(t, p)
	require.Empty(t, p.Role)
}

func TestDecode_DoesNotVerifySignature(t *testing.T) {
	raw := tokentest.Mint(t, jwtlib.MapClaims{"sub": "user-1"})
	tampered := raw[:len(raw)-4] + "AAAA"

	p := token.Decode(tampered)
	require.NotNil(t, p)
	require.Equal(t, "user-1", p.SubjectID)
}

func TestDecode_IgnoresHeader(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"u1","role":"student","exp":4102444800}`))

	for name, header := range map[string]string{
		"no alg":   base64.RawURLEncoding.EncodeToString([]byte(`{"typ":"JWT"}`)),
		"not json": base64.RawURLEncoding.EncodeToString([]byte(`opaque`)),
	} {
		t.Run(name, func(t *testing.T) {
			p := token.Decode(header + "." + payload + ".sig")
			require.NotNil(t, p)
			require.Equal(t, "u1", p.SubjectID)
			require.Equal(t, users.RoleStudent, p.Role)
			require.EqualValues(t, 4102444800, p.ExpiresAt)
		})
	}
}

func TestDecode_MalformedReturnsNil(t *testing.T) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	notJSON := base64.RawURLEncoding.EncodeToString([]byte(`not json`))

	cases := map[string]string{
		"empty":            "",
		"one segment":      "abc",
		"two segments":     "abc.def",
		"four segments":    "a.b.c.d",
		"invalid base64":   header + ".!!!.sig",
		"middle not json":  header + "." + notJSON + ".sig",
		"payload not json": notJSON + "." + notJSON + ".sig",
		"payload array":    header + "." + base64.RawURLEncoding.EncodeToString([]byte(`[1]`)) + ".sig",
		"whitespace token": "   ",
	}

	policy := token.NewExpiryPolicy()
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			require.Nil(t, token.Decode(raw))
			require.True(t, policy.IsExpired(raw))
		})
	}
}

func TestPair_Complete(t *testing.T) {
	require.True(t, token.Pair{AccessToken: "a", RefreshToken: "r"}.Complete())
	require.False(t, token.Pair{AccessToken: "a"}.Complete())
	require.False(t, token.Pair{RefreshToken: "r"}.Complete())
}
