package server

import (
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-session-gate/internal/config"
	"github.com/stretchr/testify/require"
)

func TestSafeReturnURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"/courses/go-101", "/courses/go-101"},
		{"/student/dashboard?tab=progress", "/student/dashboard?tab=progress"},
		{"", "/home"},
		{"courses", "/home"},
		{"//evil.example", "/home"},
		{"/\\evil.example", "/home"},
		{"https://evil.example/", "/home"},
		{"javascript:alert(1)", "/home"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, safeReturnURL(tt.raw, "/home"), tt.raw)
	}
}

func TestCheckOrigin(t *testing.T) {
	s := &Server{config: config.New()}

	req := httptest.NewRequest("GET", "http://app.example/api/session/ws", nil)
	require.True(t, s.checkOrigin(req))

	req.Header.Set("Origin", "http://app.example")
	require.True(t, s.checkOrigin(req))

	req.Header.Set("Origin", "http://localhost:3000")
	require.True(t, s.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	require.False(t, s.checkOrigin(req))
}

func TestGenerateRandomString(t *testing.T) {
	a := generateRandomString(32)
	b := generateRandomString(32)
	require.Len(t, a, 43)
	require.NotEqual(t, a, b)
}

func TestGetScheme(t *testing.T) {
	req := httptest.NewRequest("GET", "http://app.example/", nil)
	require.Equal(t, "http", getScheme(req))

	req.Header.Set("X-Forwarded-Proto", "https")
	require.Equal(t, "https", getScheme(req))
}
