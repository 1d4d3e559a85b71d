package config

import "time"

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetOAuthIssuer() string {
	return GetEnv("OAUTH_ISSUER", "https://accounts.google.com")
}

// GetOAuthClientID returns the OIDC client; OAuth sign-in is disabled when empty
func (OAuth) GetOAuthClientID() string {
	return GetEnv("OAUTH_CLIENT_ID", "")
}

func (OAuth) GetOAuthClientSecret() string {
	return GetEnv("OAUTH_CLIENT_SECRET", "")
}

func (OAuth) GetOAuthProviderName() string {
	return GetEnv("OAUTH_PROVIDER", "google")
}

func (OAuth) GetOAuthFlowTimeout() time.Duration {
	return 10 * time.Minute
}
