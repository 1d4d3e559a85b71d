package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	IdentityConfig
	OAuthConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
	GetRedisAddr() string
	GetRedisPrefix() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// SessionConfig covers the session cookie and the token lifecycle timings.
type SessionConfig interface {
	GetSessionCookieName() string
	GetSessionMaxAge() time.Duration
	GetExpiryBuffer() time.Duration
	GetSyncInterval() time.Duration
	GetRenewalTimeout() time.Duration
}

// IdentityConfig locates the external account service and its renewal endpoint.
// An empty identity URL in DEV mounts the in-memory development service.
type IdentityConfig interface {
	GetIdentityURL() string
	GetRenewalURL() string
	GetDevSigningKey() string
	GetDefaultUserType() string
}

type OAuthConfig interface {
	GetOAuthIssuer() string
	GetOAuthClientID() string
	GetOAuthClientSecret() string
	GetOAuthProviderName() string
	GetOAuthFlowTimeout() time.Duration
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	Identity
	OAuth
}

func New() Config {
	return mainConfig{}
}
