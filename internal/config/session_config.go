package config

import "time"

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetSessionCookieName() string {
	return GetEnv("SESSION_COOKIE", "course_session")
}

func (Session) GetSessionMaxAge() time.Duration {
	return GetEnvDuration("SESSION_MAX_AGE", 30*24*time.Hour) // 30 days
}

// GetExpiryBuffer is how long before the access token's exp claim it is treated as expired
func (Session) GetExpiryBuffer() time.Duration {
	return GetEnvDuration("EXPIRY_BUFFER", 5*time.Minute)
}

func (Session) GetSyncInterval() time.Duration {
	return GetEnvDuration("SYNC_INTERVAL", 5*time.Minute)
}

func (Session) GetRenewalTimeout() time.Duration {
	return GetEnvDuration("RENEWAL_TIMEOUT", 10*time.Second)
}
