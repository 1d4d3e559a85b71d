package config

type Identity struct{}

var _ IdentityConfig = Identity{}

// GetIdentityURL is the base URL of the account service exposing /login and /signup
func (Identity) GetIdentityURL() string {
	return GetEnv("IDENTITY_URL", "")
}

// GetRenewalURL defaults to the identity service's refresh endpoint
func (i Identity) GetRenewalURL() string {
	if url := GetEnv("RENEWAL_URL", ""); url != "" {
		return url
	}
	if base := i.GetIdentityURL(); base != "" {
		return base + "/refresh"
	}
	return ""
}

func (Identity) GetDevSigningKey() string {
	return GetEnv("DEV_SIGNING_KEY", "dev-only-signing-key")
}

// GetDefaultUserType is the account type provisioned for first-time OAuth sign-ins
func (Identity) GetDefaultUserType() string {
	return GetEnv("DEFAULT_USER_TYPE", "student")
}
