package token

// Pair is the access/refresh credential pair held by a session.
// It is always stored and replaced as a whole.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Complete reports whether both members are present
func (p Pair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}
