package oauthflow

import "time"

// FlowState is what the callback needs to finish a sign-in started at /oauth/start
type FlowState struct {
	CodeVerifier string
	Nonce        string
	ReturnURL    string
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(state string, flow *FlowState) error
	// Get returns errors.ErrInvalidState for unknown or expired states
	Get(state string) (*FlowState, error)
	Delete(state string) error
}
