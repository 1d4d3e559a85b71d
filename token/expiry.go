package token

import "time"

// DefaultExpiryBuffer is how far ahead of the exp claim a token is considered expired
const DefaultExpiryBuffer = 5 * time.Minute

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// ExpiryPolicy decides whether an access token should be renewed
type ExpiryPolicy struct {
	buffer  time.Duration
	nowFunc func() time.Time
}

type ExpiryOption func(*ExpiryPolicy)

func WithBuffer(buffer time.Duration) ExpiryOption {
	return func(p *ExpiryPolicy) {
		p.buffer = buffer
	}
}

func WithNowFunc(now func() time.Time) ExpiryOption {
	return func(p *ExpiryPolicy) {
		p.nowFunc = now
	}
}

func NewExpiryPolicy(options ...ExpiryOption) *ExpiryPolicy {
	p := &ExpiryPolicy{buffer: DefaultExpiryBuffer}
	for _, opt := range options {
		opt(p)
	}
	if p.buffer < 0 {
		p.buffer = 0
	}
	if p.nowFunc == nil {
		p.nowFunc = func() time.Time { return NowTimeFunc() }
	}
	return p
}

// Buffer returns the renewal safety window
func (p *ExpiryPolicy) Buffer() time.Duration {
	return p.buffer
}

// IsExpired reports whether the token expires before now plus the buffer.
// Undecodable tokens and tokens without an exp claim are expired.
func (p *ExpiryPolicy) IsExpired(raw string) bool {
	return p.ExpiresWithin(raw, p.buffer)
}

// ExpiresWithin reports whether the token expires before now plus window
func (p *ExpiryPolicy) ExpiresWithin(raw string, window time.Duration) bool {
	payload := Decode(raw)
	if payload == nil || !payload.HasExpiry() {
		return true
	}
	return payload.ExpiresAt < p.nowFunc().Add(window).Unix()
}

// TimeLeft returns the time until the exp claim, zero for undecodable or expired tokens
func (p *ExpiryPolicy) TimeLeft(raw string) time.Duration {
	payload := Decode(raw)
	if payload == nil || !payload.HasExpiry() {
		return 0
	}
	left := time.Unix(payload.ExpiresAt, 0).Sub(p.nowFunc())
	if left < 0 {
		return 0
	}
	return left
}
