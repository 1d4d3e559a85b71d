package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-gate/refresh"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var _ refresh.Locker = (*Locker)(nil)

const defaultPollInterval = 50 * time.Millisecond

// unlockScript deletes the key only while it still carries our token, so an
// expired claim taken over by another process is left alone
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker claims session renewals across processes with SET NX PX. A claim
// expires after ttl so a crashed holder cannot block a session for good.
type Locker struct {
	rdb          redis.UniversalClient
	prefix       string
	ttl          time.Duration
	pollInterval time.Duration
}

type Option func(*Locker)

func WithPollInterval(d time.Duration) Option {
	return func(l *Locker) {
		l.pollInterval = d
	}
}

// New creates a Locker. Keys are "<prefix>refresh-lock:<id>".
func New(rdb redis.UniversalClient, prefix string, ttl time.Duration, options ...Option) *Locker {
	l := &Locker{
		rdb:          rdb,
		prefix:       prefix,
		ttl:          ttl,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func (l *Locker) key(sessionID string) string {
	return l.prefix + "refresh-lock:" + sessionID
}

func (l *Locker) TryLock(ctx context.Context, sessionID string) (func(), bool, error) {
	key := l.key(sessionID)
	value := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, value, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("[redislock TryLock] %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func() {
		if err := unlockScript.Run(context.WithoutCancel(ctx), l.rdb, []string{key}, value).Err(); err != nil {
			log.Err(err).Str("key", key).Msg("failed to release renewal claim")
		}
	}
	return unlock, true, nil
}

func (l *Locker) Wait(ctx context.Context, sessionID string) error {
	key := l.key(sessionID)
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		n, err := l.rdb.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("[redislock Wait] %s: %w", key, err)
		}
		if n == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
