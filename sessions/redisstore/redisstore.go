package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jrsteele09/go-session-gate/internal/errors"
	"github.com/jrsteele09/go-session-gate/sessions"
	"github.com/jrsteele09/go-session-gate/token"
	"github.com/jrsteele09/go-session-gate/users"
	"github.com/redis/go-redis/v9"
)

var _ sessions.Store = (*Store)(nil)

// Hash fields of a stored session
const (
	fieldAccessToken  = "access_token"
	fieldRefreshToken = "refresh_token"
	fieldRole         = "role"
	fieldSubjectID    = "subject_id"
	fieldEmail        = "email"
	fieldName         = "name"
	fieldCreatedAt    = "created_at"
	fieldExpiresAt    = "expires_at"
)

// maxTxAttempts bounds optimistic-lock retries in UpdateTokens
const maxTxAttempts = 3

// Store keeps each session in a Redis hash so separately deployed processes
// (the access gate and the sync providers) see the same record.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

// New creates a Redis backed session store. Keys are "<prefix>session:<id>".
func New(rdb redis.UniversalClient, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) key(id string) string {
	return s.prefix + "session:" + id
}

func (s *Store) Create(ctx context.Context, record *sessions.Record) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("session id is required: %w", errors.ErrInvalidRequest)
	}

	key := s.key(record.ID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldAccessToken, record.AccessToken,
			fieldRefreshToken, record.RefreshToken,
			fieldRole, string(record.Role),
			fieldSubjectID, record.SubjectID,
			fieldEmail, record.Email,
			fieldName, record.Name,
			fieldCreatedAt, strconv.FormatInt(record.CreatedAt.Unix(), 10),
			fieldExpiresAt, strconv.FormatInt(record.ExpiresAt.Unix(), 10),
		)
		if !record.ExpiresAt.IsZero() {
			pipe.ExpireAt(ctx, key, record.ExpiresAt)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("[redisstore Create] %w", err)
	}
	return nil
}

func (s *Store) Read(ctx context.Context, id string) (*sessions.Record, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("[redisstore Read] %w", err)
	}
	if len(fields) == 0 {
		return nil, errors.ErrSessionNotFound
	}

	record := &sessions.Record{
		ID:           id,
		AccessToken:  fields[fieldAccessToken],
		RefreshToken: fields[fieldRefreshToken],
		SubjectID:    fields[fieldSubjectID],
		Email:        fields[fieldEmail],
		Name:         fields[fieldName],
		CreatedAt:    parseUnix(fields[fieldCreatedAt]),
		ExpiresAt:    parseUnix(fields[fieldExpiresAt]),
	}
	if role, ok := users.ParseRole(fields[fieldRole]); ok {
		record.Role = role
	}
	return record, nil
}

// UpdateTokens writes both tokens with a single HSET inside a WATCH/MULTI
// transaction, so a concurrently deleted session is never resurrected.
func (s *Store) UpdateTokens(ctx context.Context, id string, pair token.Pair) error {
	if !pair.Complete() {
		return errors.ErrIncompletePair
	}

	key := s.key(id)
	update := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.ErrSessionNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldAccessToken, pair.AccessToken, fieldRefreshToken, pair.RefreshToken)
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = s.rdb.Watch(ctx, update, key)
		if err != redis.TxFailedErr {
			break
		}
	}
	if errors.Is(err, errors.ErrSessionNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("[redisstore UpdateTokens] %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("[redisstore Delete] %w", err)
	}
	return nil
}

func parseUnix(v string) time.Time {
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}
