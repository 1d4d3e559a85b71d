// Package storetest holds behaviour tests shared by every sessions.Store.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-gate/internal/errors"
	"github.com/jrsteele09/go-session-gate/sessions"
	"github.com/jrsteele09/go-session-gate/token"
	"github.com/jrsteele09/go-session-gate/users"
	"github.com/stretchr/testify/require"
)

// NewRecord returns a populated session record expiring in an hour
func NewRecord(id string) *sessions.Record {
	now := time.Now().Truncate(time.Second)
	return &sessions.Record{
		ID:           id,
		AccessToken:  "access-" + id,
		RefreshToken: "refresh-" + id,
		Role:         users.RoleStudent,
		SubjectID:    "user-" + id,
		Email:        id + "@example.com",
		Name:         "Test User",
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Hour),
	}
}

// Run exercises the sessions.Store contract against newStore
func Run(t *testing.T, newStore func(t *testing.T) sessions.Store) {
	ctx := context.Background()

	t.Run("create and read", func(t *testing.T) {
		s := newStore(t)
		want := NewRecord("s1")
		require.NoError(t, s.Create(ctx, want))

		got, err := s.Read(ctx, "s1")
		require.NoError(t, err)
		require.Equal(t, want.AccessToken, got.AccessToken)
		require.Equal(t, want.RefreshToken, got.RefreshToken)
		require.Equal(t, want.Role, got.Role)
		require.Equal(t, want.SubjectID, got.SubjectID)
		require.Equal(t, want.Email, got.Email)
		require.Equal(t, want.Name, got.Name)
		require.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
	})

	t.Run("read missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Read(ctx, "nope")
		require.ErrorIs(t, err, errors.ErrSessionNotFound)
	})

	t.Run("create requires id", func(t *testing.T) {
		s := newStore(t)
		require.Error(t, s.Create(ctx, &sessions.Record{}))
	})

	t.Run("update replaces both tokens", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, NewRecord("s1")))

		pair := token.Pair{AccessToken: "new-access", RefreshToken: "new-refresh"}
		require.NoError(t, s.UpdateTokens(ctx, "s1", pair))

		got, err := s.Read(ctx, "s1")
		require.NoError(t, err)
		require.Equal(t, pair, got.Pair())
		require.Equal(t, "user-s1", got.SubjectID, "other fields are untouched")
	})

	t.Run("update rejects incomplete pair", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, NewRecord("s1")))

		err := s.UpdateTokens(ctx, "s1", token.Pair{AccessToken: "only-access"})
		require.ErrorIs(t, err, errors.ErrIncompletePair)
		err = s.UpdateTokens(ctx, "s1", token.Pair{RefreshToken: "only-refresh"})
		require.ErrorIs(t, err, errors.ErrIncompletePair)

		got, err := s.Read(ctx, "s1")
		require.NoError(t, err)
		require.Equal(t, "access-s1", got.AccessToken)
		require.Equal(t, "refresh-s1", got.RefreshToken)
	})

	t.Run("update missing session", func(t *testing.T) {
		s := newStore(t)
		err := s.UpdateTokens(ctx, "nope", token.Pair{AccessToken: "a", RefreshToken: "r"})
		require.ErrorIs(t, err, errors.ErrSessionNotFound)

		_, err = s.Read(ctx, "nope")
		require.ErrorIs(t, err, errors.ErrSessionNotFound, "update must not create a session")
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, NewRecord("s1")))
		require.NoError(t, s.Delete(ctx, "s1"))
		require.NoError(t, s.Delete(ctx, "s1"))

		_, err := s.Read(ctx, "s1")
		require.ErrorIs(t, err, errors.ErrSessionNotFound)
	})

	t.Run("concurrent updates never split a pair", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, NewRecord("s1")))

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				suffix := string(rune('a' + i))
				_ = s.UpdateTokens(ctx, "s1", token.Pair{AccessToken: "access-" + suffix, RefreshToken: "refresh-" + suffix})
			}(i)
		}
		wg.Wait()

		got, err := s.Read(ctx, "s1")
		require.NoError(t, err)
		require.Equal(t, got.AccessToken[len("access-"):], got.RefreshToken[len("refresh-"):])
	})
}
