package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-gate/internal/errors"
	"github.com/jrsteele09/go-session-gate/sessions"
	"github.com/jrsteele09/go-session-gate/sessions/memstore"
	"github.com/jrsteele09/go-session-gate/sessions/storetest"
	"github.com/stretchr/testify/require"
)

func TestMemStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) sessions.Store {
		return memstore.New()
	})
}

func TestMemStore_ExpiredSessionIsGone(t *testing.T) {
	now := time.Now()
	s := memstore.New(memstore.WithNowFunc(func() time.Time { return now }))

	record := storetest.NewRecord("s1")
	record.ExpiresAt = now.Add(time.Minute)
	require.NoError(t, s.Create(context.Background(), record))

	now = now.Add(2 * time.Minute)
	_, err := s.Read(context.Background(), "s1")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
	require.Zero(t, s.Len())
}

func TestMemStore_ReadReturnsCopy(t *testing.T) {
	s := memstore.New()
	require.NoError(t, s.Create(context.Background(), storetest.NewRecord("s1")))

	got, err := s.Read(context.Background(), "s1")
	require.NoError(t, err)
	got.AccessToken = "mutated"

	again, err := s.Read(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, "access-s1", again.AccessToken)
}
