package oauthflow_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-session-gate/internal/errors"
	"github.com/jrsteele09/go-session-gate/server/oauthflow"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepo_RoundTrip(t *testing.T) {
	repo := oauthflow.NewInMemoryRepo(time.Minute)

	flow := &oauthflow.FlowState{CodeVerifier: "v", Nonce: "n", ReturnURL: "/student/dashboard"}
	require.NoError(t, repo.Upsert("state-1", flow))

	// Later changes by the caller don't leak into the repo
	flow.Nonce = "changed"

	got, err := repo.Get("state-1")
	require.NoError(t, err)
	require.Equal(t, "n", got.Nonce)
	require.Equal(t, "/student/dashboard", got.ReturnURL)
	require.False(t, got.CreatedAt.IsZero())

	require.NoError(t, repo.Delete("state-1"))
	_, err = repo.Get("state-1")
	require.ErrorIs(t, err, errors.ErrInvalidState)
}

func TestInMemoryRepo_Expiry(t *testing.T) {
	now := time.Now()
	repo := oauthflow.NewInMemoryRepo(time.Minute, oauthflow.WithNowFunc(func() time.Time { return now }))

	require.NoError(t, repo.Upsert("old", &oauthflow.FlowState{Nonce: "n"}))
	now = now.Add(2 * time.Minute)

	_, err := repo.Get("old")
	require.ErrorIs(t, err, errors.ErrInvalidState)

	// The next write sweeps the expired entry
	require.NoError(t, repo.Upsert("new", &oauthflow.FlowState{Nonce: "n"}))
	require.Equal(t, 1, repo.Len())
}

func TestInMemoryRepo_Validation(t *testing.T) {
	repo := oauthflow.NewInMemoryRepo(time.Minute)

	require.ErrorIs(t, repo.Upsert("", &oauthflow.FlowState{}), errors.ErrInvalidRequest)
	require.ErrorIs(t, repo.Upsert("s", nil), errors.ErrInvalidRequest)

	_, err := repo.Get("")
	require.ErrorIs(t, err, errors.ErrInvalidState)
}
