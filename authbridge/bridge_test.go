package authbridge_test

import (
	"context"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-session-gate/authbridge"
	"github.com/jrsteele09/go-session-gate/identity"
	"github.com/jrsteele09/go-session-gate/identity/devserver"
	"github.com/jrsteele09/go-session-gate/internal/errors"
	"github.com/jrsteele09/go-session-gate/token"
	"github.com/jrsteele09/go-session-gate/token/tokentest"
	"github.com/jrsteele09/go-session-gate/users"
	fakeuserrepo "github.com/jrsteele09/go-session-gate/users/repofake"
	"github.com/stretchr/testify/require"
)

// scriptedService answers logins from a queue and records every call
type scriptedService struct {
	logins  []func() (*identity.LoginResult, error)
	signup  error
	calls   []string
	signups []identity.SignupRequest
}

func (s *scriptedService) Login(_ context.Context, creds identity.Credentials) (*identity.LoginResult, error) {
	s.calls = append(s.calls, "login")
	next := s.logins[0]
	s.logins = s.logins[1:]
	return next()
}

func (s *scriptedService) Signup(_ context.Context, req identity.SignupRequest) (*identity.SignupResult, error) {
	s.calls = append(s.calls, "signup")
	s.signups = append(s.signups, req)
	if s.signup != nil {
		return nil, s.signup
	}
	return &identity.SignupResult{UserID: "u-1", Email: req.Email}, nil
}

func notFound() (*identity.LoginResult, error) {
	return nil, errors.ErrAccountNotFound
}

func loginWith(accessToken string) func() (*identity.LoginResult, error) {
	return func() (*identity.LoginResult, error) {
		return &identity.LoginResult{Token: accessToken, RefreshToken: "refresh"}, nil
	}
}

var newUser = authbridge.Identity{
	Email:       "grace@example.com",
	Provider:    "google",
	ProviderID:  "g-42",
	DisplayName: "Grace Brewster Hopper",
	UserType:    users.RoleInstructor,
}

func TestReconcile_ProvisionsUnknownIdentity(t *testing.T) {
	// The provisioned account's token carries no role claim
	accessToken := tokentest.Mint(t, jwtlib.MapClaims{"sub": "u-1", "exp": time.Now().Add(time.Hour).Unix()})
	svc := &scriptedService{logins: []func() (*identity.LoginResult, error){notFound, loginWith(accessToken)}}

	result, err := authbridge.New(svc).Reconcile(context.Background(), newUser)
	require.NoError(t, err)
	require.Equal(t, []string{"login", "signup", "login"}, svc.calls)

	require.Len(t, svc.signups, 1)
	require.Equal(t, identity.SignupRequest{
		Email:      "grace@example.com",
		FirstName:  "Grace",
		LastName:   "Brewster Hopper",
		UserType:   users.RoleInstructor,
		Provider:   "google",
		ProviderID: "g-42",
	}, svc.signups[0])

	require.Equal(t, users.RoleInstructor, result.Role)
	require.Equal(t, "u-1", result.SubjectID)
	require.Equal(t, "grace@example.com", result.Email)
	require.Equal(t, "Grace Brewster Hopper", result.Name)
	require.Equal(t, "refresh", result.Pair.RefreshToken)
	require.False(t, result.ExpiresAt.IsZero())
}

func TestReconcile_ExistingAccountLogsInOnce(t *testing.T) {
	accessToken := tokentest.Access(t, "u-7", users.RoleStudent, time.Now().Add(time.Hour))
	svc := &scriptedService{logins: []func() (*identity.LoginResult, error){loginWith(accessToken)}}

	result, err := authbridge.New(svc).Reconcile(context.Background(), newUser)
	require.NoError(t, err)
	require.Equal(t, []string{"login"}, svc.calls)
	require.Equal(t, users.RoleStudent, result.Role)
	require.Equal(t, "u-7@example.com", result.Email)
}

func TestReconcile_OtherLoginFailurePropagates(t *testing.T) {
	svc := &scriptedService{logins: []func() (*identity.LoginResult, error){
		func() (*identity.LoginResult, error) { return nil, errors.ErrIdentityService },
	}}

	_, err := authbridge.New(svc).Reconcile(context.Background(), newUser)
	require.ErrorIs(t, err, errors.ErrIdentityService)
	require.Equal(t, []string{"login"}, svc.calls)
}

func TestReconcile_SignupFailurePropagates(t *testing.T) {
	svc := &scriptedService{
		logins: []func() (*identity.LoginResult, error){notFound},
		signup: errors.ErrAccountExists,
	}

	_, err := authbridge.New(svc).Reconcile(context.Background(), newUser)
	require.ErrorIs(t, err, errors.ErrAccountExists)
	require.Equal(t, []string{"login", "signup"}, svc.calls)
}

func TestReconcile_NeverMoreThanThreeCalls(t *testing.T) {
	svc := &scriptedService{logins: []func() (*identity.LoginResult, error){notFound, notFound}}

	_, err := authbridge.New(svc).Reconcile(context.Background(), newUser)
	require.ErrorIs(t, err, errors.ErrAccountNotFound)
	require.Equal(t, []string{"login", "signup", "login"}, svc.calls)
}

func TestReconcile_DefaultUserType(t *testing.T) {
	accessToken := tokentest.Mint(t, jwtlib.MapClaims{"sub": "u-1"})
	svc := &scriptedService{logins: []func() (*identity.LoginResult, error){notFound, loginWith(accessToken)}}

	id := newUser
	id.UserType = ""
	result, err := authbridge.New(svc).Reconcile(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, users.RoleStudent, svc.signups[0].UserType)
	require.Equal(t, users.RoleStudent, result.Role)
	require.True(t, result.ExpiresAt.IsZero())
}

func TestReconcile_RejectsUndecodableToken(t *testing.T) {
	svc := &scriptedService{logins: []func() (*identity.LoginResult, error){loginWith("opaque")}}

	_, err := authbridge.New(svc).Reconcile(context.Background(), newUser)
	require.ErrorIs(t, err, errors.ErrInvalidToken)
}

func TestReconcile_RequiresProviderIdentity(t *testing.T) {
	svc := &scriptedService{}

	_, err := authbridge.New(svc).Reconcile(context.Background(), authbridge.Identity{Email: "a@example.com"})
	require.ErrorIs(t, err, errors.ErrInvalidRequest)
	require.Empty(t, svc.calls)
}

func TestReconcile_AgainstDevServer(t *testing.T) {
	dev := devserver.New(fakeuserrepo.NewFakeUserRepo(), []byte("bridge-test-key"))
	bridge := authbridge.New(dev)

	first, err := bridge.Reconcile(context.Background(), newUser)
	require.NoError(t, err)
	require.Equal(t, users.RoleInstructor, first.Role)
	require.Equal(t, "Grace Brewster Hopper", first.Name)

	// The second sign-in finds the provisioned account
	second, err := bridge.Reconcile(context.Background(), newUser)
	require.NoError(t, err)
	require.Equal(t, first.SubjectID, second.SubjectID)
}

func TestSignIn(t *testing.T) {
	dev := devserver.New(fakeuserrepo.NewFakeUserRepo(), []byte("bridge-test-key"))
	_, err := dev.Signup(context.Background(), identity.SignupRequest{
		Email: "ada@example.com", FirstName: "Ada", Password: "Password123",
	})
	require.NoError(t, err)

	bridge := authbridge.New(dev)
	result, err := bridge.SignIn(context.Background(), "ada@example.com", "Password123")
	require.NoError(t, err)
	require.Equal(t, users.RoleStudent, result.Role)
	require.Equal(t, "Ada", result.Name)

	_, err = bridge.SignIn(context.Background(), "ada@example.com", "wrong")
	require.ErrorIs(t, err, errors.ErrInvalidCredentials)
}

func TestSplitDisplayName(t *testing.T) {
	tests := []struct {
		in, first, last string
	}{
		{"Grace Hopper", "Grace", "Hopper"},
		{"Grace Brewster Hopper", "Grace", "Brewster Hopper"},
		{"Cher", "Cher", ""},
		{"  Ada   Lovelace ", "Ada", "Lovelace"},
		{"", "", ""},
	}
	for _, tt := range tests {
		first, last := authbridge.SplitDisplayName(tt.in)
		require.Equal(t, tt.first, first, tt.in)
		require.Equal(t, tt.last, last, tt.in)
	}
}

func TestResult_Record(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	authbridge.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { authbridge.NowTimeFunc = time.Now })

	result := &authbridge.Result{
		Pair:      token.Pair{AccessToken: "a", RefreshToken: "r"},
		SubjectID: "u-1",
		Role:      users.RoleStudent,
		Email:     "a@example.com",
		Name:      "Ada",
	}
	record := result.Record("s1", time.Hour)

	require.Equal(t, "s1", record.ID)
	require.Equal(t, result.Pair, record.Pair())
	require.Equal(t, users.RoleStudent, record.Role)
	require.Equal(t, now, record.CreatedAt)
	require.Equal(t, now.Add(time.Hour), record.ExpiresAt)
}
