package auth_test

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-agency-admin/apiclient"
	"github.com/jrsteele09/go-agency-admin/auth"
	"github.com/jrsteele09/go-agency-admin/clock"
	"github.com/jrsteele09/go-agency-admin/internal/config"
	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
	"github.com/jrsteele09/go-agency-admin/server"
	"github.com/jrsteele09/go-agency-admin/storage/memstore"
	"github.com/jrsteele09/go-agency-admin/users"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	loggedIn  bool
	expiresIn time.Duration
}

func (f *fakeSession) Login(_ context.Context, expiresIn time.Duration) error {
	f.loggedIn, f.expiresIn = true, expiresIn
	return nil
}

func (f *fakeSession) Logout(context.Context) error {
	f.loggedIn = false
	return nil
}

func (f *fakeSession) LoggedIn() bool { return f.loggedIn }

type fakeSeeder struct{ token string }

func (f *fakeSeeder) Seed(token string) { f.token = token }
func (f *fakeSeeder) Forget()           { f.token = "" }

type fixture struct {
	svc     *auth.Service
	session *fakeSession
	seeder  *fakeSeeder
	tab     *memstore.Store
	api     *server.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("ADMIN_EMAIL", "admin@agency.local")
	t.Setenv("ADMIN_PASSWORD", "Admin1234")
	t.Setenv("ENV", "TEST")

	api, err := server.NewInMemory(config.New(), clock.Fake(time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	ts := httptest.NewServer(api)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := apiclient.New(ts.URL, &http.Client{Jar: jar})

	f := &fixture{session: &fakeSession{}, seeder: &fakeSeeder{}, tab: memstore.New(), api: api}
	f.svc = auth.NewService(client, client, f.tab, f.session, f.seeder)
	return f
}

func TestService_Login(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "admin@agency.local", "bad")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	require.False(t, f.session.loggedIn)

	user, err := f.svc.Login(ctx, "admin@agency.local", "Admin1234")
	require.NoError(t, err)
	require.Equal(t, users.RoleAdmin, user.Role)
	require.True(t, f.session.loggedIn)
	require.Equal(t, time.Hour, f.session.expiresIn)
	require.NotEmpty(t, f.seeder.token)

	stored, err := f.svc.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, user, stored)

	require.NoError(t, f.svc.Logout(ctx))
	require.False(t, f.session.loggedIn)
	require.Empty(t, f.seeder.token)
	_, ok, err := f.tab.Get(ctx, auth.KeyCurrentUser)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestService_CurrentUserFetchesProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CurrentUser(ctx)
	require.ErrorIs(t, err, apperrors.ErrNotLoggedIn)

	_, err = f.svc.Login(ctx, "admin@agency.local", "Admin1234")
	require.NoError(t, err)
	// A tab that adopted the session has no stored profile.
	f.svc.ClearUser(ctx)

	user, err := f.svc.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, "admin@agency.local", user.Email)
	_, ok, err := f.tab.Get(ctx, auth.KeyCurrentUser)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestService_CanView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.api.AddStaff("books@agency.local", "Books", "Books1234", users.RoleAccountant)
	require.NoError(t, err)

	require.False(t, f.svc.CanView(ctx, users.ViewDashboard), "nobody logged in")

	_, err = f.svc.Login(ctx, "books@agency.local", "Books1234")
	require.NoError(t, err)
	require.True(t, f.svc.CanView(ctx, "expenses"))
	require.True(t, f.svc.CanView(ctx, "reports"))
	require.False(t, f.svc.CanView(ctx, "customers"))
	require.False(t, f.svc.CanView(ctx, "staff"))
}

func TestUser_NilSafe(t *testing.T) {
	var u *auth.User
	require.False(t, u.CanView(users.ViewDashboard))
	require.False(t, u.CanEdit("customers"))
}
