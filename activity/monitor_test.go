package activity_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-agency-admin/activity"
	"github.com/jrsteele09/go-agency-admin/clock"
	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
	"github.com/jrsteele09/go-agency-admin/refresher"
	"github.com/jrsteele09/go-agency-admin/sessions"
	"github.com/jrsteele09/go-agency-admin/storage"
	"github.com/jrsteele09/go-agency-admin/storage/memstore"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

var testOptions = activity.Options{
	InactivityTimeout:    120 * time.Minute,
	RefreshThreshold:     30 * time.Minute,
	RefreshCheckInterval: time.Minute,
	ActivityThrottle:     time.Second,
}

type stubRefresher struct {
	mu    sync.Mutex
	calls int
	ttl   time.Duration
	err   error
}

func (r *stubRefresher) Refresh(ctx context.Context) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.ttl, r.err
}

func (r *stubRefresher) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type recordingNavigator struct {
	mu      sync.Mutex
	paths   []string
	reloads int
}

func (n *recordingNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) Reload() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reloads++
}

func (n *recordingNavigator) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

func (n *recordingNavigator) Reloads() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reloads
}

// countingStore counts removals so tests can check the record is cleared
// exactly once.
type countingStore struct {
	storage.Store
	mu      sync.Mutex
	removes int
}

func (s *countingStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	s.removes++
	s.mu.Unlock()
	return s.Store.Remove(ctx, key)
}

func (s *countingStore) Removes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removes
}

type tab struct {
	backend     storage.Store
	store       *sessions.Store
	refresher   *stubRefresher
	coordinator *refresher.Coordinator
	nav         *recordingNavigator
	monitor     *activity.Monitor

	mu      sync.Mutex
	reasons []error
}

func newTab(t *testing.T, clk clock.Clock, backend storage.Store) *tab {
	t.Helper()
	tb := &tab{
		backend:   backend,
		store:     sessions.NewStore(backend),
		refresher: &stubRefresher{ttl: time.Hour},
		nav:       &recordingNavigator{},
	}
	tb.coordinator = refresher.NewCoordinator(tb.refresher, tb.store, clk)
	tb.monitor = activity.NewMonitor(clk, tb.store, tb.coordinator, tb.nav, testOptions)
	tb.coordinator.AddListener(tb.monitor)
	tb.monitor.OnTerminate(func(reason error) {
		tb.mu.Lock()
		defer tb.mu.Unlock()
		tb.reasons = append(tb.reasons, reason)
	})
	t.Cleanup(tb.monitor.Stop)
	return tb
}

func (tb *tab) Reasons() []error {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return append([]error(nil), tb.reasons...)
}

func requireCleared(t *testing.T, backend storage.Store) {
	t.Helper()
	for _, key := range sessions.Keys {
		_, ok, err := backend.Get(context.Background(), key)
		require.NoError(t, err)
		require.False(t, ok, "key %s should be cleared", key)
	}
}

func strPtr(s string) *string { return &s }

func TestMonitor_ActivityKeepsSessionAlive(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(t0)
	tb := newTab(t, clk, memstore.New())

	require.NoError(t, tb.monitor.Login(ctx, time.Hour))
	for range 30 {
		clk.Advance(10 * time.Minute)
		require.NoError(t, tb.monitor.RecordActivity(ctx))
		require.Equal(t, activity.Active, tb.monitor.State())
	}

	rec, err := tb.store.Load(ctx)
	require.NoError(t, err)
	require.True(t, rec.IsLoggedIn)
	require.True(t, rec.LastActivity.Equal(t0.Add(300*time.Minute)))
	require.Positive(t, tb.refresher.Calls())
	require.Empty(t, tb.nav.Paths())
}

func TestMonitor_InactivityExpiresSession(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(t0)
	backend := &countingStore{Store: memstore.New()}
	tb := newTab(t, clk, backend)

	require.NoError(t, tb.monitor.Login(ctx, 3*time.Hour))

	clk.Advance(119 * time.Minute)
	require.Equal(t, activity.Active, tb.monitor.State())

	clk.Advance(2 * time.Minute)
	require.Equal(t, activity.Expired, tb.monitor.State())
	requireCleared(t, backend)
	require.Equal(t, len(sessions.Keys), backend.Removes())
	require.Equal(t, []string{activity.EntryPath}, tb.nav.Paths())

	reasons := tb.Reasons()
	require.Len(t, reasons, 1)
	require.ErrorIs(t, reasons[0], apperrors.ErrInactivityTimeout)
	require.Zero(t, clk.PendingCount(), "no timers run once logged out")
}

func TestMonitor_ExpiryWithoutActivity(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(t0)
	tb := newTab(t, clk, memstore.New())

	require.NoError(t, tb.monitor.Login(ctx, 40*time.Minute))
	clk.Advance(41 * time.Minute)

	require.Equal(t, activity.Expired, tb.monitor.State())
	requireCleared(t, tb.backend)
	require.ErrorIs(t, tb.Reasons()[0], apperrors.ErrSessionExpired)
	require.Zero(t, tb.refresher.Calls())
}

func TestMonitor_RefreshWithinThreshold(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(t0)
	tb := newTab(t, clk, memstore.New())

	require.NoError(t, tb.monitor.Login(ctx, 40*time.Minute))
	clk.Advance(15 * time.Minute)
	require.Zero(t, tb.refresher.Calls(), "no refresh without activity")

	require.NoError(t, tb.monitor.RecordActivity(ctx))
	require.Equal(t, 1, tb.refresher.Calls())
	require.Equal(t, activity.Active, tb.monitor.State())

	rec, err := tb.store.Load(ctx)
	require.NoError(t, err)
	require.True(t, rec.SessionExpiry.Equal(t0.Add(15*time.Minute+time.Hour)))
	require.True(t, rec.LastActivity.Equal(t0.Add(15*time.Minute)))

	// The original expiry passes without logging the tab out.
	clk.Advance(30 * time.Minute)
	require.Equal(t, activity.Active, tb.monitor.State())
}

func TestMonitor_RefreshCheckThrottle(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(t0)
	tb := newTab(t, clk, memstore.New())
	tb.refresher.ttl = 20 * time.Minute // still inside the threshold after refreshing

	require.NoError(t, tb.monitor.Login(ctx, 20*time.Minute))
	require.NoError(t, tb.monitor.RecordActivity(ctx)) // throttled by the login activity
	require.Zero(t, tb.refresher.Calls())

	clk.Advance(2 * time.Second)
	require.NoError(t, tb.monitor.RecordActivity(ctx))
	require.Equal(t, 1, tb.refresher.Calls())

	clk.Advance(2 * time.Second)
	require.NoError(t, tb.monitor.RecordActivity(ctx))
	require.Equal(t, 1, tb.refresher.Calls(), "refresh checks are throttled to one per interval")

	clk.Advance(time.Minute)
	require.NoError(t, tb.monitor.RecordActivity(ctx))
	require.Equal(t, 2, tb.refresher.Calls())
}

func TestMonitor_ConcurrentActivityRefreshesOnce(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(t0)
	tb := newTab(t, clk, memstore.New())

	require.NoError(t, tb.monitor.Login(ctx, 40*time.Minute))
	clk.Advance(15 * time.Minute)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = tb.monitor.RecordActivity(ctx)
		}()
		go func() {
			defer wg.Done()
			_ = tb.monitor.CheckAndRefresh(ctx)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, tb.refresher.Calls())
	require.Equal(t, activity.Active, tb.monitor.State())
}

func TestMonitor_RefreshFailureIsTerminal(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(t0)
	backend := &countingStore{Store: memstore.New()}
	tb := newTab(t, clk, backend)
	tb.refresher.err = errors.New("refresh token revoked")

	require.NoError(t, tb.monitor.Login(ctx, 40*time.Minute))
	clk.Advance(15 * time.Minute)

	err := tb.monitor.RecordActivity(ctx)
	require.ErrorIs(t, err, apperrors.ErrRefreshFailed)
	require.Equal(t, activity.Expired, tb.monitor.State())
	requireCleared(t, backend)
	require.Equal(t, len(sessions.Keys), backend.Removes())
	require.Equal(t, []string{activity.EntryPath}, tb.nav.Paths())
	require.Len(t, tb.Reasons(), 1)

	clk.Advance(time.Hour)
	require.NoError(t, tb.monitor.RecordActivity(ctx))
	require.NoError(t, tb.monitor.CheckAndRefresh(ctx))
	require.Equal(t, 1, tb.refresher.Calls())
	require.Equal(t, len(sessions.Keys), backend.Removes())

	// Terminating again is a no-op.
	tb.monitor.Terminate(errors.New("again"))
	require.Equal(t, len(sessions.Keys), backend.Removes())
}

func TestMonitor_RefreshFromTransportAdvancesExpiry(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(t0)
	tb := newTab(t, clk, memstore.New())

	require.NoError(t, tb.monitor.Login(ctx, 40*time.Minute))
	clk.Advance(5 * time.Minute)
	_, err := tb.coordinator.Refresh(ctx)
	require.NoError(t, err)

	clk.Advance(50 * time.Minute)
	require.Equal(t, activity.Active, tb.monitor.State())
}

func TestMonitor_Logout(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(t0)
	tb := newTab(t, clk, memstore.New())

	require.NoError(t, tb.monitor.Login(ctx, time.Hour))
	require.NoError(t, tb.monitor.Logout(ctx))

	require.Equal(t, activity.Unauthenticated, tb.monitor.State())
	requireCleared(t, tb.backend)
	require.Equal(t, []string{activity.EntryPath}, tb.nav.Paths())
	require.Equal(t, []error{nil}, tb.Reasons())
	require.Zero(t, clk.PendingCount())

	require.NoError(t, tb.monitor.Logout(ctx))
	require.Len(t, tb.nav.Paths(), 1)
}

func TestMonitor_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("no record", func(t *testing.T) {
		tb := newTab(t, clock.Fake(t0), memstore.New())
		require.NoError(t, tb.monitor.Restore(ctx))
		require.Equal(t, activity.Unauthenticated, tb.monitor.State())
	})

	t.Run("valid record", func(t *testing.T) {
		tb := newTab(t, clock.Fake(t0), memstore.New())
		require.NoError(t, tb.store.Create(ctx, t0.Add(time.Hour), t0.Add(-time.Minute)))
		require.NoError(t, tb.monitor.Restore(ctx))
		require.Equal(t, activity.Active, tb.monitor.State())
		require.Empty(t, tb.nav.Paths())
	})

	t.Run("expired record", func(t *testing.T) {
		tb := newTab(t, clock.Fake(t0), memstore.New())
		require.NoError(t, tb.store.Create(ctx, t0.Add(-time.Second), t0.Add(-time.Minute)))
		require.NoError(t, tb.monitor.Restore(ctx))
		require.Equal(t, activity.Expired, tb.monitor.State())
		requireCleared(t, tb.backend)
		require.ErrorIs(t, tb.Reasons()[0], apperrors.ErrSessionExpired)
	})

	t.Run("idle record", func(t *testing.T) {
		tb := newTab(t, clock.Fake(t0), memstore.New())
		require.NoError(t, tb.store.Create(ctx, t0.Add(time.Hour), t0.Add(-3*time.Hour)))
		require.NoError(t, tb.monitor.Restore(ctx))
		require.Equal(t, activity.Expired, tb.monitor.State())
		require.ErrorIs(t, tb.Reasons()[0], apperrors.ErrInactivityTimeout)
	})
}

func TestMonitor_StorageEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("logout elsewhere redirects without writing", func(t *testing.T) {
		backend := &countingStore{Store: memstore.New()}
		tb := newTab(t, clock.Fake(t0), backend)
		require.NoError(t, tb.monitor.Login(ctx, time.Hour))

		tb.monitor.HandleStorageEvent(ctx, storage.ChangeEvent{Key: sessions.KeyIsLoggedIn, OldValue: strPtr("true")})

		require.Equal(t, activity.Unauthenticated, tb.monitor.State())
		require.Equal(t, []string{activity.EntryPath}, tb.nav.Paths())
		require.Zero(t, backend.Removes())
		require.ErrorIs(t, tb.Reasons()[0], apperrors.ErrLoggedOutElsewhere)
	})

	t.Run("logout elsewhere redirects a tab that is not logged in", func(t *testing.T) {
		tb := newTab(t, clock.Fake(t0), memstore.New())
		tb.monitor.HandleStorageEvent(ctx, storage.ChangeEvent{Key: sessions.KeyIsLoggedIn, OldValue: strPtr("true")})

		require.Equal(t, activity.Unauthenticated, tb.monitor.State())
		require.Equal(t, []string{activity.EntryPath}, tb.nav.Paths())
		require.Empty(t, tb.Reasons())
	})

	t.Run("login elsewhere reloads an unauthenticated tab", func(t *testing.T) {
		tb := newTab(t, clock.Fake(t0), memstore.New())
		tb.monitor.HandleStorageEvent(ctx, storage.ChangeEvent{Key: sessions.KeyIsLoggedIn, NewValue: strPtr("true")})
		require.Equal(t, 1, tb.nav.Reloads())

		require.NoError(t, tb.monitor.Login(ctx, time.Hour))
		tb.monitor.HandleStorageEvent(ctx, storage.ChangeEvent{Key: sessions.KeyIsLoggedIn, NewValue: strPtr("true")})
		require.Equal(t, 1, tb.nav.Reloads(), "a logged-in tab does not reload")
	})

	t.Run("activity elsewhere extends the inactivity window", func(t *testing.T) {
		clk := clock.Fake(t0)
		tb := newTab(t, clk, memstore.New())
		require.NoError(t, tb.monitor.Login(ctx, 5*time.Hour))

		clk.Advance(100 * time.Minute)
		at := sessions.EncodeTime(t0.Add(100 * time.Minute))
		tb.monitor.HandleStorageEvent(ctx, storage.ChangeEvent{Key: sessions.KeyLastActivity, NewValue: &at})

		clk.Advance(30 * time.Minute)
		require.Equal(t, activity.Active, tb.monitor.State())

		clk.Advance(91 * time.Minute)
		require.Equal(t, activity.Expired, tb.monitor.State())
		require.ErrorIs(t, tb.Reasons()[0], apperrors.ErrInactivityTimeout)
	})

	t.Run("expiry change elsewhere is left to the expiry timer", func(t *testing.T) {
		clk := clock.Fake(t0)
		tb := newTab(t, clk, memstore.New())
		require.NoError(t, tb.monitor.Login(ctx, 40*time.Minute))

		later := t0.Add(2 * time.Hour)
		require.NoError(t, tb.store.SetExpiry(ctx, later))
		encoded := sessions.EncodeTime(later)
		tb.monitor.HandleStorageEvent(ctx, storage.ChangeEvent{Key: sessions.KeySessionExpiry, NewValue: &encoded})
		require.Equal(t, activity.Active, tb.monitor.State())

		clk.Advance(45 * time.Minute)
		require.Equal(t, activity.Active, tb.monitor.State(), "expiry timer re-reads the record")
	})
}

func TestMonitor_CrossTab(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(t0)
	broker := memstore.NewBroker()
	a := newTab(t, clk, broker.Open())
	b := newTab(t, clk, broker.Open())
	require.NoError(t, a.monitor.Start(ctx))
	require.NoError(t, b.monitor.Start(ctx))

	require.NoError(t, a.monitor.Login(ctx, time.Hour))
	require.Eventually(t, func() bool { return b.nav.Reloads() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, b.monitor.Restore(ctx))
	require.Equal(t, activity.Active, b.monitor.State())

	require.NoError(t, a.monitor.Logout(ctx))
	require.Eventually(t, func() bool { return len(b.nav.Paths()) == 1 }, time.Second, time.Millisecond)
	require.Equal(t, activity.Unauthenticated, b.monitor.State())
	require.Equal(t, []string{activity.EntryPath}, b.nav.Paths())
	require.Equal(t, []string{activity.EntryPath}, a.nav.Paths())
}

func TestMonitor_Visibility(t *testing.T) {
	ctx := context.Background()

	t.Run("idle while hidden", func(t *testing.T) {
		clk := clock.Fake(t0)
		tb := newTab(t, clk, memstore.New())
		require.NoError(t, tb.monitor.Login(ctx, 3*time.Hour))

		require.NoError(t, tb.monitor.HandleVisibilityChange(ctx, false))
		clk.Advance(121 * time.Minute)
		require.Equal(t, activity.Active, tb.monitor.State(), "timers are paused while hidden")

		require.NoError(t, tb.monitor.HandleVisibilityChange(ctx, true))
		require.Equal(t, activity.Expired, tb.monitor.State())
		requireCleared(t, tb.backend)
		require.ErrorIs(t, tb.Reasons()[0], apperrors.ErrInactivityTimeout)
	})

	t.Run("expired while hidden", func(t *testing.T) {
		clk := clock.Fake(t0)
		tb := newTab(t, clk, memstore.New())
		require.NoError(t, tb.monitor.Login(ctx, 30*time.Minute))

		require.NoError(t, tb.monitor.HandleVisibilityChange(ctx, false))
		clk.Advance(31 * time.Minute)
		require.NoError(t, tb.monitor.HandleVisibilityChange(ctx, true))
		require.Equal(t, activity.Expired, tb.monitor.State())
		require.ErrorIs(t, tb.Reasons()[0], apperrors.ErrSessionExpired)
	})

	t.Run("timers resume", func(t *testing.T) {
		clk := clock.Fake(t0)
		tb := newTab(t, clk, memstore.New())
		require.NoError(t, tb.monitor.Login(ctx, 3*time.Hour))

		require.NoError(t, tb.monitor.HandleVisibilityChange(ctx, false))
		clk.Advance(10 * time.Minute)
		require.NoError(t, tb.monitor.HandleVisibilityChange(ctx, true))
		require.Equal(t, activity.Active, tb.monitor.State())

		clk.Advance(111 * time.Minute)
		require.Equal(t, activity.Expired, tb.monitor.State())
	})
}
