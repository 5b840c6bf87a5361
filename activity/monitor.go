// Package activity keeps a tab's authenticated session alive while the
// user is active, logs out on inactivity or expiry, and keeps tabs that
// share session storage consistent with each other.
package activity

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-agency-admin/clock"
	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
	"github.com/jrsteele09/go-agency-admin/internal/utils"
	"github.com/jrsteele09/go-agency-admin/refresher"
	"github.com/jrsteele09/go-agency-admin/sessions"
	"github.com/jrsteele09/go-agency-admin/storage"
	"github.com/rs/zerolog/log"
)

// EntryPath is where a tab is sent when its session ends.
const EntryPath = "/"

// Navigator moves the tab between pages.
type Navigator interface {
	Navigate(path string)
	// Reload restarts the tab from persisted state.
	Reload()
}

// RefreshCoordinator is the tab's single-flight token refresh.
type RefreshCoordinator interface {
	Refresh(ctx context.Context) (time.Time, error)
	InFlight() bool
}

// TerminateFunc is told when the session ends in this tab. reason is nil
// for an explicit logout.
type TerminateFunc func(reason error)

// Monitor is the session state machine of one tab.
type Monitor struct {
	clock       clock.Clock
	store       *sessions.Store
	coordinator RefreshCoordinator
	navigator   Navigator
	opts        Options

	mu               sync.Mutex
	state            State
	hidden           bool
	expiry           time.Time
	lastActivity     time.Time
	lastRecorded     time.Time // last activity accepted by the throttle
	lastRefreshCheck time.Time
	inactivity       schedule
	expiryTimer      schedule
	checkTimer       schedule
	stopWatch        context.CancelFunc
	onTerminate      []TerminateFunc
}

var _ refresher.Listener = (*Monitor)(nil)

func NewMonitor(clk clock.Clock, store *sessions.Store, coordinator RefreshCoordinator, navigator Navigator, opts Options) *Monitor {
	return &Monitor{
		clock:       clk,
		store:       store,
		coordinator: coordinator,
		navigator:   navigator,
		opts:        opts,
	}
}

// OnTerminate registers f to run whenever the session ends in this tab.
func (m *Monitor) OnTerminate(f TerminateFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTerminate = append(m.onTerminate, f)
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LoggedIn reports whether the tab holds a live session.
func (m *Monitor) LoggedIn() bool {
	return m.State().loggedIn()
}

// Start subscribes to changes made by other tabs and adopts a persisted
// session, if any.
func (m *Monitor) Start(ctx context.Context) error {
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	events, err := m.store.Backend().Watch(watchCtx)
	if err != nil {
		cancel()
		return apperrors.Wrapf(err, "[Monitor Start] watch session storage")
	}

	m.mu.Lock()
	if m.stopWatch != nil {
		m.stopWatch()
	}
	m.stopWatch = cancel
	m.mu.Unlock()

	go func() {
		for ev := range events {
			m.HandleStorageEvent(watchCtx, ev)
		}
	}()

	return m.Restore(ctx)
}

// Stop cancels timers and the storage subscription. The persisted session
// is left untouched.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimersLocked()
	if m.stopWatch != nil {
		m.stopWatch()
		m.stopWatch = nil
	}
}

// Restore adopts the persisted session record. A record whose expiry or
// inactivity limit has already passed is terminated straight away.
func (m *Monitor) Restore(ctx context.Context) error {
	rec, err := m.store.Load(ctx)
	if err != nil {
		return apperrors.Wrapf(err, "[Monitor Restore]")
	}
	if !rec.IsLoggedIn {
		return nil
	}

	now := m.clock.Now()
	m.mu.Lock()
	if m.state.loggedIn() {
		m.mu.Unlock()
		return nil
	}
	m.state = Active
	m.expiry = rec.SessionExpiry
	m.lastActivity = rec.LastActivity
	m.lastRecorded = time.Time{}
	m.lastRefreshCheck = time.Time{}
	m.mu.Unlock()

	if reason := m.violation(rec, now); reason != nil {
		m.Terminate(reason)
		return nil
	}

	log.Info().Time("expiry", rec.SessionExpiry).Msg("Restored persisted session")
	m.mu.Lock()
	m.armTimersLocked()
	m.mu.Unlock()
	return nil
}

// Login records a new session whose access token lives for expiresIn.
func (m *Monitor) Login(ctx context.Context, expiresIn time.Duration) error {
	now := m.clock.Now()
	expiry := now.Add(expiresIn)
	if err := m.store.Create(ctx, expiry, now); err != nil {
		return apperrors.Wrapf(err, "[Monitor Login]")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Active
	m.hidden = false
	m.expiry = expiry
	m.lastActivity = now
	m.lastRecorded = now
	m.lastRefreshCheck = time.Time{}
	m.armTimersLocked()

	log.Info().Time("expiry", expiry).Msg("Session started")
	return nil
}

// Logout ends the session explicitly, clears the record and returns to
// the entry page.
func (m *Monitor) Logout(ctx context.Context) error {
	listeners, ok := m.end(Unauthenticated)
	if !ok {
		return nil
	}
	log.Info().Msg("Logged out")

	err := m.store.Clear(ctx)
	notify(listeners, nil)
	m.navigator.Navigate(EntryPath)
	if err != nil {
		return apperrors.Wrapf(err, "[Monitor Logout]")
	}
	return nil
}

// Terminate forces the session to end: the record is cleared, once, and
// the tab is sent to the entry page. Calls after the first are no-ops.
func (m *Monitor) Terminate(reason error) {
	listeners, ok := m.end(Expired)
	if !ok {
		return
	}
	log.Warn().Err(reason).Msg("Session terminated")

	if err := m.store.Clear(context.Background()); err != nil {
		log.Err(err).Msg("Failed to clear session record")
	}
	notify(listeners, reason)
	m.navigator.Navigate(EntryPath)
}

// end moves a logged-in tab to state and stops its timers. It returns
// false when the tab was not logged in.
func (m *Monitor) end(state State) ([]TerminateFunc, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.loggedIn() {
		return nil, false
	}
	m.state = state
	m.stopTimersLocked()
	return append([]TerminateFunc(nil), m.onTerminate...), true
}

func notify(listeners []TerminateFunc, reason error) {
	for _, f := range listeners {
		f(reason)
	}
}

// RecordActivity registers a user interaction. Calls closer together than
// the activity throttle are dropped. An accepted activity is persisted,
// restarts the inactivity timer and triggers a refresh check.
func (m *Monitor) RecordActivity(ctx context.Context) error {
	now := m.clock.Now()

	m.mu.Lock()
	if !m.state.loggedIn() {
		m.mu.Unlock()
		return nil
	}
	if !m.lastRecorded.IsZero() && now.Sub(m.lastRecorded) < m.opts.ActivityThrottle {
		m.mu.Unlock()
		return nil
	}
	m.lastRecorded = now
	if now.After(m.lastActivity) {
		m.lastActivity = now
	}
	m.armInactivityLocked()
	m.mu.Unlock()

	if err := m.store.SetLastActivity(ctx, now); err != nil {
		return apperrors.Wrapf(err, "[Monitor RecordActivity]")
	}
	return m.CheckAndRefresh(ctx)
}

// CheckAndRefresh refreshes the access token when it expires within the
// refresh threshold. It does nothing while a refresh is in flight or when
// the last check was less than the refresh check interval ago.
func (m *Monitor) CheckAndRefresh(ctx context.Context) error {
	now := m.clock.Now()

	m.mu.Lock()
	if m.state != Active {
		m.mu.Unlock()
		return nil
	}
	if !m.lastRefreshCheck.IsZero() && now.Sub(m.lastRefreshCheck) < m.opts.RefreshCheckInterval {
		m.mu.Unlock()
		return nil
	}
	if m.coordinator.InFlight() {
		m.mu.Unlock()
		return nil
	}
	m.lastRefreshCheck = now
	if m.expiry.Sub(now) >= m.opts.RefreshThreshold {
		m.mu.Unlock()
		return nil
	}
	m.state = RefreshPending
	m.mu.Unlock()

	log.Debug().Dur("timeUntilExpiry", m.expiry.Sub(now)).Msg("Session close to expiry, refreshing")
	// The outcome reaches the monitor through RefreshSucceeded/RefreshFailed.
	if _, err := m.coordinator.Refresh(ctx); err != nil {
		return apperrors.Wrapf(err, "[Monitor CheckAndRefresh]")
	}
	return nil
}

// RefreshSucceeded adopts the new expiry after any refresh in this tab,
// whether started by the monitor or by the request transport.
func (m *Monitor) RefreshSucceeded(expiry time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.loggedIn() {
		return
	}
	m.state = Active
	m.expiry = expiry
	if !m.hidden {
		m.armExpiryLocked()
	}
}

// RefreshFailed ends the session. A failed refresh is never retried.
func (m *Monitor) RefreshFailed(err error) {
	m.Terminate(err)
}

// HandleStorageEvent reacts to a session record change made by another tab.
func (m *Monitor) HandleStorageEvent(ctx context.Context, ev storage.ChangeEvent) {
	switch ev.Key {
	case sessions.KeyIsLoggedIn:
		if ev.Removed() {
			m.loggedOutElsewhere()
			return
		}
		if utils.Value(ev.NewValue) == sessions.EncodeBool(true) && !m.State().loggedIn() {
			log.Info().Msg("Session started in another tab, reloading")
			m.navigator.Reload()
		}

	case sessions.KeyLastActivity:
		if ev.Removed() {
			return
		}
		at, err := sessions.DecodeTime(utils.Value(ev.NewValue))
		if err != nil {
			log.Warn().Str("value", utils.Value(ev.NewValue)).Msg("Ignoring unparsable lastActivity from another tab")
			return
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.state.loggedIn() || !at.After(m.lastActivity) {
			return
		}
		m.lastActivity = at
		if !m.hidden {
			m.armInactivityLocked()
		}

	case sessions.KeySessionExpiry:
		// The refreshing tab already advanced it. The expiry timer re-reads
		// the record before acting.
	}
}

// loggedOutElsewhere mirrors a logout made by another tab without writing
// to the shared record. The tab is sent to the entry page whatever its own
// state.
func (m *Monitor) loggedOutElsewhere() {
	if listeners, ok := m.end(Unauthenticated); ok {
		log.Info().Msg("Logged out in another tab")
		notify(listeners, apperrors.ErrLoggedOutElsewhere)
	}
	m.navigator.Navigate(EntryPath)
}

// HandleVisibilityChange pauses timers while the tab is hidden. When it
// becomes visible again the persisted record is re-validated: a session
// that expired or went idle while hidden is terminated, otherwise timers
// resume.
func (m *Monitor) HandleVisibilityChange(ctx context.Context, visible bool) error {
	m.mu.Lock()
	if !visible {
		m.hidden = true
		m.stopTimersLocked()
		m.mu.Unlock()
		return nil
	}
	m.hidden = false
	loggedIn := m.state.loggedIn()
	m.mu.Unlock()

	if !loggedIn {
		return nil
	}

	rec, err := m.store.Load(ctx)
	if err != nil {
		return apperrors.Wrapf(err, "[Monitor HandleVisibilityChange]")
	}
	if !rec.IsLoggedIn {
		m.loggedOutElsewhere()
		return nil
	}

	m.mu.Lock()
	m.adoptLocked(rec)
	rec.SessionExpiry, rec.LastActivity = m.expiry, m.lastActivity
	m.mu.Unlock()

	if reason := m.violation(rec, m.clock.Now()); reason != nil {
		m.Terminate(reason)
		return nil
	}

	m.mu.Lock()
	if m.state.loggedIn() && !m.hidden {
		m.armTimersLocked()
	}
	m.mu.Unlock()
	return nil
}

// adoptLocked takes the later of the local and persisted timestamps.
func (m *Monitor) adoptLocked(rec sessions.Record) {
	if rec.SessionExpiry.After(m.expiry) {
		m.expiry = rec.SessionExpiry
	}
	if rec.LastActivity.After(m.lastActivity) {
		m.lastActivity = rec.LastActivity
	}
}

// violation returns why rec is no longer usable at now, or nil.
func (m *Monitor) violation(rec sessions.Record, now time.Time) error {
	if rec.Expired(now) {
		return apperrors.ErrSessionExpired
	}
	if rec.IdleFor(now) >= m.opts.InactivityTimeout {
		return apperrors.ErrInactivityTimeout
	}
	return nil
}
