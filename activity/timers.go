package activity

import (
	"context"
	"time"

	"github.com/jrsteele09/go-agency-admin/clock"
	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
	"github.com/rs/zerolog/log"
)

// schedule is a re-armable timer. A callback that fires after its timer
// was re-armed or stopped sees a stale generation and does nothing.
type schedule struct {
	timer *clock.Timer
	gen   uint64
}

func (s *schedule) arm(clk clock.Clock, d time.Duration, f func(gen uint64)) {
	s.stop()
	gen := s.gen
	s.timer = clk.AfterFunc(d, func() { f(gen) })
}

func (s *schedule) stop() {
	s.timer.Stop()
	s.timer = nil
	s.gen++
}

func (s *schedule) current(gen uint64) bool {
	return s.gen == gen
}

func (m *Monitor) armTimersLocked() {
	m.armInactivityLocked()
	m.armExpiryLocked()
	m.armCheckLocked()
}

func (m *Monitor) stopTimersLocked() {
	m.inactivity.stop()
	m.expiryTimer.stop()
	m.checkTimer.stop()
}

func (m *Monitor) armInactivityLocked() {
	d := m.lastActivity.Add(m.opts.InactivityTimeout).Sub(m.clock.Now())
	m.inactivity.arm(m.clock, d, m.onInactivity)
}

func (m *Monitor) armExpiryLocked() {
	d := m.expiry.Sub(m.clock.Now())
	m.expiryTimer.arm(m.clock, d, m.onExpiry)
}

func (m *Monitor) armCheckLocked() {
	m.checkTimer.arm(m.clock, m.opts.RefreshCheckInterval, m.onCheck)
}

// reload merges the persisted record into local state. It returns false if
// the record says the session is over, in which case the tab has already
// been logged out.
func (m *Monitor) reload() bool {
	rec, err := m.store.Load(context.Background())
	if err != nil {
		log.Err(err).Msg("Failed to read session record, using local state")
		return true
	}
	if !rec.IsLoggedIn {
		m.loggedOutElsewhere()
		return false
	}
	m.mu.Lock()
	m.adoptLocked(rec)
	m.mu.Unlock()
	return true
}

func (m *Monitor) timerLive(s *schedule, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return s.current(gen) && m.state.loggedIn()
}

// onInactivity fires when no activity has been seen in any tab for the
// inactivity timeout, as far as this tab knows. Activity written by other
// tabs is re-read before deciding.
func (m *Monitor) onInactivity(gen uint64) {
	if !m.timerLive(&m.inactivity, gen) || !m.reload() {
		return
	}

	m.mu.Lock()
	idle := m.clock.Now().Sub(m.lastActivity)
	if idle < m.opts.InactivityTimeout {
		m.armInactivityLocked()
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.Terminate(apperrors.ErrInactivityTimeout)
}

// onExpiry fires at the known session expiry. Another tab may have
// refreshed in the meantime, so the record is re-read first.
func (m *Monitor) onExpiry(gen uint64) {
	if !m.timerLive(&m.expiryTimer, gen) || !m.reload() {
		return
	}

	m.mu.Lock()
	if m.clock.Now().Before(m.expiry) {
		m.armExpiryLocked()
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.Terminate(apperrors.ErrSessionExpired)
}

// onCheck runs every refresh check interval and checks for a refresh when
// there has been activity since the previous check.
func (m *Monitor) onCheck(gen uint64) {
	m.mu.Lock()
	if !m.checkTimer.current(gen) || !m.state.loggedIn() {
		m.mu.Unlock()
		return
	}
	m.armCheckLocked()
	activeSinceCheck := m.lastActivity.After(m.lastRefreshCheck)
	m.mu.Unlock()

	if !activeSinceCheck {
		return
	}
	if err := m.CheckAndRefresh(context.Background()); err != nil {
		log.Debug().Err(err).Msg("Periodic refresh check failed")
	}
}
