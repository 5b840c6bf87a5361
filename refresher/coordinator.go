package refresher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-agency-admin/clock"
	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
	"github.com/jrsteele09/go-agency-admin/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const flightKey = "refresh"

// Listener is told the outcome of every refresh flight, once per flight.
type Listener interface {
	RefreshSucceeded(expiry time.Time)
	RefreshFailed(err error)
}

// Coordinator runs at most one refresh at a time for a tab. Callers that
// arrive while a refresh is in flight wait for it and receive its outcome;
// they never start their own.
type Coordinator struct {
	refresher Refresher
	store     *sessions.Store
	clock     clock.Clock

	group    singleflight.Group
	inFlight atomic.Bool

	// timeout bounds each refresh call; zero leaves it unbounded.
	timeout time.Duration

	mu        sync.RWMutex
	listeners []Listener
}

type CoordinatorOption func(*Coordinator)

// WithTimeout fails a refresh that has not completed within d, so a hung
// endpoint ends the session instead of leaving it pending.
func WithTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

func NewCoordinator(refresher Refresher, store *sessions.Store, clk clock.Clock, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		refresher: refresher,
		store:     store,
		clock:     clk,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddListener registers l for refresh outcomes. Listeners run inside the
// flight and must not call Refresh.
func (c *Coordinator) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// InFlight reports whether a refresh call is currently running.
func (c *Coordinator) InFlight() bool {
	return c.inFlight.Load()
}

// Refresh joins the in-flight refresh or starts one, and returns the new
// session expiry. The refresh itself is not cancelled by ctx; ctx only
// bounds how long this caller waits.
func (c *Coordinator) Refresh(ctx context.Context) (time.Time, error) {
	flight := c.group.DoChan(flightKey, func() (interface{}, error) {
		return c.run(context.WithoutCancel(ctx))
	})

	select {
	case result := <-flight:
		if result.Err != nil {
			return time.Time{}, result.Err
		}
		return result.Val.(time.Time), nil
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	}
}

func (c *Coordinator) run(ctx context.Context) (time.Time, error) {
	c.inFlight.Store(true)
	defer c.inFlight.Store(false)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	log.Debug().Msg("Refreshing session")
	ttl, err := c.callRefresher(ctx)
	if err != nil {
		return time.Time{}, c.fail(err)
	}

	expiry := c.clock.Now().Add(ttl)
	if err := c.store.SetExpiry(ctx, expiry); err != nil {
		return time.Time{}, c.fail(err)
	}

	log.Info().Time("expiry", expiry).Msg("Session refreshed")
	for _, l := range c.snapshotListeners() {
		l.RefreshSucceeded(expiry)
	}
	return expiry, nil
}

// callRefresher converts a panicking refresher into an error so that no
// waiter is left without an outcome.
func (c *Coordinator) callRefresher(ctx context.Context) (ttl time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresher panicked: %v", r)
		}
	}()
	return c.refresher.Refresh(ctx)
}

func (c *Coordinator) fail(cause error) error {
	err := fmt.Errorf("[Coordinator Refresh] %w: %w", apperrors.ErrRefreshFailed, cause)
	log.Warn().Err(cause).Msg("Session refresh failed")
	for _, l := range c.snapshotListeners() {
		l.RefreshFailed(err)
	}
	return err
}

func (c *Coordinator) snapshotListeners() []Listener {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Listener(nil), c.listeners...)
}
