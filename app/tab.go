// Package app assembles one browser-tab equivalent: its own storage, a
// handle on the storage shared with other tabs, and the session, data and
// auth services wired together.
package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-agency-admin/activity"
	"github.com/jrsteele09/go-agency-admin/apiclient"
	"github.com/jrsteele09/go-agency-admin/auth"
	"github.com/jrsteele09/go-agency-admin/clock"
	"github.com/jrsteele09/go-agency-admin/internal/config"
	"github.com/jrsteele09/go-agency-admin/querycache"
	"github.com/jrsteele09/go-agency-admin/refresher"
	"github.com/jrsteele09/go-agency-admin/resources"
	"github.com/jrsteele09/go-agency-admin/sessions"
	"github.com/jrsteele09/go-agency-admin/storage"
	"github.com/jrsteele09/go-agency-admin/storage/memstore"
	"github.com/rs/zerolog/log"
)

// Options configure a Tab.
type Options struct {
	BaseURL     string
	Shared      storage.Store  // this tab's handle on the cross-tab store
	Jar         http.CookieJar // shared by tabs of one browser; nil gives the tab its own
	Transport   http.RoundTripper
	RefreshMode config.RefreshMode
	ClientID    string
	Session     activity.Options
	CachePolicy querycache.PolicyFunc
	Clock       clock.Clock

	// AuthTimeout bounds login, logout and refresh calls. Zero means none.
	AuthTimeout time.Duration

	// OnNavigate, if set, is called after every navigation the session
	// forces (logout, expiry, another tab logging out).
	OnNavigate func(path string)
}

// OptionsFromConfig fills Options from cfg for the given shared store.
func OptionsFromConfig(cfg config.Config, shared storage.Store) Options {
	return Options{
		BaseURL:     cfg.GetAPIBaseURL(),
		Shared:      shared,
		RefreshMode: cfg.GetRefreshMode(),
		ClientID:    cfg.GetOAuthClientID(),
		Session:     activity.OptionsFromConfig(cfg),
		CachePolicy: querycache.PolicyFromConfig(cfg),
		Clock:       clock.Real(),
		AuthTimeout: cfg.GetAuthTimeout(),
	}
}

// Tab owns the state of one open tab.
type Tab struct {
	ID string

	Local   storage.Store // tab-isolated scope
	Session *sessions.Store
	Monitor *activity.Monitor
	Cache   *querycache.Cache
	API     *apiclient.Client
	Data    *resources.Catalog
	Auth    *auth.Service

	coordinator *refresher.Coordinator
	onNavigate  func(string)

	mu   sync.Mutex
	path string
}

// Open builds a tab and adopts any session already recorded in the shared
// store.
func Open(ctx context.Context, opts Options) (*Tab, error) {
	if opts.Shared == nil {
		return nil, fmt.Errorf("[app Open] no shared store")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.CachePolicy == nil {
		opts.CachePolicy = querycache.PolicyFromConfig(config.Cache{})
	}
	if opts.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("[app Open] cookie jar: %w", err)
		}
		opts.Jar = jar
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	t := &Tab{
		ID:         uuid.New().String(),
		Local:      memstore.New(),
		Session:    sessions.NewStore(opts.Shared),
		onNavigate: opts.OnNavigate,
		path:       activity.EntryPath,
	}

	// Refresh and login calls must not pass through the auth-retry transport.
	plainHTTP := &http.Client{Jar: opts.Jar, Transport: base, Timeout: opts.AuthTimeout}
	plain := apiclient.New(opts.BaseURL, plainHTTP)

	var (
		refresh refresher.Refresher
		seeder  auth.RefreshSeeder
	)
	switch opts.RefreshMode {
	case config.RefreshModeOAuth2:
		r := refresher.NewOAuth2Refresher(plainHTTP, opts.BaseURL, opts.ClientID)
		refresh, seeder = r, r
	default:
		refresh = refresher.NewHTTPRefresher(plainHTTP, opts.BaseURL)
	}

	t.coordinator = refresher.NewCoordinator(refresh, t.Session, opts.Clock, refresher.WithTimeout(opts.AuthTimeout))
	t.Monitor = activity.NewMonitor(opts.Clock, t.Session, t.coordinator, t, opts.Session)
	t.coordinator.AddListener(t.Monitor)

	t.API = apiclient.New(opts.BaseURL, &http.Client{
		Jar: opts.Jar,
		Transport: &apiclient.Transport{
			Base:       base,
			Refresher:  t.coordinator,
			Terminator: t.Monitor,
			Jar:        opts.Jar,
		},
	})
	t.Cache = querycache.New(opts.Clock, opts.CachePolicy)

	data, err := resources.NewCatalog(t.API, t.Cache, resources.DefaultRegistry())
	if err != nil {
		return nil, fmt.Errorf("[app Open] %w", err)
	}
	t.Data = data
	t.Auth = auth.NewService(plain, t.API, t.Local, t.Monitor, seeder)

	// Whatever ends the session, nothing cached for the old user survives.
	t.Monitor.OnTerminate(func(reason error) {
		t.Cache.Clear()
		t.Auth.ClearUser(context.Background())
	})

	if err := t.Monitor.Start(ctx); err != nil {
		return nil, fmt.Errorf("[app Open] %w", err)
	}
	log.Debug().Str("tab", t.ID).Str("state", t.Monitor.State().String()).Msg("Tab opened")
	return t, nil
}

// Navigate records the page the session sent this tab to.
func (t *Tab) Navigate(path string) {
	t.mu.Lock()
	t.path = path
	t.mu.Unlock()
	log.Debug().Str("tab", t.ID).Str("path", path).Msg("Navigate")
	if t.onNavigate != nil {
		t.onNavigate(path)
	}
}

// Reload starts the tab over from the shared session record, as a page
// reload would.
func (t *Tab) Reload() {
	t.Cache.Clear()
	if err := t.Monitor.Restore(context.Background()); err != nil {
		log.Err(err).Str("tab", t.ID).Msg("Failed to restore session on reload")
	}
}

// Path returns the page the tab is on.
func (t *Tab) Path() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.path
}

// Activity records a user interaction.
func (t *Tab) Activity(ctx context.Context) error {
	return t.Monitor.RecordActivity(ctx)
}

// SetVisible reports the tab being hidden or shown again.
func (t *Tab) SetVisible(ctx context.Context, visible bool) error {
	return t.Monitor.HandleVisibilityChange(ctx, visible)
}

// Close stops the tab's timers and its subscription to other tabs. The
// session record is left for the other tabs.
func (t *Tab) Close() {
	t.Monitor.Stop()
	t.Cache.Clear()
	log.Debug().Str("tab", t.ID).Msg("Tab closed")
}

var _ activity.Navigator = (*Tab)(nil)
