// Package auth logs staff members in and out and keeps the current user's
// profile in the tab's own storage for view gating. The API remains the
// authority on access; gating only hides what would be refused.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-agency-admin/apiclient"
	"github.com/jrsteele09/go-agency-admin/apimodel"
	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
	"github.com/jrsteele09/go-agency-admin/storage"
	"github.com/jrsteele09/go-agency-admin/token"
	"github.com/rs/zerolog/log"
)

const (
	RouteLogin  = "/auth/login"
	RouteLogout = "/auth/logout"
	RouteMe     = "/api/me"

	// KeyCurrentUser holds the JSON profile in the tab-isolated store.
	KeyCurrentUser = "currentUser"
)

// Session is the part of the activity monitor auth drives.
type Session interface {
	Login(ctx context.Context, expiresIn time.Duration) error
	Logout(ctx context.Context) error
	LoggedIn() bool
}

// RefreshSeeder receives the refresh token handed out at login. Only the
// OAuth2 refresh mode needs one.
type RefreshSeeder interface {
	Seed(refreshToken string)
	Forget()
}

type Service struct {
	plain   *apiclient.Client // no auth-retry: login and logout answer 401 themselves
	api     *apiclient.Client
	tab     storage.Store
	session Session
	seeder  RefreshSeeder
}

// NewService wires auth. plain must share the cookie jar of api but not its
// auth-retry transport. seeder may be nil.
func NewService(plain, api *apiclient.Client, tab storage.Store, session Session, seeder RefreshSeeder) *Service {
	return &Service{plain: plain, api: api, tab: tab, session: session, seeder: seeder}
}

// Login authenticates and starts the session.
func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	var resp apimodel.LoginResponse
	err := s.plain.Post(ctx, RouteLogin, apimodel.LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("[Service Login] %w", apperrors.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("[Service Login] %w", err)
	}
	if resp.ExpiresIn <= 0 {
		return nil, fmt.Errorf("[Service Login] non-positive expiresIn %d", resp.ExpiresIn)
	}

	user := userFromProfile(resp.User)
	if claims, err := token.ParseUnverified(resp.AccessToken); err == nil && claims.Role != "" {
		user.Role = claims.Role
	}
	if err := s.storeUser(ctx, user); err != nil {
		return nil, fmt.Errorf("[Service Login] %w", err)
	}
	if s.seeder != nil && resp.RefreshToken != "" {
		s.seeder.Seed(resp.RefreshToken)
	}
	if err := s.session.Login(ctx, time.Duration(resp.ExpiresIn)*time.Second); err != nil {
		return nil, fmt.Errorf("[Service Login] %w", err)
	}

	log.Info().Str("user", user.ID).Str("role", string(user.Role)).Msg("Logged in")
	return user, nil
}

// Logout tells the API (best effort) and ends the session in every tab.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.plain.Post(ctx, RouteLogout, nil, nil); err != nil {
		log.Warn().Err(err).Msg("Logout request failed; ending the session locally")
	}
	s.ClearUser(ctx)
	if err := s.session.Logout(ctx); err != nil {
		return fmt.Errorf("[Service Logout] %w", err)
	}
	return nil
}

// CurrentUser returns the logged-in user. A tab that adopted a session
// started elsewhere has no stored profile yet and fetches it.
func (s *Service) CurrentUser(ctx context.Context) (*User, error) {
	if !s.session.LoggedIn() {
		return nil, apperrors.Wrapf(apperrors.ErrNotLoggedIn, "[Service CurrentUser]")
	}
	raw, ok, err := s.tab.Get(ctx, KeyCurrentUser)
	if err != nil {
		return nil, fmt.Errorf("[Service CurrentUser] %w", err)
	}
	if ok {
		var user User
		if err := json.Unmarshal([]byte(raw), &user); err == nil {
			return &user, nil
		}
		log.Warn().Msg("Discarding unreadable stored profile")
	}

	var profile apimodel.Profile
	if err := s.api.Get(ctx, RouteMe, nil, &profile); err != nil {
		return nil, fmt.Errorf("[Service CurrentUser] %w", err)
	}
	user := userFromProfile(profile)
	if err := s.storeUser(ctx, user); err != nil {
		return nil, fmt.Errorf("[Service CurrentUser] %w", err)
	}
	return user, nil
}

// CanView reports whether the current user may see view. Errors count as
// no.
func (s *Service) CanView(ctx context.Context, view string) bool {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return false
	}
	return user.CanView(view)
}

// ClearUser forgets the stored profile and refresh token.
func (s *Service) ClearUser(ctx context.Context) {
	if err := s.tab.Remove(ctx, KeyCurrentUser); err != nil {
		log.Warn().Err(err).Msg("Failed to clear stored profile")
	}
	if s.seeder != nil {
		s.seeder.Forget()
	}
}

func (s *Service) storeUser(ctx context.Context, user *User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return s.tab.Set(ctx, KeyCurrentUser, string(data))
}
