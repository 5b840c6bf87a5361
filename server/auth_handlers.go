package server

import (
	"errors"
	"net/http"

	"github.com/jrsteele09/go-agency-admin/apimodel"
	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
	"github.com/jrsteele09/go-agency-admin/users"
	"github.com/rs/zerolog/log"
)

// LoginHandler checks email and password, then sets the access and
// refresh cookies. Both tokens are repeated in the body.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid_request", "", err.Error())
			return
		}

		user, err := s.repos.Users.GetByEmail(req.Email)
		if err != nil || user.Blocked || !user.CheckPassword(req.Password) {
			log.Info().Str("email", users.NormaliseEmail(req.Email)).Msg("Login rejected")
			writeUnauthorized(w, apimodel.ReasonInvalidCredentials, "invalid email or password")
			return
		}

		accessToken, expiresIn, err := s.issuer.CreateAccessToken(user, s.config.GetOAuthClientID())
		if err != nil {
			log.Err(err).Msg("Failed to create access token")
			writeAPIError(w, http.StatusInternalServerError, "server_error", "", "internal error")
			return
		}
		refreshToken, err := s.refresh.Create(user.ID, s.config.GetOAuthClientID())
		if err != nil {
			log.Err(err).Msg("Failed to create refresh token")
			writeAPIError(w, http.StatusInternalServerError, "server_error", "", "internal error")
			return
		}
		if err := s.repos.Users.SetLastLogin(user.ID, s.clock.Now()); err != nil {
			log.Warn().Err(err).Str("user", user.ID).Msg("Failed to record last login")
		}

		s.setAccessCookie(w, r, accessToken)
		s.setRefreshCookie(w, r, refreshToken)
		log.Info().Str("user", user.ID).Str("role", string(user.Role)).Msg("Login")
		writeJSON(w, http.StatusOK, apimodel.LoginResponse{
			ExpiresIn:    expiresIn,
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			User:         user.Profile(),
		})
	}
}

// RefreshHandler rotates the refresh cookie and issues a new access token.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(apimodel.RefreshTokenCookie)
		if err != nil || cookie.Value == "" {
			writeUnauthorized(w, apimodel.ReasonInvalidRefresh, "missing refresh token")
			return
		}

		accessToken, refreshToken, expiresIn, err := s.rotate(cookie.Value, "")
		if err != nil {
			s.clearAuthCookies(w)
			writeUnauthorized(w, apimodel.ReasonInvalidRefresh, err.Error())
			return
		}

		s.setAccessCookie(w, r, accessToken)
		s.setRefreshCookie(w, r, refreshToken)
		writeJSON(w, http.StatusOK, apimodel.RefreshResponse{ExpiresIn: expiresIn})
	}
}

// rotate exchanges refreshToken for a new token pair.
func (s *Server) rotate(refreshToken, clientID string) (string, string, int, error) {
	stored, next, err := s.refresh.Rotate(refreshToken, clientID)
	if err != nil {
		log.Info().Err(err).Msg("Refresh rejected")
		return "", "", 0, err
	}

	user, err := s.repos.Users.GetByID(stored.UserID)
	if err != nil || user.Blocked {
		_ = s.refresh.Delete(next)
		return "", "", 0, apperrors.Wrapf(apperrors.ErrInvalidRefreshToken, "[Server rotate] user %s", stored.UserID)
	}

	accessToken, expiresIn, err := s.issuer.CreateAccessToken(user, stored.ClientID)
	if err != nil {
		_ = s.refresh.Delete(next)
		return "", "", 0, err
	}
	log.Debug().Str("user", user.ID).Msg("Session refreshed")
	return accessToken, next, expiresIn, nil
}

// LogoutHandler revokes the refresh token, if any, and clears both
// cookies. It always succeeds.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(apimodel.RefreshTokenCookie); err == nil && cookie.Value != "" {
			if err := s.refresh.Delete(cookie.Value); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				log.Warn().Err(err).Msg("Failed to revoke refresh token")
			}
		}
		s.clearAuthCookies(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

// MeHandler returns the profile of the caller.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.repos.Users.GetByID(claimsFrom(r.Context()).UserID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user.Profile())
	}
}
