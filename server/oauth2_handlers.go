package server

import (
	"net/http"

	"github.com/jrsteele09/go-agency-admin/oauth2"
)

// Token implements the refresh_token grant for the agency's public client.
// The new access token is also set as a cookie so cookie-authenticated API
// calls pick it up.
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, oauth2.ErrInvalidRequest, "Failed to parse form data", http.StatusBadRequest)
			return
		}

		if grant := oauth2.GrantType(r.FormValue("grant_type")); grant != oauth2.RefreshTokenCodeGrant {
			writeJSONError(w, oauth2.ErrUnsupportedGrantType, "only refresh_token is supported", http.StatusBadRequest)
			return
		}
		clientID := r.FormValue("client_id")
		if clientID != s.config.GetOAuthClientID() {
			writeJSONError(w, "invalid_client", "unknown client", http.StatusUnauthorized)
			return
		}
		refreshToken := r.FormValue("refresh_token")
		if refreshToken == "" {
			writeJSONError(w, oauth2.ErrInvalidRequest, "refresh_token is required", http.StatusBadRequest)
			return
		}

		accessToken, next, expiresIn, err := s.rotate(refreshToken, clientID)
		if err != nil {
			writeJSONError(w, oauth2.ErrInvalidGrant, err.Error(), http.StatusBadRequest)
			return
		}

		s.setAccessCookie(w, r, accessToken)
		writeJSON(w, http.StatusOK, oauth2.TokenResponse{
			AccessToken:  accessToken,
			TokenType:    oauth2.TokenTypeBearer,
			ExpiresIn:    expiresIn,
			RefreshToken: next,
		})
	}
}

// writeJSONError writes an OAuth2 error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, oauth2.ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}
