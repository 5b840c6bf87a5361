package oauth2

// TokenResponse is the RFC 6749 token endpoint response.
type TokenResponse struct {
	// AccessToken is the JWT used to call the API, either as a Bearer
	// header or through the access_token cookie.
	AccessToken string `json:"access_token"`

	// TokenType is always "bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token.
	ExpiresIn int `json:"expires_in"`

	// RefreshToken replaces the one presented; each refresh token can be
	// used once.
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ErrorResponse is the RFC 6749 section 5.2 error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Error codes of the token endpoint.
const (
	ErrInvalidRequest       = "invalid_request"
	ErrInvalidGrant         = "invalid_grant"
	ErrUnsupportedGrantType = "unsupported_grant_type"
)
