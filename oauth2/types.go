package oauth2

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
type GrantType string

const (
	// RefreshTokenCodeGrant exchanges a refresh token for new tokens.
	// Token request includes: grant_type, refresh_token, client_id
	// Returns: new access_token and a rotated refresh_token
	RefreshTokenCodeGrant GrantType = "refresh_token"
)

// TokenTypeBearer is the token_type of every access token.
const TokenTypeBearer = "bearer"
