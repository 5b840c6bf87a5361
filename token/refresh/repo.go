package refresh

import (
	"time"
)

// StoredRefreshToken is the server-side record behind an opaque refresh
// token. Clients only ever see Token.
type StoredRefreshToken struct {
	Token     string    // The random token string sent to the client
	UserID    string    // Owner of the session
	ClientID  string    // Client the token was issued to ("" for cookie sessions)
	Iat       time.Time // Issued at
	ExpiresAt time.Time // Absolute expiry
}

// Repo stores refresh token metadata keyed by the token string.
type Repo interface {
	Upsert(refreshToken *StoredRefreshToken) error
	Delete(token string) error
	Get(token string) (*StoredRefreshToken, error)
	DeleteByUserID(userID string) error
}
