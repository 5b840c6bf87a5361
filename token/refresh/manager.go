package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/jrsteele09/go-agency-admin/clock"
	"github.com/jrsteele09/go-agency-admin/internal/config"
	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
)

// Manager handles refresh token creation, validation, and rotation
type Manager struct {
	repo   Repo
	config config.TokenConfig
	clock  clock.Clock
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, cfg config.TokenConfig, clk clock.Clock) *Manager {
	return &Manager{
		repo:   repo,
		config: cfg,
		clock:  clk,
	}
}

// Create generates a new refresh token and stores it. A user may hold
// several at once, one per logged-in device.
func (m *Manager) Create(userID, clientID string) (string, error) {
	tokenBytes := make([]byte, m.config.GetRefreshTokenLength())
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("[Manager Create] failed to generate random bytes: %w", err)
	}

	now := m.clock.Now()
	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(&StoredRefreshToken{
		Token:     tokenStr,
		UserID:    userID,
		ClientID:  clientID,
		Iat:       now,
		ExpiresAt: now.Add(m.config.GetRefreshTokenExpiry()),
	}); err != nil {
		return "", fmt.Errorf("[Manager Create] failed to store refresh token: %w", err)
	}
	return tokenStr, nil
}

// Rotate validates token, deletes it and issues a replacement for the
// same user and client. A token can therefore be used only once.
func (m *Manager) Rotate(token, clientID string) (*StoredRefreshToken, string, error) {
	rt, err := m.repo.Get(token)
	if err != nil {
		return nil, "", apperrors.Wrapf(apperrors.ErrInvalidRefreshToken, "[Manager Rotate]")
	}
	if clientID != "" && rt.ClientID != clientID {
		return nil, "", fmt.Errorf("[Manager Rotate] client mismatch: %w", apperrors.ErrInvalidRefreshToken)
	}
	if err := m.repo.Delete(token); err != nil {
		return nil, "", apperrors.Wrapf(apperrors.ErrInvalidRefreshToken, "[Manager Rotate]")
	}
	if !m.clock.Now().Before(rt.ExpiresAt) {
		return nil, "", apperrors.Wrapf(apperrors.ErrRefreshTokenExpired, "[Manager Rotate]")
	}

	next, err := m.Create(rt.UserID, rt.ClientID)
	if err != nil {
		return nil, "", fmt.Errorf("[Manager Rotate] %w", err)
	}
	return rt, next, nil
}

// Delete removes a refresh token from storage
func (m *Manager) Delete(token string) error {
	return m.repo.Delete(token)
}

// RevokeUser removes every refresh token of the user.
func (m *Manager) RevokeUser(userID string) error {
	return m.repo.DeleteByUserID(userID)
}
