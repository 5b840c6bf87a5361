package refresh_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-agency-admin/clock"
	"github.com/jrsteele09/go-agency-admin/internal/config"
	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
	"github.com/jrsteele09/go-agency-admin/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-agency-admin/token/refresh/repofake"
	"github.com/stretchr/testify/require"
)

func newManager() (*refresh.Manager, *clock.FakeClock) {
	clk := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	return refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), config.Tokens{}, clk), clk
}

func TestManager_Rotate(t *testing.T) {
	t.Run("rotation issues a new token and retires the old one", func(t *testing.T) {
		m, _ := newManager()
		first, err := m.Create("u1", "agency-admin")
		require.NoError(t, err)
		require.Len(t, first, 64)

		rt, second, err := m.Rotate(first, "agency-admin")
		require.NoError(t, err)
		require.Equal(t, "u1", rt.UserID)
		require.NotEqual(t, first, second)

		_, _, err = m.Rotate(first, "agency-admin")
		require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
	})

	t.Run("client must match", func(t *testing.T) {
		m, _ := newManager()
		tok, err := m.Create("u1", "agency-admin")
		require.NoError(t, err)
		_, _, err = m.Rotate(tok, "someone-else")
		require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
	})

	t.Run("expired token is rejected and deleted", func(t *testing.T) {
		m, clk := newManager()
		tok, err := m.Create("u1", "")
		require.NoError(t, err)
		clk.Advance(config.Tokens{}.GetRefreshTokenExpiry())

		_, _, err = m.Rotate(tok, "")
		require.ErrorIs(t, err, apperrors.ErrRefreshTokenExpired)
		_, _, err = m.Rotate(tok, "")
		require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
	})

	t.Run("revoking a user drops all their tokens", func(t *testing.T) {
		m, _ := newManager()
		a, _ := m.Create("u1", "")
		b, _ := m.Create("u1", "")
		c, _ := m.Create("u2", "")
		require.NoError(t, m.RevokeUser("u1"))

		_, _, err := m.Rotate(a, "")
		require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
		_, _, err = m.Rotate(b, "")
		require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
		_, _, err = m.Rotate(c, "")
		require.NoError(t, err)
	})
}
