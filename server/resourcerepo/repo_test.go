package resourcerepo_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/jrsteele09/go-agency-admin/clock"
	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
	"github.com/jrsteele09/go-agency-admin/server/resourcerepo"
	"github.com/stretchr/testify/require"
)

func newStore() *resourcerepo.Store {
	clk := clock.Fake(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	return resourcerepo.New(clk, "customers", "bookings")
}

func TestStore_CRUD(t *testing.T) {
	s := newStore()

	created, err := s.Create("customers", resourcerepo.Document{"name": "Ada", "id": "ignored"})
	require.NoError(t, err)
	id := created.ID()
	require.NotEmpty(t, id)
	require.NotEqual(t, "ignored", id)
	require.Equal(t, "2026-05-04T10:00:00.000Z", created.String(resourcerepo.FieldCreatedAt))

	got, err := s.Get("customers", id)
	require.NoError(t, err)
	require.Equal(t, "Ada", got.String("name"))

	got["name"] = "mutated"
	again, _ := s.Get("customers", id)
	require.Equal(t, "Ada", again.String("name"), "returned records are copies")

	updated, err := s.Update("customers", id, resourcerepo.Document{"name": "Ada L"})
	require.NoError(t, err)
	require.Equal(t, id, updated.ID())
	require.Equal(t, created[resourcerepo.FieldCreatedAt], updated[resourcerepo.FieldCreatedAt])

	require.NoError(t, s.Delete("customers", id))
	_, err = s.Get("customers", id)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.ErrorIs(t, s.Delete("customers", id), apperrors.ErrNotFound)
	_, err = s.Update("customers", id, resourcerepo.Document{})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStore_UnknownCollection(t *testing.T) {
	s := newStore()
	_, err := s.List("planets", nil)
	require.ErrorIs(t, err, apperrors.ErrUnknownResource)
	_, err = s.Create("planets", resourcerepo.Document{})
	require.ErrorIs(t, err, apperrors.ErrUnknownResource)
}

func TestStore_ListFilters(t *testing.T) {
	s := newStore()
	for _, b := range []resourcerepo.Document{
		{"status": "pending", "customerId": "c1", "totalAmount": 100.0},
		{"status": "confirmed", "customerId": "c1", "totalAmount": 250.0},
		{"status": "pending", "customerId": "c2", "notes": "Safari in Kenya"},
	} {
		_, err := s.Create("bookings", b)
		require.NoError(t, err)
	}

	all, err := s.List("bookings", nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, 100.0, all[0].Number("totalAmount"), "creation order")

	pending, err := s.List("bookings", url.Values{"status": {"pending"}})
	require.NoError(t, err)
	require.Len(t, pending, 2)

	both, err := s.List("bookings", url.Values{"status": {"pending"}, "customerId": {"c1"}})
	require.NoError(t, err)
	require.Len(t, both, 1)

	search, err := s.List("bookings", url.Values{resourcerepo.SearchParam: {"kenya"}})
	require.NoError(t, err)
	require.Len(t, search, 1)
	require.Equal(t, "c2", search[0].String("customerId"))

	amount, err := s.List("bookings", url.Values{"totalAmount": {"250"}})
	require.NoError(t, err)
	require.Len(t, amount, 1)

	require.Equal(t, []string{"bookings", "customers"}, s.Collections())
}
