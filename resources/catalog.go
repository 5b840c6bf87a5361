package resources

import (
	"context"

	"github.com/jrsteele09/go-agency-admin/apiclient"
	"github.com/jrsteele09/go-agency-admin/apimodel"
	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
	"github.com/jrsteele09/go-agency-admin/querycache"
)

// Catalog holds the services of every resource of one tab.
type Catalog struct {
	Customers *Service[Customer]
	Vehicles  *Service[Vehicle]
	Staff     *Service[StaffMember]
	Suppliers *Service[Supplier]
	Packages  *Service[Package]
	Bookings  *Service[Booking]
	Payments  *Service[Payment]
	Expenses  *Service[Expense]

	client *apiclient.Client
	cache  *querycache.Cache
	byName map[string]Dynamic
}

// NewCatalog validates registry and builds the services.
func NewCatalog(client *apiclient.Client, cache *querycache.Cache, registry *Registry) (*Catalog, error) {
	if err := registry.Validate(); err != nil {
		return nil, err
	}
	c := &Catalog{
		Customers: NewService[Customer](Customers, client, cache, registry),
		Vehicles:  NewService[Vehicle](Vehicles, client, cache, registry),
		Staff:     NewService[StaffMember](Staff, client, cache, registry),
		Suppliers: NewService[Supplier](Suppliers, client, cache, registry),
		Packages:  NewService[Package](Packages, client, cache, registry),
		Bookings:  NewService[Booking](Bookings, client, cache, registry),
		Payments:  NewService[Payment](Payments, client, cache, registry),
		Expenses:  NewService[Expense](Expenses, client, cache, registry),
		client:    client,
		cache:     cache,
	}
	c.byName = make(map[string]Dynamic)
	for _, d := range []Dynamic{c.Customers, c.Vehicles, c.Staff, c.Suppliers, c.Packages, c.Bookings, c.Payments, c.Expenses} {
		c.byName[d.Resource().Name] = d
	}
	return c, nil
}

// Lookup returns the service of a writable resource.
func (c *Catalog) Lookup(name string) (Dynamic, error) {
	d, ok := c.byName[name]
	if !ok {
		if res, err := Lookup(name); err == nil && res.ReadOnly {
			return nil, apperrors.Wrapf(apperrors.ErrReadOnlyResource, "[Catalog Lookup] %s", name)
		}
		return nil, apperrors.Wrapf(apperrors.ErrUnknownResource, "[Catalog Lookup] %q", name)
	}
	return d, nil
}

// ReportSummary returns the dashboard figures.
func (c *Catalog) ReportSummary(ctx context.Context) (apimodel.ReportSummary, error) {
	key := querycache.NewKey(Reports.Name, "summary")
	return querycache.Get(ctx, c.cache, key, func(ctx context.Context) (apimodel.ReportSummary, error) {
		var out apimodel.ReportSummary
		err := c.client.Get(ctx, Reports.Path+"/summary", nil, &out)
		return out, err
	})
}

// ConfigList returns a reference list such as "countries". These are
// cached for the long stale window configured for the config resource.
func (c *Catalog) ConfigList(ctx context.Context, name string) ([]ConfigItem, error) {
	key := querycache.NewKey(Config.Name, name)
	return querycache.Get(ctx, c.cache, key, func(ctx context.Context) ([]ConfigItem, error) {
		var out []ConfigItem
		err := c.client.Get(ctx, Config.ItemPath(name), nil, &out)
		return out, err
	})
}
