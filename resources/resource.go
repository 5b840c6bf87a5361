// Package resources is the data layer of the admin screens: one typed CRUD
// service per agency resource, reading through the query cache and
// invalidating the keys each mutation declares in the Registry.
package resources

import (
	"net/url"
	"slices"

	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
	"github.com/jrsteele09/go-agency-admin/querycache"
)

// Resource names an API collection. List keys use Name, detail keys use
// Singular, so invalidating a list never touches a detail.
type Resource struct {
	Name     string // "customers"
	Singular string // "customer"
	Path     string // "/api/customers"
	ReadOnly bool
}

var (
	Customers = newResource("customers", "customer")
	Vehicles  = newResource("vehicles", "vehicle")
	Staff     = newResource("staff", "staff-member")
	Suppliers = newResource("suppliers", "supplier")
	Packages  = newResource("packages", "package")
	Bookings  = newResource("bookings", "booking")
	Payments  = newResource("payments", "payment")
	Expenses  = newResource("expenses", "expense")

	Reports = Resource{Name: "reports", Singular: "report", Path: "/api/reports", ReadOnly: true}
	Config  = Resource{Name: "config", Singular: "config-list", Path: "/api/config", ReadOnly: true}
)

func newResource(name, singular string) Resource {
	return Resource{Name: name, Singular: singular, Path: "/api/" + name}
}

// All lists every resource, writable ones first.
func All() []Resource {
	return []Resource{Customers, Vehicles, Staff, Suppliers, Packages, Bookings, Payments, Expenses, Reports, Config}
}

// Writable lists the resources that support create, update and delete.
func Writable() []Resource {
	return slices.DeleteFunc(All(), func(r Resource) bool { return r.ReadOnly })
}

// Lookup finds a resource by Name.
func Lookup(name string) (Resource, error) {
	for _, r := range All() {
		if r.Name == name {
			return r, nil
		}
	}
	return Resource{}, apperrors.Wrapf(apperrors.ErrUnknownResource, "[resources Lookup] %q", name)
}

func (r Resource) ListKey(filter url.Values) querycache.Key {
	return querycache.NewKey(r.Name).With(filter)
}

func (r Resource) DetailKey(id string) querycache.Key {
	return querycache.NewKey(r.Singular, id)
}

func (r Resource) ItemPath(id string) string {
	return r.Path + "/" + url.PathEscape(id)
}
