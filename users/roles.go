package users

import (
	"fmt"
	"slices"
)

// RoleType is the job role of a staff member. It decides which screens
// and resources they can use.
type RoleType string

const (
	RoleAdmin      RoleType = "admin"      // Everything, including staff accounts
	RoleManager    RoleType = "manager"    // All agency data; staff is read-only
	RoleAgent      RoleType = "agent"      // Customers, bookings and their payments
	RoleAccountant RoleType = "accountant" // Money: payments, expenses, suppliers and reports
)

// Views that are not resources.
const (
	ViewDashboard = "dashboard"
)

// Roles lists every role.
var Roles = []RoleType{RoleAdmin, RoleManager, RoleAgent, RoleAccountant}

type access struct {
	read  []string
	write []string
}

var (
	everything  = []string{"customers", "vehicles", "staff", "suppliers", "packages", "bookings", "payments", "expenses", "reports", "config"}
	permissions = map[RoleType]access{
		RoleAdmin: {read: everything, write: everything},
		RoleManager: {
			read:  everything,
			write: []string{"customers", "vehicles", "suppliers", "packages", "bookings", "payments", "expenses"},
		},
		RoleAgent: {
			read:  []string{"customers", "vehicles", "packages", "bookings", "payments", "config"},
			write: []string{"customers", "bookings", "payments"},
		},
		RoleAccountant: {
			read:  []string{"bookings", "suppliers", "payments", "expenses", "reports", "config"},
			write: []string{"suppliers", "payments", "expenses"},
		},
	}
)

func ParseRole(s string) (RoleType, error) {
	role := RoleType(s)
	if _, ok := permissions[role]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return role, nil
}

// CanView reports whether the role may see the view or read the resource
// with that name.
func (r RoleType) CanView(view string) bool {
	if view == ViewDashboard {
		_, ok := permissions[r]
		return ok
	}
	return slices.Contains(permissions[r].read, view)
}

// CanWrite reports whether the role may create, update or delete records
// of resource.
func (r RoleType) CanWrite(resource string) bool {
	return slices.Contains(permissions[r].write, resource)
}
