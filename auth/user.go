package auth

import (
	"github.com/jrsteele09/go-agency-admin/apimodel"
	"github.com/jrsteele09/go-agency-admin/users"
)

// User is the logged-in staff member as this tab knows them.
type User struct {
	ID    string         `json:"id"`
	Email string         `json:"email"`
	Name  string         `json:"name"`
	Role  users.RoleType `json:"role"`
}

func userFromProfile(p apimodel.Profile) *User {
	return &User{ID: p.ID, Email: p.Email, Name: p.Name, Role: users.RoleType(p.Role)}
}

// CanView reports whether the user's role gives access to view, which is
// a resource name or users.ViewDashboard. A nil user sees nothing.
func (u *User) CanView(view string) bool {
	if u == nil {
		return false
	}
	return u.Role.CanView(view)
}

// CanEdit reports whether the user may create, update or delete records
// of resource.
func (u *User) CanEdit(resource string) bool {
	if u == nil {
		return false
	}
	return u.Role.CanWrite(resource)
}
