package session

import "encoding/json"

const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
)

// UserRole is one role assignment as returned by GetMyRoles
type UserRole struct {
	UserID      string          `json:"userId"`
	RoleID      string          `json:"roleId"`
	Name        string          `json:"name"`
	Permissions json.RawMessage `json:"permissions,omitempty"`
}

// Roles is the set of roles of the authenticated user
type Roles struct {
	Assignments []UserRole
	ids         map[string]struct{}
}

// NewRoles indexes the role assignments by role id
func NewRoles(assignments []UserRole) *Roles {
	r := &Roles{Assignments: assignments, ids: make(map[string]struct{}, len(assignments))}
	for _, a := range assignments {
		r.ids[a.RoleID] = struct{}{}
	}
	return r
}

// Has reports whether the user has the role
func (r *Roles) Has(roleID string) bool {
	if r == nil {
		return false
	}
	_, ok := r.ids[roleID]
	return ok
}

func (r *Roles) IsOwner() bool {
	return r.Has(RoleOwner)
}

// IsAdmin is true for admins and owners
func (r *Roles) IsAdmin() bool {
	return r.Has(RoleAdmin) || r.IsOwner()
}
