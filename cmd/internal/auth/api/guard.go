package authapi

import (
	"waybill/cmd/identity"
)

// RoleGuard decides resource access from explicit allow-lists. A resource
// that is not listed admits nobody, so new surfaces are closed until someone
// grants them deliberately.
type RoleGuard struct {
	allow   map[string][]identity.Role
	landing map[identity.Role]string
}

// NewRoleGuard returns the guard with the default resource policy.
func NewRoleGuard() *RoleGuard {
	return &RoleGuard{
		allow: map[string][]identity.Role{
			"/admin":     {identity.RoleAdmin},
			"/franchise": {identity.RoleAdmin, identity.RoleFranchisee},
			"/ops":       {identity.RoleAdmin, identity.RoleFranchisee, identity.RoleStaff},
			"/track":     {identity.RoleAdmin, identity.RoleFranchisee, identity.RoleStaff, identity.RoleCustomer},
		},
		landing: map[identity.Role]string{
			identity.RoleAdmin:      "/admin",
			identity.RoleFranchisee: "/franchise",
			identity.RoleStaff:      "/ops",
			identity.RoleCustomer:   "/track",
		},
	}
}

// Allowed reports whether role may access resource.
func (g *RoleGuard) Allowed(resource string, role identity.Role) bool {
	for _, r := range g.allow[resource] {
		if r == role {
			return true
		}
	}
	return false
}

// Landing returns the resource a role is sent to after login or on denial.
func (g *RoleGuard) Landing(role identity.Role) string {
	if l, ok := g.landing[role]; ok {
		return l
	}
	return "/track"
}

// Resources returns the guarded resource paths.
func (g *RoleGuard) Resources() []string {
	out := make([]string, 0, len(g.allow))
	for res := range g.allow {
		out = append(out, res)
	}
	return out
}
