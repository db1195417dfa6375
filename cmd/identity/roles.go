package identity

import "strings"

// Role is a user's access level. The hierarchy for shared resources is
// admin > franchisee > staff > customer; admin-only resources admit admin
// alone. Access decisions are made against explicit per-resource allow-lists,
// never by comparing roles directly.
type Role string

const (
	// RoleAdmin operates the whole platform.
	RoleAdmin Role = "admin"
	// RoleFranchisee manages a franchise's shipments and staff.
	RoleFranchisee Role = "franchisee"
	// RoleStaff handles day-to-day shipment operations.
	RoleStaff Role = "staff"
	// RoleCustomer is a self-registered shipper tracking their own parcels.
	RoleCustomer Role = "customer"
)

// ParseRole canonicalizes a stored role string. Unknown values report ok=false.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleFranchisee:
		return RoleFranchisee, true
	case RoleStaff:
		return RoleStaff, true
	case RoleCustomer:
		return RoleCustomer, true
	default:
		return "", false
	}
}
