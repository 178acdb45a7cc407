// Package authz holds the role policy checked by the HTTP middleware.
// Keeping the allow/deny decision in a plain value makes it testable
// without spinning up the transport layer.
package authz

import "strings"

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleStaff    Role = "STAFF"
	RoleCustomer Role = "CUSTOMER"
)

func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleStaff:
		return RoleStaff, true
	case RoleCustomer:
		return RoleCustomer, true
	}
	return "", false
}

// IsStaff reports whether the role carries back-office privileges.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleStaff
}

// Policy decides whether a subject role satisfies a handler's requirement.
type Policy struct{}

// Allow returns true when the subject holds one of the required roles.
// An empty requirement means any authenticated subject. ADMIN implies
// STAFF for operational endpoints.
func (Policy) Allow(subject Role, required ...Role) bool {
	if _, ok := ParseRole(string(subject)); !ok {
		return false
	}
	if len(required) == 0 {
		return true
	}
	for _, want := range required {
		if subject == want {
			return true
		}
		if want == RoleStaff && subject == RoleAdmin {
			return true
		}
	}
	return false
}
