package authz

import "testing"

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" admin ")
	if !ok || role != RoleAdmin {
		t.Fatalf("expected ADMIN, got %q ok=%v", role, ok)
	}
	if _, ok := ParseRole("root"); ok {
		t.Fatal("expected unknown role to be rejected")
	}
}

func TestPolicyAllowAnyAuthenticated(t *testing.T) {
	var p Policy
	if !p.Allow(RoleCustomer) {
		t.Fatal("empty requirement should admit any valid role")
	}
	if p.Allow("") {
		t.Fatal("empty subject role must be denied")
	}
}

func TestPolicyAdminImpliesStaff(t *testing.T) {
	var p Policy
	if !p.Allow(RoleAdmin, RoleStaff) {
		t.Fatal("ADMIN should satisfy a STAFF requirement")
	}
	if p.Allow(RoleStaff, RoleAdmin) {
		t.Fatal("STAFF must not satisfy an ADMIN requirement")
	}
	if p.Allow(RoleCustomer, RoleStaff) {
		t.Fatal("CUSTOMER must not satisfy a STAFF requirement")
	}
}

func TestIsStaff(t *testing.T) {
	if !RoleAdmin.IsStaff() || !RoleStaff.IsStaff() {
		t.Fatal("ADMIN and STAFF carry back-office privileges")
	}
	if RoleCustomer.IsStaff() {
		t.Fatal("CUSTOMER must not carry back-office privileges")
	}
}
