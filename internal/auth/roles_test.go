package auth

import "testing"

func TestRolePermissionsWithinCatalog(t *testing.T) {
	for _, role := range []Role{RoleAdmin, RoleOperator, RoleViewer, RoleAPIOnly} {
		perms := RolePermissions(role)
		if len(perms) == 0 {
			t.Fatalf("role %s has an empty permission set", role)
		}
		for p := range perms {
			if !KnownPermission(p) {
				t.Fatalf("role %s grants %q which is not in the catalog", role, p)
			}
		}
	}
}

func TestRoleHierarchySubsets(t *testing.T) {
	viewer := RolePermissions(RoleViewer)
	operator := RolePermissions(RoleOperator)
	admin := RolePermissions(RoleAdmin)

	for p := range viewer {
		if _, ok := operator[p]; !ok {
			t.Fatalf("operator is missing viewer permission %q", p)
		}
	}
	for p := range operator {
		if _, ok := admin[p]; !ok {
			t.Fatalf("admin is missing operator permission %q", p)
		}
	}
	if _, ok := operator[PermUserDelete]; ok {
		t.Fatalf("operator must not hold %s", PermUserDelete)
	}
	if _, ok := admin[PermUserDelete]; !ok {
		t.Fatalf("admin must hold %s", PermUserDelete)
	}
}

func TestRoleAtLeast(t *testing.T) {
	cases := []struct {
		actor, required Role
		want            bool
	}{
		{RoleAdmin, RoleOperator, true},
		{RoleAdmin, RoleViewer, true},
		{RoleAdmin, RoleAdmin, true},
		{RoleOperator, RoleViewer, true},
		{RoleOperator, RoleAdmin, false},
		{RoleViewer, RoleOperator, false},
		{RoleViewer, RoleViewer, true},
		{RoleAPIOnly, RoleViewer, false},
		{RoleAPIOnly, RoleAPIOnly, true},
		{RoleAdmin, RoleAPIOnly, false},
	}
	for _, tc := range cases {
		if got := RoleAtLeast(tc.actor, tc.required); got != tc.want {
			t.Fatalf("RoleAtLeast(%s, %s) = %v, want %v", tc.actor, tc.required, got, tc.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole("  Admin "); err != nil || r != RoleAdmin {
		t.Fatalf("ParseRole normalization failed: %v %v", r, err)
	}
	if _, err := ParseRole("superuser"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestPrincipalEvaluator(t *testing.T) {
	user := &User{ID: "u1", Username: "olive", Role: RoleOperator, Active: true}
	p := UserPrincipal(user)

	if !p.HasPermission(PermCameraCreate) {
		t.Fatal("operator principal should hold camera:create")
	}
	if p.HasPermission(PermUserDelete) {
		t.Fatal("operator principal must not hold user:delete")
	}
	if !p.HasAny(PermUserDelete, PermCameraRead) {
		t.Fatal("HasAny should succeed when one permission holds")
	}
	if p.HasAll(PermCameraRead, PermUserDelete) {
		t.Fatal("HasAll must fail when any permission is missing")
	}
	if !p.HasAll(PermCameraRead, PermStreamControl) {
		t.Fatal("HasAll should succeed when every permission holds")
	}
	if !p.RoleAtLeast(RoleViewer) || p.RoleAtLeast(RoleAdmin) {
		t.Fatal("operator role comparisons are wrong")
	}
}

func TestTokenPrincipalUsesStoredSubset(t *testing.T) {
	owner := &User{ID: "u1", Username: "olive", Role: RoleAdmin, Active: true}
	token := &APIToken{ID: "t1", UserID: "u1", Permissions: []string{PermCameraRead}}
	p := TokenPrincipal(token, owner)

	if !p.HasPermission(PermCameraRead) {
		t.Fatal("token principal should hold its stored permission")
	}
	if p.HasPermission(PermUserDelete) {
		t.Fatal("token principal must not inherit the owner's wider role")
	}
	if p.RoleAtLeast(RoleViewer) {
		t.Fatal("token actors must not satisfy hierarchy roles")
	}
	if p.IsAdmin() {
		t.Fatal("token actors are never admin")
	}
}
