package authz

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	return svc
}

func TestEnforceAdminWithAssignedRole(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	if err := svc.SetAdminRoles(1, []string{"warehouse"}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}

	allow, err := svc.EnforceAdmin(1, nil, "/api/v1/admin/packages/42/ship", "post")
	if err != nil {
		t.Fatalf("enforce allow failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected allow=true")
	}

	allow, err = svc.EnforceAdmin(1, nil, "/api/v1/admin/users/42/wallet/adjust", "POST")
	if err != nil {
		t.Fatalf("enforce deny failed: %v", err)
	}
	if allow {
		t.Fatalf("expected allow=false")
	}
}

func TestEnforceAdminWithTokenRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}

	allow, err := svc.EnforceAdmin(7, []string{"claims"}, "/admin/damaged-claims/5/review", "POST")
	if err != nil {
		t.Fatalf("enforce token role failed: %v", err)
	}
	if !allow {
		t.Fatalf("token role must grant claim review")
	}

	allow, err = svc.EnforceAdmin(7, []string{"claims", "unknown", " "}, "/admin/packages/5/ship", "POST")
	if err != nil {
		t.Fatalf("enforce token role failed: %v", err)
	}
	if allow {
		t.Fatalf("claims role must not ship packages")
	}

	allow, err = svc.EnforceAdmin(7, nil, "/admin/damaged-claims/5/review", "POST")
	if err != nil {
		t.Fatalf("enforce without roles failed: %v", err)
	}
	if allow {
		t.Fatalf("admin without roles must be denied")
	}
}

func TestSetAdminRolesOverride(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}

	if err := svc.SetAdminRoles(2, []string{"warehouse"}); err != nil {
		t.Fatalf("set first role failed: %v", err)
	}
	roles, err := svc.GetAdminRoles(2)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:warehouse" {
		t.Fatalf("roles want [role:warehouse], got=%v", roles)
	}

	if err := svc.SetAdminRoles(2, []string{"role:Finance"}); err != nil {
		t.Fatalf("set second role failed: %v", err)
	}
	roles, err = svc.GetAdminRoles(2)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:finance" {
		t.Fatalf("roles want [role:finance], got=%v", roles)
	}

	allow, err := svc.EnforceAdmin(2, nil, "/admin/packages/1/ship", "POST")
	if err != nil {
		t.Fatalf("enforce old role failed: %v", err)
	}
	if allow {
		t.Fatalf("expected old role permission removed")
	}

	allow, err = svc.EnforceAdmin(2, nil, "/admin/users/1/wallet/adjust", "POST")
	if err != nil {
		t.Fatalf("enforce new role failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected new role permission granted")
	}
}

func TestSetAdminRolesRejectsUnknownRole(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.SetAdminRoles(4, []string{"warehouse"}); err != nil {
		t.Fatalf("set role failed: %v", err)
	}
	err := svc.SetAdminRoles(4, []string{"warehouse", "packers"})
	if !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected unknown role, got %v", err)
	}
	roles, err := svc.GetAdminRoles(4)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:warehouse" {
		t.Fatalf("rejected update must keep roles, got=%v", roles)
	}
}

func TestRolePoliciesIncludeInherited(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	policies, err := svc.RolePolicies("claims")
	if err != nil {
		t.Fatalf("role policies failed: %v", err)
	}
	var readonly, review bool
	for _, p := range policies {
		readonly = readonly || (p.Object == "/admin/*" && p.Action == "GET")
		review = review || (p.Object == "/admin/damaged-claims/:id/review" && p.Action == "POST")
	}
	if !readonly || !review {
		t.Fatalf("claims policies must include inherited readonly access: %+v", policies)
	}
	if _, err := svc.RolePolicies("packers"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected unknown role, got %v", err)
	}
}

func TestBootstrapPrunesStalePolicies(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if _, err := svc.enforcer.AddPolicy("role:warehouse", "/admin/users/:id/wallet/adjust", "POST"); err != nil {
		t.Fatalf("seed stale policy failed: %v", err)
	}
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	if err := svc.SetAdminRoles(5, []string{"warehouse"}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}
	allow, err := svc.EnforceAdmin(5, nil, "/admin/users/1/wallet/adjust", "POST")
	if err != nil {
		t.Fatalf("enforce failed: %v", err)
	}
	if allow {
		t.Fatalf("stale warehouse policy must be removed")
	}
}

func TestNormalizeObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/admin/packages/:id", want: "/admin/packages/:id"},
		{in: "/admin/packages/:id", want: "/admin/packages/:id"},
		{in: "admin/packages", want: "/admin/packages"},
		{in: "/api/v1", want: "/"},
		{in: "", want: "/"},
	}
	for _, item := range cases {
		got := NormalizeObject(item.in)
		if got != item.want {
			t.Fatalf("normalize object failed, in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}

func TestBootstrapBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap must be repeatable: %v", err)
	}

	roles, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	wantRoles := map[string]bool{
		"role:readonly_auditor": true,
		"role:warehouse":        true,
		"role:claims":           true,
		"role:finance":          true,
	}
	for _, role := range roles {
		delete(wantRoles, role.Role)
	}
	if len(wantRoles) != 0 {
		t.Fatalf("builtin roles missing: %v", wantRoles)
	}

	if err := svc.SetAdminRoles(3, []string{"warehouse"}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}

	allow, err := svc.EnforceAdmin(3, nil, "/admin/damaged-claims", "GET")
	if err != nil {
		t.Fatalf("enforce inherited readonly failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected inherited readonly permission")
	}

	allow, err = svc.EnforceAdmin(3, nil, "/admin/damaged-claims/1/review", "POST")
	if err != nil {
		t.Fatalf("enforce claim review failed: %v", err)
	}
	if allow {
		t.Fatalf("warehouse role must not review claims")
	}

	allow, err = svc.EnforceAdmin(3, nil, "/admin/packages/9/deliver", "POST")
	if err != nil {
		t.Fatalf("enforce deliver failed: %v", err)
	}
	if !allow {
		t.Fatalf("warehouse role must mark deliveries")
	}

	allow, err = svc.EnforceAdmin(3, nil, "/admin/packages/9/deconsolidate", "POST")
	if err != nil {
		t.Fatalf("enforce deconsolidate failed: %v", err)
	}
	if !allow {
		t.Fatalf("warehouse role must split auto merges")
	}
}
