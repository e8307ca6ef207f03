package service

import (
	"context"
	"encoding/json"
	"testing"

	"schoolhub/internal/model"
	"schoolhub/internal/modules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRoleFixture(roles ...*model.Role) (RoleService, *fakeRoleRepo, *fakeAudit, *fakeAccess) {
	repo := newFakeRoleRepo(roles...)
	audit := &fakeAudit{}
	access := &fakeAccess{}
	svc := NewRoleService(repo, audit, &fakeTx{}, access, zap.NewNop())
	return svc, repo, audit, access
}

func fullRow(module, level string) PermissionRow {
	return PermissionRow{Module: module, Add: level, View: level, Update: level, Delete: level}
}

func TestUpdateRolePermissionsReplacesMatrix(t *testing.T) {
	teacher := &model.Role{Name: "Teacher"}
	svc, repo, audit, access := newRoleFixture(teacher)

	rows := []PermissionRow{
		fullRow("exams", "owned"),
		{Module: "students", Add: "none", View: "all", Update: "none", Delete: "none"},
	}
	err := svc.UpdateRolePermissions(context.Background(), "", teacher.ID.String(), rows)
	require.NoError(t, err)

	stored := repo.roles[teacher.ID].Permissions
	require.Len(t, stored, 2)
	assert.Equal(t, model.AccessOwned, stored[0].Update)
	assert.Equal(t, model.AccessAll, stored[1].View)
	assert.Equal(t, []string{model.ActionUpdateRolePermissions}, audit.actions())
	assert.Equal(t, []string{"Teacher"}, access.invalidated)
}

func TestUpdateRolePermissionsValidation(t *testing.T) {
	teacher := &model.Role{Name: "Teacher"}
	svc, repo, audit, _ := newRoleFixture(teacher)

	tests := []struct {
		name string
		rows []PermissionRow
	}{
		{"empty set", nil},
		{"out of enum value", []PermissionRow{{Module: "exams", Add: "everything", View: "all", Update: "all", Delete: "all"}}},
		{"blank value", []PermissionRow{{Module: "exams", Add: "all", View: "", Update: "all", Delete: "all"}}},
		{"unknown module", []PermissionRow{fullRow("spaceships", "all")}},
		{"duplicate module", []PermissionRow{fullRow("exams", "all"), fullRow("exams", "none")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.UpdateRolePermissions(context.Background(), "", teacher.ID.String(), tt.rows)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Empty(t, repo.roles[teacher.ID].Permissions)
	assert.Empty(t, audit.actions())
}

func TestUpdateRolePermissionsSuperAdminImmutable(t *testing.T) {
	sa := &model.Role{Name: model.SuperAdminRole, IsSystem: true}
	svc, _, _, _ := newRoleFixture(sa)

	err := svc.UpdateRolePermissions(context.Background(), "", sa.ID.String(), []PermissionRow{fullRow("exams", "none")})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateRolePermissionsUnknownRole(t *testing.T) {
	svc, _, _, _ := newRoleFixture()

	err := svc.UpdateRolePermissions(context.Background(), "", "8a1f4a0e-6c8b-4d0e-9d55-1c2b3a4d5e6f", []PermissionRow{fullRow("exams", "all")})
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.UpdateRolePermissions(context.Background(), "", "not-a-uuid", []PermissionRow{fullRow("exams", "all")})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestListPermissionsOrdersRowsAndSynthesizesSuperAdmin(t *testing.T) {
	sa := &model.Role{Name: model.SuperAdminRole}
	teacher := &model.Role{Name: "Teacher", Permissions: []model.RolePermission{
		{Module: PermissionSettings, Add: model.AccessNone, View: model.AccessAll, Update: model.AccessNone, Delete: model.AccessNone},
		{Module: "exams", Add: model.AccessOwned, View: model.AccessAll, Update: model.AccessOwned, Delete: model.AccessNone},
	}}
	svc, _, _, _ := newRoleFixture(sa, teacher)

	out, err := svc.ListPermissions(context.Background())
	require.NoError(t, err)
	assert.Len(t, out.Roles, 2)

	rows := out.Permissions[teacher.ID.String()]
	require.Len(t, rows, 2)
	assert.Equal(t, "exams", rows[0].Module, "visibility modules come before users/settings")
	assert.Equal(t, PermissionSettings, rows[1].Module)

	saRows := out.Permissions[sa.ID.String()]
	assert.Len(t, saRows, len(PermissionModules()))
	for _, r := range saRows {
		assert.Equal(t, fullRow(r.Module, "all"), r)
	}
}

func TestCreateRoleRejectsDuplicateAndReservedNames(t *testing.T) {
	svc, repo, audit, _ := newRoleFixture(&model.Role{Name: "Teacher"})
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, "", CreateRoleRequest{Name: "Teacher"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.CreateRole(ctx, "", CreateRoleRequest{Name: "super admin"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.CreateRole(ctx, "", CreateRoleRequest{Name: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	created, err := svc.CreateRole(ctx, "", CreateRoleRequest{Name: " Librarian ", Description: "Books"})
	require.NoError(t, err)
	assert.Equal(t, "Librarian", created.Name)
	assert.Len(t, repo.roles, 2)
	assert.Equal(t, []string{model.ActionCreateRole}, audit.actions())

	for _, k := range modules.Keys() {
		assert.False(t, created.Modules[string(k)], "new roles start with every module hidden: %s", k)
	}
}

func TestUpdateRoleRenameMovesUsers(t *testing.T) {
	role := &model.Role{Name: "Bursar"}
	svc, repo, _, access := newRoleFixture(role)
	repo.userRoles["Bursar"] = 3

	resp, err := svc.UpdateRole(context.Background(), "", role.ID.String(), UpdateRoleRequest{Name: "Accounts"})
	require.NoError(t, err)
	assert.Equal(t, "Accounts", resp.Name)
	assert.Equal(t, int64(3), repo.userRoles["Accounts"])
	assert.Equal(t, []string{"Bursar"}, access.invalidated)
}

func TestUpdateRoleCannotRenameSystemRole(t *testing.T) {
	role := &model.Role{Name: "Teacher", IsSystem: true}
	svc, _, _, _ := newRoleFixture(role)

	_, err := svc.UpdateRole(context.Background(), "", role.ID.String(), UpdateRoleRequest{Name: "Tutor"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdateRole(context.Background(), "", role.ID.String(), UpdateRoleRequest{Name: "Teacher", Description: "Staff"})
	assert.NoError(t, err, "description-only edits are allowed")
}

func TestDeleteRole(t *testing.T) {
	system := &model.Role{Name: "Admin", IsSystem: true}
	used := &model.Role{Name: "Coach"}
	free := &model.Role{Name: "Volunteer"}
	svc, repo, audit, access := newRoleFixture(system, used, free)
	repo.userRoles["Coach"] = 1
	ctx := context.Background()

	assert.ErrorIs(t, svc.DeleteRole(ctx, "", system.ID.String()), ErrForbidden)
	assert.ErrorIs(t, svc.DeleteRole(ctx, "", used.ID.String()), ErrConflict)

	require.NoError(t, svc.DeleteRole(ctx, "", free.ID.String()))
	assert.NotContains(t, repo.roles, free.ID)
	assert.Equal(t, []string{model.ActionDeleteRole}, audit.actions())
	assert.Equal(t, []string{"Volunteer"}, access.invalidated)
}

func TestSeedDefaultRolesIsIdempotent(t *testing.T) {
	svc, repo, _, _ := newRoleFixture()
	ctx := context.Background()

	require.NoError(t, svc.SeedDefaultRoles(ctx))
	seeded := len(repo.roles)
	assert.Equal(t, len(defaultRoles()), seeded)

	teacher, err := repo.FindByName(ctx, "Teacher")
	require.NoError(t, err)
	assert.True(t, teacher.IsSystem)
	var vis map[string]bool
	require.NoError(t, json.Unmarshal(teacher.Modules, &vis))
	assert.True(t, vis["exams"])
	assert.False(t, vis["fees"])

	// edits survive a second seed
	require.NoError(t, repo.UpdateModules(ctx, teacher.ID, []byte(`{"fees":true}`)))
	require.NoError(t, svc.SeedDefaultRoles(ctx))
	assert.Len(t, repo.roles, seeded)
	assert.JSONEq(t, `{"fees":true}`, string(repo.roles[teacher.ID].Modules))
}
