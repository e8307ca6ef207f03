package service

import (
	"context"
	"encoding/json"
	"testing"

	"schoolhub/internal/cache"
	"schoolhub/internal/model"
	"schoolhub/internal/modules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUpdateRoleModulesStoresFullMap(t *testing.T) {
	role := &model.Role{Name: "Teacher", Modules: []byte(`{"exams":true,"cbt":true}`)}
	repo := newFakeRoleRepo(role)
	audit := &fakeAudit{}
	access := &fakeAccess{}
	svc := NewModuleService(repo, audit, &fakeTx{}, access, zap.NewNop())

	resp, err := svc.UpdateRoleModules(context.Background(), "", role.ID.String(), UpdateRoleModulesRequest{
		Modules: map[string]bool{"exams": true, "fees": true},
	})
	require.NoError(t, err)

	assert.Len(t, resp.Modules, len(modules.Keys()))
	assert.True(t, resp.Modules["fees"])
	assert.False(t, resp.Modules["cbt"], "keys missing from the request are stored as false")

	var stored map[string]bool
	require.NoError(t, json.Unmarshal(repo.roles[role.ID].Modules, &stored))
	assert.Equal(t, resp.Modules, stored)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, model.ActionUpdateRoleModules, audit.entries[0].Action)
	assert.JSONEq(t, `{"changed":{"cbt":false,"fees":true}}`, audit.entries[0].Details)
	assert.Equal(t, []string{"Teacher"}, access.invalidated)
}

func TestUpdateRoleModulesRejects(t *testing.T) {
	sa := &model.Role{Name: model.SuperAdminRole}
	teacher := &model.Role{Name: "Teacher"}
	repo := newFakeRoleRepo(sa, teacher)
	svc := NewModuleService(repo, &fakeAudit{}, &fakeTx{}, &fakeAccess{}, zap.NewNop())
	ctx := context.Background()

	_, err := svc.UpdateRoleModules(ctx, "", sa.ID.String(), UpdateRoleModulesRequest{Modules: map[string]bool{"fees": false}})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdateRoleModules(ctx, "", teacher.ID.String(), UpdateRoleModulesRequest{Modules: map[string]bool{"casino": true}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdateRoleModules(ctx, "", "2d3c9f4e-1111-4a4a-8b8b-000000000000", UpdateRoleModulesRequest{Modules: map[string]bool{}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRoleModulesNormalizesStoredMaps(t *testing.T) {
	broken := &model.Role{Name: "Legacy", Modules: []byte(`not json`)}
	partial := &model.Role{Name: "Teacher", Modules: []byte(`{"exams":true,"casino":true,"cbt":"yes"}`)}
	sa := &model.Role{Name: model.SuperAdminRole}
	svc := NewModuleService(newFakeRoleRepo(broken, partial, sa), &fakeAudit{}, &fakeTx{}, &fakeAccess{}, zap.NewNop())

	list, available, err := svc.ListRoleModules(context.Background())
	require.NoError(t, err)
	assert.Equal(t, modules.KeyStrings(), available)

	byName := map[string]map[string]bool{}
	for _, rm := range list {
		assert.Len(t, rm.Modules, len(available))
		byName[rm.Role.Name] = rm.Modules
	}
	assert.Equal(t, modules.Default().Strings(), byName["Legacy"])
	assert.True(t, byName["Teacher"]["exams"])
	assert.False(t, byName["Teacher"]["cbt"], "non-boolean values read as false")
	assert.NotContains(t, byName["Teacher"], "casino")
	assert.Equal(t, modules.All().Strings(), byName[model.SuperAdminRole])
}

type countingRoleRepo struct {
	*fakeRoleRepo
	lookups int
}

func (c *countingRoleRepo) FindByName(ctx context.Context, name string) (*model.Role, error) {
	c.lookups++
	return c.fakeRoleRepo.FindByName(ctx, name)
}

func TestAccessServiceCachesGrants(t *testing.T) {
	teacher := &model.Role{Name: "Teacher", Modules: []byte(`{"exams":true}`), Permissions: []model.RolePermission{
		{Module: "exams", Add: model.AccessOwned, View: model.AccessAll, Update: model.AccessOwned, Delete: model.AccessNone},
	}}
	repo := &countingRoleRepo{fakeRoleRepo: newFakeRoleRepo(teacher)}
	svc := NewAccessService(repo, cache.NewMemory(), 0, zap.NewNop())
	ctx := context.Background()

	g, err := svc.Grants(ctx, "Teacher")
	require.NoError(t, err)
	assert.True(t, g.Modules[modules.Exams])
	assert.False(t, g.Modules[modules.Fees])
	assert.Equal(t, model.AccessOwned, g.Access("exams", model.ActionAdd))
	assert.True(t, g.Can("exams", model.ActionView))
	assert.False(t, g.Can("exams", model.ActionDelete))
	assert.False(t, g.Can("fees", model.ActionView), "modules without a row resolve to none")

	_, err = svc.Grants(ctx, "Teacher")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lookups)

	svc.Invalidate(ctx, "Teacher")
	_, err = svc.Grants(ctx, "Teacher")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.lookups)

	svc.Invalidate(ctx, "")
	_, err = svc.Grants(ctx, "Teacher")
	require.NoError(t, err)
	assert.Equal(t, 3, repo.lookups)

	_, err = svc.Grants(ctx, "Ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSuperAdminGrantsEverything(t *testing.T) {
	repo := newFakeRoleRepo(&model.Role{Name: model.SuperAdminRole})
	svc := NewAccessService(repo, cache.NewMemory(), 0, zap.NewNop())

	g, err := svc.Grants(context.Background(), model.SuperAdminRole)
	require.NoError(t, err)
	assert.True(t, g.SuperAdmin)
	assert.Equal(t, modules.All(), g.Modules)
	assert.Equal(t, model.AccessAll, g.Access(PermissionSettings, model.ActionDelete))
}
