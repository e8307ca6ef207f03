package editor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolhub/internal/client"
	"schoolhub/internal/model"
)

const (
	timeout = time.Second
	tick    = 5 * time.Millisecond
)

type fakeModuleBackend struct {
	mu      sync.Mutex
	roles   []client.RoleModules
	modules []string
	saves   []map[string]bool
	echo    bool
	saveErr error
	block   chan struct{}
}

func (f *fakeModuleBackend) FetchRoleModules(ctx context.Context) (*client.ModulesSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &client.ModulesSnapshot{Roles: f.roles, AvailableModules: f.modules}, nil
}

func (f *fakeModuleBackend) SaveRoleModules(ctx context.Context, roleID string, modules map[string]bool) (map[string]bool, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, modules)
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	if !f.echo {
		return nil, nil
	}
	out := map[string]bool{}
	for k, v := range modules {
		out[k] = v
	}
	return out, nil
}

func (f *fakeModuleBackend) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func newModuleFixture(t *testing.T) (*fakeModuleBackend, *ModuleEditor) {
	backend := &fakeModuleBackend{
		modules: []string{"fees", "exams", "cbt", "library"},
		roles: []client.RoleModules{
			{Role: client.RoleRef{ID: "teacher", Name: "Teacher"}, Modules: map[string]bool{"fees": false, "exams": true}},
			{Role: client.RoleRef{ID: "accountant", Name: "Accountant"}, Modules: map[string]bool{"fees": true}},
			{Role: client.RoleRef{ID: "admin", Name: model.SuperAdminRole}, Modules: map[string]bool{"fees": true, "exams": true, "cbt": true, "library": true}},
		},
		echo: true,
	}
	ed := NewModuleEditor(backend, nil)
	require.NoError(t, ed.Load(context.Background()))
	return backend, ed
}

func TestModuleEditorLoad(t *testing.T) {
	_, ed := newModuleFixture(t)

	assert.Equal(t, "teacher", ed.ActiveRole())
	assert.Len(t, ed.Roles(), 3)
	assert.Equal(t, map[string]bool{"fees": false, "exams": true, "cbt": false, "library": false}, ed.Modules())
	assert.False(t, ed.CanSave())
}

func TestModuleEditorToggleDiff(t *testing.T) {
	_, ed := newModuleFixture(t)

	require.NoError(t, ed.Toggle("fees"))
	assert.Equal(t, map[string]bool{"fees": true}, ed.Pending())
	assert.True(t, ed.Modules()["fees"])

	require.NoError(t, ed.Toggle("fees"))
	assert.Empty(t, ed.Pending())
	assert.False(t, ed.Modules()["fees"])

	require.NoError(t, ed.Toggle("fees"))
	require.NoError(t, ed.Toggle("exams"))
	assert.Equal(t, map[string]bool{"fees": true, "exams": false}, ed.Pending())
}

func TestModuleEditorToggleBackIssuesNoRequest(t *testing.T) {
	backend, ed := newModuleFixture(t)

	require.NoError(t, ed.Toggle("fees"))
	assert.True(t, ed.CanSave())
	require.NoError(t, ed.Toggle("fees"))
	assert.False(t, ed.CanSave())

	require.NoError(t, ed.Save(context.Background()))
	assert.Equal(t, 0, backend.saveCount())
	assert.Nil(t, ed.Banner())
}

func TestModuleEditorSaveSendsFullMap(t *testing.T) {
	backend, ed := newModuleFixture(t)

	require.NoError(t, ed.Toggle("cbt"))
	require.NoError(t, ed.Save(context.Background()))

	require.Equal(t, 1, backend.saveCount())
	assert.Equal(t, map[string]bool{"fees": false, "exams": true, "cbt": true, "library": false}, backend.saves[0])
	assert.Empty(t, ed.Pending())
	assert.True(t, ed.Modules()["cbt"])
	assert.Equal(t, BannerSuccess, ed.Banner().Kind)
}

func TestModuleEditorSaveWithoutEchoUsesMergedMap(t *testing.T) {
	backend, ed := newModuleFixture(t)
	backend.echo = false

	require.NoError(t, ed.Toggle("library"))
	require.NoError(t, ed.Save(context.Background()))

	assert.True(t, ed.Modules()["library"])
	assert.False(t, ed.CanSave())

	// committed now includes library, so toggling it off is a real change
	require.NoError(t, ed.Toggle("library"))
	assert.Equal(t, map[string]bool{"library": false}, ed.Pending())
}

func TestModuleEditorSaveFailureKeepsOptimisticValues(t *testing.T) {
	backend, ed := newModuleFixture(t)
	backend.saveErr = &client.Error{Kind: client.KindForbidden, Status: 403}

	require.NoError(t, ed.Toggle("fees"))
	err := ed.Save(context.Background())

	require.Error(t, err)
	assert.True(t, ed.Modules()["fees"])
	assert.Equal(t, map[string]bool{"fees": true}, ed.Pending())
	assert.True(t, ed.CanSave())
	require.NotNil(t, ed.Banner())
	assert.Equal(t, BannerError, ed.Banner().Kind)
	assert.Equal(t, "You do not have permission to update role modules.", ed.Banner().Text)
}

func TestModuleEditorPendingIsPerRole(t *testing.T) {
	backend, ed := newModuleFixture(t)

	require.NoError(t, ed.Toggle("fees"))
	require.NoError(t, ed.SelectRole("accountant"))

	assert.Empty(t, ed.Pending())
	assert.False(t, ed.CanSave())
	assert.True(t, ed.Modules()["fees"])

	require.NoError(t, ed.Toggle("exams"))
	require.NoError(t, ed.Save(context.Background()))
	require.Equal(t, 1, backend.saveCount())
	assert.Equal(t, map[string]bool{"fees": true, "exams": true, "cbt": false, "library": false}, backend.saves[0])

	require.NoError(t, ed.SelectRole("teacher"))
	assert.Equal(t, map[string]bool{"fees": true}, ed.Pending())
	assert.True(t, ed.HasPending("teacher"))
	assert.False(t, ed.HasPending("accountant"))

	assert.ErrorIs(t, ed.SelectRole("ghost"), ErrUnknownRole)
}

func TestModuleEditorRejectsUnknownAndImmutable(t *testing.T) {
	_, ed := newModuleFixture(t)

	assert.ErrorIs(t, ed.Toggle("spaceships"), ErrUnknownModule)

	require.NoError(t, ed.SelectRole("admin"))
	assert.ErrorIs(t, ed.Toggle("fees"), ErrImmutableRole)
}

func TestModuleEditorDoubleSubmit(t *testing.T) {
	backend, ed := newModuleFixture(t)
	backend.block = make(chan struct{})

	require.NoError(t, ed.Toggle("fees"))

	done := make(chan error, 1)
	go func() { done <- ed.Save(context.Background()) }()

	require.Eventually(t, ed.IsSaving, timeout, tick)
	assert.False(t, ed.CanSave())
	assert.ErrorIs(t, ed.Save(context.Background()), ErrSaveInProgress)
	assert.ErrorIs(t, ed.Toggle("exams"), ErrSaveInProgress)

	close(backend.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, backend.saveCount())
}

func TestModuleErrorMessage(t *testing.T) {
	assert.Equal(t, "Network error. Please check your connection and try again.",
		ModuleErrorMessage(&client.Error{Kind: client.KindNetwork}))
	assert.Equal(t, "Failed to update modules. Please try again.",
		ModuleErrorMessage(&client.Error{Kind: client.KindUnknown}))
}
