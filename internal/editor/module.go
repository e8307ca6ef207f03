package editor

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"schoolhub/internal/client"
	"schoolhub/internal/model"
)

// ModuleBackend loads and saves role module maps. *client.Client satisfies it.
type ModuleBackend interface {
	FetchRoleModules(ctx context.Context) (*client.ModulesSnapshot, error)
	SaveRoleModules(ctx context.Context, roleID string, modules map[string]bool) (map[string]bool, error)
}

// ModuleEditor drives the module toggle tabs. Toggles are applied to the
// display immediately and tracked as a minimal diff against the last committed
// map, one diff per role, so switching tabs never mixes roles' edits.
//
// After a successful save the committed map is taken from the server's echo,
// or from the locally merged map when the server does not echo one. This
// differs from PermissionEditor, which re-fetches after writing.
type ModuleEditor struct {
	backend ModuleBackend
	logger  *zap.Logger

	mu        sync.Mutex
	roles     []client.RoleRef
	available []string
	committed map[string]map[string]bool // role id -> module -> enabled
	pending   map[string]map[string]bool // role id -> changed modules only
	active    string
	saving    bool
	banner    *Banner
}

// NewModuleEditor creates an editor; call Load before use
func NewModuleEditor(backend ModuleBackend, logger *zap.Logger) *ModuleEditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModuleEditor{
		backend:   backend,
		logger:    logger,
		committed: map[string]map[string]bool{},
		pending:   map[string]map[string]bool{},
	}
}

// Load fetches every role's module map. Pending edits are dropped. The first
// role becomes active unless the active role is still present. Errors are
// returned to the caller rather than shown as a banner.
func (e *ModuleEditor) Load(ctx context.Context) error {
	snap, err := e.backend.FetchRoleModules(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.available = append([]string(nil), snap.AvailableModules...)
	e.roles = make([]client.RoleRef, 0, len(snap.Roles))
	e.committed = make(map[string]map[string]bool, len(snap.Roles))
	e.pending = map[string]map[string]bool{}

	stillActive := false
	for _, rm := range snap.Roles {
		e.roles = append(e.roles, rm.Role)
		e.committed[rm.Role.ID] = e.normalize(rm.Modules)
		if rm.Role.ID == e.active {
			stillActive = true
		}
	}
	if !stillActive {
		e.active = ""
		if len(e.roles) > 0 {
			e.active = e.roles[0].ID
		}
	}
	return nil
}

// normalize restricts m to the available modules, absent ones false
func (e *ModuleEditor) normalize(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(e.available))
	for _, key := range e.available {
		out[key] = m[key]
	}
	return out
}

// Roles lists the tabs in server order
func (e *ModuleEditor) Roles() []client.RoleRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]client.RoleRef(nil), e.roles...)
}

// AvailableModules lists the switches in server order
func (e *ModuleEditor) AvailableModules() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.available...)
}

// ActiveRole returns the id of the selected tab
func (e *ModuleEditor) ActiveRole() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// SelectRole switches tabs. The previous role's pending edits are kept and
// come back when its tab is selected again.
func (e *ModuleEditor) SelectRole(roleID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.committed[roleID]; !ok {
		return ErrUnknownRole
	}
	e.active = roleID
	return nil
}

// Modules returns the displayed values for the active role
func (e *ModuleEditor) Modules() map[string]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]bool, len(e.available))
	for _, key := range e.available {
		out[key] = e.displayed(e.active, key)
	}
	return out
}

func (e *ModuleEditor) displayed(roleID, module string) bool {
	if v, ok := e.pending[roleID][module]; ok {
		return v
	}
	return e.committed[roleID][module]
}

// Toggle flips module for the active role
func (e *ModuleEditor) Toggle(module string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.saving {
		return ErrSaveInProgress
	}
	committed, ok := e.committed[e.active]
	if !ok {
		return ErrUnknownRole
	}
	if e.activeRoleName() == model.SuperAdminRole {
		return ErrImmutableRole
	}
	if _, ok := committed[module]; !ok {
		return ErrUnknownModule
	}

	next := !e.displayed(e.active, module)
	diff := e.pending[e.active]
	if next == committed[module] {
		delete(diff, module)
		if len(diff) == 0 {
			delete(e.pending, e.active)
		}
		return nil
	}
	if diff == nil {
		diff = map[string]bool{}
		e.pending[e.active] = diff
	}
	diff[module] = next
	return nil
}

func (e *ModuleEditor) activeRoleName() string {
	for _, r := range e.roles {
		if r.ID == e.active {
			return r.Name
		}
	}
	return ""
}

// Pending returns the active role's diff
func (e *ModuleEditor) Pending() map[string]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]bool, len(e.pending[e.active]))
	for k, v := range e.pending[e.active] {
		out[k] = v
	}
	return out
}

// HasPending reports whether roleID has unsaved edits
func (e *ModuleEditor) HasPending(roleID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending[roleID]) > 0
}

// CanSave decides whether the save control is shown
func (e *ModuleEditor) CanSave() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.saving && len(e.pending[e.active]) > 0
}

// IsSaving is true while a save request is in flight
func (e *ModuleEditor) IsSaving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saving
}

// Save sends the active role's full module map (committed values with the
// diff applied). Nothing is sent when the diff is empty. On failure the
// displayed values stay as edited.
func (e *ModuleEditor) Save(ctx context.Context) error {
	e.mu.Lock()
	if e.saving {
		e.mu.Unlock()
		return ErrSaveInProgress
	}
	roleID := e.active
	diff := e.pending[roleID]
	if len(diff) == 0 {
		e.mu.Unlock()
		return nil
	}

	merged := make(map[string]bool, len(e.committed[roleID]))
	for k, v := range e.committed[roleID] {
		merged[k] = v
	}
	for k, v := range diff {
		merged[k] = v
	}
	e.saving = true
	e.banner = nil
	e.mu.Unlock()

	saved, err := e.backend.SaveRoleModules(ctx, roleID, merged)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saving = false
	if err != nil {
		e.logger.Warn("module update failed",
			zap.String("role_id", roleID),
			zap.String("kind", client.KindOf(err).String()),
			zap.Error(err),
		)
		e.banner = &Banner{Kind: BannerError, Text: ModuleErrorMessage(err)}
		return err
	}

	if saved != nil {
		e.committed[roleID] = e.normalize(saved)
	} else {
		e.committed[roleID] = merged
	}
	delete(e.pending, roleID)
	e.banner = &Banner{Kind: BannerSuccess, Text: "Module settings saved successfully"}
	return nil
}

// Banner returns the last banner, nil when there is none
func (e *ModuleEditor) Banner() *Banner {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.banner == nil {
		return nil
	}
	b := *e.banner
	return &b
}

// DismissBanner clears the banner
func (e *ModuleEditor) DismissBanner() {
	e.mu.Lock()
	e.banner = nil
	e.mu.Unlock()
}
