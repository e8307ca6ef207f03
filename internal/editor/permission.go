package editor

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"schoolhub/internal/client"
	"schoolhub/internal/model"
)

// State is where a PermissionEditor is in its lifecycle
type State int

const (
	StateClosed State = iota
	StateOpen
	StateEditing
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateEditing:
		return "editing"
	case StateSaving:
		return "saving"
	}
	return "closed"
}

// PermissionEditor edits one role's permission matrix at a time.
//
//	Closed -> Open -> Editing -> Saving -> Closed
//	                               \-> Editing (error banner, edits kept)
type PermissionEditor struct {
	store  *RoleStore
	logger *zap.Logger

	mu     sync.Mutex
	state  State
	role   client.RoleRef
	perms  []client.Permission
	dirty  bool
	banner *Banner
}

// NewPermissionEditor creates a closed editor backed by store
func NewPermissionEditor(store *RoleStore, logger *zap.Logger) *PermissionEditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionEditor{store: store, logger: logger}
}

// Open starts editing roleID using the store's current snapshot. A role
// without permission rows opens with an empty set.
func (e *PermissionEditor) Open(roleID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateSaving {
		return ErrSaveInProgress
	}

	snap := e.store.Snapshot()
	role, ok := snap.Role(roleID)
	if !ok {
		role = client.RoleRef{ID: roleID}
	}
	if role.Name == model.SuperAdminRole {
		return ErrImmutableRole
	}

	e.role = role
	e.perms = append([]client.Permission(nil), snap.Permissions[roleID]...)
	e.dirty = false
	e.banner = nil
	e.state = StateOpen
	return nil
}

// Close discards any edits
func (e *PermissionEditor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateSaving {
		return
	}
	e.reset()
}

func (e *PermissionEditor) reset() {
	e.state = StateClosed
	e.role = client.RoleRef{}
	e.perms = nil
	e.dirty = false
}

// SetAccess changes one cell of the matrix. level is stored as given and only
// checked on Save. A module without a row gets one with every action "none".
func (e *PermissionEditor) SetAccess(module string, action model.Action, level string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateClosed:
		return ErrNotOpen
	case StateSaving:
		return ErrSaveInProgress
	}
	if !action.Valid() {
		return fmt.Errorf("unknown action %q", action)
	}

	idx := -1
	for i := range e.perms {
		if e.perms[i].Module == module {
			idx = i
			break
		}
	}
	if idx < 0 {
		none := string(model.AccessNone)
		e.perms = append(e.perms, client.Permission{Module: module, Add: none, View: none, Update: none, Delete: none})
		idx = len(e.perms) - 1
	}

	p := &e.perms[idx]
	switch action {
	case model.ActionAdd:
		p.Add = level
	case model.ActionView:
		p.View = level
	case model.ActionUpdate:
		p.Update = level
	case model.ActionDelete:
		p.Delete = level
	}

	e.dirty = true
	e.state = StateEditing
	return nil
}

// SetPermissions replaces the whole working set
func (e *PermissionEditor) SetPermissions(perms []client.Permission) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateClosed:
		return ErrNotOpen
	case StateSaving:
		return ErrSaveInProgress
	}
	e.perms = append([]client.Permission(nil), perms...)
	e.dirty = true
	e.state = StateEditing
	return nil
}

// Save validates the working set and sends it in one request. Validation
// failures never reach the server; they and server errors both land in the
// banner and leave the editor open with edits intact.
func (e *PermissionEditor) Save(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case StateClosed:
		e.mu.Unlock()
		return ErrNotOpen
	case StateSaving:
		e.mu.Unlock()
		return ErrSaveInProgress
	}

	if err := validatePermissions(e.perms); err != nil {
		e.banner = &Banner{Kind: BannerError, Text: err.Error()}
		e.mu.Unlock()
		return err
	}

	roleID := e.role.ID
	perms := append([]client.Permission(nil), e.perms...)
	e.state = StateSaving
	e.banner = nil
	e.mu.Unlock()

	err := e.store.Update(ctx, roleID, perms)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.logger.Warn("permission update failed",
			zap.String("role_id", roleID),
			zap.String("kind", client.KindOf(err).String()),
			zap.Error(err),
		)
		e.state = StateEditing
		e.banner = &Banner{Kind: BannerError, Text: PermissionErrorMessage(err)}
		return err
	}

	e.reset()
	e.banner = &Banner{Kind: BannerSuccess, Text: "Permissions updated successfully"}
	return nil
}

func validatePermissions(perms []client.Permission) error {
	if len(perms) == 0 {
		return &ValidationError{Message: "No permissions to save"}
	}
	for _, p := range perms {
		cells := []struct {
			action model.Action
			value  string
		}{
			{model.ActionAdd, p.Add},
			{model.ActionView, p.View},
			{model.ActionUpdate, p.Update},
			{model.ActionDelete, p.Delete},
		}
		for _, c := range cells {
			if !model.Access(c.value).Valid() {
				return &ValidationError{Message: fmt.Sprintf(
					"Invalid access %q for %s %s. Allowed values are all, owned or none.", c.value, p.Module, c.action)}
			}
		}
	}
	return nil
}

// State returns the current lifecycle state
func (e *PermissionEditor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Role returns the role being edited
func (e *PermissionEditor) Role() client.RoleRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.role
}

// Permissions returns a copy of the working set
func (e *PermissionEditor) Permissions() []client.Permission {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]client.Permission(nil), e.perms...)
}

// Dirty reports whether there are unsaved edits
func (e *PermissionEditor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// IsSaving is true while a request is in flight; bind the save control's
// disabled state to it
func (e *PermissionEditor) IsSaving() bool {
	return e.State() == StateSaving
}

// Banner returns the last banner, nil when there is none
func (e *PermissionEditor) Banner() *Banner {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.banner == nil {
		return nil
	}
	b := *e.banner
	return &b
}

// DismissBanner clears the banner
func (e *PermissionEditor) DismissBanner() {
	e.mu.Lock()
	e.banner = nil
	e.mu.Unlock()
}
