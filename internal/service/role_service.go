package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"schoolhub/internal/model"
	"schoolhub/internal/modules"
	"schoolhub/internal/repository"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Permission modules beyond the visibility keys. They guard the user and
// settings screens, which are never hidden by the module toggles.
const (
	PermissionUsers    = "users"
	PermissionSettings = "settings"
)

// PermissionModules lists every module a permission row may name, in matrix order
func PermissionModules() []string {
	return append(modules.KeyStrings(), PermissionUsers, PermissionSettings)
}

var permissionModuleIndex = func() map[string]int {
	m := make(map[string]int)
	for i, k := range PermissionModules() {
		m[k] = i
	}
	return m
}()

// --- DTOs ---

type CreateRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// PermissionRow is one module row of the matrix as sent over the wire.
// Values stay strings so out-of-range input reaches validation.
type PermissionRow struct {
	Module string `json:"module"`
	Add    string `json:"add"`
	View   string `json:"view"`
	Update string `json:"update"`
	Delete string `json:"delete"`
}

type RoleRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RoleResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	IsSystem    bool            `json:"is_system"`
	Permissions []PermissionRow `json:"permissions"`
	Modules     map[string]bool `json:"modules"`
	CreatedAt   string          `json:"created_at"`
}

// PermissionsOverview feeds the permission matrix screen
type PermissionsOverview struct {
	Roles       []RoleRef                  `json:"roles"`
	Permissions map[string][]PermissionRow `json:"permissions"` // role id -> rows
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, id string) (*RoleResponse, error)
	CreateRole(ctx context.Context, userID string, req CreateRoleRequest) (*RoleResponse, error)
	UpdateRole(ctx context.Context, userID, id string, req UpdateRoleRequest) (*RoleResponse, error)
	DeleteRole(ctx context.Context, userID, id string) error
	ListPermissions(ctx context.Context) (*PermissionsOverview, error)
	UpdateRolePermissions(ctx context.Context, userID, roleID string, rows []PermissionRow) error
	SeedDefaultRoles(ctx context.Context) error
}

type roleService struct {
	roleRepo  repository.RoleRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	access    AccessService
	logger    *zap.Logger
}

func NewRoleService(
	roleRepo repository.RoleRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	access AccessService,
	logger *zap.Logger,
) RoleService {
	return &roleService{
		roleRepo:  roleRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		access:    access,
		logger:    logger,
	}
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.roleRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for i := range roles {
		res = append(res, toRoleResponse(&roles[i]))
	}
	return res, nil
}

func (s *roleService) GetRole(ctx context.Context, id string) (*RoleResponse, error) {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toRoleResponse(role)
	return &resp, nil
}

func (s *roleService) findRole(ctx context.Context, id string) (*model.Role, error) {
	roleID, err := parseID("role", id)
	if err != nil {
		return nil, err
	}
	role, err := s.roleRepo.FindByID(ctx, roleID)
	if err != nil {
		return nil, lookupErr("role", err)
	}
	return role, nil
}

func (s *roleService) CreateRole(ctx context.Context, userID string, req CreateRoleRequest) (*RoleResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("role name is required")
	}
	if err := s.ensureNameFree(ctx, name); err != nil {
		return nil, err
	}

	defaults, _ := json.Marshal(modules.Default().Strings())
	role := model.Role{
		Name:        name,
		Description: req.Description,
		Modules:     datatypes.JSON(defaults),
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.roleRepo.Create(txCtx, &role); err != nil {
			return fmt.Errorf("failed to create role: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionCreateRole, role.ID.String(), role.Name,
			map[string]interface{}{"description": role.Description})
	})
	if err != nil {
		return nil, err
	}

	resp := toRoleResponse(&role)
	return &resp, nil
}

func (s *roleService) ensureNameFree(ctx context.Context, name string) error {
	if strings.EqualFold(name, model.SuperAdminRole) {
		return fmt.Errorf("role name '%s' is reserved: %w", name, ErrConflict)
	}
	_, err := s.roleRepo.FindByName(ctx, name)
	if err == nil {
		return fmt.Errorf("role '%s' already exists: %w", name, ErrConflict)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check role name: %w", err)
	}
	return nil
}

func (s *roleService) UpdateRole(ctx context.Context, userID, id string, req UpdateRoleRequest) (*RoleResponse, error) {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("role name is required")
	}
	oldName := role.Name
	renamed := name != oldName
	if renamed {
		if role.IsSystem {
			return nil, fmt.Errorf("cannot rename system role '%s': %w", oldName, ErrForbidden)
		}
		if err := s.ensureNameFree(ctx, name); err != nil {
			return nil, err
		}
	}

	role.Name = name
	role.Description = req.Description

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.roleRepo.Update(txCtx, role); err != nil {
			return fmt.Errorf("failed to update role: %w", err)
		}
		if renamed {
			if err := s.roleRepo.RenameUsersRole(txCtx, oldName, name); err != nil {
				return fmt.Errorf("failed to move users to renamed role: %w", err)
			}
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionUpdateRole, role.ID.String(), role.Name,
			map[string]interface{}{"old_name": oldName, "description": role.Description})
	})
	if err != nil {
		return nil, err
	}

	if renamed {
		s.access.Invalidate(ctx, oldName)
	}
	resp := toRoleResponse(role)
	return &resp, nil
}

func (s *roleService) DeleteRole(ctx context.Context, userID, id string) error {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return fmt.Errorf("cannot delete system role '%s': %w", role.Name, ErrForbidden)
	}

	inUse, err := s.roleRepo.CountUsersWithRole(ctx, role.Name)
	if err != nil {
		return fmt.Errorf("failed to count role users: %w", err)
	}
	if inUse > 0 {
		return fmt.Errorf("role '%s' is assigned to %d users: %w", role.Name, inUse, ErrConflict)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.roleRepo.Delete(txCtx, role.ID); err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionDeleteRole, role.ID.String(), role.Name, nil)
	})
	if err != nil {
		return err
	}

	s.access.Invalidate(ctx, role.Name)
	return nil
}

func (s *roleService) ListPermissions(ctx context.Context) (*PermissionsOverview, error) {
	roles, err := s.roleRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	out := &PermissionsOverview{
		Roles:       make([]RoleRef, 0, len(roles)),
		Permissions: make(map[string][]PermissionRow, len(roles)),
	}
	for i := range roles {
		r := &roles[i]
		out.Roles = append(out.Roles, RoleRef{ID: r.ID.String(), Name: r.Name})
		out.Permissions[r.ID.String()] = permissionRows(r)
	}
	return out, nil
}

// UpdateRolePermissions replaces a role's whole matrix with rows
func (s *roleService) UpdateRolePermissions(ctx context.Context, userID, roleID string, rows []PermissionRow) error {
	role, err := s.findRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSuperAdmin() {
		return fmt.Errorf("permissions of '%s' cannot be modified: %w", role.Name, ErrForbidden)
	}

	perms, err := validatePermissionRows(rows)
	if err != nil {
		return err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.roleRepo.ReplacePermissions(txCtx, role.ID, perms); err != nil {
			return fmt.Errorf("failed to update permissions: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionUpdateRolePermissions, role.ID.String(), role.Name,
			map[string]interface{}{"permissions": rows})
	})
	if err != nil {
		return err
	}

	s.access.Invalidate(ctx, role.Name)
	s.logger.Info("role permissions updated",
		zap.String("role", role.Name),
		zap.Int("rows", len(perms)),
		zap.String("by", userID),
	)
	return nil
}

func validatePermissionRows(rows []PermissionRow) ([]model.RolePermission, error) {
	if len(rows) == 0 {
		return nil, invalid("no permissions to save")
	}

	seen := make(map[string]bool, len(rows))
	perms := make([]model.RolePermission, 0, len(rows))
	for _, row := range rows {
		if _, ok := permissionModuleIndex[row.Module]; !ok {
			return nil, invalid("unknown permission module '%s'", row.Module)
		}
		if seen[row.Module] {
			return nil, invalid("duplicate permission module '%s'", row.Module)
		}
		seen[row.Module] = true

		p := model.RolePermission{
			Module: row.Module,
			Add:    model.Access(row.Add),
			View:   model.Access(row.View),
			Update: model.Access(row.Update),
			Delete: model.Access(row.Delete),
		}
		for _, a := range model.Actions {
			if !p.Level(a).Valid() {
				return nil, invalid("invalid access '%s' for %s.%s: must be all, owned or none", p.Level(a), row.Module, a)
			}
		}
		perms = append(perms, p)
	}
	return perms, nil
}

// SeedDefaultRoles creates the built-in roles that do not exist yet. Existing
// roles are left alone so edits made through the settings screens survive.
func (s *roleService) SeedDefaultRoles(ctx context.Context) error {
	for _, def := range defaultRoles() {
		_, err := s.roleRepo.FindByName(ctx, def.name)
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up role '%s': %w", def.name, err)
		}

		vis := modules.Default()
		for _, k := range def.modules {
			vis[k] = true
		}
		raw, _ := json.Marshal(vis.Strings())

		role := model.Role{
			Name:        def.name,
			Description: def.description,
			IsSystem:    true,
			Modules:     datatypes.JSON(raw),
		}
		err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			if err := s.roleRepo.Create(txCtx, &role); err != nil {
				return err
			}
			if len(def.permissions) == 0 {
				return nil
			}
			return s.roleRepo.ReplacePermissions(txCtx, role.ID, def.permissions)
		})
		if err != nil {
			return fmt.Errorf("failed to seed role '%s': %w", def.name, err)
		}
		s.logger.Info("seeded role", zap.String("role", def.name))
	}
	return nil
}

type roleDefinition struct {
	name        string
	description string
	modules     []modules.Key
	permissions []model.RolePermission
}

func row(module string, add, view, update, del model.Access) model.RolePermission {
	return model.RolePermission{Module: module, Add: add, View: view, Update: update, Delete: del}
}

func defaultRoles() []roleDefinition {
	const (
		all   = model.AccessAll
		owned = model.AccessOwned
		none  = model.AccessNone
	)

	adminPerms := make([]model.RolePermission, 0, len(PermissionModules()))
	for _, m := range PermissionModules() {
		adminPerms = append(adminPerms, row(m, all, all, all, all))
	}

	return []roleDefinition{
		{name: model.SuperAdminRole, description: "Full access to everything; cannot be edited"},
		{
			name:        "Admin",
			description: "School administration",
			modules:     modules.Keys(),
			permissions: adminPerms,
		},
		{
			name:        "Teacher",
			description: "Teaching staff",
			modules: []modules.Key{modules.Students, modules.Classes, modules.Subjects, modules.Exams,
				modules.Timetable, modules.Attendance, modules.Messaging, modules.Groups,
				modules.Announcements, modules.CBT},
			permissions: []model.RolePermission{
				row(string(modules.Students), none, all, none, none),
				row(string(modules.Exams), owned, all, owned, owned),
				row(string(modules.CBT), owned, all, owned, owned),
				row(string(modules.Attendance), all, all, owned, none),
				row(string(modules.Groups), owned, owned, owned, owned),
			},
		},
		{
			name:        "Accountant",
			description: "Fees and finance",
			modules:     []modules.Key{modules.Students, modules.Fees, modules.Reports, modules.Groups},
			permissions: []model.RolePermission{
				row(string(modules.Students), none, all, none, none),
				row(string(modules.Fees), all, all, all, none),
				row(string(modules.Reports), none, all, none, none),
				row(string(modules.Groups), owned, owned, owned, owned),
			},
		},
		{
			name:        "HR",
			description: "Recruitment and staff records",
			modules:     []modules.Key{modules.Teachers, modules.Recruitment, modules.Groups},
			permissions: []model.RolePermission{
				row(string(modules.Teachers), all, all, all, none),
				row(string(modules.Recruitment), all, all, all, all),
				row(string(modules.Groups), owned, owned, owned, owned),
			},
		},
		{
			name:        "Parent",
			description: "Parent portal access",
			modules:     []modules.Key{modules.ParentPortal, modules.Announcements, modules.Messaging},
			permissions: []model.RolePermission{
				row(string(modules.ParentPortal), none, owned, none, none),
			},
		},
		{
			name:        "Student",
			description: "Student portal access",
			modules:     []modules.Key{modules.StudentPortal, modules.Timetable, modules.Announcements, modules.CBT},
			permissions: []model.RolePermission{
				row(string(modules.StudentPortal), none, owned, none, none),
				row(string(modules.CBT), none, owned, none, none),
			},
		},
	}
}

// --- Helpers ---

// permissionRows orders a role's rows in matrix order; Super Admin gets a
// synthesized all-access row for every module
func permissionRows(r *model.Role) []PermissionRow {
	if r.IsSuperAdmin() {
		rows := make([]PermissionRow, 0, len(permissionModuleIndex))
		for _, m := range PermissionModules() {
			rows = append(rows, PermissionRow{Module: m, Add: "all", View: "all", Update: "all", Delete: "all"})
		}
		return rows
	}

	rows := make([]PermissionRow, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		rows = append(rows, PermissionRow{
			Module: p.Module,
			Add:    string(p.Add),
			View:   string(p.View),
			Update: string(p.Update),
			Delete: string(p.Delete),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return moduleRank(rows[i].Module) < moduleRank(rows[j].Module)
	})
	return rows
}

func moduleRank(m string) int {
	if i, ok := permissionModuleIndex[m]; ok {
		return i
	}
	return len(permissionModuleIndex)
}

func toRoleResponse(r *model.Role) RoleResponse {
	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		Permissions: permissionRows(r),
		Modules:     VisibilityFor(r).Strings(),
		CreatedAt:   r.CreatedAt.Format(timeLayout),
	}
}
