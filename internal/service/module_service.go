package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"schoolhub/internal/model"
	"schoolhub/internal/modules"
	"schoolhub/internal/repository"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RoleModulesResponse is one tab of the module toggle screen
type RoleModulesResponse struct {
	Role    RoleRef         `json:"role"`
	Modules map[string]bool `json:"modules"`
}

type UpdateRoleModulesRequest struct {
	Modules map[string]bool `json:"modules" binding:"required"`
}

type ModuleService interface {
	// ListRoleModules returns every role's resolved module map and the
	// available module keys in declared order
	ListRoleModules(ctx context.Context) ([]RoleModulesResponse, []string, error)
	UpdateRoleModules(ctx context.Context, userID, roleID string, req UpdateRoleModulesRequest) (*RoleModulesResponse, error)
}

type moduleService struct {
	roleRepo  repository.RoleRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	access    AccessService
	logger    *zap.Logger
}

func NewModuleService(
	roleRepo repository.RoleRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	access AccessService,
	logger *zap.Logger,
) ModuleService {
	return &moduleService{
		roleRepo:  roleRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		access:    access,
		logger:    logger,
	}
}

func (s *moduleService) ListRoleModules(ctx context.Context) ([]RoleModulesResponse, []string, error) {
	roles, err := s.roleRepo.ListAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleModulesResponse, 0, len(roles))
	for i := range roles {
		r := &roles[i]
		res = append(res, RoleModulesResponse{
			Role:    RoleRef{ID: r.ID.String(), Name: r.Name},
			Modules: VisibilityFor(r).Strings(),
		})
	}
	return res, modules.KeyStrings(), nil
}

// UpdateRoleModules stores a full module map. Keys missing from the request
// are stored as false; unknown keys are rejected.
func (s *moduleService) UpdateRoleModules(ctx context.Context, userID, roleID string, req UpdateRoleModulesRequest) (*RoleModulesResponse, error) {
	id, err := parseID("role", roleID)
	if err != nil {
		return nil, err
	}
	role, err := s.roleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("role", err)
	}
	if role.IsSuperAdmin() {
		return nil, fmt.Errorf("modules of '%s' cannot be modified: %w", role.Name, ErrForbidden)
	}

	for key := range req.Modules {
		if !modules.Key(key).Valid() {
			return nil, invalid("unknown module '%s'", key)
		}
	}

	before := modules.Parse([]byte(role.Modules))
	after := modules.Parse(req.Modules)
	raw, err := json.Marshal(after.Strings())
	if err != nil {
		return nil, fmt.Errorf("failed to encode modules: %w", err)
	}

	changed := make(map[string]bool)
	for _, k := range modules.Keys() {
		if before[k] != after[k] {
			changed[string(k)] = after[k]
		}
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.roleRepo.UpdateModules(txCtx, role.ID, datatypes.JSON(raw)); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return lookupErr("role", err)
			}
			return fmt.Errorf("failed to update modules: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionUpdateRoleModules, role.ID.String(), role.Name,
			map[string]interface{}{"changed": changed})
	})
	if err != nil {
		return nil, err
	}

	s.access.Invalidate(ctx, role.Name)
	s.logger.Info("role modules updated",
		zap.String("role", role.Name),
		zap.Int("changed", len(changed)),
		zap.String("by", userID),
	)

	return &RoleModulesResponse{
		Role:    RoleRef{ID: role.ID.String(), Name: role.Name},
		Modules: after.Strings(),
	}, nil
}
