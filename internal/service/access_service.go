package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"schoolhub/internal/cache"
	"schoolhub/internal/model"
	"schoolhub/internal/modules"
	"schoolhub/internal/repository"

	"go.uber.org/zap"
)

// Grants is what a role may see and do, resolved once and cached
type Grants struct {
	Role        string                                   `json:"role"`
	SuperAdmin  bool                                     `json:"super_admin"`
	Modules     modules.Visibility                       `json:"modules"`
	Permissions map[string]map[model.Action]model.Access `json:"permissions"`
}

// Access returns the role's scope for action on module. Modules without a
// row resolve to none; Super Admin resolves to all.
func (g *Grants) Access(module string, action model.Action) model.Access {
	if g.SuperAdmin {
		return model.AccessAll
	}
	if lvl, ok := g.Permissions[module][action]; ok {
		return lvl
	}
	return model.AccessNone
}

// Can reports whether action on module is allowed at any scope
func (g *Grants) Can(module string, action model.Action) bool {
	return g.Access(module, action) != model.AccessNone
}

// AccessService resolves and caches role grants for the auth middleware
type AccessService interface {
	Grants(ctx context.Context, roleName string) (*Grants, error)
	Invalidate(ctx context.Context, roleName string)
}

const grantsKeyPrefix = "role_grants:"

type accessService struct {
	roleRepo repository.RoleRepository
	store    cache.Store
	ttl      time.Duration
	logger   *zap.Logger
}

// NewAccessService creates an AccessService; ttl <= 0 means 5 minutes
func NewAccessService(roleRepo repository.RoleRepository, store cache.Store, ttl time.Duration, logger *zap.Logger) AccessService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &accessService{roleRepo: roleRepo, store: store, ttl: ttl, logger: logger}
}

func (s *accessService) Grants(ctx context.Context, roleName string) (*Grants, error) {
	key := grantsKeyPrefix + roleName
	if raw, err := s.store.Get(ctx, key); err == nil {
		var g Grants
		if jsonErr := json.Unmarshal(raw, &g); jsonErr == nil {
			return &g, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("grants cache read failed", zap.String("role", roleName), zap.Error(err))
	}

	role, err := s.roleRepo.FindByName(ctx, roleName)
	if err != nil {
		return nil, lookupErr("role", err)
	}
	g := grantsFor(role)

	if raw, err := json.Marshal(g); err == nil {
		if setErr := s.store.Set(ctx, key, raw, s.ttl); setErr != nil {
			s.logger.Warn("grants cache write failed", zap.String("role", roleName), zap.Error(setErr))
		}
	}
	return g, nil
}

// Invalidate drops one role's cached grants, or every role's when roleName is empty
func (s *accessService) Invalidate(ctx context.Context, roleName string) {
	var err error
	if roleName == "" {
		err = s.store.DeletePrefix(ctx, grantsKeyPrefix)
	} else {
		err = s.store.Delete(ctx, grantsKeyPrefix+roleName)
	}
	if err != nil {
		s.logger.Warn("grants cache invalidation failed", zap.String("role", roleName), zap.Error(err))
	}
}

func grantsFor(role *model.Role) *Grants {
	g := &Grants{
		Role:        role.Name,
		SuperAdmin:  role.IsSuperAdmin(),
		Permissions: make(map[string]map[model.Action]model.Access, len(role.Permissions)),
	}
	if g.SuperAdmin {
		g.Modules = modules.All()
	} else {
		g.Modules = modules.Parse([]byte(role.Modules))
	}
	for _, p := range role.Permissions {
		row := make(map[model.Action]model.Access, len(model.Actions))
		for _, a := range model.Actions {
			row[a] = p.Level(a)
		}
		g.Permissions[p.Module] = row
	}
	return g
}

// VisibilityFor resolves a role's module visibility straight from the role row
func VisibilityFor(role *model.Role) modules.Visibility {
	return grantsFor(role).Modules
}
