package service

import (
	"context"
	"sync"
	"time"

	"schoolhub/internal/model"
	"schoolhub/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fakeTx struct{ calls int }

func (f *fakeTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []model.AuditLog
}

func (f *fakeAudit) Log(_ context.Context, entry *model.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAudit) List(_ context.Context, action string, _, _ int) ([]model.AuditLog, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AuditLog
	for _, e := range f.entries {
		if action == "" || e.Action == action {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeAccess struct {
	invalidated []string
}

func (f *fakeAccess) Grants(context.Context, string) (*Grants, error) { return &Grants{}, nil }

func (f *fakeAccess) Invalidate(_ context.Context, roleName string) {
	f.invalidated = append(f.invalidated, roleName)
}

type fakeRoleRepo struct {
	roles     map[uuid.UUID]*model.Role
	userRoles map[string]int64
}

func newFakeRoleRepo(roles ...*model.Role) *fakeRoleRepo {
	f := &fakeRoleRepo{roles: map[uuid.UUID]*model.Role{}, userRoles: map[string]int64{}}
	for _, r := range roles {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		f.roles[r.ID] = r
	}
	return f
}

func (f *fakeRoleRepo) Create(_ context.Context, role *model.Role) error {
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	cp := *role
	f.roles[role.ID] = &cp
	return nil
}

func (f *fakeRoleRepo) Update(_ context.Context, role *model.Role) error {
	cp := *role
	f.roles[role.ID] = &cp
	return nil
}

func (f *fakeRoleRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.roles, id)
	return nil
}

func (f *fakeRoleRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Role, error) {
	r, ok := f.roles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRoleRepo) FindByName(_ context.Context, name string) (*model.Role, error) {
	for _, r := range f.roles {
		if r.Name == name {
			cp := *r
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRoleRepo) ListAll(context.Context) ([]model.Role, error) {
	out := make([]model.Role, 0, len(f.roles))
	for _, r := range f.roles {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeRoleRepo) ReplacePermissions(_ context.Context, roleID uuid.UUID, perms []model.RolePermission) error {
	r, ok := f.roles[roleID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.Permissions = append([]model.RolePermission(nil), perms...)
	return nil
}

func (f *fakeRoleRepo) UpdateModules(_ context.Context, roleID uuid.UUID, modules datatypes.JSON) error {
	r, ok := f.roles[roleID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.Modules = modules
	return nil
}

func (f *fakeRoleRepo) CountUsersWithRole(_ context.Context, roleName string) (int64, error) {
	return f.userRoles[roleName], nil
}

func (f *fakeRoleRepo) RenameUsersRole(_ context.Context, from, to string) error {
	f.userRoles[to] = f.userRoles[from]
	delete(f.userRoles, from)
	return nil
}

// memStore is an in-memory repository.Store. Scopes are ignored.
type memStore[T any] struct {
	mu    sync.Mutex
	items map[uuid.UUID]T
	order []uuid.UUID
	id    func(*T) *uuid.UUID
}

func newMemStore[T any](id func(*T) *uuid.UUID) *memStore[T] {
	return &memStore[T]{items: map[uuid.UUID]T{}, id: id}
}

func (s *memStore[T]) Create(_ context.Context, rec *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id(rec)
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	s.items[*id] = *rec
	s.order = append(s.order, *id)
	return nil
}

func (s *memStore[T]) Update(_ context.Context, rec *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := *s.id(rec)
	if _, ok := s.items[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	s.items[id] = *rec
	return nil
}

func (s *memStore[T]) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *memStore[T]) FindByID(_ context.Context, id uuid.UUID) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &rec, nil
}

func (s *memStore[T]) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*T, error) {
	return s.FindByID(ctx, id)
}

func (s *memStore[T]) List(_ context.Context, offset, limit int, _ string, _ ...repository.Scope) ([]T, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []T
	for _, id := range s.order {
		if rec, ok := s.items[id]; ok {
			all = append(all, rec)
		}
	}
	total := int64(len(all))
	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (s *memStore[T]) get(id uuid.UUID) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id]
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
}
