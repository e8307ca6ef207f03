// Package editor holds the state machines behind the role settings screens:
// the permission matrix editor, the module toggle editor and the role store
// they share.
package editor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"schoolhub/internal/client"
)

// PermissionBackend is the remote side of the role store. *client.Client
// satisfies it.
type PermissionBackend interface {
	FetchPermissions(ctx context.Context) (*client.PermissionsSnapshot, error)
	UpdatePermissions(ctx context.Context, roleID string, perms []client.Permission) error
}

// Snapshot is the role store's view of the server at LoadedAt
type Snapshot struct {
	Roles       []client.RoleRef
	Permissions map[string][]client.Permission
	LoadedAt    time.Time
}

// Role looks up a role by id
func (s Snapshot) Role(roleID string) (client.RoleRef, bool) {
	for _, r := range s.Roles {
		if r.ID == roleID {
			return r, true
		}
	}
	return client.RoleRef{}, false
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{
		Roles:       append([]client.RoleRef(nil), s.Roles...),
		Permissions: make(map[string][]client.Permission, len(s.Permissions)),
		LoadedAt:    s.LoadedAt,
	}
	for id, rows := range s.Permissions {
		out.Permissions[id] = append([]client.Permission(nil), rows...)
	}
	return out
}

// RoleStore caches roles and their permission rows. Writes go through Update,
// which re-fetches afterwards so the snapshot always reflects what the server
// stored rather than what the editor sent.
type RoleStore struct {
	backend PermissionBackend
	logger  *zap.Logger

	mu       sync.RWMutex
	snapshot Snapshot
	subs     map[int]func(Snapshot)
	nextSub  int
}

// NewRoleStore creates an empty store; call Refresh to load it
func NewRoleStore(backend PermissionBackend, logger *zap.Logger) *RoleStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleStore{
		backend:  backend,
		logger:   logger,
		snapshot: Snapshot{Permissions: map[string][]client.Permission{}},
		subs:     make(map[int]func(Snapshot)),
	}
}

// Snapshot returns a copy of the current state
func (s *RoleStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.clone()
}

// Subscribe registers fn to be called with every new snapshot. The returned
// func removes the subscription.
func (s *RoleStore) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Refresh fetches roles and permissions and replaces the snapshot.
// On error the previous snapshot is kept.
func (s *RoleStore) Refresh(ctx context.Context) error {
	fetched, err := s.backend.FetchPermissions(ctx)
	if err != nil {
		return err
	}

	next := Snapshot{
		Roles:       fetched.Roles,
		Permissions: fetched.Permissions,
		LoadedAt:    time.Now(),
	}
	if next.Permissions == nil {
		next.Permissions = map[string][]client.Permission{}
	}

	s.mu.Lock()
	s.snapshot = next
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next.clone())
	}
	return nil
}

// Update writes a role's permission set, then refreshes the snapshot.
// Only the write decides the result; a failed refresh is logged.
func (s *RoleStore) Update(ctx context.Context, roleID string, perms []client.Permission) error {
	if err := s.backend.UpdatePermissions(ctx, roleID, perms); err != nil {
		return err
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("refresh after permission update failed",
			zap.String("role_id", roleID),
			zap.Error(err),
		)
	}
	return nil
}
