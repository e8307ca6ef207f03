package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SuperAdminRole is the built-in role whose permissions cannot be edited
const SuperAdminRole = "Super Admin"

// Access is the scope a role has for one action on a module
type Access string

const (
	AccessAll   Access = "all"
	AccessOwned Access = "owned"
	AccessNone  Access = "none"
)

// Valid reports whether a is one of all, owned, none
func (a Access) Valid() bool {
	return a == AccessAll || a == AccessOwned || a == AccessNone
}

// Action names the four permission columns
type Action string

const (
	ActionAdd    Action = "add"
	ActionView   Action = "view"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Actions lists the permission columns in display order
var Actions = []Action{ActionAdd, ActionView, ActionUpdate, ActionDelete}

// Valid reports whether a is a known permission column
func (a Action) Valid() bool {
	return a == ActionAdd || a == ActionView || a == ActionUpdate || a == ActionDelete
}

// Role groups users under a permission matrix and a module toggle map
type Role struct {
	ID          uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string           `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Description string           `gorm:"type:text" json:"description"`
	IsSystem    bool             `gorm:"default:false" json:"is_system"` // Prevent deletion of built-in roles
	Modules     datatypes.JSON   `gorm:"type:jsonb" json:"modules"`      // {"fees": true, ...}
	Permissions []RolePermission `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE" json:"permissions,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// IsSuperAdmin reports whether r is the immutable built-in role
func (r Role) IsSuperAdmin() bool {
	return r.Name == SuperAdminRole
}

// RolePermission holds one row of a role's permission matrix
type RolePermission struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RoleID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_role_module" json:"role_id"`
	Module string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_role_module" json:"module"`
	Add    Access    `gorm:"type:varchar(10);not null;default:'none'" json:"add"`
	View   Access    `gorm:"type:varchar(10);not null;default:'none'" json:"view"`
	Update Access    `gorm:"type:varchar(10);not null;default:'none'" json:"update"`
	Delete Access    `gorm:"type:varchar(10);not null;default:'none'" json:"delete"`
}

// Level returns the access recorded for action
func (p RolePermission) Level(action Action) Access {
	switch action {
	case ActionAdd:
		return p.Add
	case ActionView:
		return p.View
	case ActionUpdate:
		return p.Update
	case ActionDelete:
		return p.Delete
	}
	return AccessNone
}
