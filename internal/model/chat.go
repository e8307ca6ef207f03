package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Group is a chat room, e.g. a class group or a staff group
type Group struct {
	ID          uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string        `gorm:"type:varchar(100);not null" json:"name"`
	Description string        `gorm:"type:text" json:"description"`
	CreatedBy   uuid.UUID     `gorm:"type:uuid;not null" json:"created_by"`
	Members     []GroupMember `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"members,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type GroupMember struct {
	GroupID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"group_id"`
	UserID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	DisplayName string    `gorm:"type:varchar(255);not null" json:"display_name"`
	JoinedAt    time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

type Message struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	GroupID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_group_created" json:"group_id"`
	SenderID  uuid.UUID      `gorm:"type:uuid;not null" json:"sender_id"`
	Body      string         `gorm:"type:text;not null" json:"body"`
	Mentions  datatypes.JSON `gorm:"type:jsonb" json:"mentions"` // user ids
	CreatedAt time.Time      `gorm:"index:idx_group_created" json:"created_at"`
}

// GroupRead stores how far a member has read in a group
type GroupRead struct {
	GroupID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"group_id"`
	UserID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	LastReadAt time.Time `gorm:"not null" json:"last_read_at"`
}
