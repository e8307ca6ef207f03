package repository

import (
	"context"
	"time"

	"schoolhub/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatRepository interface {
	CreateGroup(ctx context.Context, group *model.Group) error
	FindGroup(ctx context.Context, id uuid.UUID) (*model.Group, error)
	ListGroupsForUser(ctx context.Context, userID uuid.UUID) ([]model.Group, error)
	ListGroupIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	AddMember(ctx context.Context, member *model.GroupMember) error
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]model.GroupMember, error)

	CreateMessage(ctx context.Context, msg *model.Message) error
	ListMessages(ctx context.Context, groupID uuid.UUID, before *time.Time, limit int) ([]model.Message, error)
	LatestMessage(ctx context.Context, groupID uuid.UUID) (*model.Message, error)
	CountUnread(ctx context.Context, groupID, userID uuid.UUID, since time.Time) (int64, error)

	GetRead(ctx context.Context, groupID, userID uuid.UUID) (*model.GroupRead, error)
	UpsertRead(ctx context.Context, read *model.GroupRead) error
}

type chatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) CreateGroup(ctx context.Context, group *model.Group) error {
	return GetDB(ctx, r.db).Create(group).Error
}

func (r *chatRepository) FindGroup(ctx context.Context, id uuid.UUID) (*model.Group, error) {
	var g model.Group
	if err := GetDB(ctx, r.db).Preload("Members").First(&g, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *chatRepository) ListGroupsForUser(ctx context.Context, userID uuid.UUID) ([]model.Group, error) {
	var groups []model.Group
	err := GetDB(ctx, r.db).
		Joins("JOIN group_members gm ON gm.group_id = groups.id AND gm.user_id = ?", userID).
		Order("groups.name asc").
		Find(&groups).Error
	return groups, err
}

func (r *chatRepository) ListGroupIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := GetDB(ctx, r.db).Model(&model.GroupMember{}).Where("user_id = ?", userID).Pluck("group_id", &ids).Error
	return ids, err
}

func (r *chatRepository) AddMember(ctx context.Context, member *model.GroupMember) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name"}),
	}).Create(member).Error
}

func (r *chatRepository) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&model.GroupMember{}).Error
}

func (r *chatRepository) ListMembers(ctx context.Context, groupID uuid.UUID) ([]model.GroupMember, error) {
	var members []model.GroupMember
	err := GetDB(ctx, r.db).Where("group_id = ?", groupID).Order("display_name asc").Find(&members).Error
	return members, err
}

func (r *chatRepository) CreateMessage(ctx context.Context, msg *model.Message) error {
	return GetDB(ctx, r.db).Create(msg).Error
}

// ListMessages returns up to limit messages older than before, oldest first
func (r *chatRepository) ListMessages(ctx context.Context, groupID uuid.UUID, before *time.Time, limit int) ([]model.Message, error) {
	var msgs []model.Message
	query := GetDB(ctx, r.db).Where("group_id = ?", groupID)
	if before != nil {
		query = query.Where("created_at < ?", *before)
	}
	if err := query.Order("created_at desc").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *chatRepository) LatestMessage(ctx context.Context, groupID uuid.UUID) (*model.Message, error) {
	var msg model.Message
	if err := GetDB(ctx, r.db).Where("group_id = ?", groupID).Order("created_at desc").First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *chatRepository) CountUnread(ctx context.Context, groupID, userID uuid.UUID, since time.Time) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.Message{}).
		Where("group_id = ? AND sender_id <> ? AND created_at > ?", groupID, userID, since).
		Count(&n).Error
	return n, err
}

func (r *chatRepository) GetRead(ctx context.Context, groupID, userID uuid.UUID) (*model.GroupRead, error) {
	var read model.GroupRead
	if err := GetDB(ctx, r.db).Where("group_id = ? AND user_id = ?", groupID, userID).First(&read).Error; err != nil {
		return nil, err
	}
	return &read, nil
}

func (r *chatRepository) UpsertRead(ctx context.Context, read *model.GroupRead) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_read_at"}),
	}).Create(read).Error
}
