package repository

import (
	"context"

	"schoolhub/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RoleRepository interface {
	Create(ctx context.Context, role *model.Role) error
	Update(ctx context.Context, role *model.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error)
	FindByName(ctx context.Context, name string) (*model.Role, error)
	ListAll(ctx context.Context) ([]model.Role, error)
	ReplacePermissions(ctx context.Context, roleID uuid.UUID, perms []model.RolePermission) error
	UpdateModules(ctx context.Context, roleID uuid.UUID, modules datatypes.JSON) error
	CountUsersWithRole(ctx context.Context, roleName string) (int64, error)
	RenameUsersRole(ctx context.Context, from, to string) error
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Create(role).Error
}

func (r *roleRepository) Update(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Omit("Permissions").Save(role).Error
}

func (r *roleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("role_id = ?", id).Delete(&model.RolePermission{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Role{}).Error
}

func (r *roleRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Preload("Permissions", orderByModule).First(&role, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) FindByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Preload("Permissions", orderByModule).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) ListAll(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	if err := GetDB(ctx, r.db).Preload("Permissions", orderByModule).Order("created_at asc").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// ReplacePermissions swaps a role's whole matrix; callers wrap it in a transaction
func (r *roleRepository) ReplacePermissions(ctx context.Context, roleID uuid.UUID, perms []model.RolePermission) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("role_id = ?", roleID).Delete(&model.RolePermission{}).Error; err != nil {
		return err
	}
	if len(perms) == 0 {
		return nil
	}
	for i := range perms {
		perms[i].ID = uuid.Nil
		perms[i].RoleID = roleID
	}
	return db.Create(&perms).Error
}

func (r *roleRepository) UpdateModules(ctx context.Context, roleID uuid.UUID, modules datatypes.JSON) error {
	res := GetDB(ctx, r.db).Model(&model.Role{}).Where("id = ?", roleID).Update("modules", modules)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *roleRepository) CountUsersWithRole(ctx context.Context, roleName string) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.User{}).Where("role = ?", roleName).Count(&n).Error
	return n, err
}

// RenameUsersRole follows a role rename; users reference roles by name
func (r *roleRepository) RenameUsersRole(ctx context.Context, from, to string) error {
	return GetDB(ctx, r.db).Model(&model.User{}).Where("role = ?", from).Update("role", to).Error
}

func orderByModule(db *gorm.DB) *gorm.DB {
	return db.Order("module asc")
}
