package repository

import (
	"context"

	"github.com/inkmill/docflow/internal/docflow/entity"
	"gorm.io/gorm"
)

// RoleRepository 文档角色仓库
type RoleRepository struct {
	db *gorm.DB
}

// NewRoleRepository 创建文档角色仓库
func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// HasRole 判断用户是否持有文档的某个角色
func (r *RoleRepository) HasRole(ctx context.Context, documentID, userID, taskRole string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.DocumentRole{}).
		Where("document_id = ? AND user_id = ? AND task_role = ?", documentID, userID, taskRole).
		Count(&count).Error
	return count > 0, err
}

// ListByDocument 获取文档的全部角色分配
func (r *RoleRepository) ListByDocument(ctx context.Context, documentID string) ([]entity.DocumentRole, error) {
	var roles []entity.DocumentRole
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("document_id = ?", documentID).
		Find(&roles).Error
	return roles, err
}
