package repository

import (
	"context"
	"errors"

	"github.com/inkmill/docflow/internal/docflow/entity"
	"gorm.io/gorm"
)

// TemplateRepository 模板仓库
type TemplateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository 创建模板仓库
func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// FindByID 根据ID查找模板
func (r *TemplateRepository) FindByID(ctx context.Context, id string) (*entity.Template, error) {
	var tpl entity.Template
	err := r.db.WithContext(ctx).
		Preload("CreatedBy").
		Where("id = ?", id).
		First(&tpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tpl, nil
}

// Create 创建模板
func (r *TemplateRepository) Create(ctx context.Context, tpl *entity.Template) error {
	return r.db.WithContext(ctx).Create(tpl).Error
}

// Update 更新模板
func (r *TemplateRepository) Update(ctx context.Context, tpl *entity.Template) error {
	return r.db.WithContext(ctx).Save(tpl).Error
}

// Delete 删除模板
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&entity.Template{}).Error
}

// ListVisible 获取用户可见的模板（公开的 + 自己创建的）
func (r *TemplateRepository) ListVisible(ctx context.Context, userID string) ([]entity.Template, error) {
	var templates []entity.Template
	err := r.db.WithContext(ctx).
		Where("is_public = ? OR created_by_id = ?", true, userID).
		Order("created_at DESC").
		Find(&templates).Error
	return templates, err
}
