package repository

import (
	"context"
	"errors"

	"github.com/inkmill/docflow/internal/docflow/entity"
	"gorm.io/gorm"
)

// DocumentRepository 文档仓库
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建文档仓库
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// FindByID 根据ID查找文档
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*entity.Document, error) {
	var doc entity.Document
	err := r.db.WithContext(ctx).
		Preload("Template").
		Where("id = ?", id).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// Create 创建文档
func (r *DocumentRepository) Create(ctx context.Context, doc *entity.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// Update 更新文档
func (r *DocumentRepository) Update(ctx context.Context, doc *entity.Document) error {
	return r.db.WithContext(ctx).Save(doc).Error
}

// ListByUser 获取用户参与的文档列表（任一角色）
func (r *DocumentRepository) ListByUser(ctx context.Context, userID string) ([]entity.Document, error) {
	var docs []entity.Document
	err := r.db.WithContext(ctx).
		Joins("JOIN document_roles ON document_roles.document_id = documents.id").
		Where("document_roles.user_id = ?", userID).
		Distinct().
		Preload("Template").
		Order("documents.created_at DESC").
		Find(&docs).Error
	return docs, err
}
