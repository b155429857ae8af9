package repository

import (
	"context"

	"github.com/inkmill/docflow/internal/docflow/entity"
	"gorm.io/gorm"
)

// TaskLogRepository 任务日志仓库（只追加）
type TaskLogRepository struct {
	db *gorm.DB
}

// NewTaskLogRepository 创建任务日志仓库
func NewTaskLogRepository(db *gorm.DB) *TaskLogRepository {
	return &TaskLogRepository{db: db}
}

// ListByDocumentDesc 获取文档的任务日志（按创建时间倒序）
func (r *TaskLogRepository) ListByDocumentDesc(ctx context.Context, documentID string) ([]entity.TaskLog, error) {
	var logs []entity.TaskLog
	err := r.db.WithContext(ctx).
		Preload("AssignedBy").
		Preload("AssignedUser").
		Where("document_id = ?", documentID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}

// ExistsByDocumentAndUserEmail 判断用户是否出现在文档的任务日志中
func (r *TaskLogRepository) ExistsByDocumentAndUserEmail(ctx context.Context, documentID, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.TaskLog{}).
		Joins("JOIN users ON users.id = task_logs.assigned_user_id").
		Where("task_logs.document_id = ? AND users.email = ?", documentID, email).
		Count(&count).Error
	return count > 0, err
}
