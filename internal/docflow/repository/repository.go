package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	User     *UserRepository
	Document *DocumentRepository
	Role     *RoleRepository
	TaskLog  *TaskLogRepository
	Template *TemplateRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:     NewUserRepository(db),
		Document: NewDocumentRepository(db),
		Role:     NewRoleRepository(db),
		TaskLog:  NewTaskLogRepository(db),
		Template: NewTemplateRepository(db),
	}
}
