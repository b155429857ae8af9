package entity

import (
	"time"
)

// 文档状态常量
const (
	DocStatusDraft          = "DRAFT"
	DocStatusEditing        = "EDITING"
	DocStatusReadyForReview = "READY_FOR_REVIEW"
	DocStatusReviewing      = "REVIEWING"
	DocStatusCompleted      = "COMPLETED"
	DocStatusRejected       = "REJECTED"
)

// 文档角色常量
const (
	RoleCreator  = "CREATOR"
	RoleEditor   = "EDITOR"
	RoleReviewer = "REVIEWER"
)

// 任务日志状态常量
const (
	TaskStatusPending    = "PENDING"
	TaskStatusInProgress = "IN_PROGRESS"
	TaskStatusCompleted  = "COMPLETED"
	TaskStatusRejected   = "REJECTED"
)

// Document 文档实体
type Document struct {
	ID           string     `json:"id" gorm:"primaryKey;size:36"`
	TemplateID   string     `json:"template_id" gorm:"size:36;not null;index"`
	Data         JSONB      `json:"data" gorm:"type:jsonb"`
	DataRevision int64      `json:"data_revision" gorm:"not null;default:0"`
	Status       string     `json:"status" gorm:"size:20;not null;default:'DRAFT'"`
	Deadline     *time.Time `json:"deadline"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// 关联
	Template *Template      `json:"template,omitempty" gorm:"foreignKey:TemplateID"`
	Roles    []DocumentRole `json:"roles,omitempty" gorm:"foreignKey:DocumentID"`
}

func (Document) TableName() string {
	return "documents"
}

// DocumentRole 文档角色分配
type DocumentRole struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	DocumentID string    `json:"document_id" gorm:"size:36;not null;index"`
	UserID     string    `json:"user_id" gorm:"size:32;not null;index"`
	TaskRole   string    `json:"task_role" gorm:"size:20;not null"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// 关联
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (DocumentRole) TableName() string {
	return "document_roles"
}

// TaskLog 任务日志（只追加，不修改）
type TaskLog struct {
	ID              string     `json:"id" gorm:"primaryKey;size:36"`
	DocumentID      string     `json:"document_id" gorm:"size:36;not null;index"`
	AssignedByID    string     `json:"assigned_by_id" gorm:"size:32;not null"`
	AssignedUserID  string     `json:"assigned_user_id" gorm:"size:32;not null"`
	Status          string     `json:"status" gorm:"size:20;not null"`
	RejectionReason string     `json:"rejection_reason" gorm:"type:text"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at"`

	// 关联
	AssignedBy   *User `json:"assigned_by,omitempty" gorm:"foreignKey:AssignedByID"`
	AssignedUser *User `json:"assigned_user,omitempty" gorm:"foreignKey:AssignedUserID"`
}

func (TaskLog) TableName() string {
	return "task_logs"
}
