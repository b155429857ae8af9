package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/inkmill/docflow/internal/docflow/entity"
	"github.com/inkmill/docflow/internal/docflow/pdf"
	"github.com/inkmill/docflow/internal/docflow/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DocumentService 文档工作流服务
type DocumentService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	logger *zap.Logger
}

// NewDocumentService 创建文档工作流服务
func NewDocumentService(db *gorm.DB, repos *repository.Repositories, logger *zap.Logger) *DocumentService {
	return &DocumentService{db: db, repos: repos, logger: logger}
}

// CreateDocumentReq 创建文档请求参数
type CreateDocumentReq struct {
	TemplateID  string     `json:"template_id" binding:"required"`
	Title       string     `json:"title"`
	EditorEmail string     `json:"editor_email"`
	Deadline    *time.Time `json:"deadline"`
}

// Create 从模板创建文档：深拷贝坐标字段（值清空），创建者获得CREATOR角色；
// 指定了编辑人时直接进入EDITING并记录PENDING任务
func (s *DocumentService) Create(ctx context.Context, req CreateDocumentReq, creatorID string) (*entity.Document, error) {
	tpl, err := s.repos.Template.FindByID(ctx, req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("模板不存在: %w", err)
	}

	fields, err := pdf.ParseFields(tpl.CoordinateFields)
	if err != nil {
		return nil, fmt.Errorf("解析模板坐标字段失败: %w", err)
	}
	for i := range fields {
		fields[i].Value = ""
	}

	title := req.Title
	if title == "" {
		title = tpl.Name
	}

	doc := &entity.Document{
		ID:         uuid.New().String(),
		TemplateID: tpl.ID,
		Data: entity.JSONB{
			"title":            title,
			"content":          "",
			"coordinateFields": fields,
			"coordinateData":   map[string]interface{}{},
			"signatures":       map[string]interface{}{},
		},
		DataRevision: 0,
		Status:       entity.DocStatusDraft,
		Deadline:     req.Deadline,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return fmt.Errorf("创建文档失败: %w", err)
		}
		if err := grantRole(tx, doc.ID, creatorID, entity.RoleCreator); err != nil {
			return err
		}
		if err := appendTaskLog(tx, doc.ID, creatorID, creatorID, entity.TaskStatusCompleted, "", true); err != nil {
			return err
		}

		if req.EditorEmail == "" {
			return nil
		}

		// 指定编辑人：授予EDITOR角色并直接进入编辑阶段
		editor, err := s.getOrCreateUserTx(tx, req.EditorEmail)
		if err != nil {
			return err
		}
		if err := grantRole(tx, doc.ID, editor.ID, entity.RoleEditor); err != nil {
			return err
		}
		if err := appendTaskLog(tx, doc.ID, creatorID, editor.ID, entity.TaskStatusPending, "", false); err != nil {
			return err
		}
		doc.Status = entity.DocStatusEditing
		return tx.Model(doc).Update("status", doc.Status).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document created",
		zap.String("document_id", doc.ID),
		zap.String("template_id", tpl.ID),
		zap.String("creator_id", creatorID))
	return s.Get(ctx, doc.ID)
}

// AssignEditor 指派编辑人（仅创建者），替换现有编辑人并强制进入EDITING
func (s *DocumentService) AssignEditor(ctx context.Context, documentID, editorEmail, actorID string) (*entity.Document, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := findDocumentTx(tx, documentID)
		if err != nil {
			return err
		}
		ok, err := hasAnyRole(tx, documentID, actorID, entity.RoleCreator)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: 只有创建者可以指派编辑人", ErrForbidden)
		}

		editor, err := s.getOrCreateUserTx(tx, editorEmail)
		if err != nil {
			return err
		}

		// 先删后插，同一时刻只有一个编辑人
		if err := tx.Where("document_id = ? AND task_role = ?", documentID, entity.RoleEditor).
			Delete(&entity.DocumentRole{}).Error; err != nil {
			return fmt.Errorf("清除旧编辑人失败: %w", err)
		}
		if err := grantRole(tx, documentID, editor.ID, entity.RoleEditor); err != nil {
			return err
		}
		if err := appendTaskLog(tx, documentID, actorID, editor.ID, entity.TaskStatusPending, "", false); err != nil {
			return err
		}
		return tx.Model(doc).Update("status", entity.DocStatusEditing).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, documentID)
}

// AssignReviewer 指派审核人（创建者或编辑人），替换现有审核人，不改变文档状态
func (s *DocumentService) AssignReviewer(ctx context.Context, documentID, reviewerEmail, actorID string) (*entity.Document, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findDocumentTx(tx, documentID); err != nil {
			return err
		}
		ok, err := hasAnyRole(tx, documentID, actorID, entity.RoleCreator, entity.RoleEditor)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: 只有创建者或编辑人可以指派审核人", ErrForbidden)
		}

		reviewer, err := s.getOrCreateUserTx(tx, reviewerEmail)
		if err != nil {
			return err
		}
		if err := tx.Where("document_id = ? AND task_role = ?", documentID, entity.RoleReviewer).
			Delete(&entity.DocumentRole{}).Error; err != nil {
			return fmt.Errorf("清除旧审核人失败: %w", err)
		}
		if err := grantRole(tx, documentID, reviewer.ID, entity.RoleReviewer); err != nil {
			return err
		}
		return appendTaskLog(tx, documentID, actorID, reviewer.ID, entity.TaskStatusPending, "", false)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, documentID)
}

// UpdateData 整体覆盖文档数据（创建者或编辑人），递增数据版本并记录IN_PROGRESS任务
func (s *DocumentService) UpdateData(ctx context.Context, documentID string, data entity.JSONB, actorID string) (*entity.Document, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := findDocumentTx(tx, documentID)
		if err != nil {
			return err
		}
		ok, err := hasAnyRole(tx, documentID, actorID, entity.RoleCreator, entity.RoleEditor)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: 只有创建者或编辑人可以修改文档数据", ErrForbidden)
		}

		doc.Data = data
		doc.DataRevision++
		if err := tx.Model(doc).Updates(map[string]interface{}{
			"data":          doc.Data,
			"data_revision": doc.DataRevision,
			"updated_at":    time.Now(),
		}).Error; err != nil {
			return fmt.Errorf("更新文档数据失败: %w", err)
		}
		return appendTaskLog(tx, documentID, actorID, actorID, entity.TaskStatusInProgress, "", false)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, documentID)
}

// SubmitForReview 完成编辑（创建者或编辑人），EDITING → READY_FOR_REVIEW
func (s *DocumentService) SubmitForReview(ctx context.Context, documentID, actorID string) (*entity.Document, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := findDocumentTx(tx, documentID)
		if err != nil {
			return err
		}
		ok, err := hasAnyRole(tx, documentID, actorID, entity.RoleCreator, entity.RoleEditor)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: 只有创建者或编辑人可以提交审核", ErrForbidden)
		}
		if doc.Status != entity.DocStatusEditing {
			return fmt.Errorf("%w: 当前状态 %s 不能提交审核", ErrInvalidState, doc.Status)
		}

		if err := appendTaskLog(tx, documentID, actorID, actorID, entity.TaskStatusCompleted, "", true); err != nil {
			return err
		}
		return tx.Model(doc).Update("status", entity.DocStatusReadyForReview).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, documentID)
}

// Approve 审核通过（仅审核人），READY_FOR_REVIEW → COMPLETED，
// 签名图片并入 data.signatures[审核人邮箱]
func (s *DocumentService) Approve(ctx context.Context, documentID, actorID, signature string) (*entity.Document, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := findDocumentTx(tx, documentID)
		if err != nil {
			return err
		}
		ok, err := hasAnyRole(tx, documentID, actorID, entity.RoleReviewer)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: 只有审核人可以审核通过", ErrForbidden)
		}
		if doc.Status != entity.DocStatusReadyForReview {
			return fmt.Errorf("%w: 当前状态 %s 不能审核", ErrInvalidState, doc.Status)
		}

		if signature != "" {
			var reviewer entity.User
			if err := tx.Where("id = ?", actorID).First(&reviewer).Error; err != nil {
				return fmt.Errorf("查找审核人失败: %w", err)
			}
			if doc.Data == nil {
				doc.Data = entity.JSONB{}
			}
			sigs, _ := doc.Data["signatures"].(map[string]interface{})
			if sigs == nil {
				sigs = map[string]interface{}{}
			}
			sigs[reviewer.Email] = signature
			doc.Data["signatures"] = sigs
			doc.DataRevision++
			if err := tx.Model(doc).Updates(map[string]interface{}{
				"data":          doc.Data,
				"data_revision": doc.DataRevision,
			}).Error; err != nil {
				return fmt.Errorf("写入签名失败: %w", err)
			}
		}

		if err := appendTaskLog(tx, documentID, actorID, actorID, entity.TaskStatusCompleted, "", true); err != nil {
			return err
		}
		return tx.Model(doc).Update("status", entity.DocStatusCompleted).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document approved",
		zap.String("document_id", documentID),
		zap.String("reviewer_id", actorID))
	return s.Get(ctx, documentID)
}

// Reject 审核驳回（仅审核人），READY_FOR_REVIEW → REJECTED，记录驳回原因
func (s *DocumentService) Reject(ctx context.Context, documentID, actorID, reason string) (*entity.Document, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := findDocumentTx(tx, documentID)
		if err != nil {
			return err
		}
		ok, err := hasAnyRole(tx, documentID, actorID, entity.RoleReviewer)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: 只有审核人可以驳回", ErrForbidden)
		}
		if doc.Status != entity.DocStatusReadyForReview {
			return fmt.Errorf("%w: 当前状态 %s 不能驳回", ErrInvalidState, doc.Status)
		}

		if err := appendTaskLog(tx, documentID, actorID, actorID, entity.TaskStatusRejected, reason, true); err != nil {
			return err
		}
		return tx.Model(doc).Update("status", entity.DocStatusRejected).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document rejected",
		zap.String("document_id", documentID),
		zap.String("reviewer_id", actorID))
	return s.Get(ctx, documentID)
}

// CanReview 判断用户当前是否可以审核该文档，任何失败都返回false，从不报错
func (s *DocumentService) CanReview(ctx context.Context, documentID, userID string) bool {
	doc, err := s.repos.Document.FindByID(ctx, documentID)
	if err != nil {
		return false
	}
	if doc.Status != entity.DocStatusReadyForReview {
		return false
	}
	ok, err := s.repos.Role.HasRole(ctx, documentID, userID, entity.RoleReviewer)
	if err != nil {
		return false
	}
	return ok
}

// Get 获取文档详情（含模板和角色分配）
func (s *DocumentService) Get(ctx context.Context, documentID string) (*entity.Document, error) {
	var doc entity.Document
	err := s.db.WithContext(ctx).
		Preload("Template").
		Preload("Roles").
		Preload("Roles.User").
		Where("id = ?", documentID).
		First(&doc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("文档不存在: %w", repository.ErrNotFound)
		}
		return nil, err
	}
	return &doc, nil
}

// ListMine 获取用户参与的全部文档
func (s *DocumentService) ListMine(ctx context.Context, userID string) ([]entity.Document, error) {
	return s.repos.Document.ListByUser(ctx, userID)
}

// getOrCreateUserTx 按邮箱查找用户，不存在则创建占位用户
func (s *DocumentService) getOrCreateUserTx(tx *gorm.DB, email string) (*entity.User, error) {
	if email == "" {
		return nil, fmt.Errorf("邮箱不能为空")
	}
	var user entity.User
	err := tx.Where("email = ?", email).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	user = entity.User{
		ID:     uuid.New().String()[:32],
		Name:   email,
		Email:  email,
		Status: "active",
	}
	if err := tx.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}
	return &user, nil
}

// findDocumentTx 事务内加载文档
func findDocumentTx(tx *gorm.DB, documentID string) (*entity.Document, error) {
	var doc entity.Document
	if err := tx.Where("id = ?", documentID).First(&doc).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("文档不存在: %w", repository.ErrNotFound)
		}
		return nil, err
	}
	return &doc, nil
}

// hasAnyRole 事务内判断用户是否持有任一指定角色
func hasAnyRole(tx *gorm.DB, documentID, userID string, roles ...string) (bool, error) {
	var count int64
	err := tx.Model(&entity.DocumentRole{}).
		Where("document_id = ? AND user_id = ? AND task_role IN ?", documentID, userID, roles).
		Count(&count).Error
	return count > 0, err
}

// grantRole 事务内授予文档角色
func grantRole(tx *gorm.DB, documentID, userID, taskRole string) error {
	role := &entity.DocumentRole{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		UserID:     userID,
		TaskRole:   taskRole,
	}
	if err := tx.Create(role).Error; err != nil {
		return fmt.Errorf("授予角色失败: %w", err)
	}
	return nil
}

// appendTaskLog 事务内追加任务日志，日志只增不改
func appendTaskLog(tx *gorm.DB, documentID, assignedByID, assignedUserID, status, reason string, completed bool) error {
	entry := &entity.TaskLog{
		ID:              uuid.New().String(),
		DocumentID:      documentID,
		AssignedByID:    assignedByID,
		AssignedUserID:  assignedUserID,
		Status:          status,
		RejectionReason: reason,
	}
	if completed {
		now := time.Now()
		entry.CompletedAt = &now
	}
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("写入任务日志失败: %w", err)
	}
	return nil
}
