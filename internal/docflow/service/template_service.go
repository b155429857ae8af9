package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/inkmill/docflow/internal/docflow/entity"
	"github.com/inkmill/docflow/internal/docflow/pdf"
	"github.com/inkmill/docflow/internal/docflow/repository"
	lpdf "github.com/ledongthuc/pdf"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// TemplateService 模板服务：上传PDF底板、维护坐标字段
type TemplateService struct {
	repo        *repository.TemplateRepository
	minioClient *minio.Client
	bucket      string
	dir         string
	logger      *zap.Logger
}

// NewTemplateService 创建模板服务
func NewTemplateService(repo *repository.TemplateRepository, minioClient *minio.Client, bucket, dir string, logger *zap.Logger) *TemplateService {
	return &TemplateService{
		repo:        repo,
		minioClient: minioClient,
		bucket:      bucket,
		dir:         dir,
		logger:      logger,
	}
}

// CreateTemplateReq 创建模板请求参数
type CreateTemplateReq struct {
	Name        string `form:"name" binding:"required"`
	Description string `form:"description"`
	IsPublic    *bool  `form:"is_public"`
}

// Create 上传PDF并创建模板，上传内容必须是可解析的PDF
func (s *TemplateService) Create(ctx context.Context, req CreateTemplateReq, pdfContent []byte, creatorID string) (*entity.Template, error) {
	if err := validatePDF(pdfContent); err != nil {
		return nil, fmt.Errorf("%w: 无效的PDF文件: %v", ErrInvalidInput, err)
	}

	filename := uuid.New().String() + ".pdf"
	localPath := filepath.Join(s.dir, filename)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建模板目录失败: %w", err)
	}
	if err := os.WriteFile(localPath, pdfContent, 0o644); err != nil {
		return nil, fmt.Errorf("保存模板文件失败: %w", err)
	}

	// MinIO配置了就同步一份对象存储副本，失败不阻断
	if s.minioClient != nil {
		objectName := "templates/" + filename
		_, err := s.minioClient.PutObject(ctx, s.bucket, objectName,
			bytes.NewReader(pdfContent), int64(len(pdfContent)),
			minio.PutObjectOptions{ContentType: "application/pdf"})
		if err != nil {
			s.logger.Warn("template upload to object storage failed",
				zap.String("object", objectName), zap.Error(err))
		}
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	tpl := &entity.Template{
		ID:               uuid.New().String(),
		Name:             req.Name,
		Description:      req.Description,
		IsPublic:         isPublic,
		PdfFilePath:      localPath,
		CoordinateFields: json.RawMessage("[]"),
		CreatedByID:      creatorID,
	}
	if err := s.repo.Create(ctx, tpl); err != nil {
		return nil, fmt.Errorf("创建模板失败: %w", err)
	}

	s.logger.Info("template created",
		zap.String("template_id", tpl.ID),
		zap.String("creator_id", creatorID))
	return tpl, nil
}

// UpdateTemplateReq 更新模板请求参数
type UpdateTemplateReq struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"is_public"`
}

// Update 更新模板元信息（仅创建者）
func (s *TemplateService) Update(ctx context.Context, templateID string, req UpdateTemplateReq, actorID string) (*entity.Template, error) {
	tpl, err := s.repo.FindByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if tpl.CreatedByID != actorID {
		return nil, fmt.Errorf("%w: 只有创建者可以修改模板", ErrForbidden)
	}

	if req.Name != nil {
		tpl.Name = *req.Name
	}
	if req.Description != nil {
		tpl.Description = *req.Description
	}
	if req.IsPublic != nil {
		tpl.IsPublic = *req.IsPublic
	}
	if err := s.repo.Update(ctx, tpl); err != nil {
		return nil, fmt.Errorf("更新模板失败: %w", err)
	}
	return tpl, nil
}

// UpdateFields 更新模板坐标字段（仅创建者），内容必须能解析成字段列表
func (s *TemplateService) UpdateFields(ctx context.Context, templateID string, raw json.RawMessage, actorID string) (*entity.Template, error) {
	tpl, err := s.repo.FindByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if tpl.CreatedByID != actorID {
		return nil, fmt.Errorf("%w: 只有创建者可以修改模板", ErrForbidden)
	}
	if _, err := pdf.ParseFields(raw); err != nil {
		return nil, fmt.Errorf("%w: 坐标字段格式错误: %v", ErrInvalidInput, err)
	}

	tpl.CoordinateFields = raw
	if err := s.repo.Update(ctx, tpl); err != nil {
		return nil, fmt.Errorf("更新坐标字段失败: %w", err)
	}
	return tpl, nil
}

// Delete 删除模板（仅创建者），本地文件尽力清理
func (s *TemplateService) Delete(ctx context.Context, templateID, actorID string) error {
	tpl, err := s.repo.FindByID(ctx, templateID)
	if err != nil {
		return err
	}
	if tpl.CreatedByID != actorID {
		return fmt.Errorf("%w: 只有创建者可以删除模板", ErrForbidden)
	}
	if err := s.repo.Delete(ctx, templateID); err != nil {
		return fmt.Errorf("删除模板失败: %w", err)
	}
	if tpl.PdfFilePath != "" {
		if err := os.Remove(tpl.PdfFilePath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("template file cleanup failed",
				zap.String("path", tpl.PdfFilePath), zap.Error(err))
		}
	}
	return nil
}

// Get 获取模板详情
func (s *TemplateService) Get(ctx context.Context, templateID string) (*entity.Template, error) {
	return s.repo.FindByID(ctx, templateID)
}

// List 获取用户可见的模板
func (s *TemplateService) List(ctx context.Context, userID string) ([]entity.Template, error) {
	return s.repo.ListVisible(ctx, userID)
}

// validatePDF 校验字节流是一份至少有一页的PDF。解析库对坏文件会panic，统一转error
func validatePDF(content []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	if len(content) == 0 {
		return fmt.Errorf("文件为空")
	}
	reader, err := lpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return err
	}
	if reader.NumPage() < 1 {
		return fmt.Errorf("PDF没有页面")
	}
	return nil
}
