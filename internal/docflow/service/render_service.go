package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/inkmill/docflow/internal/docflow/entity"
	"github.com/inkmill/docflow/internal/docflow/pdf"
	"github.com/inkmill/docflow/internal/docflow/repository"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 渲染产物缓存时长，key按文档数据版本区分
const renderCacheTTL = time.Hour

// RenderService 文档渲染服务：模板PDF + 文档数据 → 成品PDF
type RenderService struct {
	repos       *repository.Repositories
	rdb         *redis.Client
	compositor  *pdf.Compositor
	minioClient *minio.Client
	bucket      string
	logger      *zap.Logger
}

// NewRenderService 创建渲染服务
func NewRenderService(repos *repository.Repositories, rdb *redis.Client, minioClient *minio.Client, bucket string, logger *zap.Logger) *RenderService {
	return &RenderService{
		repos:       repos,
		rdb:         rdb,
		compositor:  pdf.NewCompositor(logger),
		minioClient: minioClient,
		bucket:      bucket,
		logger:      logger,
	}
}

// Render 渲染文档PDF，返回下载文件名和内容。请求者必须持有文档角色
func (s *RenderService) Render(ctx context.Context, documentID, requesterID string) (string, []byte, error) {
	doc, err := s.repos.Document.FindByID(ctx, documentID)
	if err != nil {
		return "", nil, err
	}

	roles, err := s.repos.Role.ListByDocument(ctx, documentID)
	if err != nil {
		return "", nil, err
	}
	participant := false
	for _, r := range roles {
		if r.UserID == requesterID {
			participant = true
			break
		}
	}
	if !participant {
		return "", nil, fmt.Errorf("%w: 只有文档参与者可以下载PDF", ErrForbidden)
	}

	filename := "completed_" + uuid.New().String() + ".pdf"

	// 同一数据版本的渲染结果直接复用
	cacheKey := fmt.Sprintf("docflow:render:%s:%d", doc.ID, doc.DataRevision)
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, cacheKey).Bytes(); err == nil && len(cached) > 0 {
			return filename, cached, nil
		}
	}

	if doc.Template == nil {
		return "", nil, fmt.Errorf("文档模板不存在: %w", repository.ErrNotFound)
	}
	tplBytes, err := s.templatePDF(ctx, doc.Template)
	if err != nil {
		return "", nil, fmt.Errorf("%w: 读取模板文件: %v", pdf.ErrRender, err)
	}

	data, err := pdf.ParseDocumentData(doc.Data)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", pdf.ErrRender, err)
	}

	out, err := s.compositor.Render(tplBytes, data)
	if err != nil {
		return "", nil, err
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, cacheKey, out, renderCacheTTL).Err(); err != nil {
			s.logger.Warn("render cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}

	s.logger.Info("document rendered",
		zap.String("document_id", doc.ID),
		zap.Int64("data_revision", doc.DataRevision),
		zap.Int("bytes", len(out)))
	return filename, out, nil
}

// templatePDF 读取模板底板，本地文件缺失时回退到对象存储
func (s *RenderService) templatePDF(ctx context.Context, tpl *entity.Template) ([]byte, error) {
	content, err := os.ReadFile(tpl.PdfFilePath)
	if err == nil {
		return content, nil
	}
	if s.minioClient == nil {
		return nil, err
	}

	objectName := "templates/" + filepath.Base(tpl.PdfFilePath)
	obj, getErr := s.minioClient.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if getErr != nil {
		return nil, fmt.Errorf("local read: %v, object storage: %w", err, getErr)
	}
	defer obj.Close()
	return io.ReadAll(obj)
}
