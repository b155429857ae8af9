package service

import (
	"context"

	"github.com/inkmill/docflow/internal/config"
	"github.com/inkmill/docflow/internal/docflow/entity"
	"github.com/inkmill/docflow/internal/docflow/repository"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	User     *UserService
	Document *DocumentService
	History  *HistoryService
	Template *TemplateService
	Render   *RenderService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	// 初始化MinIO客户端，没配置就只用本地文件
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("minio client init failed, falling back to local storage", zap.Error(err))
			minioClient = nil
		}
	}

	return &Services{
		User:     NewUserService(repos.User),
		Document: NewDocumentService(db, repos, logger),
		History:  NewHistoryService(repos),
		Template: NewTemplateService(repos.Template, minioClient, cfg.MinIO.Bucket, cfg.Files.TemplateDir, logger),
		Render:   NewRenderService(repos, rdb, minioClient, cfg.MinIO.Bucket, logger),
	}
}

// UserService 用户服务
type UserService struct {
	repo *repository.UserRepository
}

// NewUserService 创建用户服务
func NewUserService(repo *repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// ListAll 获取所有活跃用户
func (s *UserService) ListAll(ctx context.Context) ([]entity.User, error) {
	return s.repo.ListActive(ctx)
}

// Search 搜索用户（按名字/邮箱模糊匹配）
func (s *UserService) Search(ctx context.Context, query string) ([]entity.User, error) {
	return s.repo.Search(ctx, query)
}

// Resolve 按邮箱解析用户，首次出现的用户自动落库
func (s *UserService) Resolve(ctx context.Context, email, name string) (*entity.User, error) {
	displayName := name
	if displayName == "" {
		displayName = email
	}
	user, err := s.repo.GetOrCreate(ctx, email, displayName)
	if err != nil {
		return nil, err
	}
	// 名字有更新就跟着token走
	if name != "" && user.Name != name {
		user.Name = name
		if err := s.repo.Update(ctx, user); err != nil {
			return nil, err
		}
	}
	return user, nil
}
