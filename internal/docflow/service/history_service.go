package service

import (
	"context"
	"fmt"
	"time"

	"github.com/inkmill/docflow/internal/docflow/entity"
	"github.com/inkmill/docflow/internal/docflow/repository"
)

// HistoryService 文档历史服务
type HistoryService struct {
	repos *repository.Repositories
}

// NewHistoryService 创建文档历史服务
func NewHistoryService(repos *repository.Repositories) *HistoryService {
	return &HistoryService{repos: repos}
}

// HistoryItem 历史条目，角色标签按当前角色分配实时计算
type HistoryItem struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"`
	AssignedByName    string     `json:"assigned_by_name"`
	AssignedUserName  string     `json:"assigned_user_name"`
	AssignedUserEmail string     `json:"assigned_user_email"`
	RoleLabel         string     `json:"role_label"`
	RejectionReason   string     `json:"rejection_reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// List 获取文档历史（倒序）。请求者必须出现在任务日志的被指派人中
func (s *HistoryService) List(ctx context.Context, documentID, requesterID string) ([]HistoryItem, error) {
	if _, err := s.repos.Document.FindByID(ctx, documentID); err != nil {
		return nil, err
	}

	requester, err := s.repos.User.FindByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	involved, err := s.repos.TaskLog.ExistsByDocumentAndUserEmail(ctx, documentID, requester.Email)
	if err != nil {
		return nil, err
	}
	if !involved {
		return nil, fmt.Errorf("%w: 只有任务参与者可以查看历史", ErrForbidden)
	}

	logs, err := s.repos.TaskLog.ListByDocumentDesc(ctx, documentID)
	if err != nil {
		return nil, err
	}
	roles, err := s.repos.Role.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	// 用户当前角色，CREATOR优先于EDITOR优先于REVIEWER
	currentRole := make(map[string]string)
	for _, r := range roles {
		if prev, ok := currentRole[r.UserID]; ok && rolePriority(prev) <= rolePriority(r.TaskRole) {
			continue
		}
		currentRole[r.UserID] = r.TaskRole
	}

	items := make([]HistoryItem, 0, len(logs))
	for _, l := range logs {
		label, ok := currentRole[l.AssignedUserID]
		if !ok {
			label = "PARTICIPANT"
		}
		item := HistoryItem{
			ID:              l.ID,
			Status:          l.Status,
			RoleLabel:       label,
			RejectionReason: l.RejectionReason,
			CreatedAt:       l.CreatedAt,
			CompletedAt:     l.CompletedAt,
		}
		if l.AssignedBy != nil {
			item.AssignedByName = l.AssignedBy.Name
		}
		if l.AssignedUser != nil {
			item.AssignedUserName = l.AssignedUser.Name
			item.AssignedUserEmail = l.AssignedUser.Email
		}
		items = append(items, item)
	}
	return items, nil
}

func rolePriority(role string) int {
	switch role {
	case entity.RoleCreator:
		return 0
	case entity.RoleEditor:
		return 1
	case entity.RoleReviewer:
		return 2
	default:
		return 3
	}
}
