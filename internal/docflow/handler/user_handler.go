package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/inkmill/docflow/internal/docflow/service"
)

// UserHandler 用户处理器
type UserHandler struct {
	svc *service.UserService
}

// NewUserHandler 创建用户处理器
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// Me 获取当前用户
// GET /api/v1/users/me
func (h *UserHandler) Me(c *gin.Context) {
	actor, ok := resolveActor(c, h.svc)
	if !ok {
		return
	}
	Success(c, actor)
}

// List 获取所有活跃用户
// GET /api/v1/users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		InternalError(c, "获取用户列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": users})
}

// Search 搜索用户（按名字/邮箱模糊匹配）
// GET /api/v1/users/search?q=xxx
func (h *UserHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		BadRequest(c, "搜索关键字不能为空")
		return
	}
	users, err := h.svc.Search(c.Request.Context(), q)
	if err != nil {
		InternalError(c, "搜索用户失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": users})
}
