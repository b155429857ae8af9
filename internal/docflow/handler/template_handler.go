package handler

import (
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/inkmill/docflow/internal/docflow/service"
)

// 模板PDF上传大小上限
const maxTemplateSize = 20 << 20

// TemplateHandler 模板处理器
type TemplateHandler struct {
	svc   *service.TemplateService
	users *service.UserService
}

// NewTemplateHandler 创建模板处理器
func NewTemplateHandler(svc *service.TemplateService, users *service.UserService) *TemplateHandler {
	return &TemplateHandler{svc: svc, users: users}
}

// Create 上传PDF并创建模板
// POST /api/v1/templates  (multipart: file + name/description/is_public)
func (h *TemplateHandler) Create(c *gin.Context) {
	actor, ok := resolveActor(c, h.users)
	if !ok {
		return
	}
	var req service.CreateTemplateReq
	if err := c.ShouldBind(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少PDF文件")
		return
	}
	if fileHeader.Size > maxTemplateSize {
		BadRequest(c, "PDF文件超过大小限制")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		InternalError(c, "读取上传文件失败: "+err.Error())
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		InternalError(c, "读取上传文件失败: "+err.Error())
		return
	}

	tpl, err := h.svc.Create(c.Request.Context(), req, content, actor.ID)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, tpl)
}

// List 获取可见模板列表
// GET /api/v1/templates
func (h *TemplateHandler) List(c *gin.Context) {
	actor, ok := resolveActor(c, h.users)
	if !ok {
		return
	}
	templates, err := h.svc.List(c.Request.Context(), actor.ID)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": templates})
}

// Get 获取模板详情
// GET /api/v1/templates/:id
func (h *TemplateHandler) Get(c *gin.Context) {
	tpl, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, tpl)
}

// Update 更新模板元信息
// PUT /api/v1/templates/:id
func (h *TemplateHandler) Update(c *gin.Context) {
	actor, ok := resolveActor(c, h.users)
	if !ok {
		return
	}
	var req service.UpdateTemplateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	tpl, err := h.svc.Update(c.Request.Context(), c.Param("id"), req, actor.ID)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, tpl)
}

// UpdateFields 更新模板坐标字段
// PUT /api/v1/templates/:id/fields
func (h *TemplateHandler) UpdateFields(c *gin.Context) {
	actor, ok := resolveActor(c, h.users)
	if !ok {
		return
	}
	var raw json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	tpl, err := h.svc.UpdateFields(c.Request.Context(), c.Param("id"), raw, actor.ID)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, tpl)
}

// Delete 删除模板
// DELETE /api/v1/templates/:id
func (h *TemplateHandler) Delete(c *gin.Context) {
	actor, ok := resolveActor(c, h.users)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), actor.ID); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, nil)
}
