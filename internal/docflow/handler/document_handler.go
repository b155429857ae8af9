package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/inkmill/docflow/internal/docflow/entity"
	"github.com/inkmill/docflow/internal/docflow/service"
)

// DocumentHandler 文档处理器
type DocumentHandler struct {
	svc     *service.DocumentService
	history *service.HistoryService
	render  *service.RenderService
	users   *service.UserService
}

// NewDocumentHandler 创建文档处理器
func NewDocumentHandler(svc *service.DocumentService, history *service.HistoryService, render *service.RenderService, users *service.UserService) *DocumentHandler {
	return &DocumentHandler{svc: svc, history: history, render: render, users: users}
}

// Create 创建文档
// POST /api/v1/documents
func (h *DocumentHandler) Create(c *gin.Context) {
	actor, ok := resolveActor(c, h.users)
	if !ok {
		return
	}
	var req service.CreateDocumentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	doc, err := h.svc.Create(c.Request.Context(), req, actor.ID)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, doc)
}

// List 获取我参与的文档列表
// GET /api/v1/documents
func (h *DocumentHandler) List(c *gin.Context) {
	actor, ok := resolveActor(c, h.users)
	if !ok {
		return
	}
	docs, err := h.svc.ListMine(c.Request.Context(), actor.ID)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": docs})
}

// Get 获取文档详情
// GET /api/v1/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, doc)
}

type assignReq struct {
	Email string `json:"email" binding:"required,email"`
}

// AssignEditor 指派编辑人
// POST /api/v1/documents/:id/editor
func (h *DocumentHandler) AssignEditor(c *gin.Context) {
	actor, ok := resolveActor(c, h.users)
	if !ok {
		return
	}
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	doc, err := h.svc.AssignEditor(c.Request.Context(), c.Param("id"), req.Email, actor.ID)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, doc)
}

// AssignReviewer 指派审核人
// POST /api/v1/documents/:id/reviewer
func (h *DocumentHandler) AssignReviewer(c *gin.Context) {
	actor, ok := resolveActor(c, h.users)
	if !ok {
		return
	}
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	doc, err := h.svc.AssignReviewer(c.Request.Context(), c.Param("id"), req.Email, actor.ID)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, doc)
}

// UpdateData 整体覆盖文档数据
// PUT /api/v1/documents/:id/data
func (h *DocumentHandler) UpdateData(c *gin.Context) {
	actor, ok := resolveActor(c, h.users)
	if !ok {
		return
	}
	var data entity.JSONB
	if err := c.ShouldBindJSON(&data); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	doc, err := h.svc.UpdateData(c.Request.Context(), c.Param("id"), data, actor.ID)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, doc)
}

// SubmitForReview 完成编辑，提交审核
// POST /api/v1/documents/:id/submit-review
func (h *DocumentHandler) SubmitForReview(c *gin.Context) {
	actor, ok := resolveActor(c, h.users)
	if !ok {
		return
	}
	doc, err := h.svc.SubmitForReview(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, doc)
}

// CompleteEditing 完成编辑（与 submit-review 等价的入口），EDITING → READY_FOR_REVIEW
// POST /api/v1/documents/:id/complete-editing
func (h *DocumentHandler) CompleteEditing(c *gin.Context) {
	h.SubmitForReview(c)
}

type approveReq struct {
	Signature string `json:"signature"`
}

// Approve 审核通过
// POST /api/v1/documents/:id/approve
func (h *DocumentHandler) Approve(c *gin.Context) {
	actor, ok := resolveActor(c, h.users)
	if !ok {
		return
	}
	var req approveReq
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	doc, err := h.svc.Approve(c.Request.Context(), c.Param("id"), actor.ID, req.Signature)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, doc)
}

type rejectReq struct {
	Reason string `json:"reason" binding:"required"`
}

// Reject 审核驳回
// POST /api/v1/documents/:id/reject
func (h *DocumentHandler) Reject(c *gin.Context) {
	actor, ok := resolveActor(c, h.users)
	if !ok {
		return
	}
	var req rejectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "驳回原因不能为空")
		return
	}
	doc, err := h.svc.Reject(c.Request.Context(), c.Param("id"), actor.ID, req.Reason)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, doc)
}

// CanReview 当前用户是否可以审核该文档
// GET /api/v1/documents/:id/can-review
func (h *DocumentHandler) CanReview(c *gin.Context) {
	actor, ok := resolveActor(c, h.users)
	if !ok {
		return
	}
	Success(c, gin.H{
		"can_review": h.svc.CanReview(c.Request.Context(), c.Param("id"), actor.ID),
	})
}

// History 获取文档历史
// GET /api/v1/documents/:id/history
func (h *DocumentHandler) History(c *gin.Context) {
	actor, ok := resolveActor(c, h.users)
	if !ok {
		return
	}
	items, err := h.history.List(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// DownloadPDF 下载渲染后的成品PDF
// GET /api/v1/documents/:id/download-pdf
func (h *DocumentHandler) DownloadPDF(c *gin.Context) {
	actor, ok := resolveActor(c, h.users)
	if !ok {
		return
	}
	filename, content, err := h.render.Render(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(200, "application/pdf", content)
}
