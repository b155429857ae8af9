package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/inkmill/docflow/internal/docflow/entity"
	"github.com/inkmill/docflow/internal/docflow/pdf"
	"github.com/inkmill/docflow/internal/docflow/repository"
	"github.com/inkmill/docflow/internal/docflow/service"
)

// Handlers 处理器集合
type Handlers struct {
	User     *UserHandler
	Document *DocumentHandler
	Template *TemplateHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		User:     NewUserHandler(svc.User),
		Document: NewDocumentHandler(svc.Document, svc.History, svc.Render, svc.User),
		Template: NewTemplateHandler(svc.Template, svc.User),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

// Forbidden 禁止访问响应
func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 状态冲突响应
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// RespondError 按业务错误映射HTTP状态码
func RespondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, service.ErrForbidden):
		Forbidden(c, err.Error())
	case errors.Is(err, service.ErrInvalidState):
		Conflict(c, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		BadRequest(c, err.Error())
	case errors.Is(err, pdf.ErrRender):
		Error(c, 50020, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

// resolveActor 从token解析当前用户，首次出现的用户自动落库
func resolveActor(c *gin.Context, users *service.UserService) (*entity.User, bool) {
	email := c.GetString("user_email")
	if email == "" {
		Unauthorized(c, "token缺少用户邮箱")
		return nil, false
	}
	user, err := users.Resolve(c.Request.Context(), email, c.GetString("user_name"))
	if err != nil {
		InternalError(c, "解析当前用户失败: "+err.Error())
		return nil, false
	}
	return user, true
}
