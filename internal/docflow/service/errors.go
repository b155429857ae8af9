package service

import "errors"

// 业务错误哨兵，handler层据此映射HTTP状态码
var (
	// ErrForbidden 操作者不持有该操作要求的角色
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState 文档当前状态不允许该操作
	ErrInvalidState = errors.New("invalid document state")
	// ErrInvalidInput 请求内容不合法（坏PDF、坏字段定义等）
	ErrInvalidInput = errors.New("invalid input")
)
