package corestore

import "errors"

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// Store 生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrStoreClosed Store 已关闭
	ErrStoreClosed = errors.New("store closed")

	// ErrCoreClosed 日志句柄已关闭
	ErrCoreClosed = errors.New("core handle closed")

	// ────────────────────────────────────────────────────────────────────────
	// 获取与派生错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrInvalidGetRequest 请求必须且只能携带名字或公钥之一
	ErrInvalidGetRequest = errors.New("exactly one of name or key is required")

	// ErrInvalidSecret 根密钥长度错误
	ErrInvalidSecret = errors.New("invalid primary key")

	// ErrInvalidNamespace 命名空间段不能为空
	ErrInvalidNamespace = errors.New("namespace segment must not be empty")
)
