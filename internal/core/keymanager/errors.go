package keymanager

import "errors"

// 密钥派生错误定义
var (
	// ErrEmptySecret 根密钥为空
	ErrEmptySecret = errors.New("keymanager: empty root secret")

	// ErrEmptyName 日志名称为空
	ErrEmptyName = errors.New("keymanager: empty core name")

	// ErrEmptySegment 命名空间段为空
	ErrEmptySegment = errors.New("keymanager: empty namespace segment")
)
