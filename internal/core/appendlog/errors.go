package appendlog

import "errors"

var (
	// ErrInvalidRef 引用缺少公钥
	ErrInvalidRef = errors.New("appendlog: core ref has no public key")

	// ErrKeyMismatch 持久化元数据中的公钥与引用不一致
	ErrKeyMismatch = errors.New("appendlog: stored public key does not match ref")

	// ErrCorruptBlock 块内容与存储的哈希不一致
	ErrCorruptBlock = errors.New("appendlog: block does not match stored hash")
)
