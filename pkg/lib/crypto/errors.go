// Package crypto 提供 Corestore 密码学工具
package crypto

import "errors"

// ============================================================================
//                              错误定义
// ============================================================================

// 密钥相关错误
var (
	// ErrNilPrivateKey 私钥为空
	ErrNilPrivateKey = errors.New("nil private key")

	// ErrInvalidKeySize 密钥大小无效
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidSeed 种子无效
	ErrInvalidSeed = errors.New("invalid seed: must be 32 bytes")

	// ErrNotWritable 密钥对不含私钥，无签名能力
	ErrNotWritable = errors.New("keypair has no secret key")
)
