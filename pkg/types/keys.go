// Package types 定义 Corestore 的基础类型
//
// 这是整个系统的最底层包，不依赖任何其他 corestore 内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
package types

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/mr-tron/base58"
)

// ============================================================================
//                              CoreKey - 日志公钥标识
// ============================================================================

// CoreKey 日志（core）的长期公钥标识
//
// 即日志的 ed25519 公钥。本地通过名字派生得到，远程通过交换公钥得到。
//
// 外部表示格式：
//   - String(): Base58 编码（用户可读、可分享）
//   - ShortString(): Base58 前缀（日志简短标识）
type CoreKey [32]byte

// EmptyCoreKey 空公钥
var EmptyCoreKey CoreKey

// ErrInvalidCoreKey 无效的公钥错误
var ErrInvalidCoreKey = errors.New("invalid core key: must be 32 bytes")

// String 返回 CoreKey 的 Base58 字符串表示
//
// 这是 CoreKey 的规范外部表示，用于：
//   - 跨 Store 分享日志身份（按公钥打开）
//   - CLI 参数与输出
//   - 配置文件
func (k CoreKey) String() string {
	if k.IsEmpty() {
		return ""
	}
	return base58.Encode(k[:])
}

// ShortString 返回 CoreKey 的短字符串表示
//
// 格式：Base58 前 8 个字符，用于日志中的简短标识。
func (k CoreKey) ShortString() string {
	s := k.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// Bytes 返回 CoreKey 的字节切片
func (k CoreKey) Bytes() []byte {
	return k[:]
}

// Equal 比较两个 CoreKey 是否相等
func (k CoreKey) Equal(other CoreKey) bool {
	return k == other
}

// IsEmpty 检查 CoreKey 是否为空
func (k CoreKey) IsEmpty() bool {
	return k == EmptyCoreKey
}

// CoreKeyFromBytes 从字节切片创建 CoreKey
func CoreKeyFromBytes(b []byte) (CoreKey, error) {
	if len(b) != 32 {
		return EmptyCoreKey, ErrInvalidCoreKey
	}
	var k CoreKey
	copy(k[:], b)
	return k, nil
}

// ParseCoreKey 从字符串解析 CoreKey
//
// 仅支持 Base58 编码（用于用户输入和配置）。
//
// 示例：
//
//	key, err := ParseCoreKey("5Q2STWvBFn...")
func ParseCoreKey(s string) (CoreKey, error) {
	if s == "" {
		return EmptyCoreKey, ErrInvalidCoreKey
	}

	b, err := base58.Decode(s)
	if err != nil {
		return EmptyCoreKey, ErrInvalidCoreKey
	}
	if len(b) != 32 {
		return EmptyCoreKey, ErrInvalidCoreKey
	}

	var k CoreKey
	copy(k[:], b)
	return k, nil
}

// ============================================================================
//                              DiscoveryKey - 发现键
// ============================================================================

// DiscoveryKey 日志的发现键
//
// 由公钥单向派生（keyed hash），是线上协议与注册表中的查找令牌。
// 只持有 DiscoveryKey 的一方无法反推出公钥，因此可以在不泄露
// 读能力的前提下向对端宣告"我有/我要这个日志"。
type DiscoveryKey [32]byte

// EmptyDiscoveryKey 空发现键
var EmptyDiscoveryKey DiscoveryKey

// ErrInvalidDiscoveryKey 无效的发现键错误
var ErrInvalidDiscoveryKey = errors.New("invalid discovery key: must be 32 bytes")

// String 返回 DiscoveryKey 的 Base58 字符串表示
func (dk DiscoveryKey) String() string {
	if dk.IsEmpty() {
		return ""
	}
	return base58.Encode(dk[:])
}

// ShortString 返回 DiscoveryKey 的短字符串表示（日志用）
func (dk DiscoveryKey) ShortString() string {
	s := dk.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// Bytes 返回 DiscoveryKey 的字节切片
func (dk DiscoveryKey) Bytes() []byte {
	return dk[:]
}

// Equal 比较两个 DiscoveryKey 是否相等
func (dk DiscoveryKey) Equal(other DiscoveryKey) bool {
	return dk == other
}

// IsEmpty 检查 DiscoveryKey 是否为空
func (dk DiscoveryKey) IsEmpty() bool {
	return dk == EmptyDiscoveryKey
}

// DiscoveryKeyFromBytes 从字节切片创建 DiscoveryKey
func DiscoveryKeyFromBytes(b []byte) (DiscoveryKey, error) {
	if len(b) != 32 {
		return EmptyDiscoveryKey, ErrInvalidDiscoveryKey
	}
	var dk DiscoveryKey
	copy(dk[:], b)
	return dk, nil
}

// ParseDiscoveryKey 从 Base58 字符串解析 DiscoveryKey
func ParseDiscoveryKey(s string) (DiscoveryKey, error) {
	if s == "" {
		return EmptyDiscoveryKey, ErrInvalidDiscoveryKey
	}
	b, err := base58.Decode(s)
	if err != nil {
		return EmptyDiscoveryKey, ErrInvalidDiscoveryKey
	}
	return DiscoveryKeyFromBytes(b)
}

// ============================================================================
//                              RootSecret - 根密钥
// ============================================================================

// RootSecret 根密钥（32字节高熵随机数）
//
// 一个 Store 全部派生身份的源头：
//   - 密钥派生（keypair = Derive(rootSecret, namespacePath, name)）
//   - 复制身份派生（噪声握手静态密钥）
//   - 未显式提供时随机生成，并由存储后端持久化（重启后派生键保持稳定）
//   - 可通过带外渠道分发给受信任的会话（跨 Store 继承派生键）
type RootSecret [32]byte

// EmptyRootSecret 空根密钥
var EmptyRootSecret RootSecret

// ErrInvalidRootSecret 无效的根密钥错误
var ErrInvalidRootSecret = errors.New("invalid root secret: must be 32 bytes")

// GenerateRootSecret 生成高熵根密钥
//
// 返回 32 字节密码学安全的随机数。
// 用于创建新 Store 且未显式提供 primary key 时。
func GenerateRootSecret() RootSecret {
	var s RootSecret
	if _, err := rand.Read(s[:]); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return s
}

// IsEmpty 检查 RootSecret 是否为空
func (s RootSecret) IsEmpty() bool {
	return s == EmptyRootSecret
}

// Bytes 返回 RootSecret 的字节切片
func (s RootSecret) Bytes() []byte {
	return s[:]
}

// String 返回脱敏的字符串表示
//
// 根密钥是最高敏感度的数据，String 永不输出完整内容，
// 仅输出前 4 个十六进制字符用于日志关联。
func (s RootSecret) String() string {
	if s.IsEmpty() {
		return ""
	}
	return hex.EncodeToString(s[:2]) + "…"
}

// RootSecretFromBytes 从字节切片创建 RootSecret
func RootSecretFromBytes(b []byte) (RootSecret, error) {
	if len(b) != 32 {
		return EmptyRootSecret, ErrInvalidRootSecret
	}
	var s RootSecret
	copy(s[:], b)
	return s, nil
}

// RootSecretFromHex 从十六进制字符串解析 RootSecret
func RootSecretFromHex(str string) (RootSecret, error) {
	if len(str) != 64 {
		return EmptyRootSecret, ErrInvalidRootSecret
	}
	b, err := hex.DecodeString(str)
	if err != nil {
		return EmptyRootSecret, ErrInvalidRootSecret
	}
	return RootSecretFromBytes(b)
}
