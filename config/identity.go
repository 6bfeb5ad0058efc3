package config

import (
	"encoding/hex"
	"fmt"
)

// IdentityConfig 根密钥配置
//
// 根密钥（primary key）是整个存储的密钥派生根：所有可写日志的
// 签名密钥对、复制身份都由它确定性派生。管理策略：
//   - 显式配置 PrimaryKey 时直接使用
//   - 未配置时优先读取存储中已持久化的根密钥
//   - 两者都没有时生成新密钥并持久化
type IdentityConfig struct {
	// PrimaryKey 根密钥的十六进制编码（64 个字符，即 32 字节）
	// 为空时从存储加载或自动生成
	// 注意: 泄露根密钥等于泄露所有派生日志的写权限
	PrimaryKey string `json:"primary_key,omitempty"`
}

// DefaultIdentityConfig 返回默认根密钥配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{
		PrimaryKey: "", // 默认空：从存储加载，不存在则自动生成并持久化
	}
}

// Validate 验证根密钥配置
func (c IdentityConfig) Validate() error {
	if c.PrimaryKey == "" {
		return nil
	}
	raw, err := hex.DecodeString(c.PrimaryKey)
	if err != nil {
		return fmt.Errorf("identity: primary_key is not valid hex: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("identity: primary_key must be 32 bytes, got %d", len(raw))
	}
	return nil
}

// WithPrimaryKey 设置根密钥（十六进制编码）
func (c IdentityConfig) WithPrimaryKey(hexKey string) IdentityConfig {
	c.PrimaryKey = hexKey
	return c
}
