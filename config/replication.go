package config

import (
	"fmt"
	"time"
)

// ReplicationConfig 复制会话配置
//
// 控制复制流的默认行为。单条流可以在发起复制时
// 通过选项覆盖这些默认值。
type ReplicationConfig struct {
	// Passive 被动模式
	// 被动流不主动通告本地日志，仅响应对端的通告；
	// 适用于只想拉取数据、不暴露本地持有日志的节点
	Passive bool `json:"passive"`

	// HandshakeTimeout Noise 握手超时
	// 超时后关闭底层连接，0 表示不限制
	// 默认值: 15s
	HandshakeTimeout Duration `json:"handshake_timeout"`
}

// DefaultReplicationConfig 返回默认的复制配置
func DefaultReplicationConfig() ReplicationConfig {
	return ReplicationConfig{
		Passive:          false,                     // 默认主动通告本地日志
		HandshakeTimeout: Duration(15 * time.Second), // 握手限时，防止半开连接悬挂
	}
}

// Validate 验证复制配置的有效性
func (c *ReplicationConfig) Validate() error {
	if c.HandshakeTimeout < 0 {
		return fmt.Errorf("replication: handshake_timeout cannot be negative")
	}
	return nil
}

// WithPassive 设置被动模式
func (c ReplicationConfig) WithPassive(passive bool) ReplicationConfig {
	c.Passive = passive
	return c
}

// WithHandshakeTimeout 设置握手超时
func (c ReplicationConfig) WithHandshakeTimeout(d time.Duration) ReplicationConfig {
	c.HandshakeTimeout = Duration(d)
	return c
}
