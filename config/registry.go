package config

import (
	"fmt"
	"time"
)

// RegistryConfig 日志注册表配置
//
// 注册表按发现键维护活跃日志，引用计数归零后延迟驱逐：
// 短暂的释放-重取不会触发日志的关闭与重开。
type RegistryConfig struct {
	// EvictionDelay 引用计数归零后到实际驱逐的延迟
	// 期间重新获取会取消驱逐
	// 默认值: 100ms
	EvictionDelay Duration `json:"eviction_delay"`
}

// DefaultRegistryConfig 返回默认的注册表配置
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		EvictionDelay: Duration(100 * time.Millisecond), // 吸收短暂的释放-重取抖动
	}
}

// Validate 验证注册表配置的有效性
func (c *RegistryConfig) Validate() error {
	if c.EvictionDelay < 0 {
		return fmt.Errorf("registry: eviction_delay cannot be negative")
	}
	return nil
}

// WithEvictionDelay 设置驱逐延迟
func (c RegistryConfig) WithEvictionDelay(d time.Duration) RegistryConfig {
	c.EvictionDelay = Duration(d)
	return c
}
