package config

import (
	"fmt"
)

// LogConfig 追加日志配置
//
// 控制单条追加日志的运行时参数。日志块本体始终落盘，
// 块缓存仅加速热点读取。
type LogConfig struct {
	// BlockCacheSize 单条日志的块缓存容量（条目数）
	// 0 表示使用内置默认值
	// 默认值: 1024
	BlockCacheSize int `json:"block_cache_size"`
}

// DefaultLogConfig 返回默认的日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		BlockCacheSize: 1024, // 每条日志缓存 1024 个块
	}
}

// Validate 验证日志配置的有效性
func (c *LogConfig) Validate() error {
	if c.BlockCacheSize < 0 {
		return fmt.Errorf("log: block_cache_size cannot be negative")
	}
	return nil
}

// WithBlockCacheSize 设置块缓存容量
func (c LogConfig) WithBlockCacheSize(size int) LogConfig {
	c.BlockCacheSize = size
	return c
}
