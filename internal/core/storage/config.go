package storage

import (
	"time"

	"github.com/dep2p/go-corestore/config"
	"github.com/dep2p/go-corestore/internal/core/storage/engine"
)

// Config Storage 模块配置
type Config struct {
	// Path 存储路径（BadgerDB 数据库目录，持久化模式必需）
	Path string

	// InMemory 是否使用内存模式
	// 内存模式下数据不落盘，适合测试和临时 Store
	InMemory bool

	// SyncWrites 是否同步写入
	// 启用后每次写入都会同步到磁盘，更安全但性能较低
	SyncWrites bool

	// GCEnabled 是否启用垃圾回收
	GCEnabled bool

	// GCInterval 垃圾回收间隔
	GCInterval time.Duration

	// GCDiscardRatio 垃圾回收丢弃比例
	GCDiscardRatio float64

	// BlockCacheSize 块缓存大小（字节）
	BlockCacheSize int64

	// Compression 压缩级别（0 禁用）
	Compression int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Path:           "./data/corestore.db",
		InMemory:       false,
		SyncWrites:     false,
		GCEnabled:      true,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
		BlockCacheSize: 256 << 20, // 256MB
		Compression:    1,
	}
}

// MemoryConfig 返回内存模式配置
func MemoryConfig() Config {
	cfg := DefaultConfig()
	cfg.Path = ""
	cfg.InMemory = true
	cfg.GCEnabled = false
	return cfg
}

// ConfigFromUnified 从统一配置创建 Storage 配置
//
// 从 config.Config.Storage 读取数据目录和模式配置。
func ConfigFromUnified(cfg *config.Config) Config {
	storageCfg := DefaultConfig()

	if cfg == nil {
		return storageCfg
	}

	if cfg.Storage.InMemory {
		return MemoryConfig()
	}

	if cfg.Storage.Directory != "" {
		storageCfg.Path = cfg.Storage.DBPath()
	}
	storageCfg.SyncWrites = cfg.Storage.SyncWrites

	return storageCfg
}

// ToEngineConfig 转换为引擎配置
func (c *Config) ToEngineConfig() *engine.Config {
	engineCfg := engine.DefaultConfig(c.Path)

	engineCfg.InMemory = c.InMemory
	engineCfg.SyncWrites = c.SyncWrites
	engineCfg.Badger.GCDiscardRatio = c.GCDiscardRatio
	engineCfg.Badger.BlockCacheSize = c.BlockCacheSize
	engineCfg.Badger.ZSTDCompressionLevel = c.Compression

	if c.GCEnabled {
		engineCfg.Badger.GCInterval = c.GCInterval
	} else {
		engineCfg.Badger.GCInterval = 0
	}

	return engineCfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	// 持久化模式下 Path 是必需的
	if !c.InMemory && c.Path == "" {
		return ErrInvalidConfig
	}

	if c.GCEnabled && c.GCInterval < time.Minute {
		c.GCInterval = time.Minute
	}

	if c.GCDiscardRatio <= 0 || c.GCDiscardRatio > 1 {
		c.GCDiscardRatio = 0.5
	}

	return nil
}

// WithPath 设置存储路径
func (c Config) WithPath(path string) Config {
	c.Path = path
	return c
}

// WithInMemory 设置内存模式
func (c Config) WithInMemory(inMemory bool) Config {
	c.InMemory = inMemory
	return c
}

// WithSyncWrites 设置同步写入
func (c Config) WithSyncWrites(sync bool) Config {
	c.SyncWrites = sync
	return c
}

// WithGC 设置垃圾回收配置
func (c Config) WithGC(enabled bool, interval time.Duration) Config {
	c.GCEnabled = enabled
	c.GCInterval = interval
	return c
}
