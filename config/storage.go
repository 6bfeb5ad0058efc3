package config

import (
	"fmt"
	"path/filepath"
)

// StorageConfig 存储配置
//
// 配置 Corestore 的数据存储目录。所有组件统一使用 BadgerDB 持久化存储，
// 通过 Key 前缀隔离不同组件的数据。
//
// 数据目录结构：
//
//	${Directory}/
//	└── corestore.db/       # BadgerDB 主数据库
//	    ├── 000001.vlog     # Value Log
//	    ├── 000001.sst      # SSTable
//	    └── MANIFEST        # 数据库元信息
type StorageConfig struct {
	// Directory 数据目录路径
	// 存放 BadgerDB 数据库
	// 默认值: "./data"
	Directory string `json:"directory"`

	// InMemory 使用内存存储引擎
	// 进程退出后数据丢失，适用于测试和临时节点
	InMemory bool `json:"in_memory"`

	// SyncWrites 每次写入后同步到磁盘
	// 启用后牺牲写入吞吐换取崩溃一致性
	SyncWrites bool `json:"sync_writes"`
}

// DefaultStorageConfig 返回默认的存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Directory:  "./data", // 默认数据目录
		InMemory:   false,    // 默认持久化存储
		SyncWrites: false,    // 默认异步写入：依赖 BadgerDB WAL 保证持久性
	}
}

// Validate 验证存储配置的有效性
func (c *StorageConfig) Validate() error {
	if !c.InMemory && c.Directory == "" {
		return fmt.Errorf("storage: directory cannot be empty for persistent storage")
	}
	return nil
}

// DBPath 返回 BadgerDB 数据库路径
func (c *StorageConfig) DBPath() string {
	return filepath.Join(c.Directory, "corestore.db")
}

// WithDirectory 设置数据目录
func (c StorageConfig) WithDirectory(dir string) StorageConfig {
	c.Directory = dir
	return c
}

// WithInMemory 设置是否使用内存存储
func (c StorageConfig) WithInMemory(inMemory bool) StorageConfig {
	c.InMemory = inMemory
	return c
}

// WithSyncWrites 设置是否同步写入
func (c StorageConfig) WithSyncWrites(sync bool) StorageConfig {
	c.SyncWrites = sync
	return c
}
