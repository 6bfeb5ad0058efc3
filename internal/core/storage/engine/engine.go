// Package engine 定义存储引擎接口
//
// engine 提供存储引擎的抽象接口，公共部分（Get/Put/Delete/Has/Close）
// 定义在 pkg/interfaces.Engine 中，本包在其基础上扩展批量写入、
// 前缀迭代等内部组件需要的能力。
//
// # 接口
//
//   - InternalEngine: 内部存储引擎接口
//   - Batch: 批量写入接口
//   - Iterator: 前缀迭代器接口
//
// # 实现
//
//   - badger: BadgerDB 实现（默认）
package engine

import (
	"github.com/dep2p/go-corestore/pkg/interfaces"
)

// InternalEngine 内部存储引擎接口
//
// 在公共 Engine 接口基础上扩展了内部组件需要的能力。
// 外部调用方只应依赖 interfaces.Engine。
type InternalEngine interface {
	interfaces.Engine

	// Start 启动引擎后台任务（垃圾回收等）
	Start() error

	// NewBatch 创建批量写入对象
	//
	// 批量写入中的所有操作在 Write 时原子提交。
	NewBatch() Batch

	// Write 执行批量写入
	Write(batch Batch) error

	// NewPrefixIterator 创建前缀迭代器
	//
	// 迭代器遍历所有以 prefix 开头的键，按键升序返回。
	// 使用完毕后必须调用 Close 释放底层资源。
	NewPrefixIterator(prefix []byte) Iterator

	// Sync 将缓冲数据同步到磁盘
	Sync() error

	// Stats 返回引擎统计信息
	Stats() *Stats
}

// Batch 批量写入接口
//
// Batch 不是线程安全的，单个 Batch 只应由一个 goroutine 使用。
type Batch interface {
	// Put 添加一个写入操作
	Put(key, value []byte)

	// Delete 添加一个删除操作
	Delete(key []byte)

	// Write 原子提交批量中的所有操作
	Write() error

	// Reset 清空批量中未提交的操作
	Reset()

	// Size 返回批量中的操作数量
	Size() int

	// Close 放弃未提交的操作并释放资源
	Close() error
}

// Iterator 前缀迭代器接口
//
// 典型用法：
//
//	iter := eng.NewPrefixIterator([]byte("c/m/"))
//	defer iter.Close()
//	for iter.First(); iter.Valid(); iter.Next() {
//	    process(iter.Key(), iter.Value())
//	}
type Iterator interface {
	// First 移动到第一个键值对
	First() bool

	// Next 移动到下一个键值对
	Next() bool

	// Valid 检查迭代器是否指向有效位置
	Valid() bool

	// Key 返回当前键的副本
	Key() []byte

	// Value 返回当前值的副本
	Value() []byte

	// Close 关闭迭代器
	Close()

	// Error 返回迭代过程中的错误
	Error() error
}

// Stats 引擎统计信息
type Stats struct {
	// KeyCount 估算的键数量
	KeyCount int64

	// DiskSize 磁盘占用（LSM 树 + 值日志，字节）
	DiskSize int64

	// NumReads 累计读取次数
	NumReads int64

	// NumWrites 累计写入次数
	NumWrites int64

	// NumDeletes 累计删除次数
	NumDeletes int64
}
