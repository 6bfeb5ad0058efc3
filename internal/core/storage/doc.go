// Package storage 提供统一的持久化存储服务
//
// Storage 模块基于 BadgerDB 实现，为 Corestore 提供统一的键值存储后端。
// 所有日志的块数据、元数据与存储级状态都在同一个 BadgerDB 实例中，
// 通过键前缀隔离。测试和临时 Store 可以使用内存模式。
//
// # 架构
//
// Storage 模块位于 Core Layer，为其他模块提供存储服务：
//
//	┌─────────────────────────────────────────────┐
//	│                使用方模块                    │
//	│        AppendLog | KeyManager | Store       │
//	└─────────────────────────────────────────────┘
//	                      │
//	                      ▼
//	┌─────────────────────────────────────────────┐
//	│               storage (本包)                 │
//	│  ┌───────────────────────────────────────┐  │
//	│  │               kv.Store                │  │
//	│  │         带前缀隔离的 KV 抽象           │  │
//	│  └───────────────────────────────────────┘  │
//	│                      │                      │
//	│  ┌───────────────────────────────────────┐  │
//	│  │            engine/badger              │  │
//	│  │            BadgerDB 实现               │  │
//	│  └───────────────────────────────────────┘  │
//	└─────────────────────────────────────────────┘
//
// # 键空间设计
//
// 各模块使用不同的键前缀实现数据隔离：
//
//	前缀     | 模块       | 说明
//	---------|------------|------------------
//	c/m/     | appendlog  | 日志元数据（公钥、长度）
//	c/b/     | appendlog  | 块数据
//	c/h/     | appendlog  | 块哈希
//	s/       | store      | 存储级状态（根密钥）
//
// # 使用示例
//
// 使用 Fx 依赖注入（推荐）：
//
//	app := fx.New(
//	    storage.Module(),
//	    // ... 其他模块
//	)
//
// 手动创建：
//
//	eng, err := storage.New("/data/corestore")
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
//
//	// 创建带前缀的 KVStore
//	logs := storage.NewKVStore(eng, []byte("c/"))
//	state := storage.NewKVStore(eng, []byte("s/"))
//
// # 线程安全
//
// 所有公开的类型和方法都是线程安全的。
package storage
