// Package corestore 提供多日志存储管理器
//
// Corestore 管理任意数量的追加日志（core）：按名字从一把根密钥
// 确定性派生可写日志，按公钥打开只读日志，并在任意双向传输上
// 与远端同步日志内容。
//
// # 核心概念
//
// Corestore 围绕三个核心概念构建：
//
//   - Store: 存储管理器，用户交互的主入口
//   - Core: 单条追加日志的句柄，支持追加与按序号读取
//   - Replication: 复制流，经噪声握手与多路复用同步多条日志
//
// # 快速开始
//
//	import "github.com/dep2p/go-corestore"
//
//	// 1. 创建 Store
//	store, err := corestore.New(
//	    corestore.WithStorage("/var/lib/corestore"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	// 2. 按名字获取可写日志
//	core, err := store.GetByName(ctx, "journal")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer core.Close()
//	core.Append([]byte("hello"))
//
//	// 3. 与远端同步
//	conn, _ := net.Dial("tcp", "peer:9000")
//	stream, _ := store.Replicate(ctx, conn, true)
//	defer stream.Close()
//
// # API 层次结构
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│  入口层                                                          │
//	│  ┌─────────┐                                                     │
//	│  │  Store  │  corestore.New()                                   │
//	│  └─────────┘                                                     │
//	├─────────────────────────────────────────────────────────────────┤
//	│  视图层                                                          │
//	│  ┌───────────┐ ┌─────────┐                                       │
//	│  │ Namespace │ │ Session │  store.Namespace() / store.Session() │
//	│  └───────────┘ └─────────┘                                       │
//	├─────────────────────────────────────────────────────────────────┤
//	│  日志与复制层                                                     │
//	│  ┌────────┐ ┌───────────────────┐                                │
//	│  │  Core  │ │ ReplicationStream │                                │
//	│  └────────┘ └───────────────────┘                                │
//	│  store.Get() / store.Replicate()                                 │
//	└─────────────────────────────────────────────────────────────────┘
//
// # 文件组织
//
// 本包按功能领域组织代码：
//
//	corestore/
//	├── corestore.go          # 版本信息
//	├── doc.go                # 包文档
//	│
//	# ════════════════════════════════════════════════════════════════
//	#                          入口层（Store）
//	# ════════════════════════════════════════════════════════════════
//	├── store.go              # Store 结构、New()、Get、Replicate、Close
//	├── session.go            # Namespace、Session 派生视图
//	├── core.go               # Core 日志句柄
//	│
//	# ════════════════════════════════════════════════════════════════
//	#                          支撑层
//	# ════════════════════════════════════════════════════════════════
//	├── options.go            # WithXxx 配置选项
//	└── errors.go             # 错误定义
//
// # 五层软件架构
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  1. API Layer                                               │
//	│     corestore.New(), Store, Core                            │
//	│     用户入口，配置选项                                        │
//	├─────────────────────────────────────────────────────────────┤
//	│  2. Registry Layer                                          │
//	│     internal/core/registry                                  │
//	│     按发现键去重的活跃日志注册表，引用计数与延迟驱逐           │
//	├─────────────────────────────────────────────────────────────┤
//	│  3. Replication Layer                                       │
//	│     internal/core/replicator, noise, muxer, proto           │
//	│     噪声握手、多路复用、按日志建立复制通道                     │
//	├─────────────────────────────────────────────────────────────┤
//	│  4. Log Layer                                               │
//	│     internal/core/appendlog, keymanager                     │
//	│     追加日志实现、确定性密钥派生与能力证明                     │
//	├─────────────────────────────────────────────────────────────┤
//	│  5. Storage Layer                                           │
//	│     internal/core/storage (BadgerDB / 内存)                 │
//	│     持久化引擎、键值封装                                      │
//	└─────────────────────────────────────────────────────────────┘
//
// # 更多资源
//
//   - 使用示例: examples/
//   - 命令行工具: cmd/corestore/
//
// # 版本
//
// 当前版本: v0.1.0
//
// 更多信息请访问: https://github.com/dep2p/go-corestore
package corestore
