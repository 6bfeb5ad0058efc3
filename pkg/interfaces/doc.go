// Package interfaces 定义 Corestore 的公共接口
//
// 按协作边界组织接口定义，采用扁平命名：
//
// # 外部协作者接口
//
// Store 构造时可注入的协作者（不注入时使用内置默认实现）：
//   - core.go        - Log 日志句柄、Opener 日志打开器、Resolver 发现钩子
//   - storage.go     - Engine 存储引擎（默认 BadgerDB 实现）
//
// # 复制接口
//
//   - replication.go - ReplicationStream 复制流（Replicate 的返回值）
//
// # 基础设施接口
//
//   - eventbus.go    - EventBus 事件总线
//
// # 设计原则
//
// 1. 接口归属调用方：接口定义放在使用它的抽象层，实现放在 internal/
// 2. 最小化接口：仅暴露跨组件协作必需的方法
// 3. 值类型入参：键、发现键等使用 pkg/types 的定长值类型
package interfaces
