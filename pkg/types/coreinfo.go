// Package types 定义 Corestore 的基础类型
//
// 本文件定义日志目录条目描述符。
package types

// ============================================================================
//                              CoreInfo - 日志目录条目
// ============================================================================

// CoreInfo 持久化存储中一条日志的描述
//
// 由 Store.Cores 返回，来自存储后端的元数据扫描，
// 与注册表中的活跃句柄无关（未打开的日志同样会列出）。
type CoreInfo struct {
	// Key 日志公钥
	Key CoreKey

	// DiscoveryKey 日志发现键
	DiscoveryKey DiscoveryKey

	// Length 已知长度（最高块索引 + 1）
	Length uint64

	// Name 名字派生来源（按公钥打开的日志为空）
	Name string

	// Writable 当前根密钥下是否可恢复写能力
	Writable bool
}
