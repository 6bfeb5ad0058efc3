// Package appendlog 实现基于存储引擎的默认追加日志
//
// 这是 interfaces.Log / interfaces.Opener / interfaces.Resolver 的
// 内置实现。每条日志以发现键为标识落在 "c/" 命名空间下：
//
//	c/m/<dk>            日志元数据（公钥、长度、派生来源，JSON）
//	c/b/<dk><idx>       块内容（索引为 8 字节大端序）
//	c/h/<dk><idx>       块内容的 BLAKE2b-256 哈希
//
// 块与哈希成对写入；元数据随每次长度增长在同一批次内原子更新，
// 因此崩溃后长度与已落盘的块始终一致。
//
// # 长度与空洞
//
// 远程块可以乱序到达，日志长度是"已知最高索引 + 1"，中间索引
// 允许缺失（Block 返回 interfaces.ErrBlockMissing）。WaitBlock
// 在块到达前阻塞，复制通道用它实现跨对端的按需读取。
//
// # 写能力恢复
//
// 名字派生创建的日志会把派生来源（命名空间 + 名字）记入元数据。
// 重启后 Catalog 解析该日志时重新执行派生，公钥吻合则恢复完整
// 密钥对，日志保持可写；按公钥打开的日志没有派生来源，解析结果
// 永远只读。
//
// # 架构定位
//
//	依赖: storage, keymanager
//	被依赖: registry（经由 interfaces.Opener / interfaces.Resolver）
package appendlog
