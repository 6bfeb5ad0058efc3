// Package metrics 提供复制流量统计
//
// 复制通道在块收发路径上调用 Counter 记录，总量和按发现键
// 两个粒度各维护一对收发计量器。计量器累计块数与字节数，
// 字节速率用指数加权移动平均计算，读路径完全无锁。
//
// Reporter 可按固定间隔把总量快照写入日志，间隔为零时保持
// 关闭。
//
// # 架构定位
//
//	依赖: pkg/types, pkg/lib/log
//	被依赖: replicator（记录）, 根包 Stats()（读取）
package metrics
