// Package muxer 提供复制流的 yamux 多路复用
//
// 一条复制流对应一个 yamux 会话，流上的每个复制通道占用
// 一个独立子流。子流层面的流量控制由 yamux 负责，通道协议
// 只关心消息语义。
//
// # 子流编号
//
// yamux 给客户端（会话发起方）打开的子流分配奇数 ID，给
// 服务端打开的分配偶数 ID。两端都能据此判断一个子流由谁
// 打开，通道冲突时以会话发起方打开的子流为准。
//
// # 架构定位
//
//	┌─────────────────────────┐
//	│  replicator (复制会话)   │
//	├─────────────────────────┤
//	│  muxer (本包)            │   <- 子流多路复用
//	├─────────────────────────┤
//	│  security/noise          │
//	└─────────────────────────┘
package muxer
