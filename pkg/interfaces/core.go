// Package interfaces - 日志协作者接口
//
// 本文件定义 Store 与底层追加日志之间的协作边界。
// Corestore 自身只管理日志的身份派生、去重缓存与复制通道；
// 日志的存储格式由 Opener 返回的 Log 实现决定。
// 内置默认实现为 internal/core/appendlog（BadgerDB 持久化）。
package interfaces

import (
	"context"
	"errors"

	"github.com/dep2p/go-corestore/pkg/lib/crypto"
	"github.com/dep2p/go-corestore/pkg/types"
)

// ============================================================================
//                              错误定义
// ============================================================================

var (
	// ErrBlockMissing 请求的块在本地不存在
	ErrBlockMissing = errors.New("block not available locally")

	// ErrNotResolvable 发现钩子无法解析该发现键
	ErrNotResolvable = errors.New("discovery key not resolvable")

	// ErrLogClosed 日志已关闭
	ErrLogClosed = errors.New("log is closed")

	// ErrLogNotWritable 日志只读（按公钥打开，无私钥）
	ErrLogNotWritable = errors.New("log is not writable")
)

// ============================================================================
//                              CoreRef - 日志引用
// ============================================================================

// CoreRef 打开日志所需的身份引用
//
// 两种形态：
//   - 带 KeyPair：名字派生路径，持有私钥，打开后可写
//   - 仅 Key：按公钥打开，只读，数据经复制到达
type CoreRef struct {
	// Key 日志公钥（必填）
	Key types.CoreKey

	// KeyPair 完整密钥对（可选；非 nil 且含私钥时日志可写）
	KeyPair *crypto.KeyPair

	// Namespace 与 Name 记录名字派生来源（可选）
	//
	// 携带时日志实现会将来源写入持久化元数据；重启后发现钩子
	// 凭它重新派生密钥对，恢复日志的写能力。按公钥打开的引用
	// 没有派生来源，两字段留空。
	Namespace []string
	Name      string
}

// Writable 此引用是否携带写能力
func (r CoreRef) Writable() bool {
	return r.KeyPair != nil && r.KeyPair.Writable()
}

// ============================================================================
//                              Log - 日志句柄
// ============================================================================

// Log 追加日志句柄
//
// 注册表中每个 CoreEntry 持有一个 Log；同一发现键的所有会话句柄
// 共享同一个 Log 实例。实现必须保证所有方法的线程安全性。
//
// 长度语义：Length 为"已知最高块索引 + 1"。远程块可能乱序到达，
// 中间索引的块不一定在本地（Block 返回 ErrBlockMissing）。
type Log interface {
	// PublicKey 返回日志公钥
	PublicKey() types.CoreKey

	// Writable 是否持有写能力
	Writable() bool

	// Length 返回当前已知长度
	Length() uint64

	// Append 追加块并返回新长度
	//
	// 仅可写日志支持；只读日志返回 ErrLogNotWritable。
	Append(blocks ...[]byte) (uint64, error)

	// Block 读取本地已有的块
	//
	// 返回:
	//   - []byte: 块内容的副本
	//   - error: ErrBlockMissing 如果块尚未到达本地
	Block(index uint64) ([]byte, error)

	// Has 检查块是否在本地
	Has(index uint64) bool

	// WaitBlock 阻塞读取块
	//
	// 块已在本地时立即返回；否则阻塞到块到达（远程复制写入）、
	// ctx 取消或日志关闭。
	WaitBlock(ctx context.Context, index uint64) ([]byte, error)

	// PendingWants 返回当前有等待者的块索引（升序）
	//
	// 复制通道在建立和收到对端长度公告时，用它重发未完成的块请求。
	PendingWants() []uint64

	// PutRemote 写入经复制到达的远程块
	//
	// 幂等：块已存在时不做任何事。写入成功后唤醒对应索引的等待者，
	// 并在长度增长时触发 OnGrow 回调。
	PutRemote(index uint64, block []byte) error

	// OnGrow 注册长度增长回调
	//
	// 本地追加与远程块落盘都会触发。注册表用它发布日志增长事件。
	// 回调在持锁外执行，实现不得并发触发同一回调。
	OnGrow(fn func(length uint64))

	// OnWant 注册缺块等待回调
	//
	// WaitBlock 在缺失的块上登记首个等待者后触发（同一索引在
	// 等待者清空前只触发一次）。注册表用它发布缺块事件，复制流
	// 据此向对端转发块请求。回调在持锁外执行。
	OnWant(fn func(index uint64))

	// Close 关闭日志句柄
	//
	// 释放等待者（WaitBlock 返回 ErrLogClosed），刷新缓冲。
	// 不删除持久化数据。
	Close() error
}

// ============================================================================
//                              Opener - 日志打开器
// ============================================================================

// Opener 日志打开器（外部协作者）
//
// 注册表在物化 CoreEntry 时调用。注册表负责去重（同一发现键
// 永远只有一次在途物化），但实现必须保证重复打开同一身份
// 不破坏持久化状态（幂等安全）。
type Opener interface {
	// OpenCore 打开（或创建）ref 指向的日志
	OpenCore(ctx context.Context, ref CoreRef) (Log, error)
}

// OpenerFunc 函数适配器
type OpenerFunc func(ctx context.Context, ref CoreRef) (Log, error)

// OpenCore 实现 Opener 接口
func (f OpenerFunc) OpenCore(ctx context.Context, ref CoreRef) (Log, error) {
	return f(ctx, ref)
}

// ============================================================================
//                              Resolver - 发现钩子
// ============================================================================

// Resolver 发现钩子（外部协作者，可选）
//
// 仅在复制请求命中注册表缺失时调用：对端请求了一个本进程
// 尚未 Get 过的日志。实现可查询持久化存储找回历史上见过的
// 日志。解析失败不是错误路径（返回 ErrNotResolvable），
// 请求方通道保持空闲。
type Resolver interface {
	// ResolveCore 将发现键解析为可打开的日志引用
	//
	// 返回:
	//   - CoreRef: 解析出的引用（至少含公钥）
	//   - error: ErrNotResolvable 表示查无此日志
	ResolveCore(ctx context.Context, dk types.DiscoveryKey) (CoreRef, error)
}

// ResolverFunc 函数适配器
type ResolverFunc func(ctx context.Context, dk types.DiscoveryKey) (CoreRef, error)

// ResolveCore 实现 Resolver 接口
func (f ResolverFunc) ResolveCore(ctx context.Context, dk types.DiscoveryKey) (CoreRef, error) {
	return f(ctx, dk)
}
