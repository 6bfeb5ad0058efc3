package corestore

import (
	"context"
	"sync"

	"github.com/dep2p/go-corestore/internal/core/registry"
	"github.com/dep2p/go-corestore/pkg/types"
)

// Core 一条追加日志的用户句柄
//
// 由 Store 的 Get 系列方法返回。多个句柄可以指向同一条底层
// 日志，句柄各自独立关闭，最后一个句柄关闭后日志延迟下线。
// 所有方法并发安全。
type Core struct {
	owner  *Store
	handle *registry.Handle

	mu     sync.Mutex
	closed bool
}

// Key 返回日志公钥
func (c *Core) Key() types.CoreKey {
	return c.handle.Log().PublicKey()
}

// DiscoveryKey 返回日志的发现键
func (c *Core) DiscoveryKey() types.DiscoveryKey {
	return c.handle.DiscoveryKey()
}

// Writable 返回日志是否可写（本地持有私钥）
func (c *Core) Writable() bool {
	return c.handle.Log().Writable()
}

// Length 返回日志当前长度
func (c *Core) Length() uint64 {
	if c.isClosed() {
		return 0
	}
	return c.handle.Log().Length()
}

// Append 追加若干块
//
// 参数:
//   - blocks: 依次追加的块内容
//
// 返回值:
//   - uint64: 追加前的日志长度，即首块的序号
//   - error: 句柄已关闭、日志只读或写入失败
func (c *Core) Append(blocks ...[]byte) (uint64, error) {
	if c.isClosed() {
		return 0, ErrCoreClosed
	}
	return c.handle.Log().Append(blocks...)
}

// Get 读取指定序号的块
//
// 块本地缺失时登记需求并阻塞等待复制补齐，直到 ctx 取消。
//
// 参数:
//   - ctx: 等待上下文
//   - index: 块序号
//
// 返回值:
//   - []byte: 块内容
//   - error: 句柄已关闭、等待被取消或日志已关闭
func (c *Core) Get(ctx context.Context, index uint64) ([]byte, error) {
	if c.isClosed() {
		return nil, ErrCoreClosed
	}
	return c.handle.Log().WaitBlock(ctx, index)
}

// Has 返回指定序号的块本地是否存在
func (c *Core) Has(index uint64) bool {
	if c.isClosed() {
		return false
	}
	return c.handle.Log().Has(index)
}

// Close 关闭句柄
//
// 释放注册表引用并从所属视图注销，不直接关闭底层日志。
// 幂等，重复调用返回 nil。
func (c *Core) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.owner.forget(c)
	c.handle.Release()
	return nil
}

// isClosed 返回句柄是否已关闭
func (c *Core) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
