// Package interfaces - 复制流接口
//
// 本文件定义 Store.Replicate 返回的复制流句柄。
package interfaces

import (
	"github.com/dep2p/go-corestore/pkg/types"
)

// ReplicationStream 复制流句柄
//
// 一条复制流对应一个对端 duplex 连接，内部为每个共享的日志
// 维护一条通道。状态机：Handshaking → Active → Closing → Closed。
//
// 流的生命周期独立于 Store：单条流失败只影响自身的通道，
// Store 与其他流不受影响。
type ReplicationStream interface {
	// ID 返回流的唯一标识（日志关联用）
	ID() string

	// Role 返回流角色（发起方/响应方）
	Role() types.StreamRole

	// State 返回当前生命周期状态
	State() types.StreamState

	// RemoteIdentity 返回对端的复制身份公钥
	//
	// 握手完成前返回空值。
	RemoteIdentity() types.CoreKey

	// Done 返回流终止通知通道
	//
	// 流进入 Closed 后关闭。
	Done() <-chan struct{}

	// Err 返回导致流终止的错误
	//
	// 主动关闭返回 nil；传输故障返回底层错误。
	// 仅在 Done 关闭后有意义。
	Err() error

	// Close 关闭复制流
	//
	// 任意时刻调用都安全（包括握手期间）。分离所有通道并释放
	// 其隐式会话句柄后返回。多次调用是安全的。
	Close() error
}
