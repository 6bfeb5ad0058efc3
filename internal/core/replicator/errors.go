package replicator

import (
	"errors"
)

var (
	// ErrNilRegistry 未提供注册表
	ErrNilRegistry = errors.New("replicator: registry is required")

	// ErrNilKeyManager 未提供密钥管理器
	ErrNilKeyManager = errors.New("replicator: key manager is required")

	// ErrNilBus 未提供事件总线
	ErrNilBus = errors.New("replicator: event bus is required")

	// ErrNoIdentity 复制身份缺失或不含私钥
	ErrNoIdentity = errors.New("replicator: replication identity with private key is required")

	// ErrReplicatorClosed 复制器已关闭
	ErrReplicatorClosed = errors.New("replicator: closed")

	// ErrNilTransport 未提供底层传输
	ErrNilTransport = errors.New("replicator: transport is required")

	// ErrHandshakeTimeout 握手超时
	ErrHandshakeTimeout = errors.New("replicator: handshake timed out")
)

// errUnexpectedMessage 子流上收到协议状态不允许的消息
var errUnexpectedMessage = errors.New("unexpected replication message")
