package replicator

import (
	"time"
)

// streamConfig 单条流的生效配置
type streamConfig struct {
	passive          bool
	handshakeTimeout time.Duration
}

// StreamOption 单条流的配置选项
//
// 覆盖复制器级别的默认值，仅对本次 Replicate 创建的流生效。
type StreamOption func(*streamConfig)

// WithPassive 设置本条流的被动模式
//
// 被动流不通告本地日志，仅响应对端的显式请求。
func WithPassive(passive bool) StreamOption {
	return func(c *streamConfig) {
		c.passive = passive
	}
}

// WithHandshakeTimeout 设置本条流的握手超时
//
// 超时后关闭底层传输终止握手；0 表示不限制。
func WithHandshakeTimeout(d time.Duration) StreamOption {
	return func(c *streamConfig) {
		c.handshakeTimeout = d
	}
}
