package muxer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/yamux"
)

// DefaultConfig 返回默认的 yamux 配置
//
// 保活探测用于发现底层传输悄然断开的会话，复制流靠它
// 在对端失联时进入关闭流程。
func DefaultConfig() *yamux.Config {
	return &yamux.Config{
		AcceptBacklog:          256,
		EnableKeepAlive:        true,
		KeepAliveInterval:      30 * time.Second,
		ConnectionWriteTimeout: 10 * time.Second,
		MaxStreamWindowSize:    256 * 1024, // 256 KB
		StreamOpenTimeout:      75 * time.Second,
		StreamCloseTimeout:     5 * time.Minute,
		LogOutput:              io.Discard, // 禁用 yamux 自带日志
	}
}

// ============================================================================
//                              会话
// ============================================================================

// Session 封装一条复制流的 yamux 会话
type Session struct {
	session   *yamux.Session
	initiator bool
}

// New 在双工连接上建立 yamux 会话
//
// 参数:
//   - rwc: 底层双工连接（通常是 noise 加密连接）
//   - initiator: true = 复制流发起方（yamux 客户端）
//   - cfg: yamux 配置，nil 使用 DefaultConfig
func New(rwc io.ReadWriteCloser, initiator bool, cfg *yamux.Config) (*Session, error) {
	if rwc == nil {
		return nil, fmt.Errorf("muxer: nil connection")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var session *yamux.Session
	var err error
	if initiator {
		session, err = yamux.Client(rwc, cfg)
	} else {
		session, err = yamux.Server(rwc, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("muxer: create session: %w", err)
	}

	return &Session{session: session, initiator: initiator}, nil
}

// Open 打开新子流
//
// yamux 的 OpenStream 不接受 context，通过旁路 goroutine
// 支持取消；取消后孤立的子流会被关闭以防泄漏。
func (s *Session) Open(ctx context.Context) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		stream *yamux.Stream
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		ys, err := s.session.OpenStream()
		select {
		case resultCh <- result{stream: ys, err: err}:
		default:
			// 取消后才返回的子流，关闭防泄漏
			if ys != nil {
				_ = ys.Close()
			}
		}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-resultCh:
		if r.err != nil {
			return nil, fmt.Errorf("muxer: open stream: %w", r.err)
		}
		return newStream(r.stream), nil
	}
}

// Accept 接受对端打开的子流，阻塞直到有新子流或会话关闭
func (s *Session) Accept() (*Stream, error) {
	ys, err := s.session.AcceptStream()
	if err != nil {
		return nil, fmt.Errorf("muxer: accept stream: %w", err)
	}
	return newStream(ys), nil
}

// Close 关闭会话及其全部子流
func (s *Session) Close() error {
	return s.session.Close()
}

// IsClosed 会话是否已关闭
func (s *Session) IsClosed() bool {
	return s.session.IsClosed()
}

// CloseChan 返回会话关闭时被关闭的通道
func (s *Session) CloseChan() <-chan struct{} {
	return s.session.CloseChan()
}

// NumStreams 当前活跃子流数量
func (s *Session) NumStreams() int {
	return s.session.NumStreams()
}

// Initiator 本端是否是会话发起方
func (s *Session) Initiator() bool {
	return s.initiator
}
