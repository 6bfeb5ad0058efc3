package muxer

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/yamux"
)

// Stream 封装 yamux 子流
type Stream struct {
	stream *yamux.Stream
	id     uint32
	closed atomic.Bool
}

func newStream(ys *yamux.Stream) *Stream {
	return &Stream{
		stream: ys,
		id:     ys.StreamID(),
	}
}

// Read 从子流读取数据
func (s *Stream) Read(p []byte) (int, error) {
	return s.stream.Read(p)
}

// Write 向子流写入数据
func (s *Stream) Write(p []byte) (int, error) {
	return s.stream.Write(p)
}

// Close 关闭子流，可重复调用
func (s *Stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.stream.Close()
}

// IsClosed 子流是否已被本端关闭
func (s *Stream) IsClosed() bool {
	return s.closed.Load()
}

// ID 返回子流 ID
func (s *Stream) ID() uint32 {
	return s.id
}

// OpenedByInitiator 该子流是否由会话发起方打开
//
// yamux 客户端分配奇数 ID，服务端分配偶数 ID，两端对同一
// 子流得到相同判断。通道冲突的仲裁依赖这一点。
func (s *Stream) OpenedByInitiator() bool {
	return s.id%2 == 1
}

// SetDeadline 设置读写超时
func (s *Stream) SetDeadline(t time.Time) error {
	return s.stream.SetDeadline(t)
}

// SetReadDeadline 设置读超时
func (s *Stream) SetReadDeadline(t time.Time) error {
	return s.stream.SetReadDeadline(t)
}

// SetWriteDeadline 设置写超时
func (s *Stream) SetWriteDeadline(t time.Time) error {
	return s.stream.SetWriteDeadline(t)
}
