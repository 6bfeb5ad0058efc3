package replication

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
)

// ============================================================================
//                              帧格式
// ============================================================================
//
// 帧格式: [uvarint frame length][type byte][protobuf body]
//
// frame length = 1 + len(body)，不含长度前缀自身。

// MaxFrameSize 单帧最大长度（类型字节 + 消息体）
//
// 上限同时约束了单个块的最大尺寸。
const MaxFrameSize = 1 << 22 // 4 MiB

// ErrFrameTooLarge 帧超过 MaxFrameSize
var ErrFrameTooLarge = errors.New("replication frame exceeds size limit")

// ErrEmptyFrame 帧长度为 0（缺少类型字节）
var ErrEmptyFrame = errors.New("replication frame is empty")

// MessageType 消息类型字节
type MessageType byte

const (
	// MessageOpen 通道打开请求
	MessageOpen MessageType = 1
	// MessageAccept 通道打开确认
	MessageAccept MessageType = 2
	// MessageInfo 长度公告
	MessageInfo MessageType = 3
	// MessageRequest 块请求
	MessageRequest MessageType = 4
	// MessageData 块数据
	MessageData MessageType = 5
)

// String 返回消息类型的字符串表示
func (t MessageType) String() string {
	switch t {
	case MessageOpen:
		return "open"
	case MessageAccept:
		return "accept"
	case MessageInfo:
		return "info"
	case MessageRequest:
		return "request"
	case MessageData:
		return "data"
	default:
		return "unknown"
	}
}

// Message 协议消息接口
type Message interface {
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
}

// ============================================================================
//                              帧编解码
// ============================================================================

// WriteFrame 写入一帧
//
// 将消息编码为 [长度][类型][消息体] 并一次性写出。
// 调用者负责对同一 writer 的并发写入做串行化。
func WriteFrame(w io.Writer, typ MessageType, msg Message) error {
	body, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}

	frameLen := uint64(1 + len(body))
	if frameLen > MaxFrameSize {
		return ErrFrameTooLarge
	}

	out := make([]byte, 0, varint.UvarintSize(frameLen)+int(frameLen))
	out = append(out, varint.ToUvarint(frameLen)...)
	out = append(out, byte(typ))
	out = append(out, body...)

	_, err = w.Write(out)
	return err
}

// ReadFrame 读取一帧
//
// 返回消息类型与未解码的消息体。消息体是新分配的切片，
// 调用者可以安全持有。
func ReadFrame(r *bufio.Reader) (MessageType, []byte, error) {
	frameLen, err := varint.ReadUvarint(r)
	if err != nil {
		return 0, nil, err
	}
	if frameLen == 0 {
		return 0, nil, ErrEmptyFrame
	}
	if frameLen > MaxFrameSize {
		return 0, nil, ErrFrameTooLarge
	}

	typ, err := r.ReadByte()
	if err != nil {
		return 0, nil, err
	}

	body := make([]byte, frameLen-1)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}

	return MessageType(typ), body, nil
}
