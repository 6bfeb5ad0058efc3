// Package replication 包含复制协议的 protobuf 定义
//
// 每条通道（一个日志绑定到一条复制流）在独立的多路复用子流上
// 交换以下消息：
//
//	Open    → 绑定发现键并出示能力证明（子流首条消息）
//	Accept  → 响应方确认绑定并出示自己的能力证明
//	Info    → 公告本端已知日志长度（建立时与每次增长时）
//	Request → 按索引请求块
//	Data    → 按索引传输块
//
// 消息体使用 protobuf wire format 手工编码，未知字段静默忽略
// （向前兼容）。
package replication

import (
	"errors"
)

// ErrInvalidMessage 表示无效的消息数据
var ErrInvalidMessage = errors.New("invalid replication message data")

// ============================================================================
//                              Open
// ============================================================================

// Open 通道打开请求
//
// 子流上的第一条消息。Capability 为以日志公钥为密钥、绑定本条
// 流噪声信道绑定值的 MAC；对端必须持有公钥才能验证，因此
// Open 无法被只知道发现键的一方伪造或跨流重放。
type Open struct {
	// 发现键（32 字节）
	DiscoveryKey []byte
	// 能力证明（32 字节 keyed MAC）
	Capability []byte
}

// Marshal 序列化 Open
//
// 使用 protobuf wire format 编码：
//   - Field 1 (discovery_key): tag=0x0a, wire type=2 (length-delimited)
//   - Field 2 (capability): tag=0x12, wire type=2 (length-delimited)
func (m *Open) Marshal() ([]byte, error) {
	result := make([]byte, 0, len(m.DiscoveryKey)+len(m.Capability)+6)

	if len(m.DiscoveryKey) > 0 {
		result = append(result, 0x0a)
		result = appendVarint(result, uint64(len(m.DiscoveryKey)))
		result = append(result, m.DiscoveryKey...)
	}
	if len(m.Capability) > 0 {
		result = append(result, 0x12)
		result = appendVarint(result, uint64(len(m.Capability)))
		result = append(result, m.Capability...)
	}

	return result, nil
}

// Unmarshal 反序列化 Open
func (m *Open) Unmarshal(data []byte) error {
	return consumeFields(data, func(fieldNum byte, raw []byte) {
		switch fieldNum {
		case 1:
			m.DiscoveryKey = append([]byte(nil), raw...)
		case 2:
			m.Capability = append([]byte(nil), raw...)
		}
	})
}

// ============================================================================
//                              Accept
// ============================================================================

// Accept 通道打开确认
//
// 响应方验证 Open 能力证明通过后回发，携带自己方向的能力证明。
// 双向验证通过后通道进入已建立状态。
type Accept struct {
	// 能力证明（32 字节 keyed MAC）
	Capability []byte
}

// Marshal 序列化 Accept
func (m *Accept) Marshal() ([]byte, error) {
	result := make([]byte, 0, len(m.Capability)+3)

	if len(m.Capability) > 0 {
		result = append(result, 0x0a)
		result = appendVarint(result, uint64(len(m.Capability)))
		result = append(result, m.Capability...)
	}

	return result, nil
}

// Unmarshal 反序列化 Accept
func (m *Accept) Unmarshal(data []byte) error {
	return consumeFields(data, func(fieldNum byte, raw []byte) {
		if fieldNum == 1 {
			m.Capability = append([]byte(nil), raw...)
		}
	})
}

// ============================================================================
//                              Info
// ============================================================================

// Info 长度公告
//
// 通道建立后与每次本端日志增长后发送。对端据此为阻塞中的
// 读请求重发块请求。
type Info struct {
	// 本端已知日志长度
	Length uint64
}

// Marshal 序列化 Info
//
//   - Field 1 (length): tag=0x08, wire type=0 (varint)
func (m *Info) Marshal() ([]byte, error) {
	if m.Length == 0 {
		return nil, nil
	}
	result := make([]byte, 0, 11)
	result = append(result, 0x08)
	result = appendVarint(result, m.Length)
	return result, nil
}

// Unmarshal 反序列化 Info
func (m *Info) Unmarshal(data []byte) error {
	return consumeVarintFields(data, func(fieldNum byte, v uint64) {
		if fieldNum == 1 {
			m.Length = v
		}
	})
}

// ============================================================================
//                              Request
// ============================================================================

// Request 块请求
//
// 对端没有该块时不回错误：请求被记住，块一旦出现立即补发 Data。
type Request struct {
	// 请求的块索引
	Index uint64
}

// Marshal 序列化 Request
func (m *Request) Marshal() ([]byte, error) {
	if m.Index == 0 {
		return nil, nil
	}
	result := make([]byte, 0, 11)
	result = append(result, 0x08)
	result = appendVarint(result, m.Index)
	return result, nil
}

// Unmarshal 反序列化 Request
func (m *Request) Unmarshal(data []byte) error {
	return consumeVarintFields(data, func(fieldNum byte, v uint64) {
		if fieldNum == 1 {
			m.Index = v
		}
	})
}

// ============================================================================
//                              Data
// ============================================================================

// Data 块数据
type Data struct {
	// 块索引
	Index uint64
	// 块内容
	Block []byte
}

// Marshal 序列化 Data
//
//   - Field 1 (index): tag=0x08, wire type=0 (varint)
//   - Field 2 (block): tag=0x12, wire type=2 (length-delimited)
func (m *Data) Marshal() ([]byte, error) {
	result := make([]byte, 0, len(m.Block)+14)

	if m.Index > 0 {
		result = append(result, 0x08)
		result = appendVarint(result, m.Index)
	}
	if len(m.Block) > 0 {
		result = append(result, 0x12)
		result = appendVarint(result, uint64(len(m.Block)))
		result = append(result, m.Block...)
	}

	return result, nil
}

// Unmarshal 反序列化 Data
func (m *Data) Unmarshal(data []byte) error {
	for len(data) > 0 {
		tag := data[0]
		data = data[1:]

		fieldNum := tag >> 3
		wireType := tag & 0x07

		switch wireType {
		case 0: // varint
			v, n := consumeVarint(data)
			if n < 0 {
				return ErrInvalidMessage
			}
			data = data[n:]
			if fieldNum == 1 {
				m.Index = v
			}
		case 2: // length-delimited
			length, n := consumeVarint(data)
			if n < 0 {
				return ErrInvalidMessage
			}
			data = data[n:]
			if length > uint64(len(data)) {
				return ErrInvalidMessage
			}
			if fieldNum == 2 {
				m.Block = append([]byte(nil), data[:length]...)
			}
			data = data[length:]
		default:
			return ErrInvalidMessage
		}
	}
	return nil
}

// ============================================================================
//                              编码工具
// ============================================================================

// appendVarint 追加 varint 编码
func appendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// consumeVarint 消费 varint 编码，返回值和消费的字节数
func consumeVarint(data []byte) (uint64, int) {
	var v uint64
	for i := 0; i < len(data) && i < 10; i++ {
		b := data[i]
		v |= uint64(b&0x7f) << (7 * i)
		if b < 0x80 {
			return v, i + 1
		}
	}
	return 0, -1
}

// consumeFields 遍历 length-delimited 字段，未知字段静默忽略
func consumeFields(data []byte, assign func(fieldNum byte, raw []byte)) error {
	for len(data) > 0 {
		tag := data[0]
		data = data[1:]

		fieldNum := tag >> 3
		wireType := tag & 0x07

		if wireType != 2 {
			return ErrInvalidMessage
		}

		length, n := consumeVarint(data)
		if n < 0 {
			return ErrInvalidMessage
		}
		data = data[n:]

		if length > uint64(len(data)) {
			return ErrInvalidMessage
		}

		assign(fieldNum, data[:length])
		data = data[length:]
	}
	return nil
}

// consumeVarintFields 遍历 varint 字段，未知字段静默忽略
func consumeVarintFields(data []byte, assign func(fieldNum byte, v uint64)) error {
	for len(data) > 0 {
		tag := data[0]
		data = data[1:]

		fieldNum := tag >> 3
		wireType := tag & 0x07

		if wireType != 0 {
			return ErrInvalidMessage
		}

		v, n := consumeVarint(data)
		if n < 0 {
			return ErrInvalidMessage
		}
		data = data[n:]

		assign(fieldNum, v)
	}
	return nil
}
