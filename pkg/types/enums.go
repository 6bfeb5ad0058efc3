// Package types 定义 Corestore 的基础类型
//
// 本文件定义枚举类型。
package types

// ============================================================================
//                              StreamState - 复制流状态
// ============================================================================

// StreamState 复制流生命周期状态
//
// 状态机：Handshaking → Active → Closing → Closed
//
//   - Handshaking: 传输层握手（噪声 XX + 多路复用会话建立）进行中
//   - Active: 握手完成，可以创建/接受通道
//   - Closing: 任一端发出结束信号、传输出错或显式销毁
//   - Closed: 所有通道已分离，缓冲状态已清理
type StreamState int32

const (
	// StreamStateHandshaking 握手中
	StreamStateHandshaking StreamState = iota
	// StreamStateActive 活跃（可收发）
	StreamStateActive
	// StreamStateClosing 关闭中
	StreamStateClosing
	// StreamStateClosed 已关闭
	StreamStateClosed
)

// String 返回状态的字符串表示
func (s StreamState) String() string {
	switch s {
	case StreamStateHandshaking:
		return "handshaking"
	case StreamStateActive:
		return "active"
	case StreamStateClosing:
		return "closing"
	case StreamStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              StreamRole - 复制流角色
// ============================================================================

// StreamRole 复制流角色
//
// 由 Replicate 调用方声明；决定噪声握手与多路复用会话中的
// 客户端/服务端身份，以及通道冲突时的确定性仲裁。
type StreamRole int32

const (
	// StreamRoleInitiator 发起方
	StreamRoleInitiator StreamRole = iota
	// StreamRoleResponder 响应方
	StreamRoleResponder
)

// String 返回角色的字符串表示
func (r StreamRole) String() string {
	switch r {
	case StreamRoleInitiator:
		return "initiator"
	case StreamRoleResponder:
		return "responder"
	default:
		return "unknown"
	}
}
