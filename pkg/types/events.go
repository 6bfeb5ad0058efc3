// Package types 定义 Corestore 公共类型
//
// 本文件定义事件相关类型。
package types

import (
	"time"
)

// ============================================================================
//                              Event - 事件接口
// ============================================================================

// Event 基础事件接口
type Event interface {
	// Type 返回事件类型
	Type() string

	// Timestamp 返回事件时间戳
	Timestamp() time.Time
}

// BaseEvent 基础事件实现
type BaseEvent struct {
	EventType string
	Time      time.Time
}

// Type 返回事件类型
func (e BaseEvent) Type() string {
	return e.EventType
}

// Timestamp 返回事件时间戳
func (e BaseEvent) Timestamp() time.Time {
	return e.Time
}

// NewBaseEvent 创建基础事件
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Time:      time.Now(),
	}
}

// ============================================================================
//                              核心（日志）事件
// ============================================================================

// EvtCoreOpened 日志条目物化事件
//
// 在注册表首次为某个发现键物化底层日志时发出（包括被逐出后重新
// 打开）。活跃模式的复制流订阅此事件，向对端宣告新打开的日志；
// 持有挂起请求的流借此完成此前无法解析的对端请求。
type EvtCoreOpened struct {
	BaseEvent
	DiscoveryKey DiscoveryKey
	Writable     bool
}

// EvtCoreAppended 日志增长事件
//
// 日志长度增长时发出（本地追加或远程块落盘）。复制流借此向对端
// 广播新长度，并推送对端此前请求过但当时尚不存在的块。
type EvtCoreAppended struct {
	BaseEvent
	DiscoveryKey DiscoveryKey
	Length       uint64
}

// EvtBlockWanted 本地等待远程块事件
//
// 本地读者在缺失的块上阻塞等待时发出（每个索引仅首个等待者触发）。
// 复制流借此把块请求转发给当前所有活跃的对端。
type EvtBlockWanted struct {
	BaseEvent
	DiscoveryKey DiscoveryKey
	Index        uint64
}

// ============================================================================
//                              复制流事件
// ============================================================================

// EvtStreamStateChanged 复制流状态变更事件
//
// 流在 Handshaking → Active → Closing → Closed 之间迁移时发出。
// Error 仅在因传输错误进入 Closing 时非空。
type EvtStreamStateChanged struct {
	BaseEvent
	StreamID string
	State    StreamState
	Error    error
}
