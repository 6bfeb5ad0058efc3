// Package replicator 实现多日志复制多路复用器
//
// 复制器把注册表中的日志绑定到共享的复制流上。一条复制流对应
// 一个对端 duplex 连接，流内为每个共享的日志维护一条独立通道，
// 通道承载在多路复用会话的子流上：
//
//	┌─────────────────────────────────────────────┐
//	│                 Replicator                   │
//	│  事件泵: 打开/增长/缺块事件 → 扇出到所有流   │
//	└──────┬──────────────────┬───────────────────┘
//	       │                  │
//	   ┌───▼────┐        ┌────▼───┐
//	   │ Stream │        │ Stream │   每条流: Noise 握手 + yamux 会话
//	   └───┬────┘        └────────┘
//	       │
//	  ┌────┼────────┐
//	  │    │        │
//	┌─▼─┐┌─▼─┐   ┌──▼──┐
//	│ch ││ch │   │ 停靠 │  每条通道: 一个日志 ↔ 一条子流
//	└───┘└───┘   └─────┘
//
// # 流生命周期
//
// Handshaking → Active → Closing → Closed。Replicate 返回时流处于
// Handshaking；Noise 握手与多路复用会话建立在后台完成后进入
// Active。传输故障或显式关闭进入 Closing，所有通道分离、隐式
// 句柄释放后进入 Closed。单条流的失败不影响其他流与注册表。
//
// # 通道建立
//
// 发起通道的一端在新子流上发送 Open（发现键 + 能力证明），对端
// 验证后回 Accept（反向能力证明），双方互发 Info 公告长度。能力
// 证明是以日志公钥为密钥、绑定本条流噪声信道绑定值的 MAC：仅知道
// 发现键的一方无法伪造，也无法跨流重放。验证失败只关闭子流，
// 不影响流上的其他通道。
//
// 对端请求本地无法立即解析的日志时，子流停靠等待；日志随后在
// 本地打开（注册表发布打开事件）即完成建立。双方同时为同一日志
// 开通道时，保留会话发起方打开的那条子流，另一条关闭。
//
// # 主动与被动
//
// 主动模式（默认）在流建立时通告注册表中所有就绪日志，此后每个
// 新打开的日志自动通告到所有活跃流。被动模式不做任何通告，仅
// 响应对端的显式请求，流建立本身不会增加本地注册表的条目数。
//
// # 架构定位
//
//	┌─────────────────────────────┐
//	│          Store / 会话        │
//	├─────────────────────────────┤
//	│     replicator（本包）       │  通道编排 / 事件扇出
//	├──────────────┬──────────────┤
//	│    muxer     │   registry   │
//	├──────────────┤              │
//	│    noise     │              │
//	├──────────────┴──────────────┤
//	│       外部 duplex 传输       │
//	└─────────────────────────────┘
package replicator
