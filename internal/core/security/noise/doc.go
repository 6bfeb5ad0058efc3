// Package noise 实现复制流的 Noise 安全信道
//
// 复制流建立在调用方提供的任意双工连接上（TCP、管道、
// 进程内 net.Pipe 都可以），本包在其上完成相互认证的
// 加密握手，不关心底层传输是什么。
//
// # 协议
//
// 使用 Noise_XX_25519_ChaChaPoly_SHA256 模式：
//   - XX: 三轮握手，双方相互认证
//   - 25519: Curve25519 用于 DH 密钥交换
//   - ChaChaPoly: ChaCha20-Poly1305 用于对称加密
//   - SHA256: 用于 HKDF 密钥派生
//
// # 握手流程
//
// Noise XX 三轮握手：
//
//	-> e                              (发起者发送临时公钥)
//	<- e, ee, s, es, payload          (响应者发送临时公钥、静态公钥、payload)
//	-> s, se, payload                 (发起者发送静态公钥、payload)
//
// payload 包含 Ed25519 复制身份公钥和签名，把 Noise 静态
// 密钥绑定到复制身份上。复制身份由密钥管理器从根密钥派生，
// 握手完成后对端身份可通过 Conn.RemoteIdentity 读取。
//
// # 信道绑定
//
// 握手完成后 Conn.ChannelBinding 返回 Noise 握手哈希。
// 复制通道的能力证明（capability MAC）以它为输入，证明
// 因此只在本次会话内有效，无法跨会话重放。
//
// # 使用示例
//
//	// 发起方
//	conn, err := noise.Client(rwc, identity)
//
//	// 响应方
//	conn, err := noise.Server(rwc, identity)
//
//	remote := conn.RemoteIdentity()
//	binding := conn.ChannelBinding()
//
// # 架构定位
//
//	┌─────────────────────────┐
//	│  replicator (复制会话)   │
//	├─────────────────────────┤
//	│  muxer (yamux 多路复用)  │
//	├─────────────────────────┤
//	│  security/noise (本包)   │   <- 加密与身份认证
//	├─────────────────────────┤
//	│  调用方提供的双工连接     │
//	└─────────────────────────┘
package noise
