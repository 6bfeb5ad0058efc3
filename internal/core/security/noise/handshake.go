package noise

import (
	"crypto/ed25519"
	"crypto/sha512"
	"fmt"
	"io"

	"filippo.io/edwards25519"
	"github.com/flynn/noise"

	"github.com/dep2p/go-corestore/pkg/lib/crypto"
	noisepb "github.com/dep2p/go-corestore/pkg/lib/proto/noise"
	"github.com/dep2p/go-corestore/pkg/types"
)

// payloadSigPrefix 是静态密钥签名的上下文前缀
//
// 签名内容为前缀加 Curve25519 静态公钥，把一次性的 Noise
// 静态密钥绑定到长期的 Ed25519 复制身份上。
const payloadSigPrefix = "corestore-static-key:"

// ============================================================================
//                              握手入口
// ============================================================================

// Client 以发起者身份执行 Noise XX 握手
//
// 参数:
//   - rwc: 底层双工连接（握手期间的超时由调用方控制，
//     通常是超时后关闭 rwc 使握手出错返回）
//   - identity: 本地复制身份，必须持有私钥
//
// 返回:
//   - *Conn: 加密连接
//   - error: 握手失败时的错误
func Client(rwc io.ReadWriteCloser, identity *crypto.KeyPair) (*Conn, error) {
	return performHandshake(rwc, identity, true)
}

// Server 以响应者身份执行 Noise XX 握手
func Server(rwc io.ReadWriteCloser, identity *crypto.KeyPair) (*Conn, error) {
	return performHandshake(rwc, identity, false)
}

// performHandshake 执行 Noise XX 握手
//
// XX 模式提供相互认证和前向保密。双方在加密的握手消息中
// 携带 payload（Ed25519 复制身份公钥和对静态密钥的签名），
// 验证通过后对端身份随连接一起返回。
func performHandshake(rwc io.ReadWriteCloser, identity *crypto.KeyPair, initiator bool) (*Conn, error) {
	if identity == nil || !identity.Writable() {
		return nil, ErrIdentityNotWritable
	}

	// 1. 密钥转换：Ed25519 -> Curve25519
	curvePriv := ed25519ToCurve25519Private(identity.Private())
	curvePub := ed25519ToCurve25519Public(identity.Public())

	// 2. 创建 Noise 配置
	cs := noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cs,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		StaticKeypair: noise.DHKey{Private: curvePriv, Public: curvePub},
	})
	if err != nil {
		return nil, fmt.Errorf("create handshake state: %w", err)
	}

	// 3. 生成本地 payload
	localPayload, err := generatePayload(identity, curvePub)
	if err != nil {
		return nil, fmt.Errorf("generate handshake payload: %w", err)
	}

	// 4. 执行握手
	var sendCS, recvCS *noise.CipherState
	var remotePayload []byte

	if initiator {
		sendCS, recvCS, remotePayload, err = clientHandshake(rwc, hs, localPayload)
	} else {
		sendCS, recvCS, remotePayload, err = serverHandshake(rwc, hs, localPayload)
	}
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}

	// 5. 验证远程 payload 并提取复制身份
	remoteStatic := hs.PeerStatic()
	if len(remoteStatic) != 32 {
		return nil, fmt.Errorf("invalid remote static key length: %d", len(remoteStatic))
	}

	remoteIdentity, err := verifyRemotePayload(remotePayload, remoteStatic)
	if err != nil {
		return nil, fmt.Errorf("verify remote payload: %w", err)
	}

	localIdentity, err := types.CoreKeyFromBytes(identity.Public())
	if err != nil {
		return nil, fmt.Errorf("local identity key: %w", err)
	}

	// 6. 保存信道绑定，供能力证明使用
	binding := make([]byte, len(hs.ChannelBinding()))
	copy(binding, hs.ChannelBinding())

	return &Conn{
		rwc:            rwc,
		sendCS:         sendCS,
		recvCS:         recvCS,
		localIdentity:  localIdentity,
		remoteIdentity: remoteIdentity,
		channelBinding: binding,
	}, nil
}

// generatePayload 生成握手 payload
//
// payload 包含：
//   - identity_key: Ed25519 复制身份公钥
//   - identity_sig: Sign("corestore-static-key:" + curve25519_static_pubkey)
func generatePayload(identity *crypto.KeyPair, curvePub []byte) ([]byte, error) {
	toSign := append([]byte(payloadSigPrefix), curvePub...)
	sig, err := identity.Sign(toSign)
	if err != nil {
		return nil, fmt.Errorf("sign static key: %w", err)
	}

	payload := &noisepb.HandshakePayload{
		IdentityKey: identity.Public(),
		IdentitySig: sig,
	}
	return payload.Marshal()
}

// verifyRemotePayload 验证远程 payload 并提取复制身份公钥
func verifyRemotePayload(payloadBytes, remoteStatic []byte) (types.CoreKey, error) {
	payload := &noisepb.HandshakePayload{}
	if err := payload.Unmarshal(payloadBytes); err != nil {
		return types.EmptyCoreKey, fmt.Errorf("unmarshal payload: %w", err)
	}

	remoteIdentity, err := types.CoreKeyFromBytes(payload.IdentityKey)
	if err != nil {
		return types.EmptyCoreKey, fmt.Errorf("remote identity key: %w", err)
	}

	// 验证签名：对端确实持有声称身份的私钥，且该身份绑定到
	// 本次握手的静态密钥上
	toVerify := append([]byte(payloadSigPrefix), remoteStatic...)
	if !crypto.Verify(payload.IdentityKey, toVerify, payload.IdentitySig) {
		return types.EmptyCoreKey, ErrInvalidIdentityBinding
	}

	return remoteIdentity, nil
}

// ============================================================================
//                              握手流程
// ============================================================================

// clientHandshake 发起者握手流程
//
// Noise XX 发起者流程：
//  1. -> e                              (发送临时公钥)
//  2. <- e, ee, s, es, payload          (接收响应者的静态公钥和 payload)
//  3. -> s, se, payload                 (发送本地静态公钥和 payload)
func clientHandshake(rwc io.ReadWriter, hs *noise.HandshakeState, localPayload []byte) (*noise.CipherState, *noise.CipherState, []byte, error) {
	// 轮次 1: 发送 e (空 payload)
	msg1, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 1: %w", err)
	}
	if err := writeFrame(rwc, msg1); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 1: %w", err)
	}

	// 轮次 2: 接收 e, ee, s, es, payload
	msg2, err := readFrame(rwc)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 2: %w", err)
	}
	remotePayload, _, _, err := hs.ReadMessage(nil, msg2)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read message 2: %w", err)
	}

	// 轮次 3: 发送 s, se, payload (最后一轮，返回 CipherStates)
	msg3, cs1, cs2, err := hs.WriteMessage(nil, localPayload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 3: %w", err)
	}
	if err := writeFrame(rwc, msg3); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 3: %w", err)
	}

	// cs1 = 发送密钥，cs2 = 接收密钥（对于发起者）
	return cs1, cs2, remotePayload, nil
}

// serverHandshake 响应者握手流程
//
// Noise XX 响应者流程：
//  1. <- e                              (接收临时公钥)
//  2. -> e, ee, s, es, payload          (发送本地静态公钥和 payload)
//  3. <- s, se, payload                 (接收发起者的静态公钥和 payload)
func serverHandshake(rwc io.ReadWriter, hs *noise.HandshakeState, localPayload []byte) (*noise.CipherState, *noise.CipherState, []byte, error) {
	// 轮次 1: 接收 e
	msg1, err := readFrame(rwc)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 1: %w", err)
	}
	if _, _, _, err := hs.ReadMessage(nil, msg1); err != nil {
		return nil, nil, nil, fmt.Errorf("read message 1: %w", err)
	}

	// 轮次 2: 发送 e, ee, s, es, payload
	msg2, _, _, err := hs.WriteMessage(nil, localPayload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 2: %w", err)
	}
	if err := writeFrame(rwc, msg2); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 2: %w", err)
	}

	// 轮次 3: 接收 s, se, payload (最后一轮，返回 CipherStates)
	msg3, err := readFrame(rwc)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 3: %w", err)
	}
	remotePayload, cs1, cs2, err := hs.ReadMessage(nil, msg3)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read message 3: %w", err)
	}

	// cs1 = 接收密钥，cs2 = 发送密钥（对于响应者，与发起者相反）
	return cs2, cs1, remotePayload, nil
}

// ============================================================================
//                              密钥转换
// ============================================================================

// ed25519ToCurve25519Private 将 Ed25519 私钥转换为 Curve25519 私钥
//
// 标准转换方法（RFC 7748, RFC 8032）：
//  1. 对私钥种子进行 SHA-512 哈希
//  2. 取哈希前 32 字节
//  3. 进行 "clamping"（清理低 3 位和高 2 位）
func ed25519ToCurve25519Private(edPriv []byte) []byte {
	var seed []byte

	switch len(edPriv) {
	case ed25519.PrivateKeySize: // 64 字节：标准私钥格式
		seed = edPriv[:32]
	case ed25519.SeedSize: // 32 字节：种子格式
		seed = edPriv
	default:
		return make([]byte, 32)
	}

	h := sha512.Sum512(seed)

	// Clamping（RFC 7748）
	h[0] &= 248  // 清除低 3 位
	h[31] &= 127 // 清除最高位
	h[31] |= 64  // 设置次高位

	return h[:32]
}

// ed25519ToCurve25519Public 将 Ed25519 公钥转换为 Curve25519 公钥
//
// 使用 Edwards -> Montgomery 转换公式：
//
//	u = (1 + y) / (1 - y)  (mod p)
func ed25519ToCurve25519Public(edPub []byte) []byte {
	if len(edPub) != ed25519.PublicKeySize {
		return make([]byte, 32)
	}

	point, err := new(edwards25519.Point).SetBytes(edPub)
	if err != nil {
		return make([]byte, 32)
	}

	// 转换为 Montgomery 形式（Curve25519）
	return point.BytesMontgomery()
}
