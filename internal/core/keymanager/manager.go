package keymanager

import (
	"encoding/binary"

	"github.com/dep2p/go-corestore/pkg/lib/crypto"
	"github.com/dep2p/go-corestore/pkg/types"
	"lukechampine.com/blake3"
)

// 派生上下文常量
//
// 每个派生用途使用独立的上下文字符串做域分离，
// 修改任何一个都会改变所有已派生的密钥，属于不兼容变更。
const (
	keyPairContext   = "corestore/keypair/v1"
	discoveryContext = "corestore/discovery/v1"
	openCapContext   = "corestore/capability/open/v1"
	acceptCapContext = "corestore/capability/accept/v1"
)

// 复制身份的固定派生位置
const (
	replicationNamespace    = "@corestore/replication"
	replicationIdentityName = "identity"
)

// ============================================================================
// Manager 实现
// ============================================================================

// Manager 密钥管理器
//
// Manager 无状态，所有方法都是纯函数，可以被多个 goroutine 并发使用。
type Manager struct{}

// NewManager 创建密钥管理器
func NewManager() *Manager {
	return &Manager{}
}

// Derive 从根密钥派生日志密钥对
//
// 同一 (secret, namespace, name) 组合永远得到同一个密钥对。
// 命名空间路径和名称都做长度前缀编码，不同的路径划分
// （如 ["ab"] 与 ["a","b"]）得到不同的密钥。
//
// 参数:
//   - secret: 根密钥（不能为空）
//   - namespace: 命名空间路径（可以为空切片，段不能为空字符串）
//   - name: 日志名称（不能为空）
//
// 返回:
//   - *crypto.KeyPair: 可写密钥对（含私钥）
//   - error: 参数无效时返回 ErrEmptySecret/ErrEmptySegment/ErrEmptyName
func (m *Manager) Derive(secret types.RootSecret, namespace []string, name string) (*crypto.KeyPair, error) {
	if secret.IsEmpty() {
		return nil, ErrEmptySecret
	}
	if name == "" {
		return nil, ErrEmptyName
	}
	for _, segment := range namespace {
		if segment == "" {
			return nil, ErrEmptySegment
		}
	}

	h := blake3.New(32, secret.Bytes())
	writeLengthPrefixed(h, []byte(keyPairContext))
	writeUvarint(h, uint64(len(namespace)))
	for _, segment := range namespace {
		writeLengthPrefixed(h, []byte(segment))
	}
	writeLengthPrefixed(h, []byte(name))

	seed := h.Sum(nil)
	kp, err := crypto.KeyPairFromSeed(seed)
	if err != nil {
		return nil, err
	}

	return &kp, nil
}

// ReplicationIdentity 派生复制会话身份密钥对
//
// 同一个根密钥在所有复制会话中使用同一个身份，
// 对端可以据此识别重复连接。
func (m *Manager) ReplicationIdentity(secret types.RootSecret) (*crypto.KeyPair, error) {
	return m.Derive(secret, []string{replicationNamespace}, replicationIdentityName)
}

// PublicKeyOf 返回密钥对公钥对应的 CoreKey
//
// ed25519 公钥固定 32 字节，转换不会失败。
func PublicKeyOf(kp *crypto.KeyPair) types.CoreKey {
	var key types.CoreKey
	copy(key[:], kp.Public())
	return key
}

// DiscoveryKeyOf 从公钥计算发现键
//
// 发现键是公钥的单向变换：知道发现键无法反推公钥，
// 因此可以安全地在网络上宣告，不泄露读取能力。
func (m *Manager) DiscoveryKeyOf(key types.CoreKey) types.DiscoveryKey {
	h := blake3.New(32, key.Bytes())
	h.Write([]byte(discoveryContext))

	var dk types.DiscoveryKey
	copy(dk[:], h.Sum(nil))
	return dk
}

// Capability 计算通道打开能力证明
//
// 能力证明将公钥知识绑定到当前安全会话：只有同时知道完整公钥
// 和会话绑定值的一方才能计算出来，仅凭发现键无法伪造。
func (m *Manager) Capability(key types.CoreKey, channelBinding []byte) []byte {
	return capabilityMAC(openCapContext, key, channelBinding)
}

// AcceptCapability 计算通道接受能力证明
//
// 与 Capability 使用不同的上下文，防止一侧的证明被反射回去。
func (m *Manager) AcceptCapability(key types.CoreKey, channelBinding []byte) []byte {
	return capabilityMAC(acceptCapContext, key, channelBinding)
}

// capabilityMAC 计算一个绑定到会话的能力 MAC
func capabilityMAC(context string, key types.CoreKey, channelBinding []byte) []byte {
	h := blake3.New(32, key.Bytes())
	writeLengthPrefixed(h, []byte(context))
	writeLengthPrefixed(h, channelBinding)
	return h.Sum(nil)
}

// ============================================================================
// 编码辅助
// ============================================================================

// writeLengthPrefixed 写入 uvarint 长度前缀的数据
func writeLengthPrefixed(h *blake3.Hasher, data []byte) {
	writeUvarint(h, uint64(len(data)))
	h.Write(data)
}

// writeUvarint 写入一个 uvarint
func writeUvarint(h *blake3.Hasher, v uint64) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	h.Write(buf[:n])
}
