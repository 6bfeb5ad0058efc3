package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"io"
)

// Ed25519 密钥常量
const (
	// PrivateKeySize Ed25519 私钥大小（64 字节）
	PrivateKeySize = ed25519.PrivateKeySize
	// PublicKeySize Ed25519 公钥大小（32 字节）
	PublicKeySize = ed25519.PublicKeySize
	// SignatureSize Ed25519 签名大小（64 字节）
	SignatureSize = ed25519.SignatureSize
	// SeedSize Ed25519 种子大小（32 字节）
	SeedSize = ed25519.SeedSize
)

// ============================================================================
//                              KeyPair
// ============================================================================

// KeyPair Ed25519 密钥对
//
// 日志身份与复制身份的统一表示。派生得到的密钥对包含私钥
// （可写、可签名）；纯按公钥打开的日志对应的"密钥对"只有公钥。
type KeyPair struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// GenerateKeyPair 生成随机 Ed25519 密钥对
func GenerateKeyPair() (KeyPair, error) {
	return GenerateKeyPairWithReader(rand.Reader)
}

// GenerateKeyPairWithReader 使用指定随机源生成密钥对
//
// 参数:
//   - r: 随机源（测试可传入确定性源）
func GenerateKeyPairWithReader(r io.Reader) (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{pub: pub, priv: priv}, nil
}

// KeyPairFromSeed 从 32 字节种子确定性派生密钥对
//
// 同一种子永远得到同一密钥对，这是名字派生稳定性的基础。
func KeyPairFromSeed(seed []byte) (KeyPair, error) {
	if len(seed) != SeedSize {
		return KeyPair{}, ErrInvalidSeed
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey) //nolint:errcheck // 类型断言安全
	return KeyPair{pub: pub, priv: priv}, nil
}

// KeyPairFromPublic 从裸公钥构造只读密钥对
//
// 用于"按公钥打开"的日志：可验证签名，不可签名。
func KeyPairFromPublic(pub []byte) (KeyPair, error) {
	if len(pub) != PublicKeySize {
		return KeyPair{}, ErrInvalidKeySize
	}
	p := make(ed25519.PublicKey, PublicKeySize)
	copy(p, pub)
	return KeyPair{pub: p}, nil
}

// Public 返回公钥字节（32 字节）
func (k KeyPair) Public() []byte {
	buf := make([]byte, len(k.pub))
	copy(buf, k.pub)
	return buf
}

// Private 返回私钥字节（64 字节）；只读密钥对返回 nil
func (k KeyPair) Private() []byte {
	if k.priv == nil {
		return nil
	}
	buf := make([]byte, len(k.priv))
	copy(buf, k.priv)
	return buf
}

// Seed 返回私钥种子（32 字节）；只读密钥对返回 nil
func (k KeyPair) Seed() []byte {
	if k.priv == nil {
		return nil
	}
	return k.priv.Seed()
}

// Writable 是否持有私钥
func (k KeyPair) Writable() bool {
	return k.priv != nil
}

// Sign 使用私钥签名数据
func (k KeyPair) Sign(data []byte) ([]byte, error) {
	if k.priv == nil {
		return nil, ErrNotWritable
	}
	return ed25519.Sign(k.priv, data), nil
}

// Equals 比较两个密钥对的公钥是否相等
//
// 使用常量时间比较以防止时序攻击。
func (k KeyPair) Equals(other KeyPair) bool {
	return subtle.ConstantTimeCompare(k.pub, other.pub) == 1
}

// Verify 使用指定公钥验证签名
func Verify(pub, data, sig []byte) bool {
	if len(pub) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), data, sig)
}

// ============================================================================
//                              随机工具
// ============================================================================

// RandomBytes 生成指定长度的密码学安全随机字节
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := io.ReadFull(rand.Reader, b)
	return b, err
}
