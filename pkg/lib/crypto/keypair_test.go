package crypto

import (
	"bytes"
	"testing"
)

func TestKeyPair_Generate(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	if len(kp.Public()) != PublicKeySize {
		t.Errorf("Public() len = %d, want %d", len(kp.Public()), PublicKeySize)
	}
	if len(kp.Private()) != PrivateKeySize {
		t.Errorf("Private() len = %d, want %d", len(kp.Private()), PrivateKeySize)
	}
	if !kp.Writable() {
		t.Error("生成的密钥对应可写")
	}
}

func TestKeyPair_FromSeed(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, SeedSize)

	kp1, err := KeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("KeyPairFromSeed() error = %v", err)
	}
	kp2, err := KeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("KeyPairFromSeed() error = %v", err)
	}

	// 同一种子必须派生出完全相同的密钥对
	if !bytes.Equal(kp1.Public(), kp2.Public()) {
		t.Error("同种子派生的公钥不一致")
	}
	if !bytes.Equal(kp1.Private(), kp2.Private()) {
		t.Error("同种子派生的私钥不一致")
	}
	if !bytes.Equal(kp1.Seed(), seed) {
		t.Error("Seed() 与输入种子不一致")
	}

	// 错误长度的种子
	if _, err := KeyPairFromSeed(seed[:16]); err == nil {
		t.Error("短种子应返回错误")
	}
}

func TestKeyPair_SignVerify(t *testing.T) {
	kp, _ := GenerateKeyPair()
	data := []byte("test message")

	sig, err := kp.Sign(data)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if len(sig) != SignatureSize {
		t.Errorf("签名长度 = %d, want %d", len(sig), SignatureSize)
	}

	if !Verify(kp.Public(), data, sig) {
		t.Error("有效签名验证失败")
	}
	if Verify(kp.Public(), []byte("tampered"), sig) {
		t.Error("篡改数据的签名不应通过验证")
	}
	if Verify(kp.Public(), data, sig[:32]) {
		t.Error("截断签名不应通过验证")
	}
}

func TestKeyPair_PublicOnly(t *testing.T) {
	kp, _ := GenerateKeyPair()

	ro, err := KeyPairFromPublic(kp.Public())
	if err != nil {
		t.Fatalf("KeyPairFromPublic() error = %v", err)
	}

	if ro.Writable() {
		t.Error("只读密钥对不应可写")
	}
	if ro.Private() != nil || ro.Seed() != nil {
		t.Error("只读密钥对不应暴露私钥")
	}
	if _, err := ro.Sign([]byte("data")); err != ErrNotWritable {
		t.Errorf("只读密钥对 Sign() error = %v, want ErrNotWritable", err)
	}
	if !ro.Equals(kp) {
		t.Error("同公钥的密钥对 Equals() 应为 true")
	}
}

func TestRandomBytes(t *testing.T) {
	b1, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes() error = %v", err)
	}
	b2, _ := RandomBytes(32)

	if len(b1) != 32 {
		t.Errorf("len = %d, want 32", len(b1))
	}
	if bytes.Equal(b1, b2) {
		t.Error("两次随机生成结果相同")
	}
}
