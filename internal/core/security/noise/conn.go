package noise

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/flynn/noise"

	"github.com/dep2p/go-corestore/pkg/types"
)

// maxPlaintextSize 是单帧明文上限
//
// 帧长字段是 uint16，密文比明文多 16 字节 AEAD tag，
// 所以明文最多 65535 - 16 字节。超过的写入会被分帧。
const maxPlaintextSize = 65535 - 16

// ============================================================================
//                              加密连接
// ============================================================================

// Conn 是握手完成后的 Noise 加密连接
//
// 包装任意 io.ReadWriteCloser 双工连接，数据按
// [2 字节大端长度][密文] 分帧，每帧独立加密。
// Read 和 Write 各自持锁，可以并发使用。
type Conn struct {
	rwc io.ReadWriteCloser

	// Noise cipher states
	sendCS *noise.CipherState
	recvCS *noise.CipherState

	// 握手认证的复制身份
	localIdentity  types.CoreKey
	remoteIdentity types.CoreKey

	// 握手哈希，唯一标识本次会话
	channelBinding []byte

	readMu  sync.Mutex
	writeMu sync.Mutex

	// 上一帧解密后未被读走的剩余明文
	readBuf []byte
}

// 确保实现接口
var _ io.ReadWriteCloser = (*Conn)(nil)

// Read 从连接读取数据（解密）
func (c *Conn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	// 先消耗缓冲区里的剩余明文
	if len(c.readBuf) > 0 {
		n := copy(p, c.readBuf)
		c.readBuf = c.readBuf[n:]
		return n, nil
	}

	// 读取帧长（2 字节大端）
	lenBuf := make([]byte, 2)
	if _, err := io.ReadFull(c.rwc, lenBuf); err != nil {
		return 0, err
	}

	msgLen := binary.BigEndian.Uint16(lenBuf)
	if msgLen == 0 {
		return 0, io.EOF
	}

	// 读取密文
	encMsg := make([]byte, msgLen)
	if _, err := io.ReadFull(c.rwc, encMsg); err != nil {
		return 0, err
	}

	plaintext, err := c.recvCS.Decrypt(nil, nil, encMsg)
	if err != nil {
		return 0, fmt.Errorf("decrypt: %w", err)
	}

	n := copy(p, plaintext)

	// 放不下的部分留到下次 Read
	if n < len(plaintext) {
		c.readBuf = make([]byte, len(plaintext)-n)
		copy(c.readBuf, plaintext[n:])
	}

	return n, nil
}

// Write 向连接写入数据（加密）
//
// 超过单帧明文上限的数据会被拆成多帧依次发送。
func (c *Conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var written int
	for written < len(p) {
		chunk := p[written:]
		if len(chunk) > maxPlaintextSize {
			chunk = chunk[:maxPlaintextSize]
		}

		ciphertext, err := c.sendCS.Encrypt(nil, nil, chunk)
		if err != nil {
			return written, fmt.Errorf("encrypt: %w", err)
		}

		lenBuf := make([]byte, 2)
		binary.BigEndian.PutUint16(lenBuf, uint16(len(ciphertext)))
		if _, err := c.rwc.Write(lenBuf); err != nil {
			return written, err
		}
		if _, err := c.rwc.Write(ciphertext); err != nil {
			return written, err
		}

		written += len(chunk)
	}

	return written, nil
}

// Close 关闭底层连接
func (c *Conn) Close() error {
	return c.rwc.Close()
}

// LocalIdentity 返回本地复制身份公钥
func (c *Conn) LocalIdentity() types.CoreKey {
	return c.localIdentity
}

// RemoteIdentity 返回握手认证的对端复制身份公钥
func (c *Conn) RemoteIdentity() types.CoreKey {
	return c.remoteIdentity
}

// ChannelBinding 返回本次会话的信道绑定值
//
// 这是 Noise 握手哈希，双方各自计算且必然一致，
// 任何第三方（包括中间人）无法复现。能力证明用它
// 做 MAC 输入，把证明限定在本次会话内，防止重放。
func (c *Conn) ChannelBinding() []byte {
	binding := make([]byte, len(c.channelBinding))
	copy(binding, c.channelBinding)
	return binding
}

// ============================================================================
//                              握手帧
// ============================================================================

// writeFrame 写入帧（2 字节长度 + 数据）
func writeFrame(w io.Writer, data []byte) error {
	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(data)))

	if _, err := w.Write(lenBuf); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return nil
}

// readFrame 读取帧（2 字节长度 + 数据）
func readFrame(r io.Reader) ([]byte, error) {
	lenBuf := make([]byte, 2)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint16(lenBuf)
	if length == 0 {
		return nil, nil
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}

	return data, nil
}
