package replicator

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-corestore/internal/core/appendlog"
	"github.com/dep2p/go-corestore/internal/core/eventbus"
	"github.com/dep2p/go-corestore/internal/core/keymanager"
	"github.com/dep2p/go-corestore/internal/core/registry"
	"github.com/dep2p/go-corestore/internal/core/storage"
	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/lib/crypto"
	"github.com/dep2p/go-corestore/pkg/types"
)

// ============================================================================
//                              测试辅助
// ============================================================================

// testPeer 一个完整的复制参与者：内存存储、注册表与复制器
type testPeer struct {
	secret   types.RootSecret
	km       *keymanager.Manager
	bus      interfaces.EventBus
	reg      *registry.Registry
	rep      *Replicator
	identity *crypto.KeyPair
}

// newTestPeer 用固定填充字节的根密钥组装一个参与者
func newTestPeer(t *testing.T, fill byte) *testPeer {
	t.Helper()

	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = fill
	}
	secret, err := types.RootSecretFromBytes(raw)
	require.NoError(t, err)

	eng, err := storage.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	km := keymanager.NewManager()
	bus := eventbus.NewBus()
	opener := appendlog.NewOpener(eng, km, 0)
	catalog := appendlog.NewCatalog(eng, km, secret)

	reg, err := registry.New(registry.Options{
		Opener:   opener,
		Resolver: catalog,
		Bus:      bus,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	identity, err := km.ReplicationIdentity(secret)
	require.NoError(t, err)

	rep, err := New(Options{
		Registry:   reg,
		KeyManager: km,
		Identity:   identity,
		Bus:        bus,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rep.Close() })

	return &testPeer{
		secret:   secret,
		km:       km,
		bus:      bus,
		reg:      reg,
		rep:      rep,
		identity: identity,
	}
}

// publicIdentity 返回参与者的复制身份公钥
func (p *testPeer) publicIdentity() types.CoreKey {
	return keymanager.PublicKeyOf(p.identity)
}

// createCore 派生一条可写日志并追加块，句柄由调用方管理
func (p *testPeer) createCore(t *testing.T, name string, blocks ...[]byte) (types.DiscoveryKey, types.CoreKey, *registry.Handle) {
	t.Helper()
	kp, err := p.km.Derive(p.secret, []string{"test"}, name)
	require.NoError(t, err)
	ref := interfaces.CoreRef{
		Key:       keymanager.PublicKeyOf(kp),
		KeyPair:   kp,
		Namespace: []string{"test"},
		Name:      name,
	}
	dk := p.km.DiscoveryKeyOf(ref.Key)
	h, err := p.reg.Acquire(context.Background(), dk, ref)
	require.NoError(t, err)
	if len(blocks) > 0 {
		_, err = h.Log().Append(blocks...)
		require.NoError(t, err)
	}
	return dk, ref.Key, h
}

// acquireRemote 按公钥加入他人的日志（只读）
func (p *testPeer) acquireRemote(t *testing.T, key types.CoreKey) *registry.Handle {
	t.Helper()
	dk := p.km.DiscoveryKeyOf(key)
	h, err := p.reg.Acquire(context.Background(), dk, interfaces.CoreRef{Key: key})
	require.NoError(t, err)
	return h
}

// connect 用内存管道把两个参与者接起来
func connect(t *testing.T, a, b *testPeer) (*Stream, *Stream) {
	t.Helper()
	c1, c2 := net.Pipe()
	sa, err := a.rep.Replicate(context.Background(), c1, true)
	require.NoError(t, err)
	sb, err := b.rep.Replicate(context.Background(), c2, false)
	require.NoError(t, err)
	return sa, sb
}

// waitState 等待流进入目标状态
func waitState(t *testing.T, s *Stream, want types.StreamState) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == want },
		3*time.Second, 10*time.Millisecond, "流未进入 %v 状态", want)
}

// readBlock 通过 WaitBlock 读一个块（由复制机制兑现）
func readBlock(t *testing.T, l interfaces.Log, index uint64) []byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	block, err := l.WaitBlock(ctx, index)
	require.NoError(t, err)
	return block
}

// channelCount 白盒读取流上的活跃通道数
func channelCount(s *Stream) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels)
}

// ============================================================================
//                              构造校验
// ============================================================================

func TestReplicator_NewValidation(t *testing.T) {
	p := newTestPeer(t, 0x01)
	valid := Options{
		Registry:   p.reg,
		KeyManager: p.km,
		Identity:   p.identity,
		Bus:        p.bus,
	}

	t.Run("NilRegistry", func(t *testing.T) {
		opts := valid
		opts.Registry = nil
		_, err := New(opts)
		assert.ErrorIs(t, err, ErrNilRegistry)
	})

	t.Run("NilKeyManager", func(t *testing.T) {
		opts := valid
		opts.KeyManager = nil
		_, err := New(opts)
		assert.ErrorIs(t, err, ErrNilKeyManager)
	})

	t.Run("NilBus", func(t *testing.T) {
		opts := valid
		opts.Bus = nil
		_, err := New(opts)
		assert.ErrorIs(t, err, ErrNilBus)
	})

	t.Run("NilIdentity", func(t *testing.T) {
		opts := valid
		opts.Identity = nil
		_, err := New(opts)
		assert.ErrorIs(t, err, ErrNoIdentity)
	})

	t.Run("ReadOnlyIdentity", func(t *testing.T) {
		pub, err := crypto.KeyPairFromPublic(p.identity.Public())
		require.NoError(t, err)
		opts := valid
		opts.Identity = &pub
		_, err = New(opts)
		assert.ErrorIs(t, err, ErrNoIdentity)
	})
}

func TestReplicate_ArgumentChecks(t *testing.T) {
	p := newTestPeer(t, 0x02)

	_, err := p.rep.Replicate(context.Background(), nil, true)
	assert.ErrorIs(t, err, ErrNilTransport)

	require.NoError(t, p.rep.Close())

	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()
	_, err = p.rep.Replicate(context.Background(), c1, true)
	assert.ErrorIs(t, err, ErrReplicatorClosed)
}

// ============================================================================
//                              流生命周期
// ============================================================================

func TestReplicate_HandshakeActivates(t *testing.T) {
	a := newTestPeer(t, 0x0a)
	b := newTestPeer(t, 0x0b)

	sa, sb := connect(t, a, b)
	waitState(t, sa, types.StreamStateActive)
	waitState(t, sb, types.StreamStateActive)

	assert.NotEmpty(t, sa.ID())
	assert.NotEqual(t, sa.ID(), sb.ID())
	assert.Equal(t, types.StreamRoleInitiator, sa.Role())
	assert.Equal(t, types.StreamRoleResponder, sb.Role())

	// 噪声握手交换的是复制身份，不是日志密钥
	assert.True(t, sa.RemoteIdentity().Equal(b.publicIdentity()))
	assert.True(t, sb.RemoteIdentity().Equal(a.publicIdentity()))

	assert.Equal(t, 1, a.rep.Count())
	assert.Equal(t, 1, b.rep.Count())

	require.NoError(t, sa.Close())
	assert.NoError(t, sa.Err())
	waitState(t, sb, types.StreamStateClosed)
	assert.Eventually(t, func() bool {
		return a.rep.Count() == 0 && b.rep.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReplicate_CloseMidHandshake(t *testing.T) {
	a := newTestPeer(t, 0x0c)

	// 对端静默，握手无法推进
	c1, c2 := net.Pipe()
	defer c2.Close()

	sa, err := a.rep.Replicate(context.Background(), c1, true)
	require.NoError(t, err)
	assert.Equal(t, types.StreamStateHandshaking, sa.State())

	require.NoError(t, sa.Close())
	assert.Equal(t, types.StreamStateClosed, sa.State())
	assert.NoError(t, sa.Err())
}

func TestReplicate_HandshakeTimeout(t *testing.T) {
	a := newTestPeer(t, 0x0d)

	c1, c2 := net.Pipe()
	defer c2.Close()

	sa, err := a.rep.Replicate(context.Background(), c1, true,
		WithHandshakeTimeout(50*time.Millisecond))
	require.NoError(t, err)

	waitState(t, sa, types.StreamStateClosed)
	assert.ErrorIs(t, sa.Err(), ErrHandshakeTimeout)
}

func TestReplicate_ContextCancelClosesStream(t *testing.T) {
	a := newTestPeer(t, 0x0e)
	b := newTestPeer(t, 0x0f)

	ctx, cancel := context.WithCancel(context.Background())
	c1, c2 := net.Pipe()
	sa, err := a.rep.Replicate(ctx, c1, true)
	require.NoError(t, err)
	sb, err := b.rep.Replicate(context.Background(), c2, false)
	require.NoError(t, err)

	waitState(t, sa, types.StreamStateActive)
	waitState(t, sb, types.StreamStateActive)

	cancel()
	waitState(t, sa, types.StreamStateClosed)
	assert.NoError(t, sa.Err())
	waitState(t, sb, types.StreamStateClosed)
}

func TestReplicate_TransportErrorClosesStream(t *testing.T) {
	a := newTestPeer(t, 0x10)
	b := newTestPeer(t, 0x13)

	c1, c2 := net.Pipe()
	sa, err := a.rep.Replicate(context.Background(), c1, true)
	require.NoError(t, err)
	sb, err := b.rep.Replicate(context.Background(), c2, false)
	require.NoError(t, err)

	waitState(t, sa, types.StreamStateActive)
	waitState(t, sb, types.StreamStateActive)

	// 传输层硬断
	require.NoError(t, c1.Close())

	waitState(t, sa, types.StreamStateClosed)
	waitState(t, sb, types.StreamStateClosed)
	assert.Error(t, sa.Err())
	assert.Error(t, sb.Err())

	// 流失败不波及存储层
	_, _, h := a.createCore(t, "after-failure", []byte("still works"))
	defer h.Release()
	assert.Equal(t, 1, a.reg.Count())
}

func TestReplicate_EmitsStateEvents(t *testing.T) {
	a := newTestPeer(t, 0x14)
	b := newTestPeer(t, 0x15)

	sub, err := a.bus.Subscribe(new(types.EvtStreamStateChanged), interfaces.BufSize(16))
	require.NoError(t, err)
	defer sub.Close()

	sa, sb := connect(t, a, b)
	waitState(t, sa, types.StreamStateActive)
	waitState(t, sb, types.StreamStateActive)
	require.NoError(t, sa.Close())

	var states []types.StreamState
	deadline := time.After(3 * time.Second)
	for len(states) < 4 {
		select {
		case raw := <-sub.Out():
			evt, ok := raw.(types.EvtStreamStateChanged)
			require.True(t, ok)
			if evt.StreamID == sa.ID() {
				states = append(states, evt.State)
				assert.NoError(t, evt.Error)
			}
		case <-deadline:
			t.Fatalf("状态事件不全: %v", states)
		}
	}
	assert.Equal(t, []types.StreamState{
		types.StreamStateHandshaking,
		types.StreamStateActive,
		types.StreamStateClosing,
		types.StreamStateClosed,
	}, states)
}

func TestReplicator_CloseClosesStreams(t *testing.T) {
	a := newTestPeer(t, 0x16)
	b := newTestPeer(t, 0x1a)

	sa, sb := connect(t, a, b)
	waitState(t, sa, types.StreamStateActive)
	waitState(t, sb, types.StreamStateActive)

	require.NoError(t, a.rep.Close())
	assert.Equal(t, types.StreamStateClosed, sa.State())
	assert.Equal(t, 0, a.rep.Count())
	waitState(t, sb, types.StreamStateClosed)
}
