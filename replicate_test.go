package corestore

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/types"
)

// connectStores 用内存管道连接两个 Store 并等待握手完成
func connectStores(t *testing.T, a, b *Store) (sa, sb interfaces.ReplicationStream) {
	t.Helper()
	ctx := context.Background()
	c1, c2 := net.Pipe()

	var err error
	sa, err = a.Replicate(ctx, c1, true)
	require.NoError(t, err)
	sb, err = b.Replicate(ctx, c2, false)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sa.Close()
		_ = sb.Close()
	})

	waitStreamActive(t, sa)
	waitStreamActive(t, sb)
	return sa, sb
}

// waitStreamActive 等待流进入工作态
func waitStreamActive(t *testing.T, s interfaces.ReplicationStream) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.State() == types.StreamStateActive
	}, 3*time.Second, 10*time.Millisecond, "流应完成握手")
}

// readBlock 读取块，远端补齐前最多等待 5 秒
func readBlock(t *testing.T, core *Core, index uint64) []byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	block, err := core.Get(ctx, index)
	require.NoError(t, err, "读取块 %d", index)
	return block
}

// 两个 Store 各自持有对方的公钥时，连接后双向同步全部日志。
func TestReplicate_SyncsMultipleCores(t *testing.T) {
	a := newMemStore(t)
	b := newMemStore(t)
	ctx := context.Background()

	journal, err := a.GetByName(ctx, "journal")
	require.NoError(t, err)
	defer journal.Close()
	_, err = journal.Append([]byte("j0"), []byte("j1"))
	require.NoError(t, err)

	inbox, err := a.GetByName(ctx, "inbox")
	require.NoError(t, err)
	defer inbox.Close()
	_, err = inbox.Append([]byte("i0"))
	require.NoError(t, err)

	remoteJournal, err := b.GetByKey(ctx, journal.Key())
	require.NoError(t, err)
	defer remoteJournal.Close()
	remoteInbox, err := b.GetByKey(ctx, inbox.Key())
	require.NoError(t, err)
	defer remoteInbox.Close()

	connectStores(t, a, b)

	assert.Equal(t, []byte("j0"), readBlock(t, remoteJournal, 0))
	assert.Equal(t, []byte("j1"), readBlock(t, remoteJournal, 1))
	assert.Equal(t, []byte("i0"), readBlock(t, remoteInbox, 0))

	assert.True(t, remoteJournal.Has(0), "同步后块落在本地存储")
	assert.EqualValues(t, 2, remoteJournal.Length())
}

// 先建立连接、后创建日志，新日志同样被宣告并同步。
func TestReplicate_ConnectBeforeCores(t *testing.T) {
	a := newMemStore(t)
	b := newMemStore(t)
	ctx := context.Background()

	connectStores(t, a, b)

	core, err := a.GetByName(ctx, "late")
	require.NoError(t, err)
	defer core.Close()
	_, err = core.Append([]byte("after-connect"))
	require.NoError(t, err)

	remote, err := b.GetByKey(ctx, core.Key())
	require.NoError(t, err)
	defer remote.Close()

	assert.Equal(t, []byte("after-connect"), readBlock(t, remote, 0))
}

// 追加实时传播到已建立通道的对端。
func TestReplicate_AppendPropagates(t *testing.T) {
	a := newMemStore(t)
	b := newMemStore(t)
	ctx := context.Background()

	core, err := a.GetByName(ctx, "feed")
	require.NoError(t, err)
	defer core.Close()
	_, err = core.Append([]byte("first"))
	require.NoError(t, err)

	remote, err := b.GetByKey(ctx, core.Key())
	require.NoError(t, err)
	defer remote.Close()

	connectStores(t, a, b)
	assert.Equal(t, []byte("first"), readBlock(t, remote, 0))

	_, err = core.Append([]byte("second"))
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), readBlock(t, remote, 1))
	assert.EqualValues(t, 2, remote.Length())
}

// 句柄全部释放后，入站通道经由目录重新打开日志。
func TestReplicate_CatalogReopensIdleCore(t *testing.T) {
	a := newMemStore(t)
	b := newMemStore(t)
	ctx := context.Background()

	core, err := a.GetByName(ctx, "archive")
	require.NoError(t, err)
	_, err = core.Append([]byte("cold"), []byte("data"))
	require.NoError(t, err)
	key := core.Key()
	require.NoError(t, core.Close())

	require.Eventually(t, func() bool {
		return a.shared.reg.Count() == 0
	}, 3*time.Second, 10*time.Millisecond, "空闲条目应先被驱逐")

	sa, _ := connectStores(t, a, b)

	remote, err := b.GetByKey(ctx, key)
	require.NoError(t, err)

	assert.Equal(t, []byte("cold"), readBlock(t, remote, 0))
	assert.Equal(t, []byte("data"), readBlock(t, remote, 1))
	assert.Equal(t, 1, a.shared.reg.Count(), "目录解析让日志重新上线")

	// 用户句柄和复制通道都放开后，两侧引用计数归零
	require.NoError(t, remote.Close())
	require.NoError(t, sa.Close())
	require.Eventually(t, func() bool {
		return b.shared.reg.Count() == 0
	}, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return a.shared.reg.Count() == 0
	}, 3*time.Second, 10*time.Millisecond, "通道随流关闭而拆除")
}

func TestReplicate_PassiveStore(t *testing.T) {
	t.Run("PassiveStillServes", func(t *testing.T) {
		a := newMemStore(t, WithPassive())
		b := newMemStore(t)
		ctx := context.Background()

		core, err := a.GetByName(ctx, "quiet")
		require.NoError(t, err)
		defer core.Close()
		_, err = core.Append([]byte("served"))
		require.NoError(t, err)

		remote, err := b.GetByKey(ctx, core.Key())
		require.NoError(t, err)
		defer remote.Close()

		connectStores(t, a, b)

		assert.Equal(t, []byte("served"), readBlock(t, remote, 0))
	})

	t.Run("BothPassiveNoTransfer", func(t *testing.T) {
		a := newMemStore(t, WithPassive())
		b := newMemStore(t, WithPassive())
		ctx := context.Background()

		core, err := a.GetByName(ctx, "quiet")
		require.NoError(t, err)
		defer core.Close()
		_, err = core.Append([]byte("unreachable"))
		require.NoError(t, err)

		remote, err := b.GetByKey(ctx, core.Key())
		require.NoError(t, err)
		defer remote.Close()

		connectStores(t, a, b)

		waitCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
		defer cancel()
		_, err = remote.Get(waitCtx, 0)
		require.ErrorIs(t, err, context.DeadlineExceeded, "双被动不应建立通道")
	})

	t.Run("StreamOverride", func(t *testing.T) {
		a := newMemStore(t)
		b := newMemStore(t)
		ctx := context.Background()

		core, err := a.GetByName(ctx, "override")
		require.NoError(t, err)
		defer core.Close()
		_, err = core.Append([]byte("pull-only"))
		require.NoError(t, err)

		remote, err := b.GetByKey(ctx, core.Key())
		require.NoError(t, err)
		defer remote.Close()

		// 双端都对本条流关闭主动宣告
		c1, c2 := net.Pipe()
		sa, err := a.Replicate(ctx, c1, true, WithStreamPassive(true))
		require.NoError(t, err)
		defer sa.Close()
		sb, err := b.Replicate(ctx, c2, false, WithStreamPassive(true))
		require.NoError(t, err)
		defer sb.Close()
		waitStreamActive(t, sa)
		waitStreamActive(t, sb)

		waitCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
		defer cancel()
		_, err = remote.Get(waitCtx, 0)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestReplicate_StreamLifecycle(t *testing.T) {
	a := newMemStore(t)
	b := newMemStore(t)

	sa, sb := connectStores(t, a, b)
	assert.NotEqual(t, sa.ID(), sb.ID())
	assert.Equal(t, types.StreamRoleInitiator, sa.Role())
	assert.Equal(t, types.StreamRoleResponder, sb.Role())
	assert.Equal(t, 1, a.shared.rep.Count())

	require.NoError(t, sa.Close())
	<-sa.Done()
	assert.Equal(t, types.StreamStateClosed, sa.State())
	assert.NoError(t, sa.Err(), "主动关闭不算错误")

	require.Eventually(t, func() bool {
		return sb.State() == types.StreamStateClosed
	}, 3*time.Second, 10*time.Millisecond, "对端随传输断开而关闭")
	require.Eventually(t, func() bool {
		return a.shared.rep.Count() == 0
	}, 3*time.Second, 10*time.Millisecond, "流注销后计数归零")
}

func TestReplicate_Stats(t *testing.T) {
	a := newMemStore(t)
	b := newMemStore(t)
	ctx := context.Background()

	core, err := a.GetByName(ctx, "metered")
	require.NoError(t, err)
	defer core.Close()
	payload := []byte("0123456789")
	_, err = core.Append(payload, payload)
	require.NoError(t, err)

	remote, err := b.GetByKey(ctx, core.Key())
	require.NoError(t, err)
	defer remote.Close()

	connectStores(t, a, b)
	readBlock(t, remote, 0)
	readBlock(t, remote, 1)

	// 通道仲裁期间请求可能重发，只断言下限
	out := a.Stats()
	assert.GreaterOrEqual(t, out.BlocksOut, uint64(2))
	assert.GreaterOrEqual(t, out.BytesOut, uint64(2*len(payload)))

	in := b.Stats()
	assert.GreaterOrEqual(t, in.BlocksIn, uint64(2))
	assert.GreaterOrEqual(t, in.BytesIn, uint64(2*len(payload)))
}

func TestReplicate_ClosedStore(t *testing.T) {
	store, err := New(WithInMemoryStorage())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	_, err = store.Replicate(context.Background(), c1, true)
	require.ErrorIs(t, err, ErrStoreClosed)
}
