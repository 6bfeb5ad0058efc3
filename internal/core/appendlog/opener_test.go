package appendlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-corestore/internal/core/keymanager"
	"github.com/dep2p/go-corestore/pkg/interfaces"
)

func TestOpener_OpenCore(t *testing.T) {
	eng := testEngine(t)
	km := keymanager.NewManager()
	opener := NewOpener(eng, km, 0)

	ref, dk := testRef(t)
	l, err := opener.OpenCore(context.Background(), ref)
	require.NoError(t, err)
	defer l.Close()

	assert.True(t, l.Writable())
	concrete, ok := l.(*Log)
	require.True(t, ok)
	assert.True(t, concrete.DiscoveryKey().Equal(dk))
}

func TestOpener_OpenCoreInvalidRef(t *testing.T) {
	opener := NewOpener(testEngine(t), keymanager.NewManager(), 0)

	_, err := opener.OpenCore(context.Background(), interfaces.CoreRef{})
	assert.ErrorIs(t, err, ErrInvalidRef)
}

func TestOpener_OpenCoreCanceledContext(t *testing.T) {
	opener := NewOpener(testEngine(t), keymanager.NewManager(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ref, _ := testRef(t)
	_, err := opener.OpenCore(ctx, ref)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpener_ReopenSameIdentity(t *testing.T) {
	eng := testEngine(t)
	km := keymanager.NewManager()
	opener := NewOpener(eng, km, 0)
	ref, _ := testRef(t)

	first, err := opener.OpenCore(context.Background(), ref)
	require.NoError(t, err)
	_, err = first.Append([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// 注册表去重失效时重复打开也不破坏持久化状态
	second, err := opener.OpenCore(context.Background(), ref)
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, uint64(1), second.Length())
	block, err := second.Block(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), block)
}
