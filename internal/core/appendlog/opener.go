package appendlog

import (
	"context"

	"github.com/dep2p/go-corestore/internal/core/keymanager"
	"github.com/dep2p/go-corestore/internal/core/storage/engine"
	"github.com/dep2p/go-corestore/internal/core/storage/kv"
	"github.com/dep2p/go-corestore/pkg/interfaces"
)

// coresPrefix 日志数据在引擎中的命名空间
var coresPrefix = []byte("c/")

// ============================================================================
//                              Opener - 默认日志打开器
// ============================================================================

// Opener 默认日志打开器
//
// 把身份引用物化为存储引擎上的 Log。注册表负责同一发现键的
// 打开去重，Opener 本身无状态，重复打开同一身份幂等安全。
type Opener struct {
	store     *kv.Store
	km        *keymanager.Manager
	cacheSize int
}

var _ interfaces.Opener = (*Opener)(nil)

// NewOpener 创建日志打开器
//
// 参数:
//   - eng: 存储引擎
//   - km: 密钥管理器（用于公钥到发现键的派生）
//   - cacheSize: 每条日志的块缓存容量，非正时使用默认容量
func NewOpener(eng engine.InternalEngine, km *keymanager.Manager, cacheSize int) *Opener {
	return &Opener{
		store:     kv.New(eng, coresPrefix),
		km:        km,
		cacheSize: cacheSize,
	}
}

// OpenCore 打开（或创建）ref 指向的日志
func (o *Opener) OpenCore(ctx context.Context, ref interfaces.CoreRef) (interfaces.Log, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ref.Key.IsEmpty() {
		return nil, ErrInvalidRef
	}
	dk := o.km.DiscoveryKeyOf(ref.Key)
	return Open(o.store, ref, dk, o.cacheSize)
}
