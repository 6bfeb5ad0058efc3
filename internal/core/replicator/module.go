package replicator

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-corestore/config"
	"github.com/dep2p/go-corestore/internal/core/keymanager"
	"github.com/dep2p/go-corestore/internal/core/metrics"
	"github.com/dep2p/go-corestore/internal/core/registry"
	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/types"
)

// 模块元信息
const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "replicator"
	// Description 模块描述
	Description = "多日志复制器（噪声握手 + 多路复用通道）"
)

// Params Replicator 模块依赖参数
type Params struct {
	fx.In

	Secret     types.RootSecret
	KeyManager *keymanager.Manager
	Registry   *registry.Registry
	Bus        interfaces.EventBus
	Counter    *metrics.Counter `optional:"true"`
	UnifiedCfg *config.Config   `optional:"true"`
}

// Result Replicator 模块提供的结果
type Result struct {
	fx.Out

	Replicator *Replicator
}

// Module 返回 Replicator Fx 模块
//
// 提供:
//   - *Replicator: 复制器（复制身份从根密钥派生）
//
// 生命周期:
//   - OnStop: 关闭复制器（终结所有活跃流）
func Module() fx.Option {
	return fx.Module("replicator",
		fx.Provide(ProvideReplicator),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideReplicator 提供复制器
func ProvideReplicator(p Params) (Result, error) {
	identity, err := p.KeyManager.ReplicationIdentity(p.Secret)
	if err != nil {
		return Result{}, err
	}

	opts := Options{
		Registry:   p.Registry,
		KeyManager: p.KeyManager,
		Identity:   identity,
		Bus:        p.Bus,
		Counter:    p.Counter,
	}
	if p.UnifiedCfg != nil {
		opts.Passive = p.UnifiedCfg.Replication.Passive
		opts.HandshakeTimeout = p.UnifiedCfg.Replication.HandshakeTimeout.Duration()
	}

	r, err := New(opts)
	if err != nil {
		return Result{}, err
	}
	return Result{Replicator: r}, nil
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, r *Replicator) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			logger.Info("正在关闭复制器", "activeStreams", r.Count())
			return r.Close()
		},
	})
}
