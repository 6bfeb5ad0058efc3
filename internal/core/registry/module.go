package registry

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-corestore/config"
	"github.com/dep2p/go-corestore/pkg/interfaces"
)

// 模块元信息
const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "registry"
	// Description 模块描述
	Description = "活跃日志注册表（按发现键去重）"
)

// Params Registry 模块依赖参数
type Params struct {
	fx.In

	Opener     interfaces.Opener
	Resolver   interfaces.Resolver `optional:"true"`
	Bus        interfaces.EventBus
	Clock      clock.Clock    `optional:"true"`
	UnifiedCfg *config.Config `optional:"true"`
}

// Result Registry 模块提供的结果
type Result struct {
	fx.Out

	Registry *Registry
}

// Module 返回 Registry Fx 模块
//
// 提供:
//   - *Registry: 活跃日志注册表
//
// 生命周期:
//   - OnStop: 关闭注册表（关闭所有就绪日志）
func Module() fx.Option {
	return fx.Module("registry",
		fx.Provide(ProvideRegistry),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideRegistry 提供注册表
func ProvideRegistry(p Params) (Result, error) {
	opts := Options{
		Opener:   p.Opener,
		Resolver: p.Resolver,
		Bus:      p.Bus,
		Clock:    p.Clock,
	}
	if p.UnifiedCfg != nil {
		opts.EvictionDelay = p.UnifiedCfg.Registry.EvictionDelay.Duration()
	}

	reg, err := New(opts)
	if err != nil {
		return Result{}, err
	}
	return Result{Registry: reg}, nil
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, reg *Registry) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			logger.Info("正在关闭注册表")
			return reg.Close()
		},
	})
}
