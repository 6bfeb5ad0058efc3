package appendlog

import (
	"github.com/dep2p/go-corestore/config"
	"github.com/dep2p/go-corestore/internal/core/keymanager"
	"github.com/dep2p/go-corestore/internal/core/storage/engine"
	"github.com/dep2p/go-corestore/pkg/types"
	"go.uber.org/fx"
)

// 模块元信息
const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "appendlog"
	// Description 模块描述
	Description = "默认追加日志（存储引擎持久化）"
)

// Params Appendlog 模块依赖参数
type Params struct {
	fx.In

	Engine     engine.InternalEngine
	KeyManager *keymanager.Manager
	Secret     types.RootSecret
	UnifiedCfg *config.Config `optional:"true"`
}

// Result Appendlog 模块提供的结果
type Result struct {
	fx.Out

	Opener  *Opener
	Catalog *Catalog
}

// Module 返回 Appendlog Fx 模块
//
// 提供:
//   - *Opener: 默认日志打开器
//   - *Catalog: 日志目录，兼默认发现钩子
//
// 根包负责把两者绑定到 interfaces.Opener / interfaces.Resolver，
// 用户自定义实现优先。
func Module() fx.Option {
	return fx.Module("appendlog",
		fx.Provide(ProvideAppendlog),
	)
}

// ProvideAppendlog 提供日志打开器与目录
func ProvideAppendlog(p Params) Result {
	cacheSize := DefaultBlockCacheSize
	if p.UnifiedCfg != nil && p.UnifiedCfg.Log.BlockCacheSize > 0 {
		cacheSize = p.UnifiedCfg.Log.BlockCacheSize
	}
	return Result{
		Opener:  NewOpener(p.Engine, p.KeyManager, cacheSize),
		Catalog: NewCatalog(p.Engine, p.KeyManager, p.Secret),
	}
}
