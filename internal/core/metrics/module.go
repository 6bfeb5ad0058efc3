package metrics

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-corestore/config"
)

// 模块元信息
const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "metrics"
	// Description 模块描述
	Description = "复制流量统计"
)

// Params Metrics 模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Result Metrics 模块提供的结果
type Result struct {
	fx.Out

	Counter  *Counter
	Reporter *Reporter
}

// Module 返回 Metrics Fx 模块
//
// 提供:
//   - *Counter: 复制流量计数器
//   - *Reporter: 定期日志报告器（间隔未配置时不启动）
//
// 生命周期:
//   - OnStart: 启动报告器
//   - OnStop: 停止报告器
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideMetrics),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideMetrics 提供流量计数器和报告器
func ProvideMetrics(p Params) Result {
	counter := NewCounter()

	var reportInterval time.Duration
	if p.UnifiedCfg != nil {
		reportInterval = p.UnifiedCfg.Metrics.ReportInterval.Duration()
	}

	return Result{
		Counter:  counter,
		Reporter: NewReporter(counter, reportInterval),
	}
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, r *Reporter) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			r.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			r.Stop()
			return nil
		},
	})
}
