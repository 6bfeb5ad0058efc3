package keymanager

import (
	"go.uber.org/fx"
)

// ============================================================================
// Fx 模块
// ============================================================================

// Result Fx 模块输出结果
type Result struct {
	fx.Out

	Manager *Manager
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("keymanager",
		fx.Provide(ProvideManager),
	)
}

// ProvideManager 提供 Manager 实例
func ProvideManager() Result {
	return Result{
		Manager: NewManager(),
	}
}

// ============================================================================
// 模块元信息
// ============================================================================

const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "keymanager"
	// Description 模块描述
	Description = "密钥管理模块，提供确定性密钥派生和发现键计算"
)
