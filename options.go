package corestore

import (
	"fmt"

	"github.com/dep2p/go-corestore/config"
	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/types"
)

// Option 用户配置选项函数
//
// 所有选项在 New 调用时立即校验，
// 非法参数同步返回错误而不是推迟到运行期。
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 完整配置（WithConfig）
	cfg *config.Config

	// 存储配置
	storageDir string
	inMemory   bool

	// 身份配置
	primaryKey types.RootSecret

	// 复制配置
	passive bool

	// 自定义日志实现
	opener   interfaces.Opener
	resolver interfaces.Resolver
}

// newOptions 创建默认选项
func newOptions() *options {
	return &options{}
}

// toConfig 将选项合并为最终配置
//
// 合并顺序: WithConfig 提供的基础配置（缺省为默认配置），
// 再叠加各个单项选项，最后整体校验。
func (o *options) toConfig() (*config.Config, error) {
	var cfg *config.Config
	if o.cfg != nil {
		cfg = config.CloneConfig(o.cfg)
	} else {
		cfg = config.NewConfig()
	}

	if o.storageDir != "" {
		cfg.Storage.Directory = o.storageDir
		cfg.Storage.InMemory = false
	}
	if o.inMemory {
		cfg.Storage.InMemory = true
	}
	if o.passive {
		cfg.Replication.Passive = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WithConfig 使用完整配置
//
// 参数:
//   - cfg: 完整配置对象，内部会克隆一份，调用方可以继续修改原对象
//
// 返回值:
//   - Option: 配置选项
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("配置不能为空")
		}
		o.cfg = cfg
		return nil
	}
}

// WithStorage 使用指定目录的持久化存储
//
// 参数:
//   - dir: BadgerDB 数据目录
//
// 返回值:
//   - Option: 配置选项
func WithStorage(dir string) Option {
	return func(o *options) error {
		if dir == "" {
			return fmt.Errorf("存储目录不能为空")
		}
		o.storageDir = dir
		return nil
	}
}

// WithInMemoryStorage 使用内存存储
//
// 进程退出后数据丢失，适用于测试和临时会话。
func WithInMemoryStorage() Option {
	return func(o *options) error {
		o.inMemory = true
		return nil
	}
}

// WithPrimaryKey 显式指定根密钥
//
// 显式指定的根密钥优先于配置文件与存储中已持久化的记录，
// 并会覆盖持久化记录，后续以默认方式打开同一目录仍使用该密钥。
//
// 参数:
//   - secret: 32 字节根密钥
//
// 返回值:
//   - Option: 配置选项
func WithPrimaryKey(secret []byte) Option {
	return func(o *options) error {
		rs, err := types.RootSecretFromBytes(secret)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSecret, err)
		}
		o.primaryKey = rs
		return nil
	}
}

// WithPassive 启用被动复制模式
//
// 被动端不主动宣告本地日志，只响应对端发起的通道。
func WithPassive() Option {
	return func(o *options) error {
		o.passive = true
		return nil
	}
}

// WithOpener 使用自定义日志打开器
//
// 缺省使用内置的追加日志实现，注入自定义打开器可以替换
// 日志的底层存储格式。
func WithOpener(opener interfaces.Opener) Option {
	return func(o *options) error {
		if opener == nil {
			return fmt.Errorf("日志打开器不能为空")
		}
		o.opener = opener
		return nil
	}
}

// WithResolver 使用自定义日志解析器
//
// 解析器负责把未知的发现键还原为日志引用，
// 缺省使用内置目录（只能解析本地已持久化的日志）。
func WithResolver(resolver interfaces.Resolver) Option {
	return func(o *options) error {
		if resolver == nil {
			return fmt.Errorf("日志解析器不能为空")
		}
		o.resolver = resolver
		return nil
	}
}
