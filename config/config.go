// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON 加载和保存配置
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Storage.Directory = "/var/lib/corestore"
//	cfg.Replication.Passive = true
//
//	// 从 JSON 加载
//	cfg, err := config.FromJSON(data)
package config

// Config 是 Corestore 的完整配置结构
//
// 该结构体嵌入了所有组件的子配置，提供统一的配置接口。
// 配置按照功能模块组织：
//   - Identity: 根密钥来源
//   - Storage: 存储引擎（BadgerDB / 内存）
//   - Log: 追加日志参数
//   - Registry: 日志注册表（引用计数与延迟驱逐）
//   - Replication: 复制会话行为
//   - Metrics: 复制流量统计
type Config struct {
	// Identity 根密钥配置
	Identity IdentityConfig `json:"identity"`

	// Storage 存储引擎配置
	Storage StorageConfig `json:"storage"`

	// Log 追加日志配置
	Log LogConfig `json:"log"`

	// Registry 日志注册表配置
	Registry RegistryConfig `json:"registry"`

	// Replication 复制会话配置
	Replication ReplicationConfig `json:"replication"`

	// Metrics 流量统计配置
	Metrics MetricsConfig `json:"metrics"`
}

// NewConfig 创建默认配置
//
// 返回的配置使用所有组件的默认值，适用于大多数场景。
// 可以通过修改字段或链式 WithX 方法来定制配置。
func NewConfig() *Config {
	return &Config{
		Identity:    DefaultIdentityConfig(),
		Storage:     DefaultStorageConfig(),
		Log:         DefaultLogConfig(),
		Registry:    DefaultRegistryConfig(),
		Replication: DefaultReplicationConfig(),
		Metrics:     DefaultMetricsConfig(),
	}
}

// Validate 验证配置的有效性
//
// 检查所有子配置是否有效，如果发现无效配置则返回错误。
// 建议在使用配置前调用此方法。
func (c *Config) Validate() error {
	if err := c.Identity.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.Registry.Validate(); err != nil {
		return err
	}
	if err := c.Replication.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	return nil
}
