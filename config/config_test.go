package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewConfig 测试创建默认配置
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	// 验证默认配置有效
	err := cfg.Validate()
	assert.NoError(t, err)

	t.Log("✅ NewConfig 测试通过")
}

// TestIdentityConfig 测试根密钥配置
func TestIdentityConfig(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		cfg := DefaultIdentityConfig()
		assert.Empty(t, cfg.PrimaryKey)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Validate_ValidKey", func(t *testing.T) {
		cfg := DefaultIdentityConfig().WithPrimaryKey(strings.Repeat("ab", 32))
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Validate_NotHex", func(t *testing.T) {
		cfg := DefaultIdentityConfig().WithPrimaryKey("zz")
		assert.Error(t, cfg.Validate())
	})

	t.Run("Validate_WrongLength", func(t *testing.T) {
		cfg := DefaultIdentityConfig().WithPrimaryKey("abcd")
		assert.Error(t, cfg.Validate())
	})

	t.Log("✅ IdentityConfig 测试通过")
}

// TestStorageConfig 测试存储配置
func TestStorageConfig(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		cfg := DefaultStorageConfig()
		assert.Equal(t, "./data", cfg.Directory)
		assert.False(t, cfg.InMemory)
		assert.False(t, cfg.SyncWrites)
	})

	t.Run("DBPath", func(t *testing.T) {
		cfg := DefaultStorageConfig().WithDirectory("/tmp/cs")
		assert.Contains(t, cfg.DBPath(), "corestore.db")
		assert.Contains(t, cfg.DBPath(), "/tmp/cs")
	})

	t.Run("Validate_EmptyDirectory", func(t *testing.T) {
		cfg := DefaultStorageConfig().WithDirectory("")
		assert.Error(t, cfg.Validate())
	})

	t.Run("Validate_InMemoryNoDirectory", func(t *testing.T) {
		// 内存模式不需要目录
		cfg := DefaultStorageConfig().WithDirectory("").WithInMemory(true)
		assert.NoError(t, cfg.Validate())
	})

	t.Log("✅ StorageConfig 测试通过")
}

// TestLogConfig 测试日志配置
func TestLogConfig(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		cfg := DefaultLogConfig()
		assert.Equal(t, 1024, cfg.BlockCacheSize)
	})

	t.Run("Validate_Negative", func(t *testing.T) {
		cfg := DefaultLogConfig().WithBlockCacheSize(-1)
		assert.Error(t, cfg.Validate())
	})

	t.Log("✅ LogConfig 测试通过")
}

// TestRegistryConfig 测试注册表配置
func TestRegistryConfig(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		cfg := DefaultRegistryConfig()
		assert.Equal(t, 100*time.Millisecond, cfg.EvictionDelay.Duration())
	})

	t.Run("Validate_Negative", func(t *testing.T) {
		cfg := DefaultRegistryConfig().WithEvictionDelay(-time.Second)
		assert.Error(t, cfg.Validate())
	})

	t.Log("✅ RegistryConfig 测试通过")
}

// TestReplicationConfig 测试复制配置
func TestReplicationConfig(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		cfg := DefaultReplicationConfig()
		assert.False(t, cfg.Passive)
		assert.Equal(t, 15*time.Second, cfg.HandshakeTimeout.Duration())
	})

	t.Run("WithPassive", func(t *testing.T) {
		cfg := DefaultReplicationConfig().WithPassive(true)
		assert.True(t, cfg.Passive)
	})

	t.Log("✅ ReplicationConfig 测试通过")
}

// TestMetricsConfig 测试流量统计配置
func TestMetricsConfig(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		cfg := DefaultMetricsConfig()
		assert.Equal(t, 60*time.Second, cfg.ReportInterval.Duration())
	})

	t.Run("Validate_ZeroDisables", func(t *testing.T) {
		cfg := DefaultMetricsConfig().WithReportInterval(0)
		assert.NoError(t, cfg.Validate())
	})

	t.Log("✅ MetricsConfig 测试通过")
}

// TestFromJSON 测试从 JSON 加载配置
func TestFromJSON(t *testing.T) {
	t.Run("PartialOverride", func(t *testing.T) {
		data := []byte(`{
			"storage": {"directory": "/var/lib/corestore", "sync_writes": true},
			"replication": {"passive": true, "handshake_timeout": "30s"},
			"registry": {"eviction_delay": "250ms"}
		}`)
		cfg, err := FromJSON(data)
		require.NoError(t, err)

		// 覆盖的字段
		assert.Equal(t, "/var/lib/corestore", cfg.Storage.Directory)
		assert.True(t, cfg.Storage.SyncWrites)
		assert.True(t, cfg.Replication.Passive)
		assert.Equal(t, 30*time.Second, cfg.Replication.HandshakeTimeout.Duration())
		assert.Equal(t, 250*time.Millisecond, cfg.Registry.EvictionDelay.Duration())

		// 未覆盖的字段保持默认
		assert.Equal(t, 1024, cfg.Log.BlockCacheSize)
		assert.Equal(t, 60*time.Second, cfg.Metrics.ReportInterval.Duration())
	})

	t.Run("DurationAsNanoseconds", func(t *testing.T) {
		data := []byte(`{"registry": {"eviction_delay": 100000000}}`)
		cfg, err := FromJSON(data)
		require.NoError(t, err)
		assert.Equal(t, 100*time.Millisecond, cfg.Registry.EvictionDelay.Duration())
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		_, err := FromJSON([]byte(`{not json`))
		assert.Error(t, err)
	})

	t.Run("InvalidDuration", func(t *testing.T) {
		_, err := FromJSON([]byte(`{"registry": {"eviction_delay": "soon"}}`))
		assert.Error(t, err)
	})

	t.Log("✅ FromJSON 测试通过")
}

// TestToJSON 测试配置序列化
func TestToJSON(t *testing.T) {
	cfg := NewConfig()
	cfg.Storage = cfg.Storage.WithDirectory("/srv/cs")

	data, err := ToJSON(cfg)
	require.NoError(t, err)

	// 往返一致
	loaded, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, cfg.Storage.Directory, loaded.Storage.Directory)
	assert.Equal(t, cfg.Registry.EvictionDelay, loaded.Registry.EvictionDelay)

	t.Log("✅ ToJSON 测试通过")
}

// TestCloneConfig 测试配置克隆
func TestCloneConfig(t *testing.T) {
	cfg := NewConfig()
	cloned := CloneConfig(cfg)
	require.NotNil(t, cloned)

	// 修改克隆不影响原配置
	cloned.Storage.Directory = "/elsewhere"
	assert.Equal(t, "./data", cfg.Storage.Directory)

	assert.Nil(t, CloneConfig(nil))

	t.Log("✅ CloneConfig 测试通过")
}
