package config

import (
	"fmt"
	"time"
)

// MetricsConfig 流量统计配置
//
// 复制流量计数始终开启（开销可忽略），本配置仅控制
// 周期性日志报告。
type MetricsConfig struct {
	// ReportInterval 统计报告输出间隔
	// 0 表示禁用周期性报告
	// 默认值: 60s
	ReportInterval Duration `json:"report_interval"`
}

// DefaultMetricsConfig 返回默认的流量统计配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		ReportInterval: Duration(60 * time.Second), // 每分钟输出一次流量报告
	}
}

// Validate 验证流量统计配置的有效性
func (c *MetricsConfig) Validate() error {
	if c.ReportInterval < 0 {
		return fmt.Errorf("metrics: report_interval cannot be negative")
	}
	return nil
}

// WithReportInterval 设置报告间隔
func (c MetricsConfig) WithReportInterval(d time.Duration) MetricsConfig {
	c.ReportInterval = Duration(d)
	return c
}
