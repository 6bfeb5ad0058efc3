package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/dep2p/go-corestore/config"
)

// ============================================================================
//                              配置加载（CLI 专用）
// ============================================================================

// 环境变量名（均使用 CORESTORE_ 前缀）
const (
	envDataDir    = "CORESTORE_DATA_DIR"
	envPrimaryKey = "CORESTORE_PRIMARY_KEY"
	envNamespace  = "CORESTORE_NAMESPACE"
	envLogFile    = "CORESTORE_LOG_FILE"
)

// loadConfigFile 从 JSON 文件加载配置
func loadConfigFile(path string) (*config.Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: 用户指定的配置文件路径是预期行为
	if err != nil {
		return nil, err
	}
	return config.FromJSON(data)
}

// ============================================================================
//                              辅助函数
// ============================================================================

// parseSecretHex 解析十六进制根密钥
func parseSecretHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("根密钥必须是十六进制: %w", err)
	}
	return b, nil
}

// splitAndTrim 分割字符串并去除空白
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
