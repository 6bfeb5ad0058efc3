// Package keymanager 实现确定性密钥派生
//
// KeyManager 从根密钥派生日志密钥对，确保同一 (根密钥, 命名空间, 名称)
// 组合在任何进程、任何时刻都得到同一个密钥对。派生使用 BLAKE3 keyed
// hash，根密钥作为 hash key，命名空间路径与名称作为长度前缀编码的输入，
// 产出 32 字节种子再展开成 ed25519 密钥对。
//
// 根密钥永不写入派生产物：从公钥或发现键都无法反推根密钥，
// 从发现键也无法反推公钥（单向变换）。
//
// # 派生层次
//
//	根密钥 (RootSecret)
//	  └─ 命名空间路径 ["a", "b"]
//	       └─ 名称 "main" ──→ ed25519 密钥对
//	                              └─ 公钥 ──→ 发现键（单向）
//
// # 快速开始
//
//	km := keymanager.NewManager()
//
//	kp, err := km.Derive(secret, []string{"app"}, "main")
//	if err != nil {
//	    return err
//	}
//
//	dk := km.DiscoveryKeyOf(types.CoreKeyFromBytes(kp.Public()))
//
// # 架构定位
//
// Tier: Core Layer Level 1（无依赖）
//
// 依赖关系：
//   - 依赖：pkg/lib/crypto, pkg/types
//   - 被依赖：store, replicator
package keymanager
