// Package lib 包含基础设施工具库
//
// 本目录包含与架构组件无关的通用工具库：
//
//   - crypto: 密码学原语（密钥对、签名、随机数）
//   - log: 日志封装
//   - proto: 复制协议网络消息定义
//
// # 与 pkg/ 其他目录的关系
//
// pkg/ 目录包含三类内容：
//
//   - interfaces/: 组件公共接口（架构核心）
//   - types/: 公共类型定义（架构核心）
//   - lib/: 基础设施工具库（本目录）
//
// # 使用示例
//
//	import (
//	    "github.com/dep2p/go-corestore/pkg/lib/crypto"
//	    "github.com/dep2p/go-corestore/pkg/lib/log"
//	)
package lib
