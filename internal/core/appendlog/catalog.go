package appendlog

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dep2p/go-corestore/internal/core/keymanager"
	"github.com/dep2p/go-corestore/internal/core/storage/engine"
	"github.com/dep2p/go-corestore/internal/core/storage/kv"
	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/lib/crypto"
	"github.com/dep2p/go-corestore/pkg/types"
)

// ============================================================================
//                              Catalog - 日志目录
// ============================================================================

// Catalog 持久化存储中的日志目录
//
// 作为默认发现钩子（interfaces.Resolver）：复制请求命中注册表
// 缺失时，从元数据找回历史上见过的日志。元数据携带派生来源的
// 日志会重新派生密钥对，公钥吻合则恢复写能力；否则只读打开。
//
// 同时支撑 Store.Cores 的目录枚举。
type Catalog struct {
	store  *kv.Store
	km     *keymanager.Manager
	secret types.RootSecret
}

var _ interfaces.Resolver = (*Catalog)(nil)

// NewCatalog 创建日志目录
func NewCatalog(eng engine.InternalEngine, km *keymanager.Manager, secret types.RootSecret) *Catalog {
	return &Catalog{
		store:  kv.New(eng, coresPrefix),
		km:     km,
		secret: secret,
	}
}

// ResolveCore 将发现键解析为可打开的日志引用
//
// 返回:
//   - interfaces.CoreRef: 解析出的引用（可能携带重新派生的密钥对）
//   - error: interfaces.ErrNotResolvable 表示存储中查无此日志
func (c *Catalog) ResolveCore(ctx context.Context, dk types.DiscoveryKey) (interfaces.CoreRef, error) {
	if err := ctx.Err(); err != nil {
		return interfaces.CoreRef{}, err
	}

	var meta metaRecord
	if err := c.store.GetJSON(metaKey(dk), &meta); err != nil {
		if engine.IsNotFound(err) {
			return interfaces.CoreRef{}, interfaces.ErrNotResolvable
		}
		return interfaces.CoreRef{}, err
	}

	key, err := decodeStoredKey(meta.PublicKey)
	if err != nil {
		return interfaces.CoreRef{}, err
	}

	ref := interfaces.CoreRef{
		Key:       key,
		Namespace: meta.Namespace,
		Name:      meta.Name,
	}
	if kp := c.rederive(meta, key); kp != nil {
		ref.KeyPair = kp
	}
	return ref, nil
}

// rederive 按元数据中的派生来源重新派生密钥对
//
// 元数据没有来源、根密钥缺失或派生出的公钥与存储不符时返回 nil，
// 日志只读打开。公钥不符说明根密钥换过，不视为错误。
func (c *Catalog) rederive(meta metaRecord, key types.CoreKey) *crypto.KeyPair {
	if meta.Name == "" || c.secret.IsEmpty() {
		return nil
	}
	kp, err := c.km.Derive(c.secret, meta.Namespace, meta.Name)
	if err != nil {
		return nil
	}
	if !keymanager.PublicKeyOf(kp).Equal(key) {
		logger.Warn("派生公钥与存储不符，日志只读打开",
			"name", meta.Name, "key", key.ShortString())
		return nil
	}
	return kp
}

// List 枚举存储中的全部日志
//
// 来自元数据扫描，与注册表中的活跃句柄无关。结果按公钥的
// Base58 表示排序，保证枚举顺序稳定。
func (c *Catalog) List() ([]types.CoreInfo, error) {
	var infos []types.CoreInfo
	err := c.store.PrefixScan([]byte("m/"), func(key, value []byte) bool {
		info, ok := c.decodeInfo(key, value)
		if ok {
			infos = append(infos, info)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Key.String() < infos[j].Key.String()
	})
	return infos, nil
}

// Count 返回存储中的日志总数
func (c *Catalog) Count() (int64, error) {
	return c.store.Count([]byte("m/"))
}

// decodeInfo 把一条元数据记录解码为目录条目
//
// 键格式为 m/<dk>；不合法的记录跳过并告警，不中断扫描。
func (c *Catalog) decodeInfo(key, value []byte) (types.CoreInfo, bool) {
	dk, err := types.DiscoveryKeyFromBytes(key[2:])
	if err != nil {
		logger.Warn("元数据键格式不合法，跳过", "key", fmt.Sprintf("%x", key))
		return types.CoreInfo{}, false
	}

	var meta metaRecord
	if err := json.Unmarshal(value, &meta); err != nil {
		logger.Warn("元数据记录解码失败，跳过", "dk", dk.ShortString(), "error", err)
		return types.CoreInfo{}, false
	}

	coreKey, err := decodeStoredKey(meta.PublicKey)
	if err != nil {
		logger.Warn("元数据公钥不合法，跳过", "dk", dk.ShortString(), "error", err)
		return types.CoreInfo{}, false
	}

	return types.CoreInfo{
		Key:          coreKey,
		DiscoveryKey: dk,
		Length:       meta.Length,
		Name:         meta.Name,
		Writable:     c.rederive(meta, coreKey) != nil,
	}, true
}

// decodeStoredKey 解码元数据中的十六进制公钥
func decodeStoredKey(pubHex string) (types.CoreKey, error) {
	raw, err := hex.DecodeString(pubHex)
	if err != nil {
		return types.EmptyCoreKey, fmt.Errorf("appendlog: decode stored public key: %w", err)
	}
	key, err := types.CoreKeyFromBytes(raw)
	if err != nil {
		return types.EmptyCoreKey, fmt.Errorf("appendlog: decode stored public key: %w", err)
	}
	return key, nil
}
