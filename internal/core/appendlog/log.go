package appendlog

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/dep2p/go-corestore/internal/core/storage/engine"
	"github.com/dep2p/go-corestore/internal/core/storage/kv"
	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/lib/crypto"
	"github.com/dep2p/go-corestore/pkg/lib/log"
	"github.com/dep2p/go-corestore/pkg/types"
)

var logger = log.Logger("core/appendlog")

// DefaultBlockCacheSize 单条日志的块缓存容量（条目数）
const DefaultBlockCacheSize = 1024

// ============================================================================
//                              键布局
// ============================================================================

// metaKey 返回日志元数据键: m/<dk>
func metaKey(dk types.DiscoveryKey) []byte {
	key := make([]byte, 0, 2+len(dk))
	key = append(key, 'm', '/')
	return append(key, dk[:]...)
}

// blockKey 返回块内容键: b/<dk><idx>（索引 8 字节大端序）
func blockKey(dk types.DiscoveryKey, index uint64) []byte {
	key := make([]byte, 2+len(dk)+8)
	key[0], key[1] = 'b', '/'
	copy(key[2:], dk[:])
	binary.BigEndian.PutUint64(key[2+len(dk):], index)
	return key
}

// hashKey 返回块哈希键: h/<dk><idx>
func hashKey(dk types.DiscoveryKey, index uint64) []byte {
	key := blockKey(dk, index)
	key[0] = 'h'
	return key
}

// metaRecord 持久化的日志元数据
type metaRecord struct {
	// PublicKey 日志公钥（十六进制）
	PublicKey string `json:"publicKey"`

	// Length 已知长度（最高块索引 + 1）
	Length uint64 `json:"length"`

	// Namespace / Name 名字派生来源（按公钥打开的日志为空）
	Namespace []string `json:"namespace,omitempty"`
	Name      string   `json:"name,omitempty"`
}

// ============================================================================
//                              Log - 追加日志
// ============================================================================

// Log 存储引擎之上的追加日志
//
// 写路径：块与其 BLAKE2b-256 哈希成对落盘，长度在同一批次内
// 原子更新。读路径：LRU 缓存命中直接返回，未命中从引擎读出并
// 校验哈希。所有方法线程安全。
type Log struct {
	key    types.CoreKey
	dk     types.DiscoveryKey
	pubHex string

	keyPair *crypto.KeyPair
	store   *kv.Store
	cache   *lru.Cache[uint64, []byte]

	mu        sync.Mutex
	length    uint64
	namespace []string
	name      string
	waiters   map[uint64][]chan struct{}
	onGrow    []func(uint64)
	onWant    []func(uint64)
	closed    bool

	// notifyMu 序列化增长回调；lastNotified 丢弃乱序的旧长度
	notifyMu     sync.Mutex
	lastNotified uint64
}

var _ interfaces.Log = (*Log)(nil)

// Open 打开（或创建）ref 指向的日志
//
// 首次打开写入元数据；再次打开校验存储中的公钥与 ref 一致，
// 不一致返回 ErrKeyMismatch。cacheSize 非正时使用默认容量。
//
// 参数:
//   - store: "c/" 命名空间的存储视图
//   - ref: 日志身份引用
//   - dk: 由 ref.Key 派生的发现键
//   - cacheSize: 块缓存容量
func Open(store *kv.Store, ref interfaces.CoreRef, dk types.DiscoveryKey, cacheSize int) (*Log, error) {
	if ref.Key.IsEmpty() {
		return nil, ErrInvalidRef
	}
	if cacheSize <= 0 {
		cacheSize = DefaultBlockCacheSize
	}
	cache, err := lru.New[uint64, []byte](cacheSize)
	if err != nil {
		return nil, err
	}

	l := &Log{
		key:     ref.Key,
		dk:      dk,
		pubHex:  hex.EncodeToString(ref.Key.Bytes()),
		keyPair: ref.KeyPair,
		store:   store,
		cache:   cache,
		waiters: make(map[uint64][]chan struct{}),
	}

	var meta metaRecord
	switch err := store.GetJSON(metaKey(dk), &meta); {
	case err == nil:
		if meta.PublicKey != l.pubHex {
			return nil, ErrKeyMismatch
		}
		l.length = meta.Length
		l.namespace = meta.Namespace
		l.name = meta.Name
		// 补记派生来源：早先按公钥打开的日志首次带名字打开时落盘
		if meta.Name == "" && ref.Name != "" {
			l.namespace = ref.Namespace
			l.name = ref.Name
			if werr := store.PutJSON(metaKey(dk), l.currentMeta()); werr != nil {
				return nil, werr
			}
		}
	case engine.IsNotFound(err):
		l.namespace = ref.Namespace
		l.name = ref.Name
		if werr := store.PutJSON(metaKey(dk), l.currentMeta()); werr != nil {
			return nil, werr
		}
	default:
		return nil, err
	}

	logger.Debug("日志已打开", "dk", dk.ShortString(), "length", l.length, "writable", l.Writable())
	return l, nil
}

// currentMeta 构造当前状态的元数据记录（调用方持有 mu 或日志尚未发布）
func (l *Log) currentMeta() *metaRecord {
	return &metaRecord{
		PublicKey: l.pubHex,
		Length:    l.length,
		Namespace: l.namespace,
		Name:      l.name,
	}
}

// PublicKey 返回日志公钥
func (l *Log) PublicKey() types.CoreKey {
	return l.key
}

// DiscoveryKey 返回日志发现键
func (l *Log) DiscoveryKey() types.DiscoveryKey {
	return l.dk
}

// Writable 是否持有写能力
func (l *Log) Writable() bool {
	return l.keyPair != nil && l.keyPair.Writable()
}

// Length 返回当前已知长度
func (l *Log) Length() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.length
}

// Append 追加块并返回新长度
//
// 仅可写日志支持。块、哈希与长度在同一批次内原子落盘。
func (l *Log) Append(blocks ...[]byte) (uint64, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0, interfaces.ErrLogClosed
	}
	if !l.Writable() {
		length := l.length
		l.mu.Unlock()
		return length, interfaces.ErrLogNotWritable
	}
	if len(blocks) == 0 {
		length := l.length
		l.mu.Unlock()
		return length, nil
	}

	start := l.length
	newLength := start + uint64(len(blocks))

	batch := l.store.NewBatch()
	defer batch.Close()
	for i, block := range blocks {
		index := start + uint64(i)
		sum := blake2b.Sum256(block)
		batch.Put(blockKey(l.dk, index), block)
		batch.Put(hashKey(l.dk, index), sum[:])
	}
	meta := &metaRecord{PublicKey: l.pubHex, Length: newLength, Namespace: l.namespace, Name: l.name}
	if err := batch.PutJSON(metaKey(l.dk), meta); err != nil {
		l.mu.Unlock()
		return start, err
	}
	if err := batch.Write(); err != nil {
		l.mu.Unlock()
		return start, err
	}

	for i, block := range blocks {
		l.cache.Add(start+uint64(i), copyBytes(block))
	}
	l.length = newLength
	woken := l.wakeRangeLocked(start, newLength)
	callbacks := l.callbacksLocked()
	l.mu.Unlock()

	for _, ch := range woken {
		close(ch)
	}
	l.notifyGrow(callbacks, newLength)
	return newLength, nil
}

// Block 读取本地已有的块
//
// 返回:
//   - []byte: 块内容的副本
//   - error: interfaces.ErrBlockMissing 如果块尚未到达本地
func (l *Log) Block(index uint64) ([]byte, error) {
	l.mu.Lock()
	block, err := l.blockLocked(index)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return copyBytes(block), nil
}

// blockLocked 读取块（调用方持有 mu；返回值归缓存所有，不可修改）
func (l *Log) blockLocked(index uint64) ([]byte, error) {
	if l.closed {
		return nil, interfaces.ErrLogClosed
	}
	if block, ok := l.cache.Get(index); ok {
		return block, nil
	}
	data, err := l.store.Get(blockKey(l.dk, index))
	if err != nil {
		if engine.IsNotFound(err) {
			return nil, interfaces.ErrBlockMissing
		}
		return nil, err
	}
	// 哈希校验只在首次从引擎读出时做，缓存命中跳过
	if want, herr := l.store.Get(hashKey(l.dk, index)); herr == nil {
		sum := blake2b.Sum256(data)
		if !bytes.Equal(sum[:], want) {
			logger.Warn("块哈希校验失败", "dk", l.dk.ShortString(), "index", index)
			return nil, ErrCorruptBlock
		}
	}
	l.cache.Add(index, data)
	return data, nil
}

// Has 检查块是否在本地
func (l *Log) Has(index uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	return l.hasLocked(index)
}

// hasLocked 检查块是否在本地（调用方持有 mu）
func (l *Log) hasLocked(index uint64) bool {
	if l.cache.Contains(index) {
		return true
	}
	ok, err := l.store.Has(blockKey(l.dk, index))
	return err == nil && ok
}

// WaitBlock 阻塞读取块
//
// 块已在本地时立即返回；否则阻塞到块到达（PutRemote 写入）、
// ctx 取消或日志关闭。
func (l *Log) WaitBlock(ctx context.Context, index uint64) ([]byte, error) {
	for {
		l.mu.Lock()
		block, err := l.blockLocked(index)
		if err == nil {
			l.mu.Unlock()
			return copyBytes(block), nil
		}
		if !errors.Is(err, interfaces.ErrBlockMissing) {
			l.mu.Unlock()
			return nil, err
		}
		ready := make(chan struct{})
		first := len(l.waiters[index]) == 0
		l.waiters[index] = append(l.waiters[index], ready)
		var wantFns []func(uint64)
		if first && len(l.onWant) > 0 {
			wantFns = append([]func(uint64){}, l.onWant...)
		}
		l.mu.Unlock()

		// 首个等待者登记后再通知，块请求不会先于等待者就绪
		for _, fn := range wantFns {
			fn(index)
		}

		select {
		case <-ready:
			// 被块写入或关闭唤醒，回到循环重新检查
		case <-ctx.Done():
			l.removeWaiter(index, ready)
			return nil, ctx.Err()
		}
	}
}

// removeWaiter 摘除未被唤醒的等待者
func (l *Log) removeWaiter(index uint64, ch chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	chs := l.waiters[index]
	for i, c := range chs {
		if c == ch {
			l.waiters[index] = append(chs[:i], chs[i+1:]...)
			break
		}
	}
	if len(l.waiters[index]) == 0 {
		delete(l.waiters, index)
	}
}

// PendingWants 返回当前有等待者的块索引（升序）
func (l *Log) PendingWants() []uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.waiters) == 0 {
		return nil
	}
	wants := make([]uint64, 0, len(l.waiters))
	for index := range l.waiters {
		wants = append(wants, index)
	}
	sort.Slice(wants, func(i, j int) bool { return wants[i] < wants[j] })
	return wants
}

// PutRemote 写入经复制到达的远程块
//
// 幂等：块已存在时直接返回。块、哈希与必要时的长度更新在同一
// 批次内完成；随后唤醒该索引的等待者，长度增长时触发回调。
func (l *Log) PutRemote(index uint64, block []byte) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return interfaces.ErrLogClosed
	}
	if l.hasLocked(index) {
		l.mu.Unlock()
		return nil
	}

	sum := blake2b.Sum256(block)
	batch := l.store.NewBatch()
	defer batch.Close()
	batch.Put(blockKey(l.dk, index), block)
	batch.Put(hashKey(l.dk, index), sum[:])

	newLength := l.length
	grew := false
	if index >= l.length {
		newLength = index + 1
		grew = true
		meta := &metaRecord{PublicKey: l.pubHex, Length: newLength, Namespace: l.namespace, Name: l.name}
		if err := batch.PutJSON(metaKey(l.dk), meta); err != nil {
			l.mu.Unlock()
			return err
		}
	}
	if err := batch.Write(); err != nil {
		l.mu.Unlock()
		return err
	}

	l.cache.Add(index, copyBytes(block))
	l.length = newLength
	woken := l.wakeIndexLocked(index)
	var callbacks []func(uint64)
	if grew {
		callbacks = l.callbacksLocked()
	}
	l.mu.Unlock()

	for _, ch := range woken {
		close(ch)
	}
	if grew {
		l.notifyGrow(callbacks, newLength)
	}
	return nil
}

// OnGrow 注册长度增长回调
//
// 本地追加与远程块落盘都会触发，回调在锁外串行执行。
func (l *Log) OnGrow(fn func(length uint64)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onGrow = append(l.onGrow, fn)
}

// OnWant 注册缺块等待回调
//
// WaitBlock 为缺失的块登记首个等待者后在锁外触发；同一索引的
// 等待者清空前不会重复触发。
func (l *Log) OnWant(fn func(index uint64)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onWant = append(l.onWant, fn)
}

// Close 关闭日志句柄
//
// 释放所有等待者（WaitBlock 返回 interfaces.ErrLogClosed），
// 清空缓存。持久化数据保留。
func (l *Log) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	var woken []chan struct{}
	for _, chs := range l.waiters {
		woken = append(woken, chs...)
	}
	l.waiters = make(map[uint64][]chan struct{})
	l.cache.Purge()
	l.mu.Unlock()

	for _, ch := range woken {
		close(ch)
	}
	logger.Debug("日志已关闭", "dk", l.dk.ShortString())
	return nil
}

// ============================================================================
//                              内部辅助
// ============================================================================

// wakeRangeLocked 摘下 [start, end) 区间内的等待者（调用方持有 mu）
func (l *Log) wakeRangeLocked(start, end uint64) []chan struct{} {
	var woken []chan struct{}
	for index, chs := range l.waiters {
		if index >= start && index < end {
			woken = append(woken, chs...)
			delete(l.waiters, index)
		}
	}
	return woken
}

// wakeIndexLocked 摘下单个索引的等待者（调用方持有 mu）
func (l *Log) wakeIndexLocked(index uint64) []chan struct{} {
	chs := l.waiters[index]
	if len(chs) > 0 {
		delete(l.waiters, index)
	}
	return chs
}

// callbacksLocked 快照当前的增长回调（调用方持有 mu）
func (l *Log) callbacksLocked() []func(uint64) {
	if len(l.onGrow) == 0 {
		return nil
	}
	return append([]func(uint64){}, l.onGrow...)
}

// notifyGrow 在锁外触发增长回调
//
// notifyMu 保证同一回调不会并发执行；长度通知单调递增，
// 并发提交导致的乱序旧值直接丢弃。
func (l *Log) notifyGrow(callbacks []func(uint64), length uint64) {
	if len(callbacks) == 0 {
		return
	}
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()
	if length <= l.lastNotified {
		return
	}
	l.lastNotified = length
	for _, fn := range callbacks {
		fn(length)
	}
}

// copyBytes 返回字节切片的副本
func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
