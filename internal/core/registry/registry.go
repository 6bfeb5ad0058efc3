package registry

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/lib/log"
	"github.com/dep2p/go-corestore/pkg/types"
)

var logger = log.Logger("core/registry")

// DefaultEvictionDelay 空闲条目的默认驱逐延迟
const DefaultEvictionDelay = 100 * time.Millisecond

// ============================================================================
//                              条目
// ============================================================================

// entry 注册表中一个发现键的条目
//
// log 与 err 在 ready 关闭前由物化方写入，关闭后只读；
// 其余可变字段由 Registry.mu 保护。
type entry struct {
	dk types.DiscoveryKey

	// ready 物化完成（成功或失败）后关闭
	ready chan struct{}

	log interfaces.Log
	err error

	refs       int
	evictTimer *clock.Timer
	evictEpoch uint64
}

// ============================================================================
//                              Registry
// ============================================================================

// Options 注册表构造选项
type Options struct {
	// Opener 日志打开器（必填）
	Opener interfaces.Opener

	// Resolver 发现钩子（可选；nil 时对缺失的发现键
	// LookupOrResolve 直接返回 interfaces.ErrNotResolvable）
	Resolver interfaces.Resolver

	// Bus 事件总线（必填，发布打开与增长事件）
	Bus interfaces.EventBus

	// Clock 时钟源（可选，默认真实时钟，测试注入 mock）
	Clock clock.Clock

	// EvictionDelay 空闲条目的驱逐延迟（非正时用默认值）
	EvictionDelay time.Duration
}

// Registry 活跃日志注册表
//
// 按发现键去重：同一发现键全程只有一个 Log 实例、一次在途物化。
// 并发获取同一发现键时，第一个调用方执行物化，其余等待结果。
// 引用计数归零的条目延迟驱逐，窗口内重新获取复用原实例。
type Registry struct {
	opener        interfaces.Opener
	resolver      interfaces.Resolver
	clk           clock.Clock
	evictionDelay time.Duration

	openedEmitter interfaces.Emitter
	growthEmitter interfaces.Emitter
	wantEmitter   interfaces.Emitter

	mu      sync.Mutex
	entries map[types.DiscoveryKey]*entry
	closed  bool
}

// New 创建注册表
func New(opts Options) (*Registry, error) {
	if opts.Opener == nil {
		return nil, ErrNilOpener
	}
	if opts.Bus == nil {
		return nil, ErrNilBus
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.EvictionDelay <= 0 {
		opts.EvictionDelay = DefaultEvictionDelay
	}

	openedEmitter, err := opts.Bus.Emitter(new(types.EvtCoreOpened))
	if err != nil {
		return nil, err
	}
	growthEmitter, err := opts.Bus.Emitter(new(types.EvtCoreAppended))
	if err != nil {
		_ = openedEmitter.Close()
		return nil, err
	}
	wantEmitter, err := opts.Bus.Emitter(new(types.EvtBlockWanted))
	if err != nil {
		_ = openedEmitter.Close()
		_ = growthEmitter.Close()
		return nil, err
	}

	return &Registry{
		opener:        opts.Opener,
		resolver:      opts.Resolver,
		clk:           opts.Clock,
		evictionDelay: opts.EvictionDelay,
		openedEmitter: openedEmitter,
		growthEmitter: growthEmitter,
		wantEmitter:   wantEmitter,
		entries:       make(map[types.DiscoveryKey]*entry),
	}, nil
}

// Acquire 获取（必要时物化）发现键对应的条目
//
// 条目已存在时增加引用并等待其就绪；不存在时当前调用方执行
// 物化，并发的其他调用方阻塞在结果上。物化失败的条目立即从
// 表中摘除，下一次获取会重试。
//
// 返回的句柄用完必须 Release。
func (r *Registry) Acquire(ctx context.Context, dk types.DiscoveryKey, ref interfaces.CoreRef) (*Handle, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	if e, ok := r.entries[dk]; ok {
		e.refs++
		r.cancelEvictionLocked(e)
		r.mu.Unlock()
		return r.await(ctx, e)
	}

	e := &entry{dk: dk, ready: make(chan struct{}), refs: 1}
	r.entries[dk] = e
	r.mu.Unlock()

	l, err := r.opener.OpenCore(ctx, ref)
	if ferr := r.finalize(e, l, err); ferr != nil {
		return nil, ferr
	}
	return &Handle{registry: r, entry: e}, nil
}

// LookupOrResolve 按发现键查找条目，缺失时走发现钩子
//
// 注册表命中时等价于 Acquire；缺失时调用发现钩子把发现键解析
// 为可打开的引用。解析失败返回 interfaces.ErrNotResolvable，
// 调用方（复制通道）把它当作非致命结果处理。
func (r *Registry) LookupOrResolve(ctx context.Context, dk types.DiscoveryKey) (*Handle, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	if e, ok := r.entries[dk]; ok {
		e.refs++
		r.cancelEvictionLocked(e)
		r.mu.Unlock()
		return r.await(ctx, e)
	}
	r.mu.Unlock()

	if r.resolver == nil {
		return nil, interfaces.ErrNotResolvable
	}
	ref, err := r.resolver.ResolveCore(ctx, dk)
	if err != nil {
		return nil, err
	}
	return r.Acquire(ctx, dk, ref)
}

// await 等待条目物化完成
func (r *Registry) await(ctx context.Context, e *entry) (*Handle, error) {
	select {
	case <-e.ready:
		if e.err != nil {
			// 失败条目已被物化方摘除，引用无须归还
			return nil, e.err
		}
		return &Handle{registry: r, entry: e}, nil
	case <-ctx.Done():
		r.release(e)
		return nil, ctx.Err()
	}
}

// finalize 完成条目物化
//
// 成功时挂接增长桥接、唤醒等待者并发布打开事件；失败（或注册表
// 已关闭）时摘除条目、唤醒等待者并关闭可能已打开的日志。
func (r *Registry) finalize(e *entry, l interfaces.Log, err error) error {
	r.mu.Lock()
	if err == nil && r.closed {
		err = ErrRegistryClosed
	}
	if err != nil {
		e.err = err
		if r.entries[e.dk] == e {
			delete(r.entries, e.dk)
		}
		close(e.ready)
		r.mu.Unlock()
		if l != nil {
			_ = l.Close()
		}
		return err
	}

	e.log = l
	dk := e.dk
	l.OnGrow(func(length uint64) {
		r.emitGrowth(dk, length)
	})
	l.OnWant(func(index uint64) {
		r.emitWanted(dk, index)
	})
	close(e.ready)
	writable := l.Writable()
	r.mu.Unlock()

	logger.Debug("日志已物化", "dk", dk.ShortString(), "writable", writable)
	r.emitOpened(dk, writable)
	return nil
}

// release 归还一个引用
//
// 计数归零后启动驱逐定时器。epoch 令牌使延迟窗口内的重新获取
// 能作废已触发但尚未执行的驱逐。
func (r *Registry) release(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.refs--
	if e.refs > 0 || r.closed || r.entries[e.dk] != e {
		return
	}
	e.evictEpoch++
	epoch := e.evictEpoch
	e.evictTimer = r.clk.AfterFunc(r.evictionDelay, func() {
		r.evict(e, epoch)
	})
}

// evict 驱逐空闲条目
func (r *Registry) evict(e *entry, epoch uint64) {
	r.mu.Lock()
	if r.closed || r.entries[e.dk] != e || e.refs > 0 || e.evictEpoch != epoch {
		r.mu.Unlock()
		return
	}
	delete(r.entries, e.dk)
	l := e.log
	r.mu.Unlock()

	if l != nil {
		if err := l.Close(); err != nil {
			logger.Warn("驱逐时关闭日志失败", "dk", e.dk.ShortString(), "error", err)
		}
	}
	logger.Debug("空闲日志已驱逐", "dk", e.dk.ShortString())
}

// cancelEvictionLocked 取消条目的驱逐（调用方持有 mu）
func (r *Registry) cancelEvictionLocked(e *entry) {
	if e.evictTimer != nil {
		e.evictTimer.Stop()
		e.evictTimer = nil
	}
	e.evictEpoch++
}

// Count 返回当前条目数（含物化中与空闲待驱逐的条目）
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// List 返回已就绪条目的发现键
//
// 复制流建立时用它枚举要宣告的日志；物化中的条目不包含在内。
func (r *Registry) List() []types.DiscoveryKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	dks := make([]types.DiscoveryKey, 0, len(r.entries))
	for dk, e := range r.entries {
		if e.log != nil {
			dks = append(dks, dk)
		}
	}
	return dks
}

// Close 关闭注册表
//
// 停止全部驱逐定时器并关闭所有就绪日志。物化中的条目由其
// 物化方在 finalize 时发现关闭状态并自行清理。
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	var logs []interfaces.Log
	for dk, e := range r.entries {
		if e.evictTimer != nil {
			e.evictTimer.Stop()
			e.evictTimer = nil
		}
		if e.log != nil {
			logs = append(logs, e.log)
		}
		delete(r.entries, dk)
	}
	r.mu.Unlock()

	var err error
	for _, l := range logs {
		err = multierr.Append(err, l.Close())
	}
	err = multierr.Append(err, r.openedEmitter.Close())
	err = multierr.Append(err, r.growthEmitter.Close())
	err = multierr.Append(err, r.wantEmitter.Close())
	logger.Debug("注册表已关闭", "closedLogs", len(logs))
	return err
}

// emitOpened 发布日志打开事件
func (r *Registry) emitOpened(dk types.DiscoveryKey, writable bool) {
	evt := types.EvtCoreOpened{
		BaseEvent:    types.NewBaseEvent("core.opened"),
		DiscoveryKey: dk,
		Writable:     writable,
	}
	if err := r.openedEmitter.Emit(evt); err != nil {
		logger.Warn("发布打开事件失败", "dk", dk.ShortString(), "error", err)
	}
}

// emitGrowth 发布日志增长事件
func (r *Registry) emitGrowth(dk types.DiscoveryKey, length uint64) {
	evt := types.EvtCoreAppended{
		BaseEvent:    types.NewBaseEvent("core.appended"),
		DiscoveryKey: dk,
		Length:       length,
	}
	if err := r.growthEmitter.Emit(evt); err != nil {
		logger.Warn("发布增长事件失败", "dk", dk.ShortString(), "error", err)
	}
}

// emitWanted 发布缺块等待事件
func (r *Registry) emitWanted(dk types.DiscoveryKey, index uint64) {
	evt := types.EvtBlockWanted{
		BaseEvent:    types.NewBaseEvent("core.block-wanted"),
		DiscoveryKey: dk,
		Index:        index,
	}
	if err := r.wantEmitter.Emit(evt); err != nil {
		logger.Warn("发布缺块事件失败", "dk", dk.ShortString(), "error", err)
	}
}
