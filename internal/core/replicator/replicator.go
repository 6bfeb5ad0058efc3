package replicator

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-corestore/internal/core/keymanager"
	"github.com/dep2p/go-corestore/internal/core/metrics"
	"github.com/dep2p/go-corestore/internal/core/registry"
	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/lib/crypto"
	"github.com/dep2p/go-corestore/pkg/lib/log"
	"github.com/dep2p/go-corestore/pkg/types"
)

var logger = log.Logger("core/replicator")

// ============================================================================
//                              Replicator
// ============================================================================

// Options 复制器构造选项
type Options struct {
	// Registry 日志注册表（必填）
	Registry *registry.Registry

	// KeyManager 密钥管理器（必填，计算发现键与能力证明）
	KeyManager *keymanager.Manager

	// Identity 复制身份密钥对（必填，须含私钥）
	//
	// 用于 Noise 握手的身份绑定，对端以其公钥识别本节点。
	Identity *crypto.KeyPair

	// Bus 事件总线（必填，订阅日志事件并发布流状态事件）
	Bus interfaces.EventBus

	// Counter 复制流量计数器（可选）
	Counter *metrics.Counter

	// Passive 新建流的默认被动模式
	Passive bool

	// HandshakeTimeout 新建流的默认握手超时（0 表示不限制）
	HandshakeTimeout time.Duration
}

// Replicator 多日志复制多路复用器
//
// 持有全部活跃复制流，并把注册表发布的日志事件（打开/增长/缺块）
// 扇出到每条流。流之间相互独立：单条流的传输故障只终止自身。
type Replicator struct {
	reg      *registry.Registry
	km       *keymanager.Manager
	identity *crypto.KeyPair
	counter  *metrics.Counter
	defaults streamConfig

	stateEmitter interfaces.Emitter
	subOpened    interfaces.Subscription
	subGrowth    interfaces.Subscription
	subWanted    interfaces.Subscription

	mu      sync.Mutex
	streams map[string]*Stream
	closed  bool

	pumpDone chan struct{}
}

// New 创建复制器
//
// 立即订阅注册表的日志事件；订阅先于任何流建立，保证流激活后
// 不会错过新日志的打开通知。
func New(opts Options) (*Replicator, error) {
	if opts.Registry == nil {
		return nil, ErrNilRegistry
	}
	if opts.KeyManager == nil {
		return nil, ErrNilKeyManager
	}
	if opts.Bus == nil {
		return nil, ErrNilBus
	}
	if opts.Identity == nil || !opts.Identity.Writable() {
		return nil, ErrNoIdentity
	}

	stateEmitter, err := opts.Bus.Emitter(new(types.EvtStreamStateChanged))
	if err != nil {
		return nil, err
	}
	subOpened, err := opts.Bus.Subscribe(new(types.EvtCoreOpened), interfaces.BufSize(128))
	if err != nil {
		_ = stateEmitter.Close()
		return nil, err
	}
	subGrowth, err := opts.Bus.Subscribe(new(types.EvtCoreAppended), interfaces.BufSize(128))
	if err != nil {
		_ = stateEmitter.Close()
		_ = subOpened.Close()
		return nil, err
	}
	subWanted, err := opts.Bus.Subscribe(new(types.EvtBlockWanted), interfaces.BufSize(128))
	if err != nil {
		_ = stateEmitter.Close()
		_ = subOpened.Close()
		_ = subGrowth.Close()
		return nil, err
	}

	r := &Replicator{
		reg:      opts.Registry,
		km:       opts.KeyManager,
		identity: opts.Identity,
		counter:  opts.Counter,
		defaults: streamConfig{
			passive:          opts.Passive,
			handshakeTimeout: opts.HandshakeTimeout,
		},
		stateEmitter: stateEmitter,
		subOpened:    subOpened,
		subGrowth:    subGrowth,
		subWanted:    subWanted,
		streams:      make(map[string]*Stream),
		pumpDone:     make(chan struct{}),
	}
	go r.pump()
	return r, nil
}

// Replicate 在给定的 duplex 传输上建立复制流
//
// 返回时流处于 Handshaking 状态，握手与通道建立在后台进行。
// ctx 取消等价于对返回的流调用 Close。单条流的配置选项覆盖
// 复制器级别的默认值。
func (r *Replicator) Replicate(ctx context.Context, rwc io.ReadWriteCloser, isInitiator bool, opts ...StreamOption) (*Stream, error) {
	if rwc == nil {
		return nil, ErrNilTransport
	}
	cfg := r.defaults
	for _, opt := range opts {
		opt(&cfg)
	}

	s := newStream(ctx, rwc, isInitiator, cfg, streamDeps{
		reg:       r.reg,
		km:        r.km,
		identity:  r.identity,
		counter:   r.counter,
		emitState: r.emitStreamState,
		onClosed:  r.removeStream,
		fanStored: r.blockStored,
	})

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		s.discard()
		return nil, ErrReplicatorClosed
	}
	r.streams[s.id] = s
	r.mu.Unlock()

	s.start()
	logger.Debug("复制流已创建", "id", s.id, "role", s.role.String(), "passive", cfg.passive)
	return s, nil
}

// Count 返回当前流数量（含握手中与关闭中的流）
func (r *Replicator) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

// Close 关闭复制器
//
// 并发关闭所有流（等待各自的通道分离与句柄释放），随后停止
// 事件泵。已关闭的复制器拒绝新的 Replicate 调用。
func (r *Replicator) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	streams := make([]*Stream, 0, len(r.streams))
	for _, s := range r.streams {
		streams = append(streams, s)
	}
	r.mu.Unlock()

	var g errgroup.Group
	for _, s := range streams {
		s := s
		g.Go(s.Close)
	}
	err := g.Wait()

	err = multierr.Append(err, r.subOpened.Close())
	err = multierr.Append(err, r.subGrowth.Close())
	err = multierr.Append(err, r.subWanted.Close())
	<-r.pumpDone
	err = multierr.Append(err, r.stateEmitter.Close())
	logger.Debug("复制器已关闭", "closedStreams", len(streams))
	return err
}

// ============================================================================
//                              事件扇出
// ============================================================================

// pump 把总线上的日志事件扇出到所有流
//
// 任一订阅关闭（Close 触发）即退出。
func (r *Replicator) pump() {
	defer close(r.pumpDone)
	for {
		select {
		case v, ok := <-r.subOpened.Out():
			if !ok {
				return
			}
			if evt, good := v.(types.EvtCoreOpened); good {
				r.fanOut(streamEvent{kind: evtCoreOpened, dk: evt.DiscoveryKey})
			}
		case v, ok := <-r.subGrowth.Out():
			if !ok {
				return
			}
			if evt, good := v.(types.EvtCoreAppended); good {
				r.fanOut(streamEvent{kind: evtCoreAppended, dk: evt.DiscoveryKey, index: evt.Length})
			}
		case v, ok := <-r.subWanted.Out():
			if !ok {
				return
			}
			if evt, good := v.(types.EvtBlockWanted); good {
				r.fanOut(streamEvent{kind: evtBlockWanted, dk: evt.DiscoveryKey, index: evt.Index})
			}
		}
	}
}

// fanOut 把事件投递到每条流的事件队列
func (r *Replicator) fanOut(evt streamEvent) {
	r.mu.Lock()
	streams := make([]*Stream, 0, len(r.streams))
	for _, s := range r.streams {
		streams = append(streams, s)
	}
	r.mu.Unlock()
	for _, s := range streams {
		s.enqueue(evt)
	}
}

// blockStored 块落盘通知
//
// 某条流收到的块写入日志后调用，扇出到所有流：其他流上挂起了
// 该块请求的通道立即补发数据（中转场景）。
func (r *Replicator) blockStored(dk types.DiscoveryKey, index uint64) {
	r.fanOut(streamEvent{kind: evtBlockStored, dk: dk, index: index})
}

// emitStreamState 发布流状态变更事件
func (r *Replicator) emitStreamState(s *Stream, state types.StreamState, cause error) {
	evt := types.EvtStreamStateChanged{
		BaseEvent: types.NewBaseEvent("stream.state-changed"),
		StreamID:  s.id,
		State:     state,
		Error:     cause,
	}
	if err := r.stateEmitter.Emit(evt); err != nil {
		logger.Warn("发布流状态事件失败", "id", s.id, "state", state.String(), "error", err)
	}
}

// removeStream 流终止后从表中摘除
func (r *Replicator) removeStream(s *Stream) {
	r.mu.Lock()
	if r.streams[s.id] == s {
		delete(r.streams, s.id)
	}
	r.mu.Unlock()
}
