package replicator

import (
	"bufio"
	"context"
	"crypto/hmac"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dep2p/go-corestore/internal/core/keymanager"
	"github.com/dep2p/go-corestore/internal/core/metrics"
	"github.com/dep2p/go-corestore/internal/core/muxer"
	"github.com/dep2p/go-corestore/internal/core/registry"
	"github.com/dep2p/go-corestore/internal/core/security/noise"
	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/lib/crypto"
	"github.com/dep2p/go-corestore/pkg/lib/proto/replication"
	"github.com/dep2p/go-corestore/pkg/types"
)

// streamEventBuffer 单条流的事件队列容量
const streamEventBuffer = 256

// ============================================================================
//                              流事件
// ============================================================================

type eventKind int

const (
	evtCoreOpened eventKind = iota
	evtCoreAppended
	evtBlockWanted
	evtBlockStored
)

// streamEvent 复制器事件泵投递给流的日志事件
type streamEvent struct {
	kind  eventKind
	dk    types.DiscoveryKey
	index uint64
}

// streamDeps 流的外部依赖与回调
type streamDeps struct {
	reg      *registry.Registry
	km       *keymanager.Manager
	identity *crypto.KeyPair
	counter  *metrics.Counter

	emitState func(s *Stream, state types.StreamState, cause error)
	onClosed  func(s *Stream)
	fanStored func(dk types.DiscoveryKey, index uint64)
}

// parkedOpen 停靠的对端通道请求
//
// 对端请求的日志本地暂不可解析时，子流连同能力证明停靠在此，
// 等待日志在本地打开后完成通道建立。
type parkedOpen struct {
	capability []byte
	sub        *muxer.Stream
	reader     *bufio.Reader
}

// ============================================================================
//                              Stream
// ============================================================================

// Stream 一条复制流
//
// 对应一个对端 duplex 连接。生命周期 Handshaking → Active →
// Closing → Closed，状态只前进。所有方法线程安全。
type Stream struct {
	id   string
	role types.StreamRole
	cfg  streamConfig
	deps streamDeps

	rwc    io.ReadWriteCloser
	ctx    context.Context
	cancel context.CancelFunc

	state atomic.Int32

	mu           sync.Mutex
	conn         *noise.Conn
	session      *muxer.Session
	remote       types.CoreKey
	channels     map[types.DiscoveryKey]*channel
	parked       map[types.DiscoveryKey]*parkedOpen
	shuttingDown bool
	failure      error

	binding []byte // 噪声信道绑定值，Active 前写入一次

	events chan streamEvent
	done   chan struct{}
}

var _ interfaces.ReplicationStream = (*Stream)(nil)

// newStream 构造流（不启动后台任务）
func newStream(ctx context.Context, rwc io.ReadWriteCloser, isInitiator bool, cfg streamConfig, deps streamDeps) *Stream {
	role := types.StreamRoleResponder
	if isInitiator {
		role = types.StreamRoleInitiator
	}
	sctx, cancel := context.WithCancel(ctx)
	return &Stream{
		id:       uuid.New().String(),
		role:     role,
		cfg:      cfg,
		deps:     deps,
		rwc:      rwc,
		ctx:      sctx,
		cancel:   cancel,
		channels: make(map[types.DiscoveryKey]*channel),
		parked:   make(map[types.DiscoveryKey]*parkedOpen),
		events:   make(chan streamEvent, streamEventBuffer),
		done:     make(chan struct{}),
	}
}

// start 启动流的后台任务
func (s *Stream) start() {
	s.deps.emitState(s, types.StreamStateHandshaking, nil)
	go s.run()
	go s.dispatch()
	go s.watchContext()
}

// discard 丢弃未启动的流（复制器已关闭时的回收路径）
func (s *Stream) discard() {
	s.cancel()
	close(s.done)
}

// ID 返回流的唯一标识
func (s *Stream) ID() string {
	return s.id
}

// Role 返回流角色
func (s *Stream) Role() types.StreamRole {
	return s.role
}

// State 返回当前生命周期状态
func (s *Stream) State() types.StreamState {
	return types.StreamState(s.state.Load())
}

// RemoteIdentity 返回对端的复制身份公钥（握手完成前为空值）
func (s *Stream) RemoteIdentity() types.CoreKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// Done 返回流终止通知通道
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err 返回导致流终止的错误（主动关闭为 nil）
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Close 关闭复制流
//
// 任意时刻调用都安全（包括握手期间）。所有通道分离、隐式句柄
// 释放后返回。多次调用是安全的。
func (s *Stream) Close() error {
	s.shutdown(nil)
	<-s.done
	return nil
}

// ============================================================================
//                              生命周期
// ============================================================================

// run 流主任务：握手、通告、接受子流，直到传输终结
func (s *Stream) run() {
	err := s.establish()
	s.shutdown(err)
	s.finalize()
}

// establish 完成握手与会话建立，随后阻塞在子流接受循环上
func (s *Stream) establish() error {
	var watchdog *time.Timer
	if s.cfg.handshakeTimeout > 0 {
		watchdog = time.AfterFunc(s.cfg.handshakeTimeout, func() {
			s.shutdown(ErrHandshakeTimeout)
		})
	}

	var (
		conn *noise.Conn
		err  error
	)
	if s.role == types.StreamRoleInitiator {
		conn, err = noise.Client(s.rwc, s.deps.identity)
	} else {
		conn, err = noise.Server(s.rwc, s.deps.identity)
	}
	if watchdog != nil {
		watchdog.Stop()
	}
	if err != nil {
		return fmt.Errorf("noise handshake: %w", err)
	}

	sess, err := muxer.New(conn, s.role == types.StreamRoleInitiator, nil)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("mux session: %w", err)
	}

	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		_ = sess.Close()
		_ = conn.Close()
		return nil
	}
	s.conn = conn
	s.session = sess
	s.remote = conn.RemoteIdentity()
	s.binding = conn.ChannelBinding()
	s.mu.Unlock()

	s.setState(types.StreamStateActive, nil)
	logger.Debug("复制流已激活",
		"id", s.id,
		"role", s.role.String(),
		"remote", s.remote.ShortString(),
	)

	// 主动模式：通告注册表中所有就绪日志
	if !s.cfg.passive {
		for _, dk := range s.deps.reg.List() {
			s.openChannel(dk)
		}
	}

	return s.acceptLoop(sess)
}

// acceptLoop 接受对端打开的子流
func (s *Stream) acceptLoop(sess *muxer.Session) error {
	for {
		sub, err := sess.Accept()
		if err != nil {
			return err
		}
		go s.serveInbound(sub)
	}
}

// shutdown 进入 Closing
//
// 首个调用生效：记录失败原因（主动关闭为 nil）、解除阻塞中的
// 注册表调用并关闭传输层，run 随之从接受循环退出并 finalize。
func (s *Stream) shutdown(cause error) {
	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		return
	}
	s.shuttingDown = true
	s.failure = cause
	conn, sess := s.conn, s.session
	s.mu.Unlock()

	s.setState(types.StreamStateClosing, cause)
	s.cancel()
	if sess != nil {
		_ = sess.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
	_ = s.rwc.Close()
}

// finalize 进入 Closed
//
// 分离所有通道（释放其隐式注册表句柄）、关闭停靠的子流，
// 然后宣告终止。
func (s *Stream) finalize() {
	s.mu.Lock()
	chans := make([]*channel, 0, len(s.channels))
	for _, ch := range s.channels {
		chans = append(chans, ch)
	}
	s.channels = make(map[types.DiscoveryKey]*channel)
	parked := make([]*parkedOpen, 0, len(s.parked))
	for _, p := range s.parked {
		parked = append(parked, p)
	}
	s.parked = make(map[types.DiscoveryKey]*parkedOpen)
	s.mu.Unlock()

	for _, ch := range chans {
		ch.close()
	}
	for _, p := range parked {
		_ = p.sub.Close()
	}

	s.setState(types.StreamStateClosed, nil)
	close(s.done)
	s.deps.onClosed(s)
	logger.Debug("复制流已关闭", "id", s.id, "detachedChannels", len(chans))
}

// setState 推进生命周期状态并发布事件（状态只前进）
func (s *Stream) setState(st types.StreamState, cause error) {
	for {
		cur := s.state.Load()
		if int32(st) <= cur {
			return
		}
		if s.state.CompareAndSwap(cur, int32(st)) {
			break
		}
	}
	s.deps.emitState(s, st, cause)
}

// watchContext 把调用方 ctx 的取消转成流关闭
func (s *Stream) watchContext() {
	select {
	case <-s.ctx.Done():
		s.shutdown(nil)
	case <-s.done:
	}
}

// ============================================================================
//                              事件处理
// ============================================================================

// enqueue 投递日志事件（队列满时丢弃，依赖建立期扫尾补偿）
func (s *Stream) enqueue(evt streamEvent) {
	select {
	case <-s.done:
	case s.events <- evt:
	default:
		logger.Warn("流事件队列已满，事件被丢弃",
			"id", s.id,
			"kind", int(evt.kind),
			"dk", evt.dk.ShortString(),
		)
	}
}

// dispatch 串行消费本流的日志事件
func (s *Stream) dispatch() {
	for {
		select {
		case evt := <-s.events:
			s.handleEvent(evt)
		case <-s.done:
			return
		}
	}
}

func (s *Stream) handleEvent(evt streamEvent) {
	switch evt.kind {
	case evtCoreOpened:
		s.handleCoreOpened(evt.dk)
	case evtCoreAppended:
		s.handleCoreAppended(evt.dk, evt.index)
	case evtBlockWanted:
		s.handleBlockWanted(evt.dk, evt.index)
	case evtBlockStored:
		s.handleBlockStored(evt.dk, evt.index)
	}
}

// handleCoreOpened 本地日志打开：完成停靠请求，主动模式下通告
func (s *Stream) handleCoreOpened(dk types.DiscoveryKey) {
	s.mu.Lock()
	p, ok := s.parked[dk]
	if ok {
		delete(s.parked, dk)
	}
	s.mu.Unlock()
	if ok {
		go s.resumeParked(dk, p)
	}

	if !s.cfg.passive {
		s.openChannel(dk)
	}
}

// handleCoreAppended 本地日志增长：公告新长度并补发挂起的块请求
func (s *Stream) handleCoreAppended(dk types.DiscoveryKey, length uint64) {
	if ch := s.channelFor(dk); ch != nil {
		ch.announceLength(length)
	}
}

// handleBlockWanted 本地读者等待缺块：向对端转发块请求
func (s *Stream) handleBlockWanted(dk types.DiscoveryKey, index uint64) {
	if ch := s.channelFor(dk); ch != nil {
		ch.requestBlock(index)
	}
}

// handleBlockStored 块已落盘（本流或其他流收到）：补发挂起的块请求
func (s *Stream) handleBlockStored(dk types.DiscoveryKey, index uint64) {
	if ch := s.channelFor(dk); ch != nil {
		ch.flushRemoteWant(index)
	}
}

// channelFor 查找发现键对应的通道
func (s *Stream) channelFor(dk types.DiscoveryKey) *channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channels[dk]
}

// ============================================================================
//                              通道建立（本端发起）
// ============================================================================

// openChannel 为发现键打开出站通道
//
// 获取隐式注册表句柄（通道存续期内保活日志条目），打开子流并
// 发送 Open。已有通道或流正在关闭时为空操作。
func (s *Stream) openChannel(dk types.DiscoveryKey) {
	s.mu.Lock()
	if s.shuttingDown || s.session == nil {
		s.mu.Unlock()
		return
	}
	if _, ok := s.channels[dk]; ok {
		s.mu.Unlock()
		return
	}
	sess := s.session
	s.mu.Unlock()

	h, err := s.deps.reg.LookupOrResolve(s.ctx, dk)
	if err != nil {
		return
	}
	key := h.Log().PublicKey()

	sub, err := sess.Open(s.ctx)
	if err != nil {
		h.Release()
		return
	}

	ch := newChannel(s, dk, sub, h)
	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		ch.close()
		return
	}
	if _, ok := s.channels[dk]; ok {
		// 并发建立竞争，保留已有通道
		s.mu.Unlock()
		ch.close()
		return
	}
	s.channels[dk] = ch
	s.mu.Unlock()

	open := &replication.Open{
		DiscoveryKey: dk.Bytes(),
		Capability:   s.deps.km.Capability(key, s.channelBinding()),
	}
	// 写到刚打开的子流上：并发冲突裁决可能已把通道换绑到对端
	// 子流，Open 帧不能跟着过去
	if err := ch.writeMessageOn(sub, replication.MessageOpen, open); err != nil {
		s.detachChannel(ch, err)
		return
	}
	go ch.runOpener(sub)
}

// ============================================================================
//                              通道建立（对端发起）
// ============================================================================

// serveInbound 处理对端打开的子流
//
// 首帧必须是 Open。本地可解析时直接建立通道；不可解析时停靠，
// 等待日志在本地打开。
func (s *Stream) serveInbound(sub *muxer.Stream) {
	reader := bufio.NewReader(sub)
	typ, body, err := replication.ReadFrame(reader)
	if err != nil {
		_ = sub.Close()
		return
	}
	if typ != replication.MessageOpen {
		logger.Warn("子流首帧不是 Open，关闭子流", "id", s.id, "type", typ.String())
		_ = sub.Close()
		return
	}
	var open replication.Open
	if err := open.Unmarshal(body); err != nil {
		_ = sub.Close()
		return
	}
	dk, err := types.DiscoveryKeyFromBytes(open.DiscoveryKey)
	if err != nil {
		_ = sub.Close()
		return
	}

	h, err := s.deps.reg.LookupOrResolve(s.ctx, dk)
	if errors.Is(err, interfaces.ErrNotResolvable) {
		s.parkOpen(dk, open.Capability, sub, reader)
		return
	}
	if err != nil {
		_ = sub.Close()
		return
	}
	s.serveChannel(dk, open.Capability, sub, reader, h)
}

// parkOpen 停靠暂不可解析的通道请求
func (s *Stream) parkOpen(dk types.DiscoveryKey, capability []byte, sub *muxer.Stream, reader *bufio.Reader) {
	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		_ = sub.Close()
		return
	}
	if old, ok := s.parked[dk]; ok {
		_ = old.sub.Close()
	}
	s.parked[dk] = &parkedOpen{capability: capability, sub: sub, reader: reader}
	s.mu.Unlock()
	logger.Debug("通道请求停靠等待本地打开", "id", s.id, "dk", dk.ShortString())
}

// resumeParked 日志在本地打开后完成停靠的通道请求
func (s *Stream) resumeParked(dk types.DiscoveryKey, p *parkedOpen) {
	h, err := s.deps.reg.LookupOrResolve(s.ctx, dk)
	if err != nil {
		// 打开与驱逐赛跑，重新停靠等待下一次打开
		s.parkOpen(dk, p.capability, p.sub, p.reader)
		return
	}
	s.serveChannel(dk, p.capability, p.sub, p.reader, h)
}

// serveChannel 验证能力证明并以响应方身份建立通道
//
// 验证失败只关闭子流（通道级拒绝），不影响流上的其他通道。
func (s *Stream) serveChannel(dk types.DiscoveryKey, capability []byte, sub *muxer.Stream, reader *bufio.Reader, h *registry.Handle) {
	key := h.Log().PublicKey()
	want := s.deps.km.Capability(key, s.channelBinding())
	if !hmac.Equal(want, capability) {
		logger.Warn("通道能力证明验证失败，拒绝建立", "id", s.id, "dk", dk.ShortString())
		h.Release()
		_ = sub.Close()
		return
	}

	ch, ok := s.adoptInbound(dk, sub, h)
	if !ok {
		return
	}

	accept := &replication.Accept{
		Capability: s.deps.km.AcceptCapability(key, s.channelBinding()),
	}
	if err := ch.writeMessage(replication.MessageAccept, accept); err != nil {
		s.detachChannel(ch, err)
		return
	}
	ch.markEstablished()
	ch.sendInfo(ch.log().Length())
	ch.sweepLocalWants()
	ch.readLoop(sub, reader)
}

// adoptInbound 登记入站通道，处理双方同时开通道的冲突
//
// 冲突裁决：保留会话发起方打开的那条子流。子流编号的奇偶性在
// 两端一致，双方各自独立裁决也能收敛到同一条。
func (s *Stream) adoptInbound(dk types.DiscoveryKey, sub *muxer.Stream, h *registry.Handle) (*channel, bool) {
	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		h.Release()
		_ = sub.Close()
		return nil, false
	}
	existing, ok := s.channels[dk]
	if !ok {
		ch := newChannel(s, dk, sub, h)
		s.channels[dk] = ch
		s.mu.Unlock()
		return ch, true
	}
	if cur := existing.currentSub(); cur != nil && cur.OpenedByInitiator() {
		// 既有通道在发起方子流上，入站的让路
		s.mu.Unlock()
		h.Release()
		_ = sub.Close()
		return nil, false
	}
	// 本端打开的子流让路，收编入站子流
	existing.rebind(sub)
	s.mu.Unlock()

	h.Release()
	logger.Debug("通道冲突，收编对端子流", "id", s.id, "dk", dk.ShortString())
	return existing, true
}

// detachChannel 分离通道（通道级终止，流不受影响）
func (s *Stream) detachChannel(ch *channel, cause error) {
	s.mu.Lock()
	if s.channels[ch.dk] == ch {
		delete(s.channels, ch.dk)
	}
	s.mu.Unlock()
	ch.close()
	if cause != nil && !errors.Is(cause, io.EOF) {
		logger.Debug("通道已分离", "id", s.id, "dk", ch.dk.ShortString(), "error", cause)
	}
}

// channelBinding 返回本条流的噪声信道绑定值
//
// establish 在任何通道出现之前写入一次，此后只读。
func (s *Stream) channelBinding() []byte {
	return s.binding
}
