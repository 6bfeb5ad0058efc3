package replicator

import (
	"bufio"
	"crypto/hmac"
	"errors"
	"sync"

	"github.com/dep2p/go-corestore/internal/core/muxer"
	"github.com/dep2p/go-corestore/internal/core/registry"
	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/lib/proto/replication"
	"github.com/dep2p/go-corestore/pkg/types"
)

// channel 单条日志在流上的复制通道
//
// 对应一条多路复用子流。持有隐式注册表句柄，通道存续期内日志
// 条目不被驱逐。锁序固定：wmu 先于 mu。
type channel struct {
	dk     types.DiscoveryKey
	stream *Stream

	// wmu 串行化子流写入，Accept 先于一切后续帧
	wmu sync.Mutex

	mu          sync.Mutex
	sub         *muxer.Stream
	handle      *registry.Handle
	established bool
	remoteLen   uint64
	remoteWants map[uint64]struct{}
	detached    bool
}

func newChannel(s *Stream, dk types.DiscoveryKey, sub *muxer.Stream, h *registry.Handle) *channel {
	return &channel{
		dk:          dk,
		stream:      s,
		sub:         sub,
		handle:      h,
		remoteWants: make(map[uint64]struct{}),
	}
}

// log 返回通道保活的日志
func (ch *channel) log() interfaces.Log {
	return ch.handle.Log()
}

// currentSub 返回通道当前绑定的子流
func (ch *channel) currentSub() *muxer.Stream {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.sub
}

// owns 判断子流是否仍是通道的当前子流
func (ch *channel) owns(sub *muxer.Stream) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.sub == sub
}

// rebind 把通道换绑到对端的子流（冲突裁决让路路径）
//
// 换绑后通道回到未建立状态，等待响应方流程重新建立。旧子流
// 关闭后其读循环自行退出。
func (ch *channel) rebind(sub *muxer.Stream) {
	ch.wmu.Lock()
	ch.mu.Lock()
	old := ch.sub
	ch.sub = sub
	ch.established = false
	ch.mu.Unlock()
	ch.wmu.Unlock()
	if old != nil {
		_ = old.Close()
	}
}

// markEstablished 标记通道进入就绪态
func (ch *channel) markEstablished() {
	ch.mu.Lock()
	ch.established = true
	ch.mu.Unlock()
	logger.Debug("复制通道已建立", "id", ch.stream.id, "dk", ch.dk.ShortString())
}

func (ch *channel) isEstablished() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.established
}

// close 分离通道：关闭子流并释放隐式注册表句柄（幂等）
func (ch *channel) close() {
	ch.mu.Lock()
	if ch.detached {
		ch.mu.Unlock()
		return
	}
	ch.detached = true
	sub := ch.sub
	ch.mu.Unlock()

	if sub != nil {
		_ = sub.Close()
	}
	ch.handle.Release()
}

// ============================================================================
//                              帧发送
// ============================================================================

// writeMessage 向通道当前子流写一帧
func (ch *channel) writeMessage(typ replication.MessageType, msg replication.Message) error {
	ch.wmu.Lock()
	defer ch.wmu.Unlock()

	ch.mu.Lock()
	sub := ch.sub
	detached := ch.detached
	ch.mu.Unlock()
	if detached || sub == nil {
		return errors.New("channel detached")
	}
	return replication.WriteFrame(sub, typ, msg)
}

// writeMessageOn 仅当 sub 仍是通道当前子流时写帧
//
// 通道可能在写入前被换绑到对端子流，此时静默放弃：换绑后的
// 建立流程由响应方路径接管。
func (ch *channel) writeMessageOn(sub *muxer.Stream, typ replication.MessageType, msg replication.Message) error {
	ch.wmu.Lock()
	defer ch.wmu.Unlock()

	ch.mu.Lock()
	cur := ch.sub
	detached := ch.detached
	ch.mu.Unlock()
	if detached {
		return errors.New("channel detached")
	}
	if cur != sub {
		return nil
	}
	return replication.WriteFrame(sub, typ, msg)
}

// sendInfo 公告本地日志长度
func (ch *channel) sendInfo(length uint64) {
	if err := ch.writeMessage(replication.MessageInfo, &replication.Info{Length: length}); err != nil {
		ch.stream.detachChannel(ch, err)
	}
}

// requestBlock 向对端请求一个块（未建立时跳过，建立扫尾会补上）
func (ch *channel) requestBlock(index uint64) {
	if !ch.isEstablished() {
		return
	}
	if err := ch.writeMessage(replication.MessageRequest, &replication.Request{Index: index}); err != nil {
		ch.stream.detachChannel(ch, err)
	}
}

// sendData 把本地块发给对端
func (ch *channel) sendData(index uint64, block []byte) error {
	if err := ch.writeMessage(replication.MessageData, &replication.Data{Index: index, Block: block}); err != nil {
		ch.stream.detachChannel(ch, err)
		return err
	}
	if ch.stream.deps.counter != nil {
		ch.stream.deps.counter.LogBlockOut(ch.dk, len(block))
	}
	return nil
}

// sweepLocalWants 把本地等待中的缺块逐一请求
//
// 建立前发生的缺块事件都可能被丢弃，建立后以日志当前的等待
// 集合兜底补发。
func (ch *channel) sweepLocalWants() {
	for _, index := range ch.log().PendingWants() {
		if err := ch.writeMessage(replication.MessageRequest, &replication.Request{Index: index}); err != nil {
			ch.stream.detachChannel(ch, err)
			return
		}
	}
}

// announceLength 本地日志增长：公告新长度并补发对端挂起的块请求
func (ch *channel) announceLength(length uint64) {
	if !ch.isEstablished() {
		return
	}
	ch.sendInfo(length)
	ch.flushRemoteWants()
}

// flushRemoteWant 块落盘后补发对端挂起的单个块请求
func (ch *channel) flushRemoteWant(index uint64) {
	if !ch.isEstablished() {
		return
	}
	ch.mu.Lock()
	_, wanted := ch.remoteWants[index]
	ch.mu.Unlock()
	if !wanted {
		return
	}

	block, err := ch.log().Block(index)
	if err != nil {
		return
	}
	ch.mu.Lock()
	delete(ch.remoteWants, index)
	ch.mu.Unlock()
	_ = ch.sendData(index, block)
}

// flushRemoteWants 补发对端挂起的所有可满足的块请求
func (ch *channel) flushRemoteWants() {
	ch.mu.Lock()
	pending := make([]uint64, 0, len(ch.remoteWants))
	for index := range ch.remoteWants {
		pending = append(pending, index)
	}
	ch.mu.Unlock()

	for _, index := range pending {
		ch.flushRemoteWant(index)
	}
}

// ============================================================================
//                              帧接收
// ============================================================================

// runOpener 发起方建立流程：等待 Accept、验证、进入读循环
func (ch *channel) runOpener(sub *muxer.Stream) {
	reader := bufio.NewReader(sub)
	typ, body, err := replication.ReadFrame(reader)
	if err != nil {
		ch.onSubDead(sub)
		return
	}
	if typ != replication.MessageAccept {
		ch.stream.detachChannel(ch, errUnexpectedMessage)
		return
	}
	var accept replication.Accept
	if err := accept.Unmarshal(body); err != nil {
		ch.stream.detachChannel(ch, err)
		return
	}

	want := ch.stream.deps.km.AcceptCapability(ch.log().PublicKey(), ch.stream.channelBinding())
	if !hmac.Equal(want, accept.Capability) {
		logger.Warn("对端接受证明验证失败，分离通道",
			"id", ch.stream.id,
			"dk", ch.dk.ShortString(),
		)
		ch.stream.detachChannel(ch, errors.New("invalid accept capability"))
		return
	}

	ch.markEstablished()
	ch.sendInfo(ch.log().Length())
	ch.sweepLocalWants()
	ch.readLoop(sub, reader)
}

// readLoop 通道读循环，消费对端帧直到子流终结
func (ch *channel) readLoop(sub *muxer.Stream, reader *bufio.Reader) {
	for {
		typ, body, err := replication.ReadFrame(reader)
		if err != nil {
			ch.onSubDead(sub)
			return
		}
		if !ch.owns(sub) {
			// 换绑后旧子流上的残余帧，直接退出
			_ = sub.Close()
			return
		}
		switch typ {
		case replication.MessageInfo:
			var info replication.Info
			if err := info.Unmarshal(body); err != nil {
				ch.stream.detachChannel(ch, err)
				return
			}
			ch.handleInfo(info.Length)
		case replication.MessageRequest:
			var req replication.Request
			if err := req.Unmarshal(body); err != nil {
				ch.stream.detachChannel(ch, err)
				return
			}
			ch.handleRequest(req.Index)
		case replication.MessageData:
			var data replication.Data
			if err := data.Unmarshal(body); err != nil {
				ch.stream.detachChannel(ch, err)
				return
			}
			ch.handleData(data.Index, data.Block)
		default:
			// 建立完成后不应再出现 Open/Accept
			ch.stream.detachChannel(ch, errUnexpectedMessage)
			return
		}
	}
}

// onSubDead 子流终结：仍是当前子流则分离通道，否则为换绑后的旧子流
func (ch *channel) onSubDead(sub *muxer.Stream) {
	if ch.owns(sub) {
		ch.stream.detachChannel(ch, nil)
	}
}

// handleInfo 对端公告日志长度
//
// 记录对端长度，并把本地等待中、对端已覆盖的缺块重新请求一遍。
// 重复请求无害：块送达后 PutRemote 幂等。
func (ch *channel) handleInfo(length uint64) {
	ch.mu.Lock()
	if length > ch.remoteLen {
		ch.remoteLen = length
	}
	remoteLen := ch.remoteLen
	ch.mu.Unlock()

	for _, index := range ch.log().PendingWants() {
		if index < remoteLen {
			ch.requestBlock(index)
		}
	}
}

// handleRequest 对端请求块
//
// 本地有则直接回发；本地也缺则挂起，块落盘后由 flushRemoteWant
// 补发（跨流中转的来源）。
func (ch *channel) handleRequest(index uint64) {
	block, err := ch.log().Block(index)
	if err == nil {
		_ = ch.sendData(index, block)
		return
	}
	if errors.Is(err, interfaces.ErrBlockMissing) {
		ch.mu.Lock()
		ch.remoteWants[index] = struct{}{}
		ch.mu.Unlock()
		return
	}
	logger.Warn("读取被请求的块失败",
		"id", ch.stream.id,
		"dk", ch.dk.ShortString(),
		"index", index,
		"error", err,
	)
}

// handleData 对端送达块
func (ch *channel) handleData(index uint64, block []byte) {
	if err := ch.log().PutRemote(index, block); err != nil {
		logger.Warn("写入对端块失败",
			"id", ch.stream.id,
			"dk", ch.dk.ShortString(),
			"index", index,
			"error", err,
		)
		return
	}
	if ch.stream.deps.counter != nil {
		ch.stream.deps.counter.LogBlockIn(ch.dk, len(block))
	}
	ch.stream.deps.fanStored(ch.dk, index)
}
