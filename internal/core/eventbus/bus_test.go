package eventbus

import (
	"testing"

	pkgif "github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/types"
)

// ============================================================================
// 接口契约测试
// ============================================================================

// TestBus_ImplementsInterface 验证 Bus 实现接口
func TestBus_ImplementsInterface(t *testing.T) {
	var _ pkgif.EventBus = (*Bus)(nil)
}

// ============================================================================
// 基础功能测试
// ============================================================================

// TestBus_NewBus 测试创建事件总线
func TestBus_NewBus(t *testing.T) {
	bus := NewBus()

	if bus == nil {
		t.Fatal("NewBus() returned nil")
	}

	if bus.nodes == nil {
		t.Error("NewBus() nodes map is nil")
	}
}

// TestBus_Subscribe 测试订阅事件
func TestBus_Subscribe(t *testing.T) {
	bus := NewBus()

	type TestEvent struct {
		Value int
	}

	sub, err := bus.Subscribe(new(TestEvent))
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	if sub == nil {
		t.Fatal("Subscribe() returned nil subscription")
	}

	if sub.Out() == nil {
		t.Error("Subscribe() subscription has nil output channel")
	}
}

// TestBus_SubscribeNonPointer 测试非指针类型订阅被拒绝
func TestBus_SubscribeNonPointer(t *testing.T) {
	bus := NewBus()

	type TestEvent struct{}

	_, err := bus.Subscribe(TestEvent{})
	if err != ErrNonPointerType {
		t.Errorf("Subscribe() with non-pointer returned %v, want ErrNonPointerType", err)
	}

	_, err = bus.Subscribe(nil)
	if err != ErrInvalidEventType {
		t.Errorf("Subscribe() with nil returned %v, want ErrInvalidEventType", err)
	}
}

// TestBus_EmitAndReceive 测试事件发射和接收
func TestBus_EmitAndReceive(t *testing.T) {
	bus := NewBus()

	type TestEvent struct {
		Value int
	}

	// 订阅
	sub, err := bus.Subscribe(new(TestEvent))
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer sub.Close()

	// 发射器
	em, err := bus.Emitter(new(TestEvent))
	if err != nil {
		t.Fatalf("Emitter() failed: %v", err)
	}
	defer em.Close()

	// 发射事件
	testValue := 42
	err = em.Emit(TestEvent{Value: testValue})
	if err != nil {
		t.Errorf("Emit() failed: %v", err)
	}

	// 接收事件
	evt := <-sub.Out()
	received, ok := evt.(TestEvent)
	if !ok {
		t.Fatalf("Received wrong event type: %T", evt)
	}

	if received.Value != testValue {
		t.Errorf("Received event value = %d, want %d", received.Value, testValue)
	}
}

// TestBus_MultipleSubscribers 测试多个订阅者
func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus()

	type TestEvent struct {
		Value int
	}

	// 创建 3 个订阅者
	sub1, _ := bus.Subscribe(new(TestEvent))
	defer sub1.Close()

	sub2, _ := bus.Subscribe(new(TestEvent))
	defer sub2.Close()

	sub3, _ := bus.Subscribe(new(TestEvent))
	defer sub3.Close()

	// 发射事件
	em, _ := bus.Emitter(new(TestEvent))
	defer em.Close()

	testValue := 100
	em.Emit(TestEvent{Value: testValue})

	// 所有订阅者都应收到事件
	evt1 := <-sub1.Out()
	evt2 := <-sub2.Out()
	evt3 := <-sub3.Out()

	if evt1.(TestEvent).Value != testValue {
		t.Errorf("Subscriber 1 received wrong value")
	}
	if evt2.(TestEvent).Value != testValue {
		t.Errorf("Subscriber 2 received wrong value")
	}
	if evt3.(TestEvent).Value != testValue {
		t.Errorf("Subscriber 3 received wrong value")
	}
}

// TestBus_DifferentEventTypes 测试不同事件类型隔离
func TestBus_DifferentEventTypes(t *testing.T) {
	bus := NewBus()

	type Event1 struct{ Value int }
	type Event2 struct{ Value string }

	// 订阅两种事件
	sub1, _ := bus.Subscribe(new(Event1))
	defer sub1.Close()

	sub2, _ := bus.Subscribe(new(Event2))
	defer sub2.Close()

	// 发射 Event1
	em1, _ := bus.Emitter(new(Event1))
	defer em1.Close()
	em1.Emit(Event1{Value: 42})

	// sub1 应该收到，sub2 不应该收到
	select {
	case evt := <-sub1.Out():
		if evt.(Event1).Value != 42 {
			t.Error("sub1 received wrong value")
		}
	default:
		t.Error("sub1 did not receive Event1")
	}

	select {
	case <-sub2.Out():
		t.Error("sub2 should not receive Event1")
	default:
		// 正确：sub2 没有收到 Event1
	}
}

// TestBus_CoreEvents 测试 Corestore 领域事件通过总线传递
func TestBus_CoreEvents(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe(new(types.EvtCoreOpened))
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer sub.Close()

	em, err := bus.Emitter(new(types.EvtCoreOpened))
	if err != nil {
		t.Fatalf("Emitter() failed: %v", err)
	}
	defer em.Close()

	dk, _ := types.ParseDiscoveryKey("11111111111111111111111111111111")
	em.Emit(types.EvtCoreOpened{
		BaseEvent:    types.NewBaseEvent("core.opened"),
		DiscoveryKey: dk,
		Writable:     true,
	})

	evt := <-sub.Out()
	opened, ok := evt.(types.EvtCoreOpened)
	if !ok {
		t.Fatalf("Received wrong event type: %T", evt)
	}
	if !opened.Writable {
		t.Error("received event Writable = false, want true")
	}
	if !opened.DiscoveryKey.Equal(dk) {
		t.Error("received event carries wrong discovery key")
	}
}

// TestBus_SlowConsumerDrops 测试慢消费者丢弃事件而非阻塞发射者
func TestBus_SlowConsumerDrops(t *testing.T) {
	bus := NewBus()

	type TestEvent struct{ Value int }

	// 缓冲区为 1，第二个事件会被丢弃
	sub, err := bus.Subscribe(new(TestEvent), BufSize(1))
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer sub.Close()

	em, _ := bus.Emitter(new(TestEvent))
	defer em.Close()

	// Emit 不应阻塞，即使无人消费
	for i := 0; i < 10; i++ {
		if err := em.Emit(TestEvent{Value: i}); err != nil {
			t.Fatalf("Emit() failed: %v", err)
		}
	}

	// 只有第一个事件被缓冲
	evt := <-sub.Out()
	if evt.(TestEvent).Value != 0 {
		t.Errorf("buffered event value = %d, want 0", evt.(TestEvent).Value)
	}
}
