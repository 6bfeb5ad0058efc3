// Package eventbus 实现进程内事件总线
//
// 提供类型安全的事件发布/订阅机制，支持：
//   - 多订阅者
//   - 缓冲区配置
//   - 发射器引用计数
//   - 并发安全
//
// Corestore 通过事件总线解耦核心生命周期与复制会话：Registry 在
// 日志打开时发射 EvtCoreOpened，AppendLog 在追加时发射
// EvtCoreAppended，复制会话订阅这些事件来宣告新日志和推送长度。
//
// # 快速开始
//
//	// 创建总线
//	bus := eventbus.NewBus()
//
//	// 订阅事件
//	sub, _ := bus.Subscribe(new(types.EvtCoreOpened))
//	defer sub.Close()
//
//	go func() {
//	    for evt := range sub.Out() {
//	        e := evt.(types.EvtCoreOpened)
//	        // 处理事件
//	    }
//	}()
//
//	// 发射事件
//	em, _ := bus.Emitter(new(types.EvtCoreOpened))
//	defer em.Close()
//	em.Emit(types.EvtCoreOpened{...})
//
// # Fx 模块
//
//	app := fx.New(
//	    eventbus.Module(),
//	    fx.Invoke(func(bus pkgif.EventBus) {
//	        sub, _ := bus.Subscribe(new(types.EvtCoreOpened))
//	        // ...
//	    }),
//	)
//
// # 架构定位
//
// Tier: Core Layer Level 1（无依赖）
//
// 依赖关系：
//   - 依赖：pkg/interfaces
//   - 被依赖：registry, replicator, store
//
// # 并发安全
//
// EventBus 使用 sync.RWMutex 和 atomic 保证并发安全：
//   - 订阅/取消订阅：RWMutex 保护
//   - 发射器引用计数：atomic.Int32
//   - 通道关闭：closeOnce 防止重复
package eventbus
