// Package registry 维护活跃日志的注册表
//
// 注册表是 Store 的去重中枢：同一发现键在整个 Store 生命周期内
// 只对应一个 Log 实例、一次在途物化。所有拿到日志的路径（名字
// 派生、按公钥打开、复制请求）都经过这里。
//
// # 条目生命周期
//
//	物化中 ──成功──▶ 就绪 ──refs 归零──▶ 空闲 ──延迟到期──▶ 驱逐
//	   │                                   │
//	   └──失败──▶ 摘除（下次获取重试）        └──重新获取──▶ 就绪
//
// 空闲条目不立即关闭：驱逐延迟给紧随其后的重新获取留出窗口，
// 避免"释放后立刻重开"反复打开底层日志。延迟内再次获取会取消
// 驱逐并复用原实例。
//
// # 事件
//
// 条目首次物化成功后发布 EvtCoreOpened；日志增长（本地追加或
// 远程块落盘）经 OnGrow 桥接为 EvtCoreAppended。两者都在注册表
// 锁外发布。
//
// # 架构定位
//
//	依赖: eventbus, interfaces.Opener / interfaces.Resolver
//	被依赖: store（会话句柄）, replicator（按需物化）
package registry
