package registry

import (
	"sync"

	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/types"
)

// Handle 注册表条目的引用句柄
//
// 每个会话级日志视图、每条复制通道各持有一个。Release 幂等，
// 重复调用只归还一次引用。
type Handle struct {
	registry *Registry
	entry    *entry
	once     sync.Once
}

// Log 返回条目的日志
func (h *Handle) Log() interfaces.Log {
	return h.entry.log
}

// DiscoveryKey 返回条目的发现键
func (h *Handle) DiscoveryKey() types.DiscoveryKey {
	return h.entry.dk
}

// Release 归还引用
//
// 条目计数归零后进入空闲，经驱逐延迟后底层日志被关闭。
func (h *Handle) Release() {
	h.once.Do(func() {
		h.registry.release(h.entry)
	})
}
