package metrics

import (
	"github.com/dep2p/go-corestore/pkg/types"
)

// ============================================================================
//                              复制流量计数器
// ============================================================================

// Counter 复制流量计数器
//
// 总量和按发现键两个粒度各维护一对收发计量器。记录入口在
// 复制通道的块收发路径上，一个块记一次。
type Counter struct {
	totalIn  *Meter
	totalOut *Meter

	coreIn  MeterRegistry
	coreOut MeterRegistry
}

// NewCounter 创建复制流量计数器
func NewCounter() *Counter {
	return &Counter{
		totalIn:  NewMeter(),
		totalOut: NewMeter(),
	}
}

// ==================== 记录流量 ====================

// LogBlockIn 记录从对端收到的块
func (c *Counter) LogBlockIn(dk types.DiscoveryKey, size int) {
	if size < 0 {
		return
	}
	c.totalIn.Mark(uint64(size))
	c.coreIn.Get(dk.String()).Mark(uint64(size))
}

// LogBlockOut 记录发给对端的块
func (c *Counter) LogBlockOut(dk types.DiscoveryKey, size int) {
	if size < 0 {
		return
	}
	c.totalOut.Mark(uint64(size))
	c.coreOut.Get(dk.String()).Mark(uint64(size))
}

// ==================== 获取统计 ====================

// Totals 全部复制流量统计
func (c *Counter) Totals() types.ReplicationStats {
	return types.ReplicationStats{
		BlocksIn:  c.totalIn.Blocks(),
		BlocksOut: c.totalOut.Blocks(),
		BytesIn:   c.totalIn.Bytes(),
		BytesOut:  c.totalOut.Bytes(),
		RateIn:    c.totalIn.Rate(),
		RateOut:   c.totalOut.Rate(),
	}
}

// ForCore 指定发现键的流量统计
//
// 没有流量记录的发现键返回零值，不创建条目。
func (c *Counter) ForCore(dk types.DiscoveryKey) types.ReplicationStats {
	var stats types.ReplicationStats

	if in, ok := c.coreIn.Load(dk.String()); ok {
		stats.BlocksIn = in.Blocks()
		stats.BytesIn = in.Bytes()
		stats.RateIn = in.Rate()
	}
	if out, ok := c.coreOut.Load(dk.String()); ok {
		stats.BlocksOut = out.Blocks()
		stats.BytesOut = out.Bytes()
		stats.RateOut = out.Rate()
	}

	return stats
}

// ByCore 所有有流量记录的发现键的统计
func (c *Counter) ByCore() map[types.DiscoveryKey]types.ReplicationStats {
	cores := make(map[types.DiscoveryKey]types.ReplicationStats)

	c.coreIn.ForEach(func(key string, meter *Meter) {
		dk, err := types.ParseDiscoveryKey(key)
		if err != nil {
			return
		}
		stat := cores[dk]
		stat.BlocksIn = meter.Blocks()
		stat.BytesIn = meter.Bytes()
		stat.RateIn = meter.Rate()
		cores[dk] = stat
	})

	c.coreOut.ForEach(func(key string, meter *Meter) {
		dk, err := types.ParseDiscoveryKey(key)
		if err != nil {
			return
		}
		stat := cores[dk]
		stat.BlocksOut = meter.Blocks()
		stat.BytesOut = meter.Bytes()
		stat.RateOut = meter.Rate()
		cores[dk] = stat
	})

	return cores
}

// CoreCount 有流量记录的发现键数量
func (c *Counter) CoreCount() int {
	in := c.coreIn.Count()
	out := c.coreOut.Count()
	if in > out {
		return in
	}
	return out
}

// ==================== 管理 ====================

// Reset 重置所有统计
func (c *Counter) Reset() {
	c.totalIn.Reset()
	c.totalOut.Reset()
	c.coreIn.Clear()
	c.coreOut.Clear()
}
