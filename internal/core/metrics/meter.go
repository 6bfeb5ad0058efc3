package metrics

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// EWMA 参数
const (
	// alpha 是 EWMA 的平滑因子，值越大对新数据越敏感
	alpha = 0.25

	// tickInterval 是速率更新间隔
	tickInterval = time.Second
)

// ============================================================================
//                              流量计量器
// ============================================================================

// Meter 单向流量计量器
//
// 同时累计块数和字节数，字节速率用指数加权移动平均 (EWMA)
// 计算。所有操作都是线程安全的。
type Meter struct {
	// 累计量
	blocks uint64
	bytes  uint64

	// EWMA 速率计算
	rate   float64
	rateMu sync.RWMutex

	tickMu    sync.Mutex
	lastTick  time.Time
	lastBytes uint64
}

// NewMeter 创建新的计量器
func NewMeter() *Meter {
	return &Meter{lastTick: time.Now()}
}

// Mark 记录一个块
func (m *Meter) Mark(size uint64) {
	atomic.AddUint64(&m.blocks, 1)
	atomic.AddUint64(&m.bytes, size)
	m.updateRate()
}

// updateRate 更新速率计算
func (m *Meter) updateRate() {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	now := time.Now()
	elapsed := now.Sub(m.lastTick)
	if elapsed < tickInterval {
		return
	}

	total := atomic.LoadUint64(&m.bytes)
	instantRate := float64(total-m.lastBytes) / elapsed.Seconds()

	m.rateMu.Lock()
	if m.rate == 0 {
		m.rate = instantRate
	} else {
		m.rate = alpha*instantRate + (1-alpha)*m.rate
	}
	m.rateMu.Unlock()

	m.lastTick = now
	m.lastBytes = total
}

// Blocks 累计块数
func (m *Meter) Blocks() uint64 {
	return atomic.LoadUint64(&m.blocks)
}

// Bytes 累计字节数
func (m *Meter) Bytes() uint64 {
	return atomic.LoadUint64(&m.bytes)
}

// Rate 当前字节速率 (bytes/sec)
func (m *Meter) Rate() float64 {
	m.rateMu.RLock()
	defer m.rateMu.RUnlock()
	return m.rate
}

// Reset 重置计量器
func (m *Meter) Reset() {
	atomic.StoreUint64(&m.blocks, 0)
	atomic.StoreUint64(&m.bytes, 0)

	m.rateMu.Lock()
	m.rate = 0
	m.rateMu.Unlock()

	m.tickMu.Lock()
	m.lastTick = time.Now()
	m.lastBytes = 0
	m.tickMu.Unlock()
}

// ============================================================================
//                              计量器注册表
// ============================================================================

// MeterRegistry 按键管理动态创建的计量器集合
type MeterRegistry struct {
	meters sync.Map // map[string]*Meter
}

// Get 获取或创建计量器
func (r *MeterRegistry) Get(key string) *Meter {
	if m, ok := r.meters.Load(key); ok {
		return m.(*Meter) //nolint:errcheck // 注册表只存 *Meter
	}

	newMeter := NewMeter()
	actual, loaded := r.meters.LoadOrStore(key, newMeter)
	if loaded {
		return actual.(*Meter) //nolint:errcheck // 同上
	}
	return newMeter
}

// Load 加载已存在的计量器，不创建新的
func (r *MeterRegistry) Load(key string) (*Meter, bool) {
	m, ok := r.meters.Load(key)
	if !ok {
		return nil, false
	}
	return m.(*Meter), true //nolint:errcheck // 注册表只存 *Meter
}

// ForEach 遍历所有计量器
func (r *MeterRegistry) ForEach(fn func(key string, meter *Meter)) {
	r.meters.Range(func(k, v interface{}) bool {
		fn(k.(string), v.(*Meter)) //nolint:errcheck // 注册表只存 string -> *Meter
		return true
	})
}

// Clear 清除所有计量器
func (r *MeterRegistry) Clear() {
	r.meters.Range(func(k, _ interface{}) bool {
		r.meters.Delete(k)
		return true
	})
}

// Count 返回计量器数量
func (r *MeterRegistry) Count() int {
	count := 0
	r.meters.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

// ============================================================================
//                              格式化辅助
// ============================================================================

// FormatBytes 格式化字节数为人类可读格式
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return strconv.FormatUint(bytes, 10) + " B"
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(bytes)/float64(div), 'f', 1, 64) +
		" " + "KMGTPE"[exp:exp+1] + "B"
}

// FormatRate 格式化速率为人类可读格式
func FormatRate(bytesPerSec float64) string {
	const unit = 1024
	if bytesPerSec < unit {
		return strconv.FormatFloat(bytesPerSec, 'f', 1, 64) + " B/s"
	}
	div, exp := float64(unit), 0
	for n := bytesPerSec / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(bytesPerSec/div, 'f', 1, 64) +
		" " + "KMGTPE"[exp:exp+1] + "B/s"
}
