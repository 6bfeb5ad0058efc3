package metrics

import (
	"sync"
	"time"

	"github.com/dep2p/go-corestore/pkg/lib/log"
)

var logger = log.Logger("core/metrics")

// ============================================================================
//                              定期报告器
// ============================================================================

// Reporter 按固定间隔把复制流量统计写入日志
type Reporter struct {
	counter  *Counter
	interval time.Duration

	mu      sync.Mutex
	stopCh  chan struct{}
	running bool
}

// NewReporter 创建报告器
func NewReporter(counter *Counter, interval time.Duration) *Reporter {
	return &Reporter{
		counter:  counter,
		interval: interval,
	}
}

// Start 启动定期报告，间隔未配置时什么都不做
func (r *Reporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running || r.interval <= 0 {
		return
	}

	r.stopCh = make(chan struct{})
	r.running = true

	go r.loop(r.stopCh)
}

// Stop 停止报告
func (r *Reporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	close(r.stopCh)
	r.stopCh = nil
	r.running = false
}

func (r *Reporter) loop(stopCh chan struct{}) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.logReport()
		case <-stopCh:
			return
		}
	}
}

func (r *Reporter) logReport() {
	totals := r.counter.Totals()
	logger.Info("复制流量统计",
		"blocksIn", totals.BlocksIn,
		"blocksOut", totals.BlocksOut,
		"bytesIn", FormatBytes(totals.BytesIn),
		"bytesOut", FormatBytes(totals.BytesOut),
		"rateIn", FormatRate(totals.RateIn),
		"rateOut", FormatRate(totals.RateOut),
		"cores", r.counter.CoreCount(),
	)
}
