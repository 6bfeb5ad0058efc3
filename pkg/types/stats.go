package types

// ============================================================================
//                              复制统计
// ============================================================================

// ReplicationStats 复制流量统计
//
// In 方向是从对端收到的块，Out 方向是发给对端的块。
// 速率是字节速率的指数加权移动平均值。
type ReplicationStats struct {
	// BlocksIn 收到的块数
	BlocksIn uint64
	// BlocksOut 发出的块数
	BlocksOut uint64
	// BytesIn 收到的块字节数
	BytesIn uint64
	// BytesOut 发出的块字节数
	BytesOut uint64
	// RateIn 接收速率 (bytes/sec)
	RateIn float64
	// RateOut 发送速率 (bytes/sec)
	RateOut float64
}

// TotalBytes 双向合计字节数
func (s ReplicationStats) TotalBytes() uint64 {
	return s.BytesIn + s.BytesOut
}

// TotalBlocks 双向合计块数
func (s ReplicationStats) TotalBlocks() uint64 {
	return s.BlocksIn + s.BlocksOut
}
