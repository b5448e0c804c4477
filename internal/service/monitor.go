package service

import (
	"sync"
	"time"
)

// Monitor 监控服务，用于统计订单引擎的错误和业务指标
type Monitor struct {
	mu sync.RWMutex

	// 错误统计
	RedisErrors int64
	MQErrors    int64
	DBErrors    int64
	Conflicts   int64

	// 业务统计
	OrdersCreated   int64
	OrdersCancelled int64
	ReserveFailed   int64
	SweepRuns       int64
	SweepScanned    int64
	SweepCancelled  int64

	// 时间统计
	LastOrderTime time.Time
	LastSweepTime time.Time
	LastMQError   time.Time
	LastDBError   time.Time
}

var globalMonitor = &Monitor{}

// GetMonitor 获取全局监控实例
func GetMonitor() *Monitor {
	return globalMonitor
}

// RecordOrderCreated 记录下单成功
func (m *Monitor) RecordOrderCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrdersCreated++
	m.LastOrderTime = time.Now()
}

// RecordOrderCancelled 记录订单取消
func (m *Monitor) RecordOrderCancelled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrdersCancelled++
}

// RecordReserveFailed 记录库存预占失败
func (m *Monitor) RecordReserveFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReserveFailed++
}

// RecordConflict 记录乐观锁冲突
func (m *Monitor) RecordConflict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Conflicts++
}

// RecordSweep 记录一轮过期订单清理
func (m *Monitor) RecordSweep(scanned, cancelled int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SweepRuns++
	m.SweepScanned += int64(scanned)
	m.SweepCancelled += int64(cancelled)
	m.LastSweepTime = time.Now()
}

// RecordRedisError 记录Redis错误
func (m *Monitor) RecordRedisError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RedisErrors++
}

// RecordMQError 记录MQ错误
func (m *Monitor) RecordMQError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MQErrors++
	m.LastMQError = time.Now()
}

// RecordDBError 记录数据库错误
func (m *Monitor) RecordDBError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DBErrors++
	m.LastDBError = time.Now()
}

// GetStats 获取统计信息
func (m *Monitor) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"errors": map[string]interface{}{
			"redis":     m.RedisErrors,
			"mq":        m.MQErrors,
			"db":        m.DBErrors,
			"conflicts": m.Conflicts,
		},
		"orders": map[string]interface{}{
			"created":        m.OrdersCreated,
			"cancelled":      m.OrdersCancelled,
			"reserve_failed": m.ReserveFailed,
		},
		"sweep": map[string]interface{}{
			"runs":      m.SweepRuns,
			"scanned":   m.SweepScanned,
			"cancelled": m.SweepCancelled,
		},
		"last_events": map[string]interface{}{
			"last_order": m.LastOrderTime,
			"last_sweep": m.LastSweepTime,
			"mq_error":   m.LastMQError,
			"db_error":   m.LastDBError,
		},
	}
}

// Reset 重置统计（用于测试或定期清理）
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RedisErrors = 0
	m.MQErrors = 0
	m.DBErrors = 0
	m.Conflicts = 0
	m.OrdersCreated = 0
	m.OrdersCancelled = 0
	m.ReserveFailed = 0
	m.SweepRuns = 0
	m.SweepScanned = 0
	m.SweepCancelled = 0
}
