package observability

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/cpu"
)

// Stats is a point-in-time snapshot of the relay, suitable for the
// stats endpoint and the periodic health report.
type Stats struct {
	ActiveConnections int64   `json:"active_connections"`
	ConnectionsOpened uint64  `json:"connections_opened"`
	ConnectionsClosed uint64  `json:"connections_closed"`
	AuthFailures      uint64  `json:"auth_failures"`
	JoinsGranted      uint64  `json:"joins_granted"`
	JoinsDenied       uint64  `json:"joins_denied"`
	MessagesPersisted uint64  `json:"messages_persisted"`
	MessagesBroadcast uint64  `json:"messages_broadcast"`
	SendsRejected     uint64  `json:"sends_rejected"`
	DroppedDeliveries uint64  `json:"dropped_deliveries"`
	AllocMemMb        uint64  `json:"alloc_mem_mb"`
	NumGC             uint32  `json:"num_gc"`
	CPUPercent        float64 `json:"cpu_percent"`
	Timestamp         string  `json:"timestamp"`
}

// Metrics holds the live counters. All increments are atomic so the hot
// path (the relay) never takes a lock for accounting.
type Metrics struct {
	activeConnections int64
	connectionsOpened uint64
	connectionsClosed uint64
	authFailures      uint64
	joinsGranted      uint64
	joinsDenied       uint64
	messagesPersisted uint64
	messagesBroadcast uint64
	sendsRejected     uint64
	droppedDeliveries uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) ConnectionOpened() {
	atomic.AddInt64(&m.activeConnections, 1)
	atomic.AddUint64(&m.connectionsOpened, 1)
}

func (m *Metrics) ConnectionClosed() {
	atomic.AddInt64(&m.activeConnections, -1)
	atomic.AddUint64(&m.connectionsClosed, 1)
}

func (m *Metrics) IncrAuthFailures() {
	atomic.AddUint64(&m.authFailures, 1)
}

func (m *Metrics) IncrJoinsGranted() {
	atomic.AddUint64(&m.joinsGranted, 1)
}

func (m *Metrics) IncrJoinsDenied() {
	atomic.AddUint64(&m.joinsDenied, 1)
}

func (m *Metrics) IncrMessagesPersisted() {
	atomic.AddUint64(&m.messagesPersisted, 1)
}

// IncrMessagesBroadcast counts individual deliveries, not events, so the
// number grows with room population.
func (m *Metrics) IncrMessagesBroadcast(n uint64) {
	atomic.AddUint64(&m.messagesBroadcast, n)
}

func (m *Metrics) IncrSendsRejected() {
	atomic.AddUint64(&m.sendsRejected, 1)
}

func (m *Metrics) IncrDroppedDeliveries() {
	atomic.AddUint64(&m.droppedDeliveries, 1)
}

// Snapshot reads every counter plus process-level memory and CPU usage.
// The zero-interval cpu.Percent call compares against the previous call,
// so the first snapshot reports 0.
func (m *Metrics) Snapshot() Stats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	var cpuPercent float64
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	}

	return Stats{
		ActiveConnections: atomic.LoadInt64(&m.activeConnections),
		ConnectionsOpened: atomic.LoadUint64(&m.connectionsOpened),
		ConnectionsClosed: atomic.LoadUint64(&m.connectionsClosed),
		AuthFailures:      atomic.LoadUint64(&m.authFailures),
		JoinsGranted:      atomic.LoadUint64(&m.joinsGranted),
		JoinsDenied:       atomic.LoadUint64(&m.joinsDenied),
		MessagesPersisted: atomic.LoadUint64(&m.messagesPersisted),
		MessagesBroadcast: atomic.LoadUint64(&m.messagesBroadcast),
		SendsRejected:     atomic.LoadUint64(&m.sendsRejected),
		DroppedDeliveries: atomic.LoadUint64(&m.droppedDeliveries),
		AllocMemMb:        mem.Alloc / 1024 / 1024,
		NumGC:             mem.NumGC,
		CPUPercent:        cpuPercent,
		Timestamp:         time.Now().Format(time.RFC3339),
	}
}
