// Package perfmon is the performance-counter collaborator, grounded in
// the full counter set original_source's PerformanceMonitor.hpp tracks:
// total/active requests, total/active connections, and min/avg/max
// processing time with a slow-request log threshold.
package perfmon

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/corowave/evhttpd/logger"
	"github.com/dchest/uniuri"
)

// Monitor is process-wide; New is called once from bootstrap and passed
// around as an explicit handle rather than kept as hidden global state.
type Monitor struct {
	mu sync.Mutex

	enabled bool
	log     *logger.Logger

	slowThreshold time.Duration

	inFlight map[string]time.Time

	totalRequests     uint64
	requestsProcessed uint64
	totalConnections  uint64
	activeConnections uint64

	totalProcessing time.Duration
	minProcessing   time.Duration
	maxProcessing   time.Duration
	avgProcessing   float64 // exponential moving average, in milliseconds
}

// New returns a Monitor. When enabled is false every method is a cheap
// no-op, matching original_source's `if (!enabled) return;` guards.
func New(enabled bool, log *logger.Logger) *Monitor {
	return &Monitor{
		enabled:       enabled,
		log:           log,
		slowThreshold: 200 * time.Millisecond,
		inFlight:      make(map[string]time.Time),
	}
}

// NewRequestID returns a short random correlation ID for StartRequest,
// mirroring original_source's caller-supplied requestId, generated here
// with uniuri the way indigo-web/indigo's own test suite generates
// disposable random tokens.
func NewRequestID() string {
	return uniuri.NewLen(16)
}

// StartRequest begins timing a request identified by id.
func (m *Monitor) StartRequest(id, method, path string) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.inFlight[id] = time.Now()
	m.totalRequests++
}

// EndRequest stops timing id, folding its duration into the moving
// statistics and logging a WARNING if it crossed the slow threshold,
// DEBUG otherwise — original_source's endRequest.
func (m *Monitor) EndRequest(id, method, path string, code int) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	start, ok := m.inFlight[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.inFlight, id)

	elapsed := time.Since(start)
	m.requestsProcessed++
	m.totalProcessing += elapsed

	if m.minProcessing == 0 || elapsed < m.minProcessing {
		m.minProcessing = elapsed
	}
	if elapsed > m.maxProcessing {
		m.maxProcessing = elapsed
	}

	ms := float64(elapsed) / float64(time.Millisecond)
	if m.avgProcessing == 0 {
		m.avgProcessing = ms
	} else {
		m.avgProcessing = m.avgProcessing*0.9 + ms*0.1
	}
	m.mu.Unlock()

	if m.log == nil {
		return
	}

	if elapsed > m.slowThreshold {
		m.log.Warning("slow request: %s %s %s - %s (status %d)", method, path, id, elapsed, code)
	} else {
		m.log.Debug("request complete: %s %s %s - %s (status %d)", method, path, id, elapsed, code)
	}
}

// ConnectionEstablished / ConnectionClosed track the accept loop's
// lifecycle, original_source's connectionEstablished/connectionClosed.
func (m *Monitor) ConnectionEstablished() {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalConnections++
	m.activeConnections++
}

func (m *Monitor) ConnectionClosed() {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeConnections > 0 {
		m.activeConnections--
	}
}

// SetSlowThreshold overrides the default 200ms slow-request threshold.
func (m *Monitor) SetSlowThreshold(d time.Duration) {
	m.slowThreshold = d
}

// Summary renders the plain-text performance counter block served at
// GET /server-status.
func (m *Monitor) Summary() string {
	if !m.enabled {
		return "performance monitoring disabled\n"
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "total_requests: %d\n", m.totalRequests)
	fmt.Fprintf(&b, "requests_processed: %d\n", m.requestsProcessed)
	fmt.Fprintf(&b, "active_requests: %d\n", len(m.inFlight))
	fmt.Fprintf(&b, "active_connections: %d\n", m.activeConnections)
	fmt.Fprintf(&b, "total_connections: %d\n", m.totalConnections)
	fmt.Fprintf(&b, "avg_processing_time_ms: %.2f\n", m.avgProcessing)
	fmt.Fprintf(&b, "min_processing_time: %s\n", m.minProcessing)
	fmt.Fprintf(&b, "max_processing_time: %s\n", m.maxProcessing)
	fmt.Fprintf(&b, "slow_threshold: %s\n", m.slowThreshold)

	return b.String()
}
