package perfmon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDisabledMonitorIsNoOp(t *testing.T) {
	m := New(false, nil)

	m.ConnectionEstablished()
	m.StartRequest("id", "GET", "/")
	m.EndRequest("id", "GET", "/", 200)

	require.Equal(t, "performance monitoring disabled\n", m.Summary())
}

func TestStartEndRequestTracksCounters(t *testing.T) {
	m := New(true, nil)

	id := NewRequestID()
	require.Len(t, id, 16)

	m.StartRequest(id, "GET", "/a")
	time.Sleep(time.Millisecond)
	m.EndRequest(id, "GET", "/a", 200)

	summary := m.Summary()
	require.Contains(t, summary, "total_requests: 1")
	require.Contains(t, summary, "requests_processed: 1")
	require.Contains(t, summary, "active_requests: 0")
}

func TestEndRequestWithUnknownIDIsIgnored(t *testing.T) {
	m := New(true, nil)

	m.EndRequest("never-started", "GET", "/", 200)

	require.Contains(t, m.Summary(), "requests_processed: 0")
}

func TestConnectionLifecycleCounters(t *testing.T) {
	m := New(true, nil)

	m.ConnectionEstablished()
	m.ConnectionEstablished()
	m.ConnectionClosed()

	summary := m.Summary()
	require.Contains(t, summary, "total_connections: 2")
	require.Contains(t, summary, "active_connections: 1")
}

func TestConnectionClosedNeverGoesNegative(t *testing.T) {
	m := New(true, nil)

	m.ConnectionClosed()

	require.Contains(t, m.Summary(), "active_connections: 0")
}
