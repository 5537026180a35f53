package corofiber

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m := newMetrics()
	m.recordAccept()
	m.recordAccept()
	m.recordResume()
	m.recordFault()

	snap := m.Snapshot()
	if snap.Accepted != 2 {
		t.Errorf("Accepted = %d, want 2", snap.Accepted)
	}
	if snap.Resumed != 1 {
		t.Errorf("Resumed = %d, want 1", snap.Resumed)
	}
	if snap.Faults != 1 {
		t.Errorf("Faults = %d, want 1", snap.Faults)
	}
}

func TestMetrics_PollWaitPercentiles(t *testing.T) {
	t.Parallel()

	m := newMetrics()
	for i := 1; i <= 100; i++ {
		m.observePollWait(time.Duration(i) * time.Millisecond)
	}

	snap := m.Snapshot()
	if snap.P50 < 40*time.Millisecond || snap.P50 > 60*time.Millisecond {
		t.Errorf("P50 = %v, want roughly 50ms", snap.P50)
	}
	if snap.P99 < 90*time.Millisecond {
		t.Errorf("P99 = %v, want close to 100ms", snap.P99)
	}
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.recordAccept()
	m.recordResume()
	m.recordFault()
	m.observePollWait(time.Millisecond)

	if snap := m.Snapshot(); snap.Accepted != 0 || snap.Resumed != 0 {
		t.Errorf("Snapshot() on nil *Metrics = %+v, want zero value", snap)
	}
}

func TestMetrics_SnapshotEmptyReservoir(t *testing.T) {
	t.Parallel()

	m := newMetrics()
	snap := m.Snapshot()
	require.Equal(t, Snapshot{}, snap, "a fresh Metrics should report an all-zero Snapshot")
}
