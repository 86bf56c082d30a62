package progress

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlab/assessor/pkg/log"
	"github.com/driftlab/assessor/pkg/models"
)

// scriptedFetcher serves a sequence of status snapshots, repeating the
// last one.
type scriptedFetcher struct {
	mu        sync.Mutex
	snapshots []*models.WorkflowProgress
	calls     int
}

func (f *scriptedFetcher) WorkflowStatus(_ context.Context, workflowID string) (*models.WorkflowProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	if i >= len(f.snapshots) {
		i = len(f.snapshots) - 1
	}

	f.calls++

	return f.snapshots[i], nil
}

func TestTrackerFallsBackToPolling(t *testing.T) {
	fetcher := &scriptedFetcher{snapshots: []*models.WorkflowProgress{
		{ID: "wf-1", Status: models.WorkflowStatusRunning, ProgressPercent: 30},
		{ID: "wf-1", Status: models.WorkflowStatusRunning, ProgressPercent: 70},
		{ID: "wf-1", Status: models.WorkflowStatusCompleted, ProgressPercent: 100},
	}}

	var completions atomic.Int64

	// The stream endpoint is unreachable; all updates must arrive through
	// the polling fallback.
	tracker := NewTracker(
		"wf-1",
		"ws://127.0.0.1:1/ws",
		fetcher,
		Callbacks{OnCompleted: func(models.WorkflowProgress) { completions.Add(1) }},
		nil,
		10*time.Millisecond,
		log.WithModule("test"),
	)

	tracker.Start(t.Context())
	defer tracker.Stop()

	require.Eventually(t, func() bool {
		return completions.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, tracker.Terminal())

	snapshot, _ := tracker.Snapshot()
	assert.Equal(t, models.WorkflowStatusCompleted, snapshot.Status)
	assert.InEpsilon(t, 100.0, snapshot.ProgressPercent, 0.001)

	// Terminal disengages the poller within a tick.
	fetcher.mu.Lock()
	settled := fetcher.calls
	fetcher.mu.Unlock()

	time.Sleep(50 * time.Millisecond)

	fetcher.mu.Lock()
	after := fetcher.calls
	fetcher.mu.Unlock()

	assert.LessOrEqual(t, after, settled+1)
}

func TestTrackerStartAfterStopIsNoop(t *testing.T) {
	fetcher := &scriptedFetcher{snapshots: []*models.WorkflowProgress{
		{ID: "wf-1", Status: models.WorkflowStatusRunning, ProgressPercent: 10},
	}}

	tracker := NewTracker("wf-1", "ws://127.0.0.1:1/ws", fetcher, Callbacks{}, nil,
		10*time.Millisecond, log.WithModule("test"))

	tracker.Stop()
	tracker.Start(t.Context())

	time.Sleep(50 * time.Millisecond)

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()

	assert.Zero(t, fetcher.calls, "a stopped tracker must not launch transports")
}
