package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/driftlab/assessor/pkg/eventbus"
	"github.com/driftlab/assessor/pkg/events"
	"github.com/driftlab/assessor/pkg/models"
)

// StatusFetcher is the polling side of the transport, implemented by the
// API client.
type StatusFetcher interface {
	WorkflowStatus(ctx context.Context, workflowID string) (*models.WorkflowProgress, error)
}

// Tracker assembles the full progress pipeline for one workflow: stream
// subscription, polling fallback, and reconciler. Teardown is scope-bound:
// cancelling Stop (or the parent context) ends both transports, so nothing
// mutates state after the owning view is gone.
type Tracker struct {
	reconciler *Reconciler
	stream     *Stream
	poller     *Poller

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

// NewTracker builds a tracker for workflowID. streamURL is the push
// channel endpoint; fetcher serves the polling fallback.
func NewTracker(
	workflowID string,
	streamURL string,
	fetcher StatusFetcher,
	callbacks Callbacks,
	bus eventbus.EventBus,
	pollInterval time.Duration,
	logger *slog.Logger,
) *Tracker {
	reconciler := NewReconciler(workflowID, callbacks, logger).WithBus(bus)

	stream := NewStream(
		streamURL,
		events.SubscribeScope{WorkflowID: workflowID},
		reconciler.Apply,
		logger,
	)

	poller := NewPoller(
		pollInterval,
		func(ctx context.Context) (*models.WorkflowProgress, error) {
			return fetcher.WorkflowStatus(ctx, workflowID)
		},
		reconciler.ApplyPoll,
		func() bool {
			// Poll only while the push channel is down and the workflow
			// still has updates to deliver.
			return !stream.Connected() && !reconciler.Terminal()
		},
		logger,
	)

	return &Tracker{
		reconciler: reconciler,
		stream:     stream,
		poller:     poller,
	}
}

// Start launches both transports under a context derived from ctx.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil || t.stopped {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	go t.stream.Run(runCtx)

	t.poller.Start(runCtx)
}

// Stop tears down the subscription and the poll loop. Idempotent.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true

	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Snapshot returns the current merged progress view.
func (t *Tracker) Snapshot() (models.WorkflowProgress, []models.AgentStatus) {
	return t.reconciler.Snapshot()
}

// Terminal reports whether the workflow has finished.
func (t *Tracker) Terminal() bool {
	return t.reconciler.Terminal()
}
