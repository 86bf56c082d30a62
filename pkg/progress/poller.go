package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/driftlab/assessor/pkg/models"
)

// DefaultPollInterval is the fallback polling cadence.
const DefaultPollInterval = 2 * time.Second

// Poller runs the polling fallback: a fixed-interval status fetch that is
// active only while the push channel reports itself disconnected, and
// stops within one tick of a terminal status or a stream reconnect so the
// two transports never race.
type Poller struct {
	interval time.Duration
	fetch    func(ctx context.Context) (*models.WorkflowProgress, error)
	apply    func(ctx context.Context, snapshot *models.WorkflowProgress)
	active   func() bool
	logger   *slog.Logger
}

// NewPoller wires a poller. active gates each tick (typically: stream
// disconnected and workflow not terminal); fetch failures are transient
// and simply wait for the next tick, never retried inline.
func NewPoller(
	interval time.Duration,
	fetch func(ctx context.Context) (*models.WorkflowProgress, error),
	apply func(ctx context.Context, snapshot *models.WorkflowProgress),
	active func() bool,
	logger *slog.Logger,
) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &Poller{
		interval: interval,
		fetch:    fetch,
		apply:    apply,
		active:   active,
		logger:   logger,
	}
}

// Start launches the poll loop and returns an idempotent cancel. The loop
// also ends when ctx is cancelled.
func (p *Poller) Start(ctx context.Context) func() {
	stopCh := make(chan struct{})

	var once sync.Once

	cancel := func() {
		once.Do(func() {
			close(stopCh)
		})
	}

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticker.C:
				if !p.active() {
					continue
				}

				snapshot, err := p.fetch(ctx)
				if err != nil {
					p.logger.Debug("status poll failed, retrying at next tick", "error", err)

					continue
				}

				p.apply(ctx, snapshot)
			}
		}
	}()

	return cancel
}
