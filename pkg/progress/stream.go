package progress

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/driftlab/assessor/pkg/events"
)

// defaultReconnectDelay spaces reconnection attempts after the push
// channel drops.
const defaultReconnectDelay = 3 * time.Second

// Stream maintains the push-channel subscription for one workflow. On each
// (re)connect it sends an explicit subscribe message scoped to the
// workflow id; missed history is never replayed, the reconciler simply
// accepts whatever the next message implies.
type Stream struct {
	url            string
	scope          events.SubscribeScope
	onMessage      func(context.Context, any)
	logger         *slog.Logger
	reconnectDelay time.Duration
	connected      atomic.Bool
}

// NewStream creates a push-channel subscription against the websocket url.
// onMessage receives every decoded message in arrival order.
func NewStream(url string, scope events.SubscribeScope, onMessage func(context.Context, any), logger *slog.Logger) *Stream {
	return &Stream{
		url:            url,
		scope:          scope,
		onMessage:      onMessage,
		logger:         logger,
		reconnectDelay: defaultReconnectDelay,
	}
}

// Connected reports whether the push channel is currently up. The polling
// fallback keys off this.
func (s *Stream) Connected() bool {
	return s.connected.Load()
}

// Run dials, subscribes, and reads until ctx is cancelled, reconnecting
// after failures. It returns when ctx ends.
func (s *Stream) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := s.connectAndRead(ctx)
		if err != nil && ctx.Err() == nil {
			s.logger.Debug("push channel dropped, reconnecting", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *Stream) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return err
	}

	defer func() {
		s.connected.Store(false)

		_ = conn.Close(websocket.StatusNormalClosure, "subscription ended")
	}()

	subscribe, err := json.Marshal(events.NewSubscribeMessage(s.scope))
	if err != nil {
		return err
	}

	err = conn.Write(ctx, websocket.MessageText, subscribe)
	if err != nil {
		return err
	}

	s.connected.Store(true)
	s.logger.Debug("push channel connected", "workflow_id", s.scope.WorkflowID)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		message, err := events.DecodeStreamMessage(data)
		if err != nil {
			s.logger.Warn("discarding malformed stream message", "error", err)

			continue
		}

		s.onMessage(ctx, message)
	}
}
