// Package push implements the mock backend's server-to-client message
// stream: websocket accept, subscribe handling, and fan-out per workflow.
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/driftlab/assessor/pkg/events"
)

type subscriber struct {
	conn *websocket.Conn
	ctx  context.Context
}

// Hub tracks push-channel subscribers keyed by workflow id.
type Hub struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[string]map[*subscriber]struct{}),
	}
}

// ServeHTTP upgrades the connection, waits for the client's subscribe
// message, and keeps the subscription open until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("failed to accept push connection", "error", err)

		return
	}

	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "stream ended")
	}()

	ctx := r.Context()

	_, data, err := conn.Read(ctx)
	if err != nil {
		return
	}

	var subscribe events.SubscribeMessage

	err = json.Unmarshal(data, &subscribe)
	if err != nil || subscribe.Type != events.StreamSubscribe {
		h.logger.Warn("push client sent invalid subscribe frame")

		return
	}

	key := subscribe.Data.WorkflowID
	if key == "" {
		key = subscribe.Data.AssessmentID
	}

	if key == "" {
		return
	}

	sub := &subscriber{conn: conn, ctx: ctx}
	h.register(key, sub)

	defer h.unregister(key, sub)

	h.logger.Debug("push subscriber attached", "workflow_id", key)

	// Drain further client frames until disconnect; the stream is
	// one-directional after the subscribe.
	for {
		_, _, err := conn.Read(ctx)
		if err != nil {
			return
		}
	}
}

// Publish sends one typed message to every subscriber of the workflow.
func (h *Hub) Publish(workflowID string, messageType events.StreamMessageType, payload any) {
	frame, err := events.EncodeStreamMessage(messageType, payload)
	if err != nil {
		h.logger.Error("failed to encode push frame", "error", err)

		return
	}

	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subs[workflowID]))

	for sub := range h.subs[workflowID] {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	for _, sub := range targets {
		err := sub.conn.Write(sub.ctx, websocket.MessageText, frame)
		if err != nil {
			h.logger.Debug("push write failed, dropping subscriber", "error", err)
			h.unregister(workflowID, sub)
		}
	}
}

func (h *Hub) register(key string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[key] == nil {
		h.subs[key] = make(map[*subscriber]struct{})
	}

	h.subs[key][sub] = struct{}{}
}

func (h *Hub) unregister(key string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs[key], sub)

	if len(h.subs[key]) == 0 {
		delete(h.subs, key)
	}
}
