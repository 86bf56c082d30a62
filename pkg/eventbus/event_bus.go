// Package eventbus delivers user-facing notifications as discrete events:
// workflow and agent outcomes, draft saves. Renderers (toast, bell, CLI
// output) subscribe; nothing in the core polls for notifications.
package eventbus

import (
	"context"

	"github.com/driftlab/assessor/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
