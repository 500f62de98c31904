package ports

import (
	"context"

	"github.com/aescanero/dagrun/pkg/domain"
)

// EventHandler processes an event delivered by the bus
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus publishes lifecycle events to subscribers
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	// Subscribe delivers events until ctx is cancelled
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}
