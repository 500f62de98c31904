package orchestrator

import (
	"context"
	"time"

	"github.com/aescanero/dagrun/pkg/domain"
	"github.com/aescanero/dagrun/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// publisher sends lifecycle events; failures are logged and never affect the run
type publisher struct {
	bus    ports.EventBus
	logger *zap.Logger
}

func (p publisher) publish(ctx context.Context, eventType domain.EventType, runID, nodeID string, data map[string]interface{}) {
	if p.bus == nil {
		return
	}

	event := domain.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		RunID:     runID,
		NodeID:    nodeID,
		Timestamp: time.Now(),
		Data:      data,
	}

	if err := p.bus.Publish(context.WithoutCancel(ctx), domain.TopicRunEvents, event); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("run_id", runID),
			zap.String("node_id", nodeID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}
