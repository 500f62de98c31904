package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aescanero/dagrun/pkg/domain"
	"github.com/aescanero/dagrun/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler handles WebSocket connections
type Handler struct {
	eventBus ports.EventBus
	store    ports.RunStore
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler; store may be nil
func NewHandler(eventBus ports.EventBus, store ports.RunStore, logger *zap.Logger) *Handler {
	return &Handler{
		eventBus: eventBus,
		store:    store,
		logger:   logger,
	}
}

// HandleRunStream streams the events of one run until it completes or the client leaves
func (h *Handler) HandleRunStream(c *gin.Context) {
	runID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("run_id", runID),
		zap.String("client", c.ClientIP()))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Detect client disconnects; incoming messages are ignored
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	eventChan := make(chan domain.Event, 64)
	if err := h.eventBus.Subscribe(ctx, domain.TopicRunEvents, h.forward(runID, eventChan)); err != nil {
		h.logger.Error("failed to subscribe to events",
			zap.String("run_id", runID),
			zap.Error(err))
		h.close(conn, websocket.CloseInternalServerErr, "subscription failed")
		return
	}

	// A run that already finished produces no more events
	if done, ok := h.completedEvent(ctx, runID); ok {
		if h.write(conn, done) {
			h.close(conn, websocket.CloseNormalClosure, "run completed")
		}
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventChan:
			if !h.write(conn, event) {
				return
			}
			if event.Type == domain.EventTypeRunCompleted {
				h.close(conn, websocket.CloseNormalClosure, "run completed")
				return
			}
		}
	}
}

// forward returns an event handler that passes one run's events to ch without blocking
func (h *Handler) forward(runID string, ch chan<- domain.Event) ports.EventHandler {
	return func(ctx context.Context, event domain.Event) error {
		if event.RunID != runID {
			return nil
		}

		select {
		case ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			h.logger.Warn("event channel full, dropping event",
				zap.String("run_id", runID),
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
		}
		return nil
	}
}

// completedEvent builds a run.completed event from a finished run's record
func (h *Handler) completedEvent(ctx context.Context, runID string) (domain.Event, bool) {
	if h.store == nil {
		return domain.Event{}, false
	}

	record, err := h.store.Get(ctx, runID)
	if err != nil || !record.Status.IsTerminal() {
		return domain.Event{}, false
	}

	data := map[string]interface{}{"status": string(record.Status)}
	if record.Error != nil {
		data["error"] = record.Error
	}
	return domain.Event{
		Type:      domain.EventTypeRunCompleted,
		RunID:     runID,
		Timestamp: record.CompletedAt,
		Data:      data,
	}, true
}

func (h *Handler) write(conn *websocket.Conn, event domain.Event) bool {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", zap.Error(err))
		return true
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Warn("failed to write message", zap.Error(err))
		return false
	}
	return true
}

func (h *Handler) close(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
