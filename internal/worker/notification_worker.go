package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/parkwise/parking-service/internal/events"
)

// ErrQueueFull is returned when an event is dropped because the worker is
// behind.
var ErrQueueFull = errors.New("notification queue full")

const defaultQueueSize = 64

// NotificationWorker delivers events on its own goroutine so a slow Redis
// never holds up a check-in or check-out.
type NotificationWorker struct {
	handler events.EventHandler
	logger  *zap.Logger
	queue   chan events.Event

	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
}

// NewNotificationWorker buffers up to queueSize events for handler.
func NewNotificationWorker(handler events.EventHandler, logger *zap.Logger, queueSize int) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &NotificationWorker{
		handler: handler,
		logger:  logger,
		queue:   make(chan events.Event, queueSize),
		done:    make(chan struct{}),
	}
}

// StartNotificationWorker subscribes a worker to the given event types and
// starts draining its queue until Stop is called.
func StartNotificationWorker(ctx context.Context, dispatcher events.Dispatcher, handler events.EventHandler, logger *zap.Logger, queueSize int, types ...events.EventType) *NotificationWorker {
	w := NewNotificationWorker(handler, logger, queueSize)
	dispatcher.Subscribe(w.Enqueue, types...)
	go w.Run(ctx)
	return w
}

// Enqueue hands the event to the worker without blocking.
func (w *NotificationWorker) Enqueue(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return nil
	}
	select {
	case w.queue <- event:
		return nil
	default:
		w.logger.Warn("dropping event", zap.String("type", string(event.Type)), zap.String("receipt", event.Receipt))
		return ErrQueueFull
	}
}

// Run delivers queued events until the queue is closed by Stop.
func (w *NotificationWorker) Run(ctx context.Context) {
	defer close(w.done)
	for event := range w.queue {
		if err := w.handler(context.WithoutCancel(ctx), event); err != nil {
			w.logger.Error("event delivery failed",
				zap.String("event_id", event.ID),
				zap.String("type", string(event.Type)),
				zap.Error(err),
			)
		}
	}
}

// Stop refuses new events, drains what is queued and waits for Run to
// return.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.queue)
	w.mu.Unlock()
	<-w.done
}
