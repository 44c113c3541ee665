package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/escalation-service/internal/events"
	"github.com/spec-kit/escalation-service/internal/observability"
)

// TransitionRecorder turns committed ticket events into transition counters
// and an activity log line.
type TransitionRecorder struct {
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewTransitionRecorder creates the recorder.
func NewTransitionRecorder(metrics *observability.Metrics, logger *zap.Logger) *TransitionRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransitionRecorder{metrics: metrics, logger: logger}
}

// StartTransitionWorker subscribes the recorder to every ticket event.
func StartTransitionWorker(dispatcher events.Dispatcher, recorder *TransitionRecorder) {
	if dispatcher == nil || recorder == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, recorder.handle)
	}
}

func (r *TransitionRecorder) handle(_ context.Context, event events.Event) error {
	r.metrics.RecordTransition(string(event.Type))
	r.logger.Debug("ticket event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor", event.Actor.Username),
		zap.Any("payload", event.Payload),
	)
	return nil
}
