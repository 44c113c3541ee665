package worker

import (
	"context"
	"testing"

	"github.com/spec-kit/escalation-service/internal/events"
	"github.com/spec-kit/escalation-service/internal/observability"
)

func TestTransitionWorkerCountsEvents(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	StartTransitionWorker(dispatcher, NewTransitionRecorder(metrics, nil))

	ctx := context.Background()
	for _, et := range []events.EventType{events.EventTicketCreated, events.EventTicketEscalated, events.EventTicketEscalated} {
		if err := dispatcher.Publish(ctx, events.Event{Type: et, TicketID: "t-1"}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	snap := metrics.Snapshot()
	if snap.Transitions["ticket_created"] != 1 || snap.Transitions["ticket_escalated"] != 2 {
		t.Fatalf("transitions = %v", snap.Transitions)
	}
	if _, ok := snap.Transitions["ticket_resolved"]; ok {
		t.Fatalf("unexpected resolved count")
	}
}
