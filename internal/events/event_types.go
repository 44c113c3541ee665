package events

import (
	"time"

	"github.com/spec-kit/escalation-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated   EventType = "ticket_created"
	EventTicketEscalated EventType = "ticket_escalated"
	EventTicketUpdated   EventType = "ticket_updated"
	EventTicketResolved  EventType = "ticket_resolved"
)

// AllEventTypes lists every type the transition engine publishes.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketEscalated,
	EventTicketUpdated,
	EventTicketResolved,
}

// Actor identifies who triggered the event.
type Actor struct {
	UserID   string      `json:"user_id"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
}

// Event is published after a transition commits.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string                `json:"ticket_number"`
	Category     domain.TicketCategory `json:"category"`
	Priority     domain.TicketPriority `json:"priority"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	FromLevel  domain.Level `json:"from_level"`
	ToLevel    domain.Level `json:"to_level"`
	Reason     string       `json:"reason"`
	AssigneeID *string      `json:"assignee_id,omitempty"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	Level         domain.Level          `json:"level"`
	OldStatus     domain.TicketStatus   `json:"old_status"`
	NewStatus     domain.TicketStatus   `json:"new_status"`
	CriticalValue *domain.CriticalValue `json:"critical_value,omitempty"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	Resolution string `json:"resolution"`
}
