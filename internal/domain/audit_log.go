package domain

import "time"

// ActionType captures what a log entry records.
type ActionType string

const (
	ActionCreated          ActionType = "created"
	ActionEscalated        ActionType = "escalated"
	ActionTaken            ActionType = "action_taken"
	ActionCriticalAssigned ActionType = "critical_assigned"
	ActionResolved         ActionType = "resolved"
)

// ActorSnapshot freezes who performed an action. It is not a live user reference.
type ActorSnapshot struct {
	Username string
	Email    string
}

// AuditLogEntry is an immutable activity record.
type AuditLogEntry struct {
	ID               string
	TicketID         string
	ActionType       ActionType
	PreviousValue    *string
	NewValue         *string
	Comment          *string
	EscalationReason *string
	PerformedBy      ActorSnapshot
	CreatedAt        time.Time
}
