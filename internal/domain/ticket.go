package domain

import "time"

// TicketStatus enumerates persisted lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew       TicketStatus = "new"
	TicketStatusAttending TicketStatus = "attending"
	TicketStatusEscalated TicketStatus = "escalated"
	TicketStatusCompleted TicketStatus = "completed"
	TicketStatusResolved  TicketStatus = "resolved"
)

// Valid reports whether s is one of the persisted statuses.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusAttending, TicketStatusEscalated, TicketStatusCompleted, TicketStatusResolved:
		return true
	}
	return false
}

// Terminal reports whether no further work can be recorded on the ticket.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusCompleted || s == TicketStatusResolved
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// ParsePriority accepts any casing of low/medium/high.
func ParsePriority(raw string) (TicketPriority, bool) {
	switch TicketPriority(lower(raw)) {
	case TicketPriorityLow:
		return TicketPriorityLow, true
	case TicketPriorityMedium:
		return TicketPriorityMedium, true
	case TicketPriorityHigh:
		return TicketPriorityHigh, true
	}
	return "", false
}

// TicketCategory classifies the reported problem.
type TicketCategory string

const (
	CategoryHardware TicketCategory = "Hardware"
	CategorySoftware TicketCategory = "Software"
	CategoryNetwork  TicketCategory = "Network"
	CategoryAccount  TicketCategory = "Account"
	CategoryOther    TicketCategory = "Other"
)

// ParseCategory matches a category case-insensitively.
func ParseCategory(raw string) (TicketCategory, bool) {
	for _, c := range []TicketCategory{CategoryHardware, CategorySoftware, CategoryNetwork, CategoryAccount, CategoryOther} {
		if lower(string(c)) == lower(raw) {
			return c, true
		}
	}
	return "", false
}

// CriticalValue is the severity tag assigned at tier 2. C1 is the most severe.
type CriticalValue string

const (
	CriticalC1 CriticalValue = "C1"
	CriticalC2 CriticalValue = "C2"
	CriticalC3 CriticalValue = "C3"
)

func ParseCriticalValue(raw string) (CriticalValue, bool) {
	switch CriticalValue(upper(raw)) {
	case CriticalC1:
		return CriticalC1, true
	case CriticalC2:
		return CriticalC2, true
	case CriticalC3:
		return CriticalC3, true
	}
	return "", false
}

// ActionStatus is the status an agent requests when working a ticket.
type ActionStatus string

const (
	ActionStatusAttending ActionStatus = "attending"
	ActionStatusCompleted ActionStatus = "completed"
)

func ParseActionStatus(raw string) (ActionStatus, bool) {
	switch ActionStatus(lower(raw)) {
	case ActionStatusAttending:
		return ActionStatusAttending, true
	case ActionStatusCompleted:
		return ActionStatusCompleted, true
	}
	return "", false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                     string
	TicketNumber           string
	Title                  string
	Description            string
	Category               TicketCategory
	Priority               TicketPriority
	Status                 TicketStatus
	EscalationLevel        Level
	CriticalValue          *CriticalValue
	Resolution             *string
	ResolutionNotes        *string
	CreatedBy              UserRef
	AssignedTo             *UserRef
	EscalatedBy            *UserRef
	ResolvedBy             *UserRef
	ExpectedCompletionDate time.Time
	CompletedDate          *time.Time
	ResolvedDate           *time.Time
	Version                int
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Clone returns a deep copy so callers can stage changes without aliasing.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	out := *t
	out.CriticalValue = clonePtr(t.CriticalValue)
	out.Resolution = clonePtr(t.Resolution)
	out.ResolutionNotes = clonePtr(t.ResolutionNotes)
	out.AssignedTo = clonePtr(t.AssignedTo)
	out.EscalatedBy = clonePtr(t.EscalatedBy)
	out.ResolvedBy = clonePtr(t.ResolvedBy)
	out.CompletedDate = clonePtr(t.CompletedDate)
	out.ResolvedDate = clonePtr(t.ResolvedDate)
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
