// Package mapper projects persisted tickets and activity entries onto the
// shape dashboards display. Every function here is pure.
package mapper

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/spec-kit/escalation-service/internal/domain"
)

// DisplayStatus is the three-valued status shown to users.
type DisplayStatus string

const (
	DisplayNew       DisplayStatus = "New"
	DisplayAttending DisplayStatus = "Attending"
	DisplayCompleted DisplayStatus = "Completed"
)

// ParseDisplayStatus matches a display status case-insensitively.
func ParseDisplayStatus(raw string) (DisplayStatus, bool) {
	for _, s := range []DisplayStatus{DisplayNew, DisplayAttending, DisplayCompleted} {
		if strings.EqualFold(strings.TrimSpace(raw), string(s)) {
			return s, true
		}
	}
	return "", false
}

// Status collapses a persisted status. Unknown values map to New rather than
// failing, so a newer backend status never breaks a listing.
func Status(s domain.TicketStatus) DisplayStatus {
	switch s {
	case domain.TicketStatusNew:
		return DisplayNew
	case domain.TicketStatusAttending, domain.TicketStatusEscalated:
		return DisplayAttending
	case domain.TicketStatusCompleted, domain.TicketStatusResolved:
		return DisplayCompleted
	default:
		return DisplayNew
	}
}

// PersistedStatuses is the inverse of Status, used to turn a display filter
// into a storage filter.
func PersistedStatuses(d DisplayStatus) []domain.TicketStatus {
	switch d {
	case DisplayNew:
		return []domain.TicketStatus{domain.TicketStatusNew}
	case DisplayAttending:
		return []domain.TicketStatus{domain.TicketStatusAttending, domain.TicketStatusEscalated}
	case DisplayCompleted:
		return []domain.TicketStatus{domain.TicketStatusCompleted, domain.TicketStatusResolved}
	}
	return nil
}

// Level renders a tier as "L1".."L3".
func Level(l domain.Level) string {
	return l.String()
}

// Priority capitalizes the stored priority.
func Priority(p domain.TicketPriority) string {
	switch p {
	case domain.TicketPriorityLow:
		return "Low"
	case domain.TicketPriorityMedium:
		return "Medium"
	case domain.TicketPriorityHigh:
		return "High"
	}
	raw := string(p)
	r, size := utf8.DecodeRuneInString(raw)
	if r == utf8.RuneError {
		return raw
	}
	return string(unicode.ToUpper(r)) + raw[size:]
}

// Ticket is the display form of a ticket.
type Ticket struct {
	ID              string                `json:"id"`
	APIID           string                `json:"apiId"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Category        domain.TicketCategory `json:"category"`
	Priority        string                `json:"priority"`
	Status          DisplayStatus         `json:"status"`
	EscalationLevel string                `json:"escalationLevel"`
	CriticalValue   *domain.CriticalValue `json:"criticalValue,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	ExpectedDate    time.Time             `json:"expectedDate"`
	AssignedTo      *string               `json:"assignedTo,omitempty"`
}

// MapTicket projects a persisted ticket. The human-facing ticket number
// becomes the display id; the storage id is kept for follow-up calls.
func MapTicket(t *domain.Ticket) Ticket {
	view := Ticket{
		ID:              t.TicketNumber,
		APIID:           t.ID,
		Title:           t.Title,
		Description:     t.Description,
		Category:        t.Category,
		Priority:        Priority(t.Priority),
		Status:          Status(t.Status),
		EscalationLevel: Level(t.EscalationLevel),
		CriticalValue:   t.CriticalValue,
		CreatedAt:       t.CreatedAt,
		ExpectedDate:    t.ExpectedCompletionDate,
	}
	if t.AssignedTo != nil {
		username := t.AssignedTo.Username
		view.AssignedTo = &username
	}
	return view
}

// MapTickets projects a slice, preserving order.
func MapTickets(tickets []domain.Ticket) []Ticket {
	out := make([]Ticket, 0, len(tickets))
	for i := range tickets {
		out = append(out, MapTicket(&tickets[i]))
	}
	return out
}

// LogEntry is the display form of an activity entry.
type LogEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
}

// ActionLabel turns an entry into a sentence. Unknown action types pass
// through as their raw tag.
func ActionLabel(e *domain.AuditLogEntry) string {
	switch e.ActionType {
	case domain.ActionCreated:
		return "Ticket created"
	case domain.ActionEscalated:
		if reason := deref(e.EscalationReason); reason != "" {
			return "Escalated: " + reason
		}
		return "Ticket escalated"
	case domain.ActionTaken:
		if comment := deref(e.Comment); comment != "" {
			return comment
		}
		return "Action taken"
	case domain.ActionCriticalAssigned:
		return "Critical value assigned: " + deref(e.NewValue)
	case domain.ActionResolved:
		return "Ticket resolved"
	default:
		return string(e.ActionType)
	}
}

// MapLog projects one entry.
func MapLog(e *domain.AuditLogEntry) LogEntry {
	return LogEntry{
		ID:        e.ID,
		Action:    ActionLabel(e),
		Timestamp: e.CreatedAt,
		User:      e.PerformedBy.Username,
	}
}

// MapLogs projects a timeline, preserving order.
func MapLogs(entries []domain.AuditLogEntry) []LogEntry {
	out := make([]LogEntry, 0, len(entries))
	for i := range entries {
		out = append(out, MapLog(&entries[i]))
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
