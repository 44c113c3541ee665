package dto

import (
	"time"

	"github.com/spec-kit/escalation-service/internal/auth"
	"github.com/spec-kit/escalation-service/internal/detailview"
	"github.com/spec-kit/escalation-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title                  string     `json:"title"`
	Description            string     `json:"description"`
	Category               string     `json:"category"`
	Priority               string     `json:"priority"`
	ExpectedCompletionDate *time.Time `json:"expectedCompletionDate"`
}

// UpdateTicketRequest is the union of the per-tier update payloads. Fields a
// tier may not set are rejected by the engine, not silently dropped.
type UpdateTicketRequest struct {
	ActionStatus    string  `json:"action_status"`
	ResolutionNotes *string `json:"resolutionNotes"`
	CriticalValue   *string `json:"criticalValue"`
	Resolution      *string `json:"resolution"`
}

// EscalateRequest payload.
type EscalateRequest struct {
	Reason     string  `json:"reason"`
	AssigneeID *string `json:"assigneeId"`
}

// UserRefResponse is an embedded user reference.
type UserRefResponse struct {
	ID       string      `json:"_id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     domain.Role `json:"role"`
}

// TicketResponse mirrors the stored ticket.
type TicketResponse struct {
	ID                     string                `json:"_id"`
	TicketNumber           string                `json:"ticketNumber"`
	Title                  string                `json:"title"`
	Description            string                `json:"description"`
	Category               domain.TicketCategory `json:"category"`
	Priority               domain.TicketPriority `json:"priority"`
	Status                 domain.TicketStatus   `json:"status"`
	CurrentLevel           domain.Role           `json:"currentLevel"`
	EscalationLevel        domain.Level          `json:"escalationLevel"`
	CriticalValue          *domain.CriticalValue `json:"criticalValue,omitempty"`
	Resolution             *string               `json:"resolution,omitempty"`
	ResolutionNotes        *string               `json:"resolutionNotes,omitempty"`
	CreatedBy              UserRefResponse       `json:"createdBy"`
	AssignedTo             *UserRefResponse      `json:"assignedTo,omitempty"`
	EscalatedBy            *UserRefResponse      `json:"escalatedBy,omitempty"`
	ResolvedBy             *UserRefResponse      `json:"resolvedBy,omitempty"`
	ExpectedCompletionDate time.Time             `json:"expectedCompletionDate"`
	CompletedDate          *time.Time            `json:"completedDate,omitempty"`
	ResolvedDate           *time.Time            `json:"resolvedDate,omitempty"`
	Version                int                   `json:"version"`
	CreatedAt              time.Time             `json:"createdAt"`
	UpdatedAt              time.Time             `json:"updatedAt"`
}

// PerformedByResponse is the actor snapshot on a log entry.
type PerformedByResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// TicketLogResponse is one activity entry.
type TicketLogResponse struct {
	ID               string              `json:"_id"`
	TicketID         string              `json:"ticketId"`
	ActionType       domain.ActionType   `json:"actionType"`
	PreviousValue    *string             `json:"previousValue,omitempty"`
	NewValue         *string             `json:"newValue,omitempty"`
	Comment          *string             `json:"comment,omitempty"`
	EscalationReason *string             `json:"escalationReason,omitempty"`
	PerformedBy      PerformedByResponse `json:"performedBy"`
	CreatedAt        time.Time           `json:"createdAt"`
}

// PermissionsResponse tells a client which actions to offer.
type PermissionsResponse struct {
	CanEscalate         bool               `json:"canEscalate"`
	EscalateTo          *string            `json:"escalateTo,omitempty"`
	CanUpdate           bool               `json:"canUpdate"`
	CanSetCriticalValue bool               `json:"canSetCriticalValue"`
	RequiresResolution  bool               `json:"requiresResolution"`
	CanResolve          bool               `json:"canResolve"`
	Forms               []detailview.State `json:"forms"`
}

// NewTicketResponse converts a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	level, _ := domain.RoleForLevel(t.EscalationLevel)
	return TicketResponse{
		ID:                     t.ID,
		TicketNumber:           t.TicketNumber,
		Title:                  t.Title,
		Description:            t.Description,
		Category:               t.Category,
		Priority:               t.Priority,
		Status:                 t.Status,
		CurrentLevel:           level,
		EscalationLevel:        t.EscalationLevel,
		CriticalValue:          t.CriticalValue,
		Resolution:             t.Resolution,
		ResolutionNotes:        t.ResolutionNotes,
		CreatedBy:              userRef(t.CreatedBy),
		AssignedTo:             optionalRef(t.AssignedTo),
		EscalatedBy:            optionalRef(t.EscalatedBy),
		ResolvedBy:             optionalRef(t.ResolvedBy),
		ExpectedCompletionDate: t.ExpectedCompletionDate,
		CompletedDate:          t.CompletedDate,
		ResolvedDate:           t.ResolvedDate,
		Version:                t.Version,
		CreatedAt:              t.CreatedAt,
		UpdatedAt:              t.UpdatedAt,
	}
}

// NewTicketResponses converts a slice, preserving order.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewTicketLogResponses converts a timeline, preserving order.
func NewTicketLogResponses(entries []domain.AuditLogEntry) []TicketLogResponse {
	out := make([]TicketLogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, TicketLogResponse{
			ID:               e.ID,
			TicketID:         e.TicketID,
			ActionType:       e.ActionType,
			PreviousValue:    e.PreviousValue,
			NewValue:         e.NewValue,
			Comment:          e.Comment,
			EscalationReason: e.EscalationReason,
			PerformedBy:      PerformedByResponse{Username: e.PerformedBy.Username, Email: e.PerformedBy.Email},
			CreatedAt:        e.CreatedAt,
		})
	}
	return out
}

// NewPermissionsResponse flattens the gate's advisory answers.
func NewPermissionsResponse(a auth.Affordances, forms []detailview.State) PermissionsResponse {
	resp := PermissionsResponse{
		CanEscalate:         a.CanEscalate,
		CanUpdate:           a.CanUpdate,
		CanSetCriticalValue: a.CanSetCriticalValue,
		RequiresResolution:  a.RequiresResolution,
		CanResolve:          a.CanResolve,
		Forms:               forms,
	}
	if a.EscalateTo != nil {
		target := a.EscalateTo.String()
		resp.EscalateTo = &target
	}
	return resp
}

func userRef(r domain.UserRef) UserRefResponse {
	return UserRefResponse{ID: r.ID, Username: r.Username, Email: r.Email, Role: r.Role}
}

func optionalRef(r *domain.UserRef) *UserRefResponse {
	if r == nil {
		return nil
	}
	ref := userRef(*r)
	return &ref
}
