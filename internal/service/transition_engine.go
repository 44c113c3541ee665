package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/escalation-service/internal/auth"
	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/events"
	"github.com/spec-kit/escalation-service/internal/persistence"
	"github.com/spec-kit/escalation-service/internal/repository"
	apperrors "github.com/spec-kit/escalation-service/pkg/util/errorutil"
)

const (
	defaultCompletionWindow = 7 * 24 * time.Hour
	defaultLockWait         = 2 * time.Second
)

// TransitionEngine applies every ticket mutation. Each one re-checks the
// permission gate against the stored tier, runs under the ticket's lock, and
// commits the ticket row together with its activity entries.
type TransitionEngine struct {
	store             repository.Store
	locker            persistence.Locker
	dispatcher        events.Dispatcher
	logger            *zap.Logger
	clock             func() time.Time
	defaultCompletion time.Duration
	lockWait          time.Duration
}

// EngineDependencies bundles collaborators for the engine.
type EngineDependencies struct {
	Store             repository.Store
	Locker            persistence.Locker
	Dispatcher        events.Dispatcher
	Logger            *zap.Logger
	Clock             func() time.Time
	DefaultCompletion time.Duration
	LockWait          time.Duration
}

// NewTransitionEngine constructs the engine, filling optional collaborators.
func NewTransitionEngine(deps EngineDependencies) *TransitionEngine {
	e := &TransitionEngine{
		store:             deps.Store,
		locker:            deps.Locker,
		dispatcher:        deps.Dispatcher,
		logger:            deps.Logger,
		clock:             deps.Clock,
		defaultCompletion: deps.DefaultCompletion,
		lockWait:          deps.LockWait,
	}
	if e.locker == nil {
		e.locker = persistence.NewLocalLocker()
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.defaultCompletion <= 0 {
		e.defaultCompletion = defaultCompletionWindow
	}
	if e.lockWait <= 0 {
		e.lockWait = defaultLockWait
	}
	return e
}

// CreateTicketInput is the creation payload.
type CreateTicketInput struct {
	Title                  string
	Description            string
	Category               string
	Priority               string
	ExpectedCompletionDate *time.Time
}

// EscalateInput is the escalation payload. Target is the tier named by the
// caller; zero means "the next tier".
type EscalateInput struct {
	Target     domain.Level
	Reason     string
	AssigneeID *string
}

// UpdateInput is the role-scoped work payload. Level is the tier the caller
// claims to act at and must match both the caller's role and the ticket.
type UpdateInput struct {
	Level           domain.Level
	ActionStatus    string
	ResolutionNotes *string
	CriticalValue   *string
	Resolution      *string
}

// Create opens a ticket at tier 1.
func (e *TransitionEngine) Create(ctx context.Context, actor *domain.User, input CreateTicketInput) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewFieldError("title", "title is required")
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, apperrors.NewFieldError("description", "description is required")
	}
	category, ok := domain.ParseCategory(input.Category)
	if !ok {
		return nil, apperrors.NewFieldError("category", "category must be one of Hardware, Software, Network, Account, Other")
	}
	priority := domain.TicketPriorityMedium
	if strings.TrimSpace(input.Priority) != "" {
		if priority, ok = domain.ParsePriority(input.Priority); !ok {
			return nil, apperrors.NewFieldError("priority", "priority must be one of low, medium, high")
		}
	}

	now := e.now(time.Time{})
	expected := now.Add(e.defaultCompletion)
	if input.ExpectedCompletionDate != nil {
		expected = input.ExpectedCompletionDate.UTC()
		if expected.Before(now) {
			return nil, apperrors.NewFieldError("expectedCompletionDate", "expected completion date cannot be in the past")
		}
	}

	ticket := &domain.Ticket{
		ID:                     uuid.NewString(),
		Title:                  title,
		Description:            description,
		Category:               category,
		Priority:               priority,
		Status:                 domain.TicketStatusNew,
		EscalationLevel:        domain.LevelOne,
		CreatedBy:              actor.Ref(),
		ExpectedCompletionDate: expected,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	entry := &domain.AuditLogEntry{
		ActionType: domain.ActionCreated,
		NewValue:   strPtr(string(ticket.Status)),
	}

	err := e.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return err
		}
		return tx.AuditLogs().Append(ctx, stamp(entry, ticket, actor, now))
	})
	if err != nil {
		return nil, e.translate(err, ticket.ID)
	}

	e.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_number", ticket.TicketNumber),
		zap.String("actor", actor.Username),
	)
	e.publish(ctx, actor, ticket, []events.Event{{
		Type: events.EventTicketCreated,
		Payload: events.TicketCreatedPayload{
			TicketNumber: ticket.TicketNumber,
			Category:     ticket.Category,
			Priority:     ticket.Priority,
		},
	}})
	return ticket, nil
}

// Escalate moves a ticket exactly one tier up.
func (e *TransitionEngine) Escalate(ctx context.Context, ticketID string, actor *domain.User, input EscalateInput) (*domain.Ticket, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, apperrors.NewFieldError("reason", "escalation reason is required")
	}

	return e.mutate(ctx, ticketID, actor, func(tx repository.Store, t *domain.Ticket, now time.Time) (*transition, error) {
		if !auth.CanEscalate(actor.Role, t.EscalationLevel) {
			return nil, errNotAuthorized()
		}
		next, _ := auth.EscalationTarget(actor.Role, t.EscalationLevel)
		if input.Target != 0 && input.Target != next {
			return nil, errNotAuthorized()
		}
		if err := ensureOpen(t); err != nil {
			return nil, err
		}

		var assignee *domain.UserRef
		if input.AssigneeID != nil && strings.TrimSpace(*input.AssigneeID) != "" {
			user, err := tx.Users().GetByID(ctx, strings.TrimSpace(*input.AssigneeID))
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewFieldError("assigneeId", "assignee not found")
			}
			if err != nil {
				return nil, err
			}
			if user.Role.Level() != next {
				return nil, apperrors.NewFieldError("assigneeId", "assignee must work tier "+next.String())
			}
			ref := user.Ref()
			assignee = &ref
		}

		previous := t.EscalationLevel
		escalatedBy := actor.Ref()
		t.EscalationLevel = next
		t.Status = domain.TicketStatusEscalated
		t.EscalatedBy = &escalatedBy
		t.AssignedTo = assignee

		payload := events.TicketEscalatedPayload{FromLevel: previous, ToLevel: next, Reason: reason}
		if assignee != nil {
			payload.AssigneeID = strPtr(assignee.ID)
		}
		return &transition{
			entries: []*domain.AuditLogEntry{{
				ActionType:       domain.ActionEscalated,
				PreviousValue:    strPtr(previous.String()),
				NewValue:         strPtr(next.String()),
				EscalationReason: strPtr(reason),
			}},
			events: []events.Event{{Type: events.EventTicketEscalated, Payload: payload}},
		}, nil
	})
}

// UpdateAtLevel records work done at the ticket's current tier.
func (e *TransitionEngine) UpdateAtLevel(ctx context.Context, ticketID string, actor *domain.User, input UpdateInput) (*domain.Ticket, error) {
	if !input.Level.Valid() {
		return nil, apperrors.NewFieldError("level", "level must be 1, 2 or 3")
	}
	status := domain.ActionStatusAttending
	if strings.TrimSpace(input.ActionStatus) != "" {
		parsed, ok := domain.ParseActionStatus(input.ActionStatus)
		if !ok {
			return nil, apperrors.NewFieldError("action_status", "action_status must be attending or completed")
		}
		status = parsed
	}

	var critical *domain.CriticalValue
	if input.CriticalValue != nil && strings.TrimSpace(*input.CriticalValue) != "" {
		cv, ok := domain.ParseCriticalValue(*input.CriticalValue)
		if !ok {
			return nil, apperrors.NewFieldError("criticalValue", "criticalValue must be C1, C2 or C3")
		}
		critical = &cv
	}

	resolution := ""
	if input.Resolution != nil {
		resolution = strings.TrimSpace(*input.Resolution)
	}
	if input.Level == domain.LevelThree && resolution == "" {
		return nil, apperrors.NewFieldError("resolution", "resolution is required")
	}
	notes := trimmedPtr(input.ResolutionNotes)

	return e.mutate(ctx, ticketID, actor, func(_ repository.Store, t *domain.Ticket, now time.Time) (*transition, error) {
		if actor.Role.Level() != input.Level || !auth.CanUpdate(actor.Role, t.EscalationLevel) {
			return nil, errNotAuthorized()
		}
		if critical != nil && !auth.CanSetCriticalValue(actor.Role) {
			return nil, errNotAuthorized()
		}
		if resolution != "" && !auth.CanSetResolution(actor.Role) {
			return nil, errNotAuthorized()
		}
		if err := ensureOpen(t); err != nil {
			return nil, err
		}

		oldStatus := t.Status
		oldCritical := t.CriticalValue
		if notes != nil {
			t.ResolutionNotes = notes
		}
		if resolution != "" {
			t.Resolution = strPtr(resolution)
		}
		if critical != nil {
			t.CriticalValue = critical
		}

		switch status {
		case domain.ActionStatusAttending:
			t.Status = domain.TicketStatusAttending
		case domain.ActionStatusCompleted:
			t.CompletedDate = &now
			t.Status = domain.TicketStatusCompleted
			if auth.CanSetResolution(actor.Role) {
				markResolved(t, actor, now)
			}
		}

		tr := &transition{
			entries: []*domain.AuditLogEntry{{
				ActionType:    domain.ActionTaken,
				PreviousValue: strPtr(string(oldStatus)),
				NewValue:      strPtr(string(t.Status)),
				Comment:       notes,
			}},
			events: []events.Event{{
				Type: events.EventTicketUpdated,
				Payload: events.TicketUpdatedPayload{
					Level:         t.EscalationLevel,
					OldStatus:     oldStatus,
					NewStatus:     t.Status,
					CriticalValue: critical,
				},
			}},
		}
		if critical != nil {
			tr.entries = append(tr.entries, &domain.AuditLogEntry{
				ActionType:    domain.ActionCriticalAssigned,
				PreviousValue: criticalString(oldCritical),
				NewValue:      strPtr(string(*critical)),
			})
		}
		if t.Status == domain.TicketStatusResolved {
			tr.add(resolvedTransition(t, notes))
		}
		return tr, nil
	})
}

// Resolve closes a tier-3 ticket whose resolution is already recorded.
func (e *TransitionEngine) Resolve(ctx context.Context, ticketID string, actor *domain.User) (*domain.Ticket, error) {
	return e.mutate(ctx, ticketID, actor, func(_ repository.Store, t *domain.Ticket, now time.Time) (*transition, error) {
		if !auth.CanSetResolution(actor.Role) || !auth.CanUpdate(actor.Role, t.EscalationLevel) {
			return nil, errNotAuthorized()
		}
		if t.Status == domain.TicketStatusResolved {
			return nil, apperrors.NewFieldError("status", "ticket is already resolved")
		}
		if t.Resolution == nil || strings.TrimSpace(*t.Resolution) == "" {
			return nil, apperrors.NewFieldError("resolution", "record a resolution before resolving")
		}
		if t.CompletedDate == nil {
			t.CompletedDate = &now
		}
		markResolved(t, actor, now)
		return resolvedTransition(t, nil), nil
	})
}

// transition is what a mutation produced besides the ticket itself.
type transition struct {
	entries []*domain.AuditLogEntry
	events  []events.Event
}

func (tr *transition) add(other *transition) {
	tr.entries = append(tr.entries, other.entries...)
	tr.events = append(tr.events, other.events...)
}

type applyFunc func(tx repository.Store, t *domain.Ticket, now time.Time) (*transition, error)

func (e *TransitionEngine) mutate(ctx context.Context, ticketID string, actor *domain.User, apply applyFunc) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, errTicketNotFound(ticketID)
	}

	lockCtx, cancel := context.WithTimeout(ctx, e.lockWait)
	unlock, err := e.locker.Lock(lockCtx, ticketID)
	cancel()
	if err != nil {
		return nil, e.lockError(ctx, ticketID, err)
	}
	defer unlock()

	var (
		updated *domain.Ticket
		result  *transition
	)
	err = e.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		previousLevel := ticket.EscalationLevel
		now := e.now(ticket.UpdatedAt)

		result, err = apply(tx, ticket, now)
		if err != nil {
			return err
		}
		if ticket.EscalationLevel < previousLevel {
			return apperrors.NewInternalError(errors.New("escalation level regressed"))
		}
		ticket.UpdatedAt = now
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		for _, entry := range result.entries {
			if err := tx.AuditLogs().Append(ctx, stamp(entry, ticket, actor, now)); err != nil {
				return err
			}
		}
		updated = ticket
		return nil
	})
	if err != nil {
		return nil, e.translate(err, ticketID)
	}

	actions := make([]string, 0, len(result.entries))
	for _, entry := range result.entries {
		actions = append(actions, string(entry.ActionType))
	}
	e.logger.Info("ticket transition committed",
		zap.String("ticket_id", updated.ID),
		zap.String("actor", actor.Username),
		zap.String("status", string(updated.Status)),
		zap.Int("level", int(updated.EscalationLevel)),
		zap.Int("version", updated.Version),
		zap.Strings("actions", actions),
	)
	e.publish(ctx, actor, updated, result.events)
	return updated, nil
}

// now returns a UTC timestamp at storage precision that is strictly after prev.
func (e *TransitionEngine) now(prev time.Time) time.Time {
	now := e.clock().UTC().Truncate(time.Microsecond)
	if !prev.IsZero() && !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

func (e *TransitionEngine) lockError(ctx context.Context, ticketID string, err error) error {
	if ctx.Err() != nil {
		return apperrors.NewTransportError(ctx.Err())
	}
	if errors.Is(err, persistence.ErrLockNotAcquired) {
		return apperrors.NewConflict("ticket is being modified, retry shortly", map[string]any{"id": ticketID})
	}
	return apperrors.NewTransportError(err)
}

func (e *TransitionEngine) translate(err error, ticketID string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return errTicketNotFound(ticketID)
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConflict("ticket changed concurrently, reload and retry", map[string]any{"id": ticketID})
	}
	return err
}

func (e *TransitionEngine) publish(ctx context.Context, actor *domain.User, ticket *domain.Ticket, pending []events.Event) {
	if e.dispatcher == nil {
		return
	}
	for _, event := range pending {
		event.ID = uuid.NewString()
		event.TicketID = ticket.ID
		event.Timestamp = ticket.UpdatedAt
		event.Actor = events.Actor{UserID: actor.ID, Username: actor.Username, Role: actor.Role}
		if err := e.dispatcher.Publish(ctx, event); err != nil {
			e.logger.Warn("event handler failed",
				zap.String("event", string(event.Type)),
				zap.String("ticket_id", ticket.ID),
				zap.Error(err),
			)
		}
	}
}

func markResolved(t *domain.Ticket, actor *domain.User, now time.Time) {
	resolvedBy := actor.Ref()
	t.Status = domain.TicketStatusResolved
	t.ResolvedBy = &resolvedBy
	t.ResolvedDate = &now
}

func resolvedTransition(t *domain.Ticket, comment *string) *transition {
	resolution := ""
	if t.Resolution != nil {
		resolution = *t.Resolution
	}
	return &transition{
		entries: []*domain.AuditLogEntry{{
			ActionType: domain.ActionResolved,
			NewValue:   strPtr(resolution),
			Comment:    comment,
		}},
		events: []events.Event{{
			Type:    events.EventTicketResolved,
			Payload: events.TicketResolvedPayload{Resolution: resolution},
		}},
	}
}

// ensureOpen rejects work on tickets that already reached a terminal status.
// Callers run it after the tier-role check, so a matching tier on a closed
// ticket gets VALIDATION_FAILED and a mismatched one still gets FORBIDDEN.
func ensureOpen(t *domain.Ticket) error {
	if t.Status.Terminal() {
		return apperrors.NewValidationError("ticket is closed", map[string]any{
			"field":  "status",
			"status": string(t.Status),
		})
	}
	return nil
}

func stamp(entry *domain.AuditLogEntry, t *domain.Ticket, actor *domain.User, now time.Time) *domain.AuditLogEntry {
	entry.ID = uuid.NewString()
	entry.TicketID = t.ID
	entry.PerformedBy = actor.Snapshot()
	entry.CreatedAt = now
	return entry
}

func errNotAuthorized() error {
	return apperrors.NewForbidden("not authorized for this action")
}

func errTicketNotFound(id string) error {
	return apperrors.NewNotFound("ticket", map[string]any{"id": id})
}

func strPtr(s string) *string {
	return &s
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func criticalString(cv *domain.CriticalValue) *string {
	if cv == nil {
		return nil
	}
	return strPtr(string(*cv))
}
