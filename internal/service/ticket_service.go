package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/escalation-service/internal/auth"
	"github.com/spec-kit/escalation-service/internal/detailview"
	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/mapper"
	"github.com/spec-kit/escalation-service/internal/pagination"
	"github.com/spec-kit/escalation-service/internal/repository"
	apperrors "github.com/spec-kit/escalation-service/pkg/util/errorutil"
)

// TicketService is the boundary the HTTP layer calls. Reads go straight to
// the store; mutations are pre-checked against the gate and handed to the
// transition engine, which checks again under lock.
type TicketService struct {
	store        repository.Store
	engine       *TransitionEngine
	defaultLimit int
	maxLimit     int
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store            repository.Store
	Engine           *TransitionEngine
	DefaultPageLimit int
	MaxPageLimit     int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		store:        deps.Store,
		engine:       deps.Engine,
		defaultLimit: deps.DefaultPageLimit,
		maxLimit:     deps.MaxPageLimit,
	}
	if s.defaultLimit <= 0 {
		s.defaultLimit = 10
	}
	if s.maxLimit <= 0 {
		s.maxLimit = 100
	}
	return s
}

// ListQuery carries raw listing parameters as received.
type ListQuery struct {
	Page     string
	Limit    string
	Status   string
	Priority string
	Level    string
}

// TicketPage is one page of tickets with its metadata.
type TicketPage struct {
	Tickets     []domain.Ticket
	Meta        pagination.Meta
	PageNumbers []pagination.PageItem
}

// ListTickets pages through tickets, newest first.
func (s *TicketService) ListTickets(ctx context.Context, q ListQuery) (*TicketPage, error) {
	params, err := pagination.ParseParams(q.Page, q.Limit, s.defaultLimit, s.maxLimit)
	if err != nil {
		return nil, err
	}
	filter, err := parseFilter(q)
	if err != nil {
		return nil, err
	}

	total, err := s.store.Tickets().Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	meta, err := pagination.New(params.Page, params.Limit, total)
	if err != nil {
		return nil, err
	}

	filter.Limit = meta.ItemsPerPage
	filter.Offset = meta.Offset()
	tickets, err := s.store.Tickets().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &TicketPage{
		Tickets:     tickets,
		Meta:        meta,
		PageNumbers: pagination.PageNumbers(meta.CurrentPage, meta.TotalPages),
	}, nil
}

func parseFilter(q ListQuery) (repository.TicketFilter, error) {
	var filter repository.TicketFilter
	if raw := strings.TrimSpace(q.Status); raw != "" {
		display, ok := mapper.ParseDisplayStatus(raw)
		if !ok {
			return filter, apperrors.NewFieldError("status", "status must be New, Attending or Completed")
		}
		filter.Statuses = mapper.PersistedStatuses(display)
	}
	if raw := strings.TrimSpace(q.Priority); raw != "" {
		priority, ok := domain.ParsePriority(raw)
		if !ok {
			return filter, apperrors.NewFieldError("priority", "priority must be low, medium or high")
		}
		filter.Priorities = []domain.TicketPriority{priority}
	}
	if raw := strings.TrimSpace(q.Level); raw != "" {
		level, ok := domain.ParseLevel(raw)
		if !ok {
			return filter, apperrors.NewFieldError("level", "level must be 1, 2 or 3")
		}
		filter.Level = &level
	}
	return filter, nil
}

// GetTicket loads one ticket.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errTicketNotFound(id)
	}
	ticket, err := s.store.Tickets().GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errTicketNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// ListLogs returns the ticket's activity timeline, oldest first.
func (s *TicketService) ListLogs(ctx context.Context, id string) ([]domain.AuditLogEntry, error) {
	if _, err := s.GetTicket(ctx, id); err != nil {
		return nil, err
	}
	return s.store.AuditLogs().ListByTicket(ctx, id)
}

// TicketPermissions is the advisory answer for one actor on one ticket.
type TicketPermissions struct {
	Affordances auth.Affordances
	Forms       []detailview.State
}

// Permissions tells a UI which actions to offer. The engine never relies on it.
func (s *TicketService) Permissions(ctx context.Context, actor *domain.User, id string) (*TicketPermissions, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticket, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	a := auth.AffordancesFor(actor.Role, ticket.EscalationLevel)
	if ticket.Status.Terminal() {
		a = auth.Affordances{}
	}
	return &TicketPermissions{
		Affordances: a,
		Forms:       detailview.AvailableForms(detailview.Guards{CanEscalate: a.CanEscalate, CanUpdate: a.CanUpdate}),
	}, nil
}

// TicketStats are the dashboard counters.
type TicketStats struct {
	Total     int            `json:"total"`
	New       int            `json:"new"`
	Attending int            `json:"attending"`
	Completed int            `json:"completed"`
	Escalated int            `json:"escalated"`
	ByLevel   map[string]int `json:"byLevel"`
}

// Stats counts tickets by display status; escalated counts anything above tier 1.
func (s *TicketService) Stats(ctx context.Context) (*TicketStats, error) {
	buckets, err := s.store.Tickets().CountByStatusAndLevel(ctx)
	if err != nil {
		return nil, err
	}
	stats := &TicketStats{ByLevel: map[string]int{}}
	for _, level := range []domain.Level{domain.LevelOne, domain.LevelTwo, domain.LevelThree} {
		stats.ByLevel[mapper.Level(level)] = 0
	}
	for _, b := range buckets {
		stats.Total += b.Count
		switch mapper.Status(b.Status) {
		case mapper.DisplayNew:
			stats.New += b.Count
		case mapper.DisplayAttending:
			stats.Attending += b.Count
		case mapper.DisplayCompleted:
			stats.Completed += b.Count
		}
		if b.Level > domain.LevelOne {
			stats.Escalated += b.Count
		}
		stats.ByLevel[mapper.Level(b.Level)] += b.Count
	}
	return stats, nil
}

// CreateTicket opens a ticket on behalf of actor.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input CreateTicketInput) (*domain.Ticket, error) {
	return s.engine.Create(ctx, actor, input)
}

// Escalate pushes the ticket to the next tier.
func (s *TicketService) Escalate(ctx context.Context, actor *domain.User, id string, input EscalateInput) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.precheck(ctx, id, func(t *domain.Ticket) bool {
		return auth.CanEscalate(actor.Role, t.EscalationLevel)
	}); err != nil {
		return nil, err
	}
	return s.engine.Escalate(ctx, id, actor, input)
}

// UpdateAtLevel records work at the ticket's tier.
func (s *TicketService) UpdateAtLevel(ctx context.Context, actor *domain.User, id string, input UpdateInput) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.precheck(ctx, id, func(t *domain.Ticket) bool {
		return actor.Role.Level() == input.Level && auth.CanUpdate(actor.Role, t.EscalationLevel)
	}); err != nil {
		return nil, err
	}
	return s.engine.UpdateAtLevel(ctx, id, actor, input)
}

// Resolve closes a tier-3 ticket.
func (s *TicketService) Resolve(ctx context.Context, actor *domain.User, id string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.precheck(ctx, id, func(t *domain.Ticket) bool {
		return auth.CanSetResolution(actor.Role) && auth.CanUpdate(actor.Role, t.EscalationLevel)
	}); err != nil {
		return nil, err
	}
	return s.engine.Resolve(ctx, id, actor)
}

func requireActor(actor *domain.User) error {
	if actor == nil || !actor.Role.Valid() {
		return apperrors.NewUnauthorized("actor required")
	}
	return nil
}

// precheck answers 404/403 without taking the ticket lock.
func (s *TicketService) precheck(ctx context.Context, id string, allowed func(*domain.Ticket) bool) error {
	ticket, err := s.GetTicket(ctx, id)
	if err != nil {
		return err
	}
	if !allowed(ticket) {
		return errNotAuthorized()
	}
	return nil
}
