package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/escalation-service/internal/domain"
)

const ticketColumns = `
        t.id, t.ticket_number, t.title, t.description, t.category, t.priority, t.status,
        t.escalation_level, t.critical_value, t.resolution, t.resolution_notes,
        t.expected_completion_date, t.completed_date, t.resolved_date, t.version,
        t.created_at, t.updated_at,
        cb.id, cb.username, cb.email, cb.role,
        at.id, at.username, at.email, at.role,
        eb.id, eb.username, eb.email, eb.role,
        rb.id, rb.username, rb.email, rb.role`

const ticketJoins = `
        FROM tickets t
        JOIN users cb ON cb.id = t.created_by_id
        LEFT JOIN users at ON at.id = t.assigned_to_id
        LEFT JOIN users eb ON eb.id = t.escalated_by_id
        LEFT JOIN users rb ON rb.id = t.resolved_by_id`

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates a Postgres-backed repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, title, description, category, priority, status, escalation_level,
            critical_value, resolution, resolution_notes, created_by_id, assigned_to_id,
            expected_completion_date, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        RETURNING ticket_number`
	return r.db.QueryRow(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		string(ticket.Category),
		string(ticket.Priority),
		string(ticket.Status),
		int(ticket.EscalationLevel),
		criticalText(ticket.CriticalValue),
		ticket.Resolution,
		ticket.ResolutionNotes,
		ticket.CreatedBy.ID,
		refID(ticket.AssignedTo),
		ticket.ExpectedCompletionDate,
		ticket.Version,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	).Scan(&ticket.TicketNumber)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, escalation_level=$2, critical_value=$3, resolution=$4,
            resolution_notes=$5, assigned_to_id=$6, escalated_by_id=$7, resolved_by_id=$8,
            completed_date=$9, resolved_date=$10, updated_at=$11, version=version+1
        WHERE id=$12 AND version=$13`
	cmd, err := r.db.Exec(ctx, query,
		string(ticket.Status),
		int(ticket.EscalationLevel),
		criticalText(ticket.CriticalValue),
		ticket.Resolution,
		ticket.ResolutionNotes,
		refID(ticket.AssignedTo),
		refID(ticket.EscalatedBy),
		refID(ticket.ResolvedBy),
		ticket.CompletedDate,
		ticket.ResolvedDate,
		ticket.UpdatedAt,
		ticket.ID,
		ticket.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, ticket.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	ticket.Version++
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ticketJoins + ` WHERE t.id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ticketJoins + ` WHERE t.id=$1 FOR UPDATE OF t`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args := filterClauses(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY t.created_at DESC, length(t.ticket_number) DESC, t.ticket_number DESC LIMIT %d OFFSET %d`,
		ticketColumns, ticketJoins, where, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) Count(ctx context.Context, filter TicketFilter) (int, error) {
	where, args := filterClauses(filter)
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets t WHERE `+where, args...).Scan(&total)
	return total, err
}

func (r *ticketRepository) CountByStatusAndLevel(ctx context.Context) ([]StatusLevelCount, error) {
	const query = `
        SELECT status, escalation_level, COUNT(*)
        FROM tickets GROUP BY status, escalation_level`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []StatusLevelCount
	for rows.Next() {
		var (
			bucket StatusLevelCount
			status string
			level  int
		)
		if err := rows.Scan(&status, &level, &bucket.Count); err != nil {
			return nil, err
		}
		bucket.Status = domain.TicketStatus(status)
		bucket.Level = domain.Level(level)
		result = append(result, bucket)
	}
	return result, rows.Err()
}

func filterClauses(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, string(status))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, string(pr))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Level != nil {
		args = append(args, int(*filter.Level))
		clauses = append(clauses, fmt.Sprintf("t.escalation_level=$%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

type refColumns struct {
	id, username, email, role *string
}

func (c refColumns) ref() *domain.UserRef {
	if c.id == nil {
		return nil
	}
	ref := domain.UserRef{ID: *c.id}
	if c.username != nil {
		ref.Username = *c.username
	}
	if c.email != nil {
		ref.Email = *c.email
	}
	if c.role != nil {
		ref.Role = domain.Role(*c.role)
	}
	return &ref
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket                     domain.Ticket
		category, priority, status string
		level                      int
		critical                   *string
	)
	var createdBy, assignedTo, escalatedBy, resolvedBy refColumns
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.Title,
		&ticket.Description,
		&category,
		&priority,
		&status,
		&level,
		&critical,
		&ticket.Resolution,
		&ticket.ResolutionNotes,
		&ticket.ExpectedCompletionDate,
		&ticket.CompletedDate,
		&ticket.ResolvedDate,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&createdBy.id, &createdBy.username, &createdBy.email, &createdBy.role,
		&assignedTo.id, &assignedTo.username, &assignedTo.email, &assignedTo.role,
		&escalatedBy.id, &escalatedBy.username, &escalatedBy.email, &escalatedBy.role,
		&resolvedBy.id, &resolvedBy.username, &resolvedBy.email, &resolvedBy.role,
	); err != nil {
		return nil, err
	}

	ticket.Category = domain.TicketCategory(category)
	ticket.Priority = domain.TicketPriority(priority)
	ticket.Status = domain.TicketStatus(status)
	ticket.EscalationLevel = domain.Level(level)
	if critical != nil {
		cv := domain.CriticalValue(*critical)
		ticket.CriticalValue = &cv
	}
	if ref := createdBy.ref(); ref != nil {
		ticket.CreatedBy = *ref
	}
	ticket.AssignedTo = assignedTo.ref()
	ticket.EscalatedBy = escalatedBy.ref()
	ticket.ResolvedBy = resolvedBy.ref()
	return &ticket, nil
}

func refID(ref *domain.UserRef) *string {
	if ref == nil {
		return nil
	}
	id := ref.ID
	return &id
}

func criticalText(cv *domain.CriticalValue) *string {
	if cv == nil {
		return nil
	}
	s := string(*cv)
	return &s
}
