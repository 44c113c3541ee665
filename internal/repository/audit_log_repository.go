package repository

import (
	"context"

	"github.com/spec-kit/escalation-service/internal/domain"
)

type auditLogRepository struct {
	db DBTX
}

// NewAuditLogRepository builds the Postgres-backed activity log.
func NewAuditLogRepository(db DBTX) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Append(ctx context.Context, entry *domain.AuditLogEntry) error {
	const query = `
        INSERT INTO ticket_logs (id, ticket_id, action_type, previous_value, new_value, comment,
            escalation_reason, performed_by_username, performed_by_email, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.TicketID,
		string(entry.ActionType),
		entry.PreviousValue,
		entry.NewValue,
		entry.Comment,
		entry.EscalationReason,
		entry.PerformedBy.Username,
		entry.PerformedBy.Email,
		entry.CreatedAt,
	)
	return err
}

// ListByTicket orders by created_at and breaks ties with the insertion sequence,
// so entries written in one transaction keep their write order.
func (r *auditLogRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditLogEntry, error) {
	const query = `
        SELECT id, ticket_id, action_type, previous_value, new_value, comment, escalation_reason,
               performed_by_username, performed_by_email, created_at
        FROM ticket_logs WHERE ticket_id=$1 ORDER BY created_at ASC, seq ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.AuditLogEntry{}
	for rows.Next() {
		var (
			entry  domain.AuditLogEntry
			action string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&action,
			&entry.PreviousValue,
			&entry.NewValue,
			&entry.Comment,
			&entry.EscalationReason,
			&entry.PerformedBy.Username,
			&entry.PerformedBy.Email,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.ActionType = domain.ActionType(action)
		result = append(result, entry)
	}
	return result, rows.Err()
}
