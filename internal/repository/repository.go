package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/escalation-service/internal/domain"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrVersionConflict is returned when an update lost a race on the version column.
	ErrVersionConflict = errors.New("repository: version conflict")
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TicketFilter narrows ticket listings.
type TicketFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Level      *domain.Level
	Limit      int
	Offset     int
}

// StatusLevelCount is one bucket of the dashboard aggregation.
type StatusLevelCount struct {
	Status domain.TicketStatus
	Level  domain.Level
	Count  int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update persists ticket when the stored version equals ticket.Version and
	// bumps ticket.Version on success.
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetForUpdate loads the ticket and holds its row until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Count(ctx context.Context, filter TicketFilter) (int, error)
	CountByStatusAndLevel(ctx context.Context) ([]StatusLevelCount, error)
}

// AuditLogRepository is append-only; there is no update or delete.
type AuditLogRepository interface {
	Append(ctx context.Context, entry *domain.AuditLogEntry) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditLogEntry, error)
}

// UserRepository reads support agents provisioned by the identity provider.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Store groups the repositories behind one unit of work.
type Store interface {
	Tickets() TicketRepository
	AuditLogs() AuditLogRepository
	Users() UserRepository
	// WithinTx runs fn against a transactional Store. Writes made through it
	// become visible together when fn returns nil and are discarded otherwise.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
