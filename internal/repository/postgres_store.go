package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type postgresStore struct {
	db DBTX
}

// NewPostgresStore wraps a pool (or an open transaction) in a Store.
func NewPostgresStore(db DBTX) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) Tickets() TicketRepository     { return NewTicketRepository(s.db) }
func (s *postgresStore) AuditLogs() AuditLogRepository { return NewAuditLogRepository(s.db) }
func (s *postgresStore) Users() UserRepository         { return NewUserRepository(s.db) }

// WithinTx commits when fn returns nil and rolls back otherwise, including
// when ctx is cancelled mid-flight. Called on a transactional store it opens
// a savepoint.
func (s *postgresStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&postgresStore{db: tx})
	})
}
