package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/spec-kit/escalation-service/internal/domain"
)

// MemoryStore keeps everything in process. It backs local development when no
// POSTGRES_DSN is configured, and the service tests.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memoryState
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

type memoryState struct {
	tickets map[string]*domain.Ticket
	logs    []domain.AuditLogEntry
	users   map[string]*domain.User
	seq     int
}

func newMemoryState() *memoryState {
	return &memoryState{
		tickets: make(map[string]*domain.Ticket),
		users:   make(map[string]*domain.User),
	}
}

func (st *memoryState) clone() *memoryState {
	out := &memoryState{
		tickets: make(map[string]*domain.Ticket, len(st.tickets)),
		logs:    make([]domain.AuditLogEntry, len(st.logs), len(st.logs)+4),
		users:   make(map[string]*domain.User, len(st.users)),
		seq:     st.seq,
	}
	for id, t := range st.tickets {
		out.tickets[id] = t.Clone()
	}
	copy(out.logs, st.logs)
	for id, u := range st.users {
		cp := *u
		out.users[id] = &cp
	}
	return out
}

// memoryAccess hides whether a repository runs against the committed state
// (taking the store lock) or against a transaction's staged copy.
type memoryAccess interface {
	read(fn func(st *memoryState) error) error
	write(ctx context.Context, fn func(st *memoryState) error) error
}

func (s *MemoryStore) Tickets() TicketRepository     { return memoryTickets{s} }
func (s *MemoryStore) AuditLogs() AuditLogRepository { return memoryAuditLogs{s} }
func (s *MemoryStore) Users() UserRepository         { return memoryUsers{s} }

// WithinTx holds the store lock for the duration of fn and swaps in the staged
// state only when fn succeeds and ctx is still live.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if err := fn(&memoryTx{st: staged}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = staged
	return nil
}

func (s *MemoryStore) read(fn func(st *memoryState) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

func (s *MemoryStore) write(ctx context.Context, fn func(st *memoryState) error) error {
	return s.WithinTx(ctx, func(tx Store) error {
		return fn(tx.(*memoryTx).st)
	})
}

type memoryTx struct {
	st *memoryState
}

func (t *memoryTx) Tickets() TicketRepository     { return memoryTickets{t} }
func (t *memoryTx) AuditLogs() AuditLogRepository { return memoryAuditLogs{t} }
func (t *memoryTx) Users() UserRepository         { return memoryUsers{t} }

func (t *memoryTx) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	nested := t.st.clone()
	if err := fn(&memoryTx{st: nested}); err != nil {
		return err
	}
	*t.st = *nested
	return nil
}

func (t *memoryTx) read(fn func(st *memoryState) error) error { return fn(t.st) }

func (t *memoryTx) write(_ context.Context, fn func(st *memoryState) error) error {
	return fn(t.st)
}

type memoryTickets struct {
	access memoryAccess
}

func (r memoryTickets) Create(ctx context.Context, ticket *domain.Ticket) error {
	return r.access.write(ctx, func(st *memoryState) error {
		if _, exists := st.tickets[ticket.ID]; exists {
			return fmt.Errorf("ticket %s already exists", ticket.ID)
		}
		st.seq++
		ticket.TicketNumber = fmt.Sprintf("TKT-%06d", st.seq)
		st.tickets[ticket.ID] = ticket.Clone()
		return nil
	})
}

func (r memoryTickets) Update(ctx context.Context, ticket *domain.Ticket) error {
	return r.access.write(ctx, func(st *memoryState) error {
		current, ok := st.tickets[ticket.ID]
		if !ok {
			return ErrNotFound
		}
		if current.Version != ticket.Version {
			return ErrVersionConflict
		}
		ticket.Version++
		st.tickets[ticket.ID] = ticket.Clone()
		return nil
	})
}

func (r memoryTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.access.read(func(st *memoryState) error {
		t, ok := st.tickets[id]
		if !ok {
			return ErrNotFound
		}
		out = t.Clone()
		return nil
	})
	return out, err
}

func (r memoryTickets) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r memoryTickets) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	err := r.access.read(func(st *memoryState) error {
		matched := matchTickets(st, filter)
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		limit := filter.Limit
		if limit <= 0 {
			limit = 10
		}
		for i := offset; i < len(matched) && i < offset+limit; i++ {
			result = append(result, *matched[i].Clone())
		}
		return nil
	})
	return result, err
}

func (r memoryTickets) Count(_ context.Context, filter TicketFilter) (int, error) {
	var total int
	err := r.access.read(func(st *memoryState) error {
		total = len(matchTickets(st, filter))
		return nil
	})
	return total, err
}

func (r memoryTickets) CountByStatusAndLevel(_ context.Context) ([]StatusLevelCount, error) {
	var result []StatusLevelCount
	err := r.access.read(func(st *memoryState) error {
		buckets := map[StatusLevelCount]int{}
		for _, t := range st.tickets {
			buckets[StatusLevelCount{Status: t.Status, Level: t.EscalationLevel}]++
		}
		for key, n := range buckets {
			key.Count = n
			result = append(result, key)
		}
		return nil
	})
	return result, err
}

func matchTickets(st *memoryState, filter TicketFilter) []*domain.Ticket {
	statuses := make(map[domain.TicketStatus]bool, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses[s] = true
	}
	priorities := make(map[domain.TicketPriority]bool, len(filter.Priorities))
	for _, p := range filter.Priorities {
		priorities[p] = true
	}

	var matched []*domain.Ticket
	for _, t := range st.tickets {
		if len(statuses) > 0 && !statuses[t.Status] {
			continue
		}
		if len(priorities) > 0 && !priorities[t.Priority] {
			continue
		}
		if filter.Level != nil && t.EscalationLevel != *filter.Level {
			continue
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return ticketNumberAfter(matched[i].TicketNumber, matched[j].TicketNumber)
	})
	return matched
}

// ticketNumberAfter orders TKT-nnnnnn numbers numerically. The padding is a
// minimum width, so a longer number is always the later one.
func ticketNumberAfter(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}

type memoryAuditLogs struct {
	access memoryAccess
}

func (r memoryAuditLogs) Append(ctx context.Context, entry *domain.AuditLogEntry) error {
	return r.access.write(ctx, func(st *memoryState) error {
		if _, ok := st.tickets[entry.TicketID]; !ok {
			return fmt.Errorf("append log: ticket %s: %w", entry.TicketID, ErrNotFound)
		}
		st.logs = append(st.logs, *entry)
		return nil
	})
}

func (r memoryAuditLogs) ListByTicket(_ context.Context, ticketID string) ([]domain.AuditLogEntry, error) {
	result := []domain.AuditLogEntry{}
	err := r.access.read(func(st *memoryState) error {
		for _, entry := range st.logs {
			if entry.TicketID == ticketID {
				result = append(result, entry)
			}
		}
		return nil
	})
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, err
}

type memoryUsers struct {
	access memoryAccess
}

func (r memoryUsers) Create(ctx context.Context, user *domain.User) error {
	return r.access.write(ctx, func(st *memoryState) error {
		if _, exists := st.users[user.ID]; exists {
			return nil
		}
		cp := *user
		st.users[user.ID] = &cp
		return nil
	})
}

func (r memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	var out *domain.User
	err := r.access.read(func(st *memoryState) error {
		u, ok := st.users[id]
		if !ok {
			return ErrNotFound
		}
		cp := *u
		out = &cp
		return nil
	})
	return out, err
}
