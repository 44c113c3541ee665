package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/events"
	"github.com/spec-kit/escalation-service/internal/repository"
	apperrors "github.com/spec-kit/escalation-service/pkg/util/errorutil"
)

type fixture struct {
	store      *repository.MemoryStore
	engine     *TransitionEngine
	service    *TicketService
	dispatcher events.Dispatcher
	published  *[]events.EventType
	clockMu    *sync.Mutex
	base       time.Time
	users      map[domain.Role]*domain.User
	spareL2    *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	base := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	var (
		mu   sync.Mutex
		tick int
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}

	dispatcher := events.NewInMemoryDispatcher()
	published := []events.EventType{}
	var pubMu sync.Mutex
	for _, et := range events.AllEventTypes {
		dispatcher.Subscribe(et, func(_ context.Context, ev events.Event) error {
			pubMu.Lock()
			defer pubMu.Unlock()
			published = append(published, ev.Type)
			return nil
		})
	}

	engine := NewTransitionEngine(EngineDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Clock:      clock,
	})
	f := &fixture{
		store:      store,
		engine:     engine,
		service:    NewTicketService(TicketDependencies{Store: store, Engine: engine}),
		dispatcher: dispatcher,
		published:  &published,
		clockMu:    &mu,
		base:       base,
		users:      map[domain.Role]*domain.User{},
	}
	for _, role := range []domain.Role{domain.RoleL1, domain.RoleL2, domain.RoleL3} {
		f.users[role] = f.addUser(t, "agent."+string(role), role)
	}
	f.spareL2 = f.addUser(t, "backup.L2", domain.RoleL2)
	return f
}

func (f *fixture) addUser(t *testing.T, username string, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:       uuid.NewString(),
		Username: username,
		Email:    username + "@example.com",
		Role:     role,
	}
	if err := f.store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func (f *fixture) create(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket, err := f.service.CreateTicket(context.Background(), f.users[domain.RoleL1], CreateTicketInput{
		Title:       "Laptop cannot reach VPN",
		Description: "Tunnel drops after login",
		Category:    "Network",
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	return ticket
}

func (f *fixture) escalate(t *testing.T, id string, role domain.Role) *domain.Ticket {
	t.Helper()
	ticket, err := f.service.Escalate(context.Background(), f.users[role], id, EscalateInput{Reason: "beyond tier " + string(role)})
	if err != nil {
		t.Fatalf("Escalate(%s): %v", role, err)
	}
	return ticket
}

func (f *fixture) logs(t *testing.T, id string) []domain.AuditLogEntry {
	t.Helper()
	logs, err := f.service.ListLogs(context.Background(), id)
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	return logs
}

func ptr(s string) *string { return &s }

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if got := apperrors.CodeOf(err); got != code {
		t.Fatalf("error code = %q (%v), want %q", got, err, code)
	}
}
