package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/mapper"
	apperrors "github.com/spec-kit/escalation-service/pkg/util/errorutil"
)

func TestCreateDefaultsExpectedCompletion(t *testing.T) {
	f := newFixture(t)
	ticket := f.create(t)

	if ticket.Status != domain.TicketStatusNew || ticket.EscalationLevel != domain.LevelOne {
		t.Fatalf("ticket = %+v", ticket)
	}
	if ticket.Priority != domain.TicketPriorityMedium {
		t.Errorf("Priority = %q, want medium", ticket.Priority)
	}
	if want := ticket.CreatedAt.Add(7 * 24 * time.Hour); !ticket.ExpectedCompletionDate.Equal(want) {
		t.Errorf("ExpectedCompletionDate = %v, want %v", ticket.ExpectedCompletionDate, want)
	}
	if ticket.TicketNumber == "" || ticket.TicketNumber == ticket.ID {
		t.Errorf("TicketNumber = %q", ticket.TicketNumber)
	}

	logs := f.logs(t, ticket.ID)
	if len(logs) != 1 || logs[0].ActionType != domain.ActionCreated {
		t.Fatalf("logs = %+v", logs)
	}
	if logs[0].PerformedBy.Username != "agent.L1" {
		t.Errorf("PerformedBy = %+v", logs[0].PerformedBy)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	past := f.base.Add(-time.Hour)
	tests := []struct {
		name  string
		input CreateTicketInput
	}{
		{"blank title", CreateTicketInput{Title: "  ", Description: "d", Category: "Other"}},
		{"blank description", CreateTicketInput{Title: "t", Description: "", Category: "Other"}},
		{"bad category", CreateTicketInput{Title: "t", Description: "d", Category: "Printers"}},
		{"bad priority", CreateTicketInput{Title: "t", Description: "d", Category: "Other", Priority: "urgent"}},
		{"past completion", CreateTicketInput{Title: "t", Description: "d", Category: "Other", ExpectedCompletionDate: &past}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.CreateTicket(context.Background(), f.users[domain.RoleL1], tt.input)
			assertCode(t, err, apperrors.CodeValidation)
		})
	}

	if _, err := f.service.CreateTicket(context.Background(), nil, tests[0].input); apperrors.CodeOf(err) != apperrors.CodeUnauthorized {
		t.Fatalf("nil actor err = %v", err)
	}
}

func TestEscalateFromTierOne(t *testing.T) {
	f := newFixture(t)
	ticket := f.create(t)

	updated, err := f.service.Escalate(context.Background(), f.users[domain.RoleL1], ticket.ID, EscalateInput{
		Target: domain.LevelTwo,
		Reason: "needs network access",
	})
	if err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if updated.EscalationLevel != domain.LevelTwo {
		t.Fatalf("level = %d, want 2", updated.EscalationLevel)
	}
	if updated.Status != domain.TicketStatusEscalated || mapper.Status(updated.Status) != mapper.DisplayAttending {
		t.Errorf("status = %q", updated.Status)
	}
	if updated.EscalatedBy == nil || updated.EscalatedBy.ID != f.users[domain.RoleL1].ID {
		t.Errorf("EscalatedBy = %+v", updated.EscalatedBy)
	}

	logs := f.logs(t, ticket.ID)
	if len(logs) != 2 {
		t.Fatalf("logs = %d, want 2", len(logs))
	}
	last := logs[1]
	if last.ActionType != domain.ActionEscalated || last.EscalationReason == nil || *last.EscalationReason != "needs network access" {
		t.Fatalf("escalation entry = %+v", last)
	}
}

func TestEscalateRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.create(t)

	_, err := f.service.Escalate(ctx, f.users[domain.RoleL1], ticket.ID, EscalateInput{Reason: "   "})
	assertCode(t, err, apperrors.CodeValidation)

	_, err = f.service.Escalate(ctx, f.users[domain.RoleL2], ticket.ID, EscalateInput{Reason: "mine now"})
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = f.service.Escalate(ctx, f.users[domain.RoleL1], ticket.ID, EscalateInput{Target: domain.LevelThree, Reason: "skip"})
	assertCode(t, err, apperrors.CodeForbidden)

	f.escalate(t, ticket.ID, domain.RoleL1)
	top := f.escalate(t, ticket.ID, domain.RoleL2)
	if top.EscalationLevel != domain.LevelThree {
		t.Fatalf("level = %d, want 3", top.EscalationLevel)
	}

	for _, role := range []domain.Role{domain.RoleL1, domain.RoleL2, domain.RoleL3} {
		_, err := f.engine.Escalate(ctx, ticket.ID, f.users[role], EscalateInput{Reason: "again"})
		assertCode(t, err, apperrors.CodeForbidden)
	}
	if got := len(f.logs(t, ticket.ID)); got != 3 {
		t.Fatalf("logs = %d, want 3", got)
	}
}

func TestEscalateWithAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.create(t)

	_, err := f.service.Escalate(ctx, f.users[domain.RoleL1], ticket.ID, EscalateInput{Reason: "r", AssigneeID: ptr(f.users[domain.RoleL3].ID)})
	assertCode(t, err, apperrors.CodeValidation)

	updated, err := f.service.Escalate(ctx, f.users[domain.RoleL1], ticket.ID, EscalateInput{Reason: "r", AssigneeID: ptr(f.spareL2.ID)})
	if err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if updated.AssignedTo == nil || updated.AssignedTo.Username != "backup.L2" {
		t.Fatalf("AssignedTo = %+v", updated.AssignedTo)
	}
	if view := mapper.MapTicket(updated); view.AssignedTo == nil || *view.AssignedTo != "backup.L2" {
		t.Fatalf("display assignee = %v", view.AssignedTo)
	}
}

func TestUpdateRequiresMatchingTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.create(t)

	_, err := f.service.UpdateAtLevel(ctx, f.users[domain.RoleL2], ticket.ID, UpdateInput{Level: domain.LevelTwo, ActionStatus: "attending"})
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = f.engine.UpdateAtLevel(ctx, ticket.ID, f.users[domain.RoleL2], UpdateInput{Level: domain.LevelTwo, ActionStatus: "attending"})
	assertCode(t, err, apperrors.CodeForbidden)

	after, _ := f.service.GetTicket(ctx, ticket.ID)
	if after.Version != ticket.Version || after.Status != domain.TicketStatusNew {
		t.Fatalf("ticket changed after rejected update: %+v", after)
	}
	if got := len(f.logs(t, ticket.ID)); got != 1 {
		t.Fatalf("logs = %d, want 1", got)
	}
}

func TestTierRoleMatchMatrix(t *testing.T) {
	roles := []domain.Role{domain.RoleL1, domain.RoleL2, domain.RoleL3}
	for _, level := range []domain.Level{domain.LevelOne, domain.LevelTwo, domain.LevelThree} {
		for _, role := range roles {
			f := newFixture(t)
			ticket := f.create(t)
			for l := domain.LevelOne; l < level; l++ {
				escalator, _ := domain.RoleForLevel(l)
				f.escalate(t, ticket.ID, escalator)
			}

			input := UpdateInput{Level: role.Level(), ActionStatus: "attending"}
			if role == domain.RoleL3 {
				input.Resolution = ptr("checked cabling")
			}
			_, err := f.engine.UpdateAtLevel(context.Background(), ticket.ID, f.users[role], input)
			if int(role.Level()) == int(level) {
				if err != nil {
					t.Errorf("role %s at level %d: %v", role, level, err)
				}
			} else if apperrors.CodeOf(err) != apperrors.CodeForbidden {
				t.Errorf("role %s at level %d: err = %v, want forbidden", role, level, err)
			}
		}
	}
}

func TestLevelTwoCriticalValue(t *testing.T) {
	f := newFixture(t)
	ticket := f.create(t)
	f.escalate(t, ticket.ID, domain.RoleL1)
	before := len(f.logs(t, ticket.ID))

	updated, err := f.service.UpdateAtLevel(context.Background(), f.users[domain.RoleL2], ticket.ID, UpdateInput{
		Level:         domain.LevelTwo,
		ActionStatus:  "attending",
		CriticalValue: ptr("C1"),
	})
	if err != nil {
		t.Fatalf("UpdateAtLevel: %v", err)
	}
	if updated.CriticalValue == nil || *updated.CriticalValue != domain.CriticalC1 {
		t.Fatalf("CriticalValue = %v", updated.CriticalValue)
	}
	if mapper.Status(updated.Status) != mapper.DisplayAttending {
		t.Fatalf("display status = %q", mapper.Status(updated.Status))
	}

	logs := f.logs(t, ticket.ID)
	added := logs[before:]
	if len(added) != 2 || added[0].ActionType != domain.ActionTaken || added[1].ActionType != domain.ActionCriticalAssigned {
		t.Fatalf("new entries = %+v", added)
	}
	if mapper.ActionLabel(&added[1]) != "Critical value assigned: C1" {
		t.Fatalf("label = %q", mapper.ActionLabel(&added[1]))
	}
}

func TestCriticalValueOnlyAtTierTwo(t *testing.T) {
	f := newFixture(t)
	ticket := f.create(t)
	_, err := f.engine.UpdateAtLevel(context.Background(), ticket.ID, f.users[domain.RoleL1], UpdateInput{
		Level:         domain.LevelOne,
		CriticalValue: ptr("C2"),
	})
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = f.engine.UpdateAtLevel(context.Background(), ticket.ID, f.users[domain.RoleL1], UpdateInput{
		Level:         domain.LevelOne,
		CriticalValue: ptr("C9"),
	})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestLevelThreeRequiresResolution(t *testing.T) {
	f := newFixture(t)
	ticket := f.create(t)
	f.escalate(t, ticket.ID, domain.RoleL1)
	f.escalate(t, ticket.ID, domain.RoleL2)
	before, _ := f.service.GetTicket(context.Background(), ticket.ID)
	logCount := len(f.logs(t, ticket.ID))

	_, err := f.service.UpdateAtLevel(context.Background(), f.users[domain.RoleL3], ticket.ID, UpdateInput{
		Level:        domain.LevelThree,
		ActionStatus: "completed",
		Resolution:   ptr("   "),
	})
	assertCode(t, err, apperrors.CodeValidation)

	after, _ := f.service.GetTicket(context.Background(), ticket.ID)
	if after.Version != before.Version || len(f.logs(t, ticket.ID)) != logCount {
		t.Fatalf("rejected update mutated ticket")
	}
}

func TestLevelThreeCompletionResolves(t *testing.T) {
	f := newFixture(t)
	ticket := f.create(t)
	f.escalate(t, ticket.ID, domain.RoleL1)
	f.escalate(t, ticket.ID, domain.RoleL2)

	updated, err := f.service.UpdateAtLevel(context.Background(), f.users[domain.RoleL3], ticket.ID, UpdateInput{
		Level:           domain.LevelThree,
		ActionStatus:    "completed",
		Resolution:      ptr("Replaced NIC"),
		ResolutionNotes: ptr("card was faulty"),
	})
	if err != nil {
		t.Fatalf("UpdateAtLevel: %v", err)
	}
	if updated.Status != domain.TicketStatusResolved || mapper.Status(updated.Status) != mapper.DisplayCompleted {
		t.Fatalf("status = %q", updated.Status)
	}
	if updated.ResolvedBy == nil || updated.ResolvedDate == nil || updated.CompletedDate == nil {
		t.Fatalf("resolution metadata missing: %+v", updated)
	}

	resolved := 0
	for _, entry := range f.logs(t, ticket.ID) {
		if entry.ActionType == domain.ActionResolved {
			resolved++
			if entry.NewValue == nil || *entry.NewValue != "Replaced NIC" {
				t.Errorf("resolved entry = %+v", entry)
			}
		}
	}
	if resolved != 1 {
		t.Fatalf("resolved entries = %d, want 1", resolved)
	}

	_, err = f.service.UpdateAtLevel(context.Background(), f.users[domain.RoleL3], ticket.ID, UpdateInput{
		Level:      domain.LevelThree,
		Resolution: ptr("again"),
	})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestLowerTierCompletionIsCompleted(t *testing.T) {
	f := newFixture(t)
	ticket := f.create(t)
	updated, err := f.service.UpdateAtLevel(context.Background(), f.users[domain.RoleL1], ticket.ID, UpdateInput{
		Level:           domain.LevelOne,
		ActionStatus:    "completed",
		ResolutionNotes: ptr("password reset"),
	})
	if err != nil {
		t.Fatalf("UpdateAtLevel: %v", err)
	}
	if updated.Status != domain.TicketStatusCompleted || updated.ResolvedBy != nil {
		t.Fatalf("ticket = %+v", updated)
	}
	logs := f.logs(t, ticket.ID)
	if mapper.ActionLabel(&logs[len(logs)-1]) != "password reset" {
		t.Fatalf("label = %q", mapper.ActionLabel(&logs[len(logs)-1]))
	}

	_, err = f.service.Escalate(context.Background(), f.users[domain.RoleL1], ticket.ID, EscalateInput{Reason: "late"})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.create(t)

	_, err := f.service.Resolve(ctx, f.users[domain.RoleL3], ticket.ID)
	assertCode(t, err, apperrors.CodeForbidden)

	f.escalate(t, ticket.ID, domain.RoleL1)
	f.escalate(t, ticket.ID, domain.RoleL2)

	_, err = f.service.Resolve(ctx, f.users[domain.RoleL3], ticket.ID)
	assertCode(t, err, apperrors.CodeValidation)

	if _, err := f.service.UpdateAtLevel(ctx, f.users[domain.RoleL3], ticket.ID, UpdateInput{
		Level:      domain.LevelThree,
		Resolution: ptr("Patched firmware"),
	}); err != nil {
		t.Fatalf("UpdateAtLevel: %v", err)
	}

	resolved, err := f.service.Resolve(ctx, f.users[domain.RoleL3], ticket.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != domain.TicketStatusResolved {
		t.Fatalf("status = %q", resolved.Status)
	}

	_, err = f.service.Resolve(ctx, f.users[domain.RoleL3], ticket.ID)
	assertCode(t, err, apperrors.CodeValidation)
}

func TestAuditPairingAndMonotonicity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.create(t)

	steps := []func() (*domain.Ticket, error){
		func() (*domain.Ticket, error) {
			return f.service.UpdateAtLevel(ctx, f.users[domain.RoleL1], ticket.ID, UpdateInput{Level: domain.LevelOne, ActionStatus: "attending"})
		},
		func() (*domain.Ticket, error) {
			return f.service.Escalate(ctx, f.users[domain.RoleL1], ticket.ID, EscalateInput{Reason: "hardware"})
		},
		func() (*domain.Ticket, error) {
			return f.service.UpdateAtLevel(ctx, f.users[domain.RoleL2], ticket.ID, UpdateInput{Level: domain.LevelTwo})
		},
		func() (*domain.Ticket, error) {
			return f.service.Escalate(ctx, f.users[domain.RoleL2], ticket.ID, EscalateInput{Reason: "vendor"})
		},
	}

	prev := ticket
	prevLogs := len(f.logs(t, ticket.ID))
	for i, step := range steps {
		updated, err := step()
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if updated.EscalationLevel < prev.EscalationLevel {
			t.Fatalf("step %d: level regressed %d -> %d", i, prev.EscalationLevel, updated.EscalationLevel)
		}
		if !updated.UpdatedAt.After(prev.UpdatedAt) {
			t.Fatalf("step %d: updatedAt did not advance", i)
		}
		logs := f.logs(t, ticket.ID)
		if len(logs) != prevLogs+1 {
			t.Fatalf("step %d: logs %d -> %d, want exactly one more", i, prevLogs, len(logs))
		}
		last := logs[len(logs)-1]
		if last.TicketID != ticket.ID || last.CreatedAt.Before(updated.UpdatedAt) {
			t.Fatalf("step %d: entry %+v not paired with ticket at %v", i, last, updated.UpdatedAt)
		}
		prev, prevLogs = updated, len(logs)
	}
	if got := len(*f.published); got != 5 {
		t.Fatalf("published events = %d, want 5", got)
	}
}

func TestConcurrentMutationsSerialize(t *testing.T) {
	f := newFixture(t)
	ticket := f.create(t)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := f.engine.Escalate(ctx, ticket.ID, f.users[domain.RoleL1], EscalateInput{Reason: "race"}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
		go func() {
			defer wg.Done()
			_, _ = f.engine.UpdateAtLevel(ctx, ticket.ID, f.users[domain.RoleL1], UpdateInput{Level: domain.LevelOne})
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("escalations succeeded = %d, want exactly 1", succeeded)
	}
	final, _ := f.service.GetTicket(ctx, ticket.ID)
	if final.EscalationLevel != domain.LevelTwo {
		t.Fatalf("level = %d, want 2", final.EscalationLevel)
	}
	logs := f.logs(t, ticket.ID)
	if len(logs) != final.Version+1 {
		t.Fatalf("logs = %d, version = %d: every committed mutation must have one entry", len(logs), final.Version)
	}
}

func TestUnknownTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.GetTicket(ctx, "not-a-uuid")
	assertCode(t, err, apperrors.CodeNotFound)
	_, err = f.service.ListLogs(ctx, "1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	assertCode(t, err, apperrors.CodeNotFound)
	_, err = f.engine.Escalate(ctx, "1b4e28ba-2fa1-11d2-883f-0016d3cca427", f.users[domain.RoleL1], EscalateInput{Reason: "x"})
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestCancelledContextLeavesNoPartialMutation(t *testing.T) {
	f := newFixture(t)
	ticket := f.create(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.Escalate(ctx, ticket.ID, f.users[domain.RoleL1], EscalateInput{Reason: "late"})
	if !apperrors.IsRetryable(err) {
		t.Fatalf("err = %v, want retryable", err)
	}
	after, _ := f.service.GetTicket(context.Background(), ticket.ID)
	if after.EscalationLevel != domain.LevelOne || len(f.logs(t, ticket.ID)) != 1 {
		t.Fatalf("cancelled escalation left changes behind")
	}
}

// A matching tier and role is necessary but not sufficient: once a ticket is
// completed or resolved, the tier owner's update is rejected as closed rather
// than forbidden, and nothing is written.
func TestTierMatchOnClosedTicketIsRejectedAsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.create(t)
	if _, err := f.service.UpdateAtLevel(ctx, f.users[domain.RoleL1], ticket.ID, UpdateInput{Level: domain.LevelOne, ActionStatus: "completed"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	closed, _ := f.service.GetTicket(ctx, ticket.ID)
	logCount := len(f.logs(t, ticket.ID))

	_, err := f.service.UpdateAtLevel(ctx, f.users[domain.RoleL1], ticket.ID, UpdateInput{Level: domain.LevelOne, ActionStatus: "attending"})
	assertCode(t, err, apperrors.CodeValidation)
	if details := apperrors.ToDomainError(err).Details; details["field"] != "status" {
		t.Fatalf("details = %v", details)
	}

	_, err = f.service.UpdateAtLevel(ctx, f.users[domain.RoleL2], ticket.ID, UpdateInput{Level: domain.LevelTwo})
	assertCode(t, err, apperrors.CodeForbidden)

	after, _ := f.service.GetTicket(ctx, ticket.ID)
	if after.Version != closed.Version || len(f.logs(t, ticket.ID)) != logCount {
		t.Fatalf("closed ticket was mutated")
	}
}
