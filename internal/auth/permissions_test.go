package auth

import (
	"testing"

	"github.com/spec-kit/escalation-service/internal/domain"
)

var (
	allRoles  = []domain.Role{domain.RoleL1, domain.RoleL2, domain.RoleL3}
	allLevels = []domain.Level{domain.LevelOne, domain.LevelTwo, domain.LevelThree}
)

func TestCanEscalate(t *testing.T) {
	for _, role := range allRoles {
		for _, level := range allLevels {
			want := (role == domain.RoleL1 && level == 1) || (role == domain.RoleL2 && level == 2)
			if got := CanEscalate(role, level); got != want {
				t.Errorf("CanEscalate(%s, %d) = %v, want %v", role, level, got, want)
			}
		}
	}
}

func TestNoRoleEscalatesLevelThree(t *testing.T) {
	for _, role := range allRoles {
		if CanEscalate(role, domain.LevelThree) {
			t.Errorf("CanEscalate(%s, 3) = true", role)
		}
		if _, ok := EscalationTarget(role, domain.LevelThree); ok {
			t.Errorf("EscalationTarget(%s, 3) returned a target", role)
		}
	}
}

func TestCanUpdateOnlyMatchingTier(t *testing.T) {
	for _, role := range allRoles {
		for _, level := range allLevels {
			want := int(role.Level()) == int(level)
			if got := CanUpdate(role, level); got != want {
				t.Errorf("CanUpdate(%s, %d) = %v, want %v", role, level, got, want)
			}
		}
	}
	if CanUpdate(domain.Role("ADMIN"), 0) {
		t.Errorf("unknown role must not match an invalid level")
	}
}

func TestFieldGates(t *testing.T) {
	for _, role := range allRoles {
		if got := CanSetCriticalValue(role); got != (role == domain.RoleL2) {
			t.Errorf("CanSetCriticalValue(%s) = %v", role, got)
		}
		if got := CanSetResolution(role); got != (role == domain.RoleL3) {
			t.Errorf("CanSetResolution(%s) = %v", role, got)
		}
	}
}

func TestEscalationTargetIsOneStep(t *testing.T) {
	target, ok := EscalationTarget(domain.RoleL1, domain.LevelOne)
	if !ok || target != domain.LevelTwo {
		t.Fatalf("EscalationTarget(L1, 1) = %d, %v", target, ok)
	}
	target, ok = EscalationTarget(domain.RoleL2, domain.LevelTwo)
	if !ok || target != domain.LevelThree {
		t.Fatalf("EscalationTarget(L2, 2) = %d, %v", target, ok)
	}
}

func TestAffordancesFor(t *testing.T) {
	a := AffordancesFor(domain.RoleL2, domain.LevelTwo)
	if !a.CanEscalate || !a.CanUpdate || !a.CanSetCriticalValue || a.RequiresResolution {
		t.Fatalf("L2 at tier 2: %+v", a)
	}
	if a.EscalateTo == nil || *a.EscalateTo != domain.LevelThree {
		t.Fatalf("EscalateTo = %v", a.EscalateTo)
	}

	a = AffordancesFor(domain.RoleL2, domain.LevelOne)
	if a.CanUpdate || a.CanSetCriticalValue || a.CanEscalate {
		t.Fatalf("L2 at tier 1 should be read-only: %+v", a)
	}

	a = AffordancesFor(domain.RoleL3, domain.LevelThree)
	if !a.RequiresResolution || !a.CanResolve || a.CanEscalate || a.EscalateTo != nil {
		t.Fatalf("L3 at tier 3: %+v", a)
	}
}
