package auth

import "github.com/spec-kit/escalation-service/internal/domain"

// The gate is the single source of tier rules. Handlers use it for hints; the
// transition engine re-checks it on every mutation.

// CanEscalate reports whether role may push a ticket at level up one tier.
func CanEscalate(role domain.Role, level domain.Level) bool {
	return (role == domain.RoleL1 && level == domain.LevelOne) ||
		(role == domain.RoleL2 && level == domain.LevelTwo)
}

// CanUpdate reports whether role works the tier the ticket currently sits in.
func CanUpdate(role domain.Role, level domain.Level) bool {
	return level.Valid() && role.Level() == level
}

func CanSetCriticalValue(role domain.Role) bool {
	return role == domain.RoleL2
}

func CanSetResolution(role domain.Role) bool {
	return role == domain.RoleL3
}

// EscalationTarget returns the tier an allowed escalation lands on.
func EscalationTarget(role domain.Role, level domain.Level) (domain.Level, bool) {
	if !CanEscalate(role, level) {
		return 0, false
	}
	return level.Next()
}

// Affordances is the advisory view of what a role may do on a ticket.
type Affordances struct {
	CanEscalate         bool
	EscalateTo          *domain.Level
	CanUpdate           bool
	CanSetCriticalValue bool
	RequiresResolution  bool
	CanResolve          bool
}

// AffordancesFor bundles the gate answers for one (role, level) pair.
func AffordancesFor(role domain.Role, level domain.Level) Affordances {
	a := Affordances{
		CanEscalate: CanEscalate(role, level),
		CanUpdate:   CanUpdate(role, level),
	}
	if target, ok := EscalationTarget(role, level); ok {
		a.EscalateTo = &target
	}
	a.CanSetCriticalValue = a.CanUpdate && CanSetCriticalValue(role)
	a.RequiresResolution = a.CanUpdate && CanSetResolution(role)
	a.CanResolve = a.RequiresResolution
	return a
}
