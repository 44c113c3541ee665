package domain

import "time"

// Role is the support tier a user works in.
type Role string

const (
	RoleL1 Role = "L1"
	RoleL2 Role = "L2"
	RoleL3 Role = "L3"
)

// Level maps a role onto the tier it serves; unknown roles map to 0.
func (r Role) Level() Level {
	switch r {
	case RoleL1:
		return LevelOne
	case RoleL2:
		return LevelTwo
	case RoleL3:
		return LevelThree
	}
	return 0
}

func (r Role) Valid() bool {
	return r.Level() != 0
}

// RoleForLevel is the inverse of Role.Level.
func RoleForLevel(l Level) (Role, bool) {
	switch l {
	case LevelOne:
		return RoleL1, true
	case LevelTwo:
		return RoleL2, true
	case LevelThree:
		return RoleL3, true
	}
	return "", false
}

// User is a support agent. Accounts are provisioned outside this service.
type User struct {
	ID        string
	Username  string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// Ref returns the reference stored on tickets.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

// Snapshot captures identity at the time of an action.
func (u *User) Snapshot() ActorSnapshot {
	return ActorSnapshot{Username: u.Username, Email: u.Email}
}

// UserRef is a role-bearing reference to a user as stored on a ticket.
type UserRef struct {
	ID       string
	Username string
	Email    string
	Role     Role
}
