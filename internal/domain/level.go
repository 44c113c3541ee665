package domain

import (
	"fmt"
	"strings"
)

// Level is a support tier. Tickets start at LevelOne and only move upward.
type Level int

const (
	LevelOne   Level = 1
	LevelTwo   Level = 2
	LevelThree Level = 3
)

func (l Level) Valid() bool {
	return l >= LevelOne && l <= LevelThree
}

// Next returns the tier above l; ok is false at the top tier.
func (l Level) Next() (Level, bool) {
	if !l.Valid() || l == LevelThree {
		return l, false
	}
	return l + 1, true
}

func (l Level) String() string {
	return fmt.Sprintf("L%d", int(l))
}

// ParseLevel accepts "1".."3" and "L1".."L3".
func ParseLevel(raw string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "1", "L1":
		return LevelOne, true
	case "2", "L2":
		return LevelTwo, true
	case "3", "L3":
		return LevelThree, true
	}
	return 0, false
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
func upper(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
