// Package detailview models the ticket detail screen's form toggle: a viewer
// opens at most one of the escalate or update forms at a time and always
// returns to viewing.
package detailview

import "fmt"

// State is the screen mode.
type State string

const (
	Viewing        State = "viewing"
	EscalatingForm State = "escalating_form"
	UpdatingForm   State = "updating_form"
)

// Event moves the screen between modes.
type Event string

const (
	OpenEscalate Event = "open_escalate"
	OpenUpdate   Event = "open_update"
	Cancel       Event = "cancel"
	Submitted    Event = "submitted"
)

// Guards are the permission answers that decide which forms may open.
type Guards struct {
	CanEscalate bool
	CanUpdate   bool
}

// ErrInvalidTransition is returned for events the current state does not accept.
type ErrInvalidTransition struct {
	From  State
	Event Event
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("detail view: %s not allowed from %s", e.Event, e.From)
}

// Next computes the state after ev. Forms open only from Viewing and only
// when the guard allows; a form only closes back to Viewing.
func Next(from State, ev Event, g Guards) (State, error) {
	switch from {
	case Viewing:
		switch {
		case ev == OpenEscalate && g.CanEscalate:
			return EscalatingForm, nil
		case ev == OpenUpdate && g.CanUpdate:
			return UpdatingForm, nil
		}
	case EscalatingForm, UpdatingForm:
		if ev == Cancel || ev == Submitted {
			return Viewing, nil
		}
	}
	return from, &ErrInvalidTransition{From: from, Event: ev}
}

// AvailableForms lists the forms a viewer may open from Viewing.
func AvailableForms(g Guards) []State {
	forms := []State{}
	for _, ev := range []Event{OpenEscalate, OpenUpdate} {
		if next, err := Next(Viewing, ev, g); err == nil {
			forms = append(forms, next)
		}
	}
	return forms
}
