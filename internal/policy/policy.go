// Package policy decides whether an actor may perform an action on a Month or
// a Note. Decisions are pure: callers resolve the records first and pass them in.
package policy

import (
	"fmt"

	"monthbook/internal/core"
)

type Action string

const (
	ActionList   Action = "list"
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Subject is the closed set of things a decision can be about. Only the types
// in this package implement it.
type Subject interface {
	subject()
}

type (
	// MonthRecord is an existing Month.
	MonthRecord struct{ Month core.Month }

	// NoteRecord is an existing Note with its parent Month already resolved.
	NoteRecord struct {
		Note   core.Note
		Parent core.Month
	}

	// MonthType stands for Months in general, before an instance exists.
	MonthType struct{}

	// NoteType stands for Notes in general, before an instance exists.
	NoteType struct{}
)

func (MonthRecord) subject() {}
func (NoteRecord) subject()  {}
func (MonthType) subject()   {}
func (NoteType) subject()    {}

// CanAccess reports whether actor may perform action on subject.
func CanAccess(actor core.Actor, action Action, subject Subject) bool {
	if !actor.Authenticated() {
		return false
	}
	switch s := subject.(type) {
	case MonthRecord:
		return s.Month.OwnerID == actor.ID
	case NoteRecord:
		return s.Note.MonthID == s.Parent.ID && s.Parent.OwnerID == actor.ID
	case MonthType:
		return action == ActionCreate || action == ActionList
	case NoteType:
		return action == ActionCreate || action == ActionList
	default:
		return false
	}
}

// Authorize is CanAccess reporting denial as an error: ErrUnauthenticated for
// an anonymous actor and ErrAccessDenied otherwise.
func Authorize(actor core.Actor, action Action, subject Subject) error {
	if !actor.Authenticated() {
		return core.ErrUnauthenticated
	}
	if !CanAccess(actor, action, subject) {
		return fmt.Errorf("%s %s: %w", action, describe(subject), core.ErrAccessDenied)
	}
	return nil
}

func describe(s Subject) string {
	switch v := s.(type) {
	case MonthRecord:
		return "month " + v.Month.ID
	case NoteRecord:
		return "note " + v.Note.ID
	case MonthType:
		return "months"
	case NoteType:
		return "notes"
	default:
		return "unknown subject"
	}
}
