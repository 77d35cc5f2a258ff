package state

import (
	"errors"
	"time"
)

// Workflow is a StateMachine bound to one document and one actor.
type Workflow struct {
	machine  *StateMachine
	document Document
	actor    Principal
	now      func() time.Time
}

// WithClock replaces the time source used for checks, effects and history dates.
func (w *Workflow) WithClock(now func() time.Time) *Workflow {
	w.now = now
	return w
}

func (w *Workflow) Document() Document {
	return w.document
}

func (w *Workflow) Actor() Principal {
	return w.actor
}

// State is the document's current state.
func (w *Workflow) State() State {
	s, _ := w.machine.FindState(w.document.CurrentState())
	return s
}

// Transitions returns the transitions leaving the current state that the
// actor is allowed to run right now, keyed by name.
func (w *Workflow) Transitions() map[string]Transition {
	now := w.now()
	current := w.document.CurrentState()
	r := map[string]Transition{}
	for _, t := range w.machine.transitions {
		if t.From != current {
			continue
		}
		if w.permitted(t, now) {
			r[t.Name] = *t
		}
	}
	return r
}

// Can reports whether name is among Transitions.
func (w *Workflow) Can(name string) bool {
	t, found := w.machine.FindTransition(w.document.CurrentState(), name)
	return found && w.permitted(t, w.now())
}

// Fire runs the transition name from the current state. The document's state
// and history are only touched after every guard and the effect succeeded.
func (w *Workflow) Fire(name string, fields Fields, message string) error {
	source := w.document.CurrentState()
	t, found := w.machine.FindTransition(source, name)
	if !found {
		return &InvalidTransitionError{Entity: w.machine.Entity, State: source, Transition: name}
	}

	now := w.now().UTC()
	if !w.permitted(t, now) {
		return &TransitionPermissionError{Entity: w.machine.Entity, Transition: name, Actor: principalID(w.actor)}
	}
	if t.RequiresMessage && isEmpty(message) {
		return &TransitionValidationError{Entity: w.machine.Entity, Transition: name, Reason: "message is required"}
	}
	if fields == nil {
		fields = Fields{}
	}
	for _, field := range t.RequiredFields {
		if !fields.Has(field) {
			return &TransitionValidationError{Entity: w.machine.Entity, Transition: name, Field: field,
				Reason: "field " + field + " is required"}
		}
	}

	if t.Effect != nil {
		ctx := &TransitionContext{Entity: w.machine.Entity, Transition: t, Document: w.document, Actor: w.actor, Fields: fields, Message: message, Now: now}
		if err := t.Effect(ctx); err != nil {
			var rejected *WorkflowTransitionError
			if errors.As(err, &rejected) && rejected.Entity == "" {
				rejected.Entity = w.machine.Entity
			}
			return err
		}
	}

	w.document.SetCurrentState(t.To)
	w.document.AppendHistory(HistoryEntry{
		Date:       now,
		From:       source,
		To:         t.To,
		Transition: t.Name,
		Actor:      principalID(w.actor),
		Message:    message,
	})
	return nil
}

func (w *Workflow) permitted(t *Transition, now time.Time) bool {
	p, found := w.machine.permissions[t.Permission]
	return found && p.Evaluate(w.actor, w.document, now)
}

func principalID(p Principal) string {
	if p == nil {
		return ""
	}
	return p.PrincipalID()
}
