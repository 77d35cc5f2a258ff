package state

import (
	"errors"
	"fmt"
	"leica/bizerror"
	"net/http"
)

// InvalidTransitionError: no edge with that name leaves the current state.
type InvalidTransitionError struct {
	Entity     string
	State      string
	Transition string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: transition %q is not available in state %q", e.Entity, e.Transition, e.State)
}

func (e *InvalidTransitionError) Respond() *bizerror.BizErrorDetail {
	return &bizerror.BizErrorDetail{Status: http.StatusBadRequest, Code: "workflow.invalid_transition", Message: e.Error(),
		Data: map[string]string{"state": e.State, "transition": e.Transition}}
}

// TransitionPermissionError: the actor lacks the group or the check failed.
type TransitionPermissionError struct {
	Entity     string
	Transition string
	Actor      string
}

func (e *TransitionPermissionError) Error() string {
	return fmt.Sprintf("%s: actor %q is not allowed to run transition %q", e.Entity, e.Actor, e.Transition)
}

func (e *TransitionPermissionError) Respond() *bizerror.BizErrorDetail {
	return &bizerror.BizErrorDetail{Status: http.StatusForbidden, Code: "workflow.forbidden", Message: e.Error(),
		Data: map[string]string{"transition": e.Transition}}
}

// TransitionValidationError: a required field or the message is missing.
// Field is empty when the message was missing.
type TransitionValidationError struct {
	Entity     string
	Transition string
	Field      string
	Reason     string
}

func (e *TransitionValidationError) Error() string {
	return fmt.Sprintf("%s: transition %q: %s", e.Entity, e.Transition, e.Reason)
}

func (e *TransitionValidationError) Respond() *bizerror.BizErrorDetail {
	return &bizerror.BizErrorDetail{Status: http.StatusBadRequest, Code: "workflow.validation_failed", Message: e.Error(),
		Data: map[string]string{"transition": e.Transition, "field": e.Field}}
}

// WorkflowTransitionError is raised by effects and orchestrations when a
// structurally valid transition breaks a business rule.
type WorkflowTransitionError struct {
	Entity     string
	Transition string
	Message    string
}

func (e *WorkflowTransitionError) Error() string {
	return e.Message
}

func (e *WorkflowTransitionError) Respond() *bizerror.BizErrorDetail {
	return &bizerror.BizErrorDetail{Status: http.StatusBadRequest, Code: "workflow.transition_rejected", Message: e.Message,
		Data: map[string]string{"entity": e.Entity, "transition": e.Transition}}
}

func Rejectf(entity, transition, format string, args ...interface{}) *WorkflowTransitionError {
	return &WorkflowTransitionError{Entity: entity, Transition: transition, Message: fmt.Sprintf(format, args...)}
}

func IsInvalidTransition(err error) bool {
	var e *InvalidTransitionError
	return errors.As(err, &e)
}

func IsPermissionDenied(err error) bool {
	var e *TransitionPermissionError
	return errors.As(err, &e)
}

func IsValidationFailed(err error) bool {
	var e *TransitionValidationError
	return errors.As(err, &e)
}

func IsRejected(err error) bool {
	var e *WorkflowTransitionError
	return errors.As(err, &e)
}
