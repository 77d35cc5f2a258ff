package state

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Transition is one edge of a StateMachine.
type Transition struct {
	Name            string   `json:"name"`
	Title           string   `json:"title"`
	From            string   `json:"from"`
	To              string   `json:"to"`
	Permission      string   `json:"permission"`
	RequiredFields  []string `json:"requiredFields"`
	OptionalFields  []string `json:"optionalFields"`
	RequiresMessage bool     `json:"requiresMessage"`
	Effect          Effect   `json:"-"`
}

// Effect runs after all guards passed and before the state changes. Returning
// an error aborts the transition, see Reject for business rule failures.
type Effect func(c *TransitionContext) error

type TransitionContext struct {
	Entity     string
	Transition *Transition
	Document   Document
	Actor      Principal
	Fields     Fields
	Message    string
	Now        time.Time
}

// Reject aborts the transition with a business rule message.
func (c *TransitionContext) Reject(format string, args ...interface{}) error {
	return &WorkflowTransitionError{Entity: c.Entity, Transition: c.Transition.Name, Message: fmt.Sprintf(format, args...)}
}

// Invalid reports a submitted field that is present but unusable.
func (c *TransitionContext) Invalid(field string, err error) error {
	return &TransitionValidationError{Entity: c.Entity, Transition: c.Transition.Name, Field: field,
		Reason: err.Error()}
}

// Fields is the data submitted with a transition.
type Fields map[string]interface{}

// Has reports whether name is present with a non empty value.
func (f Fields) Has(name string) bool {
	v, found := f[name]
	return found && !isEmpty(v)
}

// Present reports whether name was submitted at all, empty values included.
func (f Fields) Present(name string) bool {
	_, found := f[name]
	return found
}

func (f Fields) String(name string) string {
	v, found := f[name]
	if !found || v == nil {
		return ""
	}
	switch value := v.(type) {
	case string:
		return strings.TrimSpace(value)
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprintf("%v", value)
	}
}

// Int64 accepts integer kinds, whole floats (json numbers), json.Number and numeric strings.
func (f Fields) Int64(name string) (int64, error) {
	v, found := f[name]
	if !found || v == nil {
		return 0, fmt.Errorf("field %s is missing", name)
	}
	switch value := v.(type) {
	case json.Number:
		return value.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	case float32:
		return floatToInt(name, float64(value))
	case float64:
		return floatToInt(name, value)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), nil
	}
	return 0, fmt.Errorf("field %s is not a number: %v", name, v)
}

// Float64 accepts numbers, json.Number and numeric strings.
func (f Fields) Float64(name string) (float64, error) {
	v, found := f[name]
	if !found || v == nil {
		return 0, fmt.Errorf("field %s is missing", name)
	}
	switch value := v.(type) {
	case json.Number:
		return value.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(value), 64)
	case float32:
		return float64(value), nil
	case float64:
		return value, nil
	}
	n, err := f.Int64(name)
	return float64(n), err
}

// Time accepts time.Time, *time.Time and RFC 3339 strings. The result is in UTC.
func (f Fields) Time(name string) (time.Time, error) {
	v, found := f[name]
	if !found || v == nil {
		return time.Time{}, fmt.Errorf("field %s is missing", name)
	}
	switch value := v.(type) {
	case time.Time:
		return value.UTC(), nil
	case *time.Time:
		if value == nil {
			return time.Time{}, fmt.Errorf("field %s is missing", name)
		}
		return value.UTC(), nil
	case string:
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
		if err != nil {
			return time.Time{}, fmt.Errorf("field %s is not a RFC 3339 time: %w", name, err)
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("field %s is not a time: %v", name, v)
}

func floatToInt(name string, v float64) (int64, error) {
	if v != float64(int64(v)) {
		return 0, fmt.Errorf("field %s is not an integer: %v", name, v)
	}
	return int64(v), nil
}

func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}
