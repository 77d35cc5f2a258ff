package flow

import (
	"encoding/json"
	"fmt"
	"leica/domain"
	"leica/domain/state"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
)

// Settings are the business constants the graphs depend on.
type Settings struct {
	SchedulingLeadDays     int
	CancellationWindowDays int
}

func DefaultSettings() Settings {
	return Settings{SchedulingLeadDays: 2, CancellationWindowDays: 1}
}

// Workflows holds one immutable StateMachine per entity kind.
type Workflows struct {
	Settings Settings

	Order           *state.StateMachine
	Assignment      *state.StateMachine
	Professional    *state.StateMachine
	Asset           *state.StateMachine
	Pool            *state.StateMachine
	Customer        *state.StateMachine
	WorkingLocation *state.StateMachine
	Link            *state.StateMachine
}

// New builds every graph, a declaration error panics at startup.
func New(settings Settings) *Workflows {
	return &Workflows{
		Settings:        settings,
		Order:           orderWorkflow(settings),
		Assignment:      assignmentWorkflow(settings),
		Professional:    professionalWorkflow(),
		Asset:           assetWorkflow(),
		Pool:            poolWorkflow(),
		Customer:        customerWorkflow(),
		WorkingLocation: activationWorkflow(domain.KindWorkingLocation),
		Link:            activationWorkflow(domain.KindLink),
	}
}

func (w *Workflows) ByKind(kind string) (*state.StateMachine, bool) {
	switch kind {
	case domain.KindOrder:
		return w.Order, true
	case domain.KindAssignment:
		return w.Assignment, true
	case domain.KindProfessional:
		return w.Professional, true
	case domain.KindAsset:
		return w.Asset, true
	case domain.KindPool:
		return w.Pool, true
	case domain.KindCustomer:
		return w.Customer, true
	case domain.KindWorkingLocation:
		return w.WorkingLocation, true
	case domain.KindLink:
		return w.Link, true
	}
	return nil, false
}

func (w *Workflows) All() []*state.StateMachine {
	return []*state.StateMachine{w.Order, w.Assignment, w.Professional, w.Asset, w.Pool, w.Customer, w.WorkingLocation, w.Link}
}

// PoolMember is an actor resolved to a professional record, required by self assignment.
type PoolMember interface {
	state.Principal
	ProfessionalID() types.ID
	MemberOf(pool types.ID) bool
}

// ProfessionalActor binds a principal to the professional record of the same user.
type ProfessionalActor struct {
	state.Principal
	Professional *domain.Professional
}

func (a *ProfessionalActor) ProfessionalID() types.ID {
	return a.Professional.ID
}

func (a *ProfessionalActor) MemberOf(pool types.ID) bool {
	return a.Professional.InPool(pool)
}

// FieldID reads an entity id, ids are too large for float64 so strings and
// json.Number are the expected forms.
func FieldID(f state.Fields, name string) (types.ID, error) {
	v, found := f[name]
	if !found || v == nil {
		return 0, fmt.Errorf("field %s is missing", name)
	}
	switch value := v.(type) {
	case types.ID:
		return value, nil
	case string:
		return types.ParseID(strings.TrimSpace(value))
	case json.Number:
		return types.ParseID(value.String())
	}
	n, err := f.Int64(name)
	if err != nil {
		return 0, err
	}
	return types.ID(n), nil
}

// FieldAvailability reads a list of time slots.
func FieldAvailability(f state.Fields, name string) (domain.Availability, error) {
	v, found := f[name]
	if !found || v == nil {
		return nil, fmt.Errorf("field %s is missing", name)
	}
	switch value := v.(type) {
	case domain.Availability:
		return value.Clone(), nil
	case []time.Time:
		return domain.Availability(value).Clone(), nil
	case []string:
		items := make([]interface{}, 0, len(value))
		for _, s := range value {
			items = append(items, s)
		}
		v = items
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("field %s is not a list of times", name)
	}
	r := domain.Availability{}
	for idx, item := range items {
		t, err := state.Fields{"slot": item}.Time("slot")
		if err != nil {
			return nil, fmt.Errorf("field %s[%d] is not a RFC 3339 time", name, idx)
		}
		r = append(r, t)
	}
	return r, nil
}
