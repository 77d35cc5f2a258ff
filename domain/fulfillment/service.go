package fulfillment

import (
	"leica/authority"
	"leica/common"
	"leica/domain"
	"leica/domain/flow"
	"leica/domain/state"

	"github.com/fundwit/go-commons/types"
)

// Service keeps an Order and its Assignments in lockstep. Every public
// operation works on the whole aggregate: the order with all its assignments
// loaded, oldest first. Either every transition of an operation is applied or
// the aggregate is left exactly as it was.
type Service struct {
	Workflows *flow.Workflows
	Clock     common.Clock
	NewID     func() types.ID
}

func NewService(workflows *flow.Workflows, clock common.Clock) *Service {
	return &Service{Workflows: workflows, Clock: clock, NewID: common.NewID}
}

// Fired records one applied transition.
type Fired struct {
	Kind       string   `json:"kind"`
	ID         types.ID `json:"id"`
	Transition string   `json:"transition"`
	From       string   `json:"from"`
	To         string   `json:"to"`
	Actor      string   `json:"actor"`
	Message    string   `json:"message"`
	Cascaded   bool     `json:"cascaded"`
}

// Outcome lists the transitions an operation applied, in order. Assignments
// created by the operation are those with Version 0.
type Outcome struct {
	Order *domain.Order
	Fired []Fired
}

// Touched reports whether the assignment changed during the operation.
func (o *Outcome) Touched(id types.ID) bool {
	for _, f := range o.Fired {
		if f.Kind == domain.KindAssignment && f.ID == id {
			return true
		}
	}
	return false
}

// onBehalf is the principal of cascaded transitions: the original actor id
// with the system role.
type onBehalf struct {
	id string
}

func (o onBehalf) PrincipalID() string {
	return o.id
}

func (o onBehalf) PrincipalRoles() authority.Roles {
	return authority.NewRoles(authority.RoleSystem)
}

// run is the bookkeeping of one operation.
type run struct {
	svc     *Service
	order   *domain.Order
	actor   state.Principal
	system  state.Principal
	outcome *Outcome
}

func (s *Service) atomically(order *domain.Order, actor state.Principal, op func(r *run) error) (*Outcome, error) {
	orderSnapshot := *order
	orderSnapshot.Stateful = order.Stateful.Snapshot()
	orderSnapshot.Availability = order.Availability.Clone()
	assignments := append([]*domain.Assignment(nil), order.Assignments...)
	assignmentSnapshots := make([]domain.Assignment, len(assignments))
	for i, a := range assignments {
		assignmentSnapshots[i] = *a
		assignmentSnapshots[i].Stateful = a.Stateful.Snapshot()
	}

	r := &run{svc: s, order: order, actor: actor, outcome: &Outcome{Order: order}}
	if actor != nil {
		r.system = onBehalf{id: actor.PrincipalID()}
	}
	if err := op(r); err != nil {
		*order = orderSnapshot
		order.Assignments = assignments
		for i, a := range assignments {
			*a = assignmentSnapshots[i]
		}
		return nil, err
	}
	return r.outcome, nil
}

func (r *run) fireOrder(actor state.Principal, name string, fields state.Fields, message string) error {
	from := r.order.State
	err := r.svc.Workflows.Order.Bind(r.order, actor).WithClock(r.svc.Clock.Now).Fire(name, fields, message)
	if err != nil {
		return err
	}
	r.record(domain.KindOrder, r.order.ID, name, from, r.order.State, actor, message)
	return nil
}

func (r *run) fireAssignment(a *domain.Assignment, actor state.Principal, name string, fields state.Fields, message string) error {
	from := a.State
	err := r.svc.Workflows.Assignment.Bind(a, actor).WithClock(r.svc.Clock.Now).Fire(name, fields, message)
	if err != nil {
		return err
	}
	r.record(domain.KindAssignment, a.ID, name, from, a.State, actor, message)
	return nil
}

func (r *run) record(kind string, id types.ID, name, from, to string, actor state.Principal, message string) {
	_, cascaded := actor.(onBehalf)
	r.outcome.Fired = append(r.outcome.Fired, Fired{
		Kind: kind, ID: id, Transition: name, From: from, To: to,
		Actor: actor.PrincipalID(), Message: message, Cascaded: cascaded,
	})
}

// current returns the current assignment or rejects the transition.
func (r *run) current(transition string) (*domain.Assignment, error) {
	a := r.order.CurrentAssignment()
	if a == nil {
		return nil, state.Rejectf(domain.KindOrder, transition, "order %d has no assignment", r.order.ID)
	}
	return a, nil
}

// spawn attaches a new assignment and submits it. The payout is carried over
// from previous when given.
func (r *run) spawn(previous *domain.Assignment, message string) (*domain.Assignment, error) {
	a := &domain.Assignment{
		ID:         r.svc.NewID(),
		CreateTime: r.svc.Clock.Now(),
		Stateful:   domain.Stateful{State: r.svc.Workflows.Assignment.Initial, StateHistory: state.History{}},
	}
	if previous != nil {
		a.Payout = previous.Payout
		a.TravelExpenses = previous.TravelExpenses
	}
	r.order.Attach(a)
	if err := r.fireAssignment(a, r.system, "submit", nil, message); err != nil {
		return nil, err
	}
	return a, nil
}

// ensureCancellable distinguishes an uploaded submission from a state that
// has no cancel transition.
func (r *run) ensureCancellable(transition string) (*domain.Assignment, error) {
	a, err := r.current(transition)
	if err != nil {
		return nil, err
	}
	if a.HasSubmission() {
		return nil, state.Rejectf(domain.KindOrder, transition,
			"assignment %d already has a submission and cannot be cancelled", a.ID)
	}
	if _, found := r.svc.Workflows.Assignment.FindTransition(a.State, "cancel"); !found {
		return nil, state.Rejectf(domain.KindOrder, transition,
			"assignment %d in state %s does not support cancellation", a.ID, a.State)
	}
	return a, nil
}

// retire cancels the current assignment and spawns its replacement.
func (r *run) retire(transition, message string, copyPayout bool) (*domain.Assignment, error) {
	old, err := r.ensureCancellable(transition)
	if err != nil {
		return nil, err
	}
	if err := r.fireAssignment(old, r.system, "cancel", nil, message); err != nil {
		return nil, err
	}
	var previous *domain.Assignment
	if copyPayout {
		previous = old
	}
	return r.spawn(previous, message)
}

func (r *run) scheduledFields(a *domain.Assignment) state.Fields {
	return state.Fields{"scheduled_datetime": a.ScheduledDatetime}
}
