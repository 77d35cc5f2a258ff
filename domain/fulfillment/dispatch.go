package fulfillment

import (
	"leica/domain"
	"leica/domain/state"

	"github.com/fundwit/go-commons/types"
)

// cascadedOrderTransitions only follow the named transition of the current
// assignment, they are never fired on the order directly.
var cascadedOrderTransitions = map[string]string{
	"start_qa": "validate_assets",
	"deliver":  "approve",
}

// orderDrivenAssignmentTransitions move the current assignment only together
// with the named order transition.
var orderDrivenAssignmentTransitions = map[string]string{
	"complete":     "accept",
	"refuse":       "refuse",
	"return_to_qa": "require_revision",
}

// FireOrder runs an order transition by name, cascades included.
func (s *Service) FireOrder(order *domain.Order, actor state.Principal, name string, fields state.Fields,
	message string) (*Outcome, error) {
	if leader, found := cascadedOrderTransitions[name]; found {
		return nil, state.Rejectf(domain.KindOrder, name,
			"%s follows the assignment transition %s and cannot be fired on the order", name, leader)
	}
	switch name {
	case "submit":
		return s.Submit(order, actor, message)
	case "assign":
		return s.Assign(order, actor, fields, message)
	case "schedule":
		return s.Schedule(order, actor, fields, message)
	case "reschedule":
		return s.Reschedule(order, actor, fields, message)
	case "remove_schedule":
		return s.RemoveSchedule(order, actor, message)
	case "unassign":
		return s.Unassign(order, actor, message)
	case "reassign":
		return s.Reassign(order, actor, fields, message)
	case "remove_availability":
		return s.RemoveAvailability(order, actor, message)
	case "cancel":
		return s.Cancel(order, actor, message)
	case "refuse":
		return s.Refuse(order, actor, message)
	case "accept":
		return s.Accept(order, actor, message)
	case "require_revision":
		return s.RequireRevision(order, actor, message)
	case "reshoot":
		return s.Reshoot(order, actor, message)
	case "new_shoot":
		return s.NewShoot(order, actor, message)
	case "perm_reject":
		return s.PermReject(order, actor, fields, message)
	}
	return s.atomically(order, actor, func(r *run) error {
		return r.fireOrder(actor, name, fields, message)
	})
}

// FireAssignment runs an assignment transition by name. Transitions of the
// current assignment that affect the order are routed to the order operations.
func (s *Service) FireAssignment(order *domain.Order, assignmentID types.ID, actor state.Principal, name string,
	fields state.Fields, message string) (*Outcome, error) {
	var target *domain.Assignment
	for _, a := range order.Assignments {
		if a.ID == assignmentID {
			target = a
		}
	}
	if target == nil {
		return nil, state.Rejectf(domain.KindAssignment, name, "assignment %d does not belong to order %d",
			assignmentID, order.ID)
	}

	if target == order.CurrentAssignment() {
		switch name {
		case "assign":
			return s.Assign(order, actor, fields, message)
		case "self_assign":
			return s.SelfAssign(order, actor, fields, message)
		case "schedule":
			return s.Schedule(order, actor, fields, message)
		case "reschedule":
			return s.Reschedule(order, actor, fields, message)
		case "remove_schedule":
			return s.RemoveSchedule(order, actor, message)
		case "validate_assets":
			return s.ValidateAssets(order, actor, message)
		case "approve":
			return s.Approve(order, actor, fields, message)
		case "cancel":
			return s.Cancel(order, actor, message)
		case "perm_reject":
			return s.PermReject(order, actor, fields, message)
		}
		if leader, found := orderDrivenAssignmentTransitions[name]; found {
			return nil, state.Rejectf(domain.KindAssignment, name,
				"%s of the current assignment follows the order transition %s", name, leader)
		}
	}
	return s.atomically(order, actor, func(r *run) error {
		return r.fireAssignment(target, actor, name, fields, message)
	})
}

// OrderTransitions lists what actor may run on the order now.
func (s *Service) OrderTransitions(order *domain.Order, actor state.Principal) map[string]state.Transition {
	transitions := s.Workflows.Order.Bind(order, actor).WithClock(s.Clock.Now).Transitions()
	for name := range cascadedOrderTransitions {
		delete(transitions, name)
	}
	return transitions
}

// AssignmentTransitions lists what actor may run on an assignment of order now.
func (s *Service) AssignmentTransitions(order *domain.Order, a *domain.Assignment, actor state.Principal) map[string]state.Transition {
	transitions := s.Workflows.Assignment.Bind(a, actor).WithClock(s.Clock.Now).Transitions()
	if a == order.CurrentAssignment() {
		for name := range orderDrivenAssignmentTransitions {
			delete(transitions, name)
		}
	}
	return transitions
}
