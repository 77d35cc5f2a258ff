package fulfillment

import (
	"leica/domain"
	"leica/domain/flow"
	"leica/domain/state"
)

// Submit receives the order and opens its first assignment.
func (s *Service) Submit(order *domain.Order, actor state.Principal, message string) (*Outcome, error) {
	return s.atomically(order, actor, func(r *run) error {
		if err := r.fireOrder(actor, "submit", nil, message); err != nil {
			return err
		}
		_, err := r.spawn(nil, message)
		return err
	})
}

// Assign gives the current assignment a professional, a received order follows to assigned.
func (s *Service) Assign(order *domain.Order, actor state.Principal, fields state.Fields, message string) (*Outcome, error) {
	return s.atomically(order, actor, func(r *run) error {
		a, err := r.current("assign")
		if err != nil {
			return err
		}
		if err := r.fireAssignment(a, actor, "assign", fields, message); err != nil {
			return err
		}
		return r.followAssign(message)
	})
}

// SelfAssign lets a pool member take a published assignment and schedule it at once.
func (s *Service) SelfAssign(order *domain.Order, actor state.Principal, fields state.Fields, message string) (*Outcome, error) {
	return s.atomically(order, actor, func(r *run) error {
		a, err := r.current("self_assign")
		if err != nil {
			return err
		}
		if err := r.fireAssignment(a, actor, "self_assign", fields, message); err != nil {
			return err
		}
		if err := r.followAssign(message); err != nil {
			return err
		}
		return r.fireOrder(r.system, "schedule", r.scheduledFields(a), message)
	})
}

func (r *run) followAssign(message string) error {
	if r.order.State != flow.OrderReceived {
		return nil
	}
	return r.fireOrder(r.system, "assign", nil, message)
}

// Schedule, Reschedule and RemoveSchedule keep the order's shoot time in line
// with the current assignment.
func (s *Service) Schedule(order *domain.Order, actor state.Principal, fields state.Fields, message string) (*Outcome, error) {
	return s.scheduling(order, actor, "schedule", flow.OrderAssigned, fields, message)
}

func (s *Service) Reschedule(order *domain.Order, actor state.Principal, fields state.Fields, message string) (*Outcome, error) {
	return s.scheduling(order, actor, "reschedule", flow.OrderScheduled, fields, message)
}

func (s *Service) RemoveSchedule(order *domain.Order, actor state.Principal, message string) (*Outcome, error) {
	return s.scheduling(order, actor, "remove_schedule", flow.OrderScheduled, nil, message)
}

func (s *Service) scheduling(order *domain.Order, actor state.Principal, transition, orderState string,
	fields state.Fields, message string) (*Outcome, error) {
	return s.atomically(order, actor, func(r *run) error {
		a, err := r.current(transition)
		if err != nil {
			return err
		}
		if err := r.fireAssignment(a, actor, transition, fields, message); err != nil {
			return err
		}
		if r.order.State != orderState {
			return nil
		}
		var orderFields state.Fields
		if a.ScheduledDatetime != nil {
			orderFields = r.scheduledFields(a)
		}
		return r.fireOrder(r.system, transition, orderFields, message)
	})
}

// ValidateAssets moves the assignment to QA, a scheduled order starts QA with it.
func (s *Service) ValidateAssets(order *domain.Order, actor state.Principal, message string) (*Outcome, error) {
	return s.atomically(order, actor, func(r *run) error {
		a, err := r.current("validate_assets")
		if err != nil {
			return err
		}
		if err := r.fireAssignment(a, actor, "validate_assets", nil, message); err != nil {
			return err
		}
		if r.order.State != flow.OrderScheduled {
			return nil
		}
		return r.fireOrder(r.system, "start_qa", nil, message)
	})
}

// Approve approves the current assignment and delivers an order in QA.
func (s *Service) Approve(order *domain.Order, actor state.Principal, fields state.Fields, message string) (*Outcome, error) {
	return s.atomically(order, actor, func(r *run) error {
		a, err := r.current("approve")
		if err != nil {
			return err
		}
		if err := r.fireAssignment(a, actor, "approve", fields, message); err != nil {
			return err
		}
		if r.order.State != flow.OrderInQA {
			return nil
		}
		return r.fireOrder(r.system, "deliver", nil, message)
	})
}

// Unassign cancels the current assignment and opens a new one with the same payout.
func (s *Service) Unassign(order *domain.Order, actor state.Principal, message string) (*Outcome, error) {
	return s.atomically(order, actor, func(r *run) error {
		if err := r.fireOrder(actor, "unassign", nil, message); err != nil {
			return err
		}
		_, err := r.retire("unassign", message, true)
		return err
	})
}

// Reassign replaces the current assignment by one assigned to another professional.
func (s *Service) Reassign(order *domain.Order, actor state.Principal, fields state.Fields, message string) (*Outcome, error) {
	return s.atomically(order, actor, func(r *run) error {
		if err := r.fireOrder(actor, "reassign", fields, message); err != nil {
			return err
		}
		a, err := r.retire("reassign", message, false)
		if err != nil {
			return err
		}
		return r.fireAssignment(a, r.system, "assign", fields, message)
	})
}

// RemoveAvailability clears the customer's slots. An arranged shoot is
// dropped: the current assignment is replaced.
func (s *Service) RemoveAvailability(order *domain.Order, actor state.Principal, message string) (*Outcome, error) {
	return s.atomically(order, actor, func(r *run) error {
		from := r.order.State
		if err := r.fireOrder(actor, "remove_availability", nil, message); err != nil {
			return err
		}
		if from != flow.OrderAssigned && from != flow.OrderScheduled {
			return nil
		}
		_, err := r.retire("remove_availability", message, true)
		return err
	})
}

// Cancel cancels the order and its current assignment.
func (s *Service) Cancel(order *domain.Order, actor state.Principal, message string) (*Outcome, error) {
	return s.atomically(order, actor, func(r *run) error {
		var a *domain.Assignment
		if r.order.CurrentAssignment() != nil {
			var err error
			if a, err = r.ensureCancellable("cancel"); err != nil {
				return err
			}
		}
		if err := r.fireOrder(actor, "cancel", nil, message); err != nil {
			return err
		}
		if a == nil {
			return nil
		}
		return r.fireAssignment(a, r.system, "cancel", nil, message)
	})
}

// Refuse, Accept and RequireRevision delegate to the current assignment.
func (s *Service) Refuse(order *domain.Order, actor state.Principal, message string) (*Outcome, error) {
	return s.delegate(order, actor, "refuse", "refuse", message)
}

func (s *Service) Accept(order *domain.Order, actor state.Principal, message string) (*Outcome, error) {
	return s.delegate(order, actor, "accept", "complete", message)
}

func (s *Service) RequireRevision(order *domain.Order, actor state.Principal, message string) (*Outcome, error) {
	return s.delegate(order, actor, "require_revision", "return_to_qa", message)
}

func (s *Service) delegate(order *domain.Order, actor state.Principal, orderTransition, assignmentTransition,
	message string) (*Outcome, error) {
	return s.atomically(order, actor, func(r *run) error {
		if err := r.fireOrder(actor, orderTransition, nil, message); err != nil {
			return err
		}
		a, err := r.current(orderTransition)
		if err != nil {
			return err
		}
		return r.fireAssignment(a, r.system, assignmentTransition, nil, message)
	})
}

// Reshoot completes the current assignment and assigns a new one to the same
// professional for the same payout.
func (s *Service) Reshoot(order *domain.Order, actor state.Principal, message string) (*Outcome, error) {
	return s.atomically(order, actor, func(r *run) error {
		if err := r.fireOrder(actor, "reshoot", nil, message); err != nil {
			return err
		}
		old, err := r.complete("reshoot", message)
		if err != nil {
			return err
		}
		a, err := r.spawn(old, message)
		if err != nil {
			return err
		}
		return r.fireAssignment(a, r.system, "assign", state.Fields{
			"professional_id":      old.ProfessionalID,
			"professional_user_id": old.ProfessionalUserID,
			"payout_value":         old.Payout.Value,
			"payout_currency":      old.Payout.Currency,
			"travel_expenses":      old.TravelExpenses,
		}, message)
	})
}

// NewShoot completes the current assignment and opens an unassigned one with the same payout.
func (s *Service) NewShoot(order *domain.Order, actor state.Principal, message string) (*Outcome, error) {
	return s.atomically(order, actor, func(r *run) error {
		if err := r.fireOrder(actor, "new_shoot", nil, message); err != nil {
			return err
		}
		old, err := r.complete("new_shoot", message)
		if err != nil {
			return err
		}
		_, err = r.spawn(old, message)
		return err
	})
}

func (r *run) complete(transition, message string) (*domain.Assignment, error) {
	old, err := r.current(transition)
	if err != nil {
		return nil, err
	}
	if _, found := r.svc.Workflows.Assignment.FindTransition(old.State, "complete"); !found {
		return nil, state.Rejectf(domain.KindOrder, transition,
			"assignment %d in state %s cannot be completed", old.ID, old.State)
	}
	return old, r.fireAssignment(old, r.system, "complete", nil, message)
}

// PermReject rejects the current assignment for good, the order goes back to
// received with a fresh assignment without payout.
func (s *Service) PermReject(order *domain.Order, actor state.Principal, fields state.Fields, message string) (*Outcome, error) {
	return s.atomically(order, actor, func(r *run) error {
		if err := r.fireOrder(actor, "perm_reject", fields, message); err != nil {
			return err
		}
		a, err := r.current("perm_reject")
		if err != nil {
			return err
		}
		if err := r.fireAssignment(a, actor, "perm_reject", fields, message); err != nil {
			return err
		}
		_, err = r.spawn(nil, message)
		return err
	})
}
