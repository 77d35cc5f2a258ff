package flow

import (
	"leica/authority"
	"leica/domain"
	"leica/domain/state"
	"time"
)

// Order states.
const (
	OrderCreated   = "created"
	OrderReceived  = "received"
	OrderAssigned  = "assigned"
	OrderScheduled = "scheduled"
	OrderInQA      = "in_qa"
	OrderDelivered = "delivered"
	OrderRefused   = "refused"
	OrderAccepted  = "accepted"
	OrderCancelled = "cancelled"
)

func orderWorkflow(settings Settings) *state.StateMachine {
	roles := state.Roles
	return state.NewBuilder(domain.KindOrder, OrderCreated,
		state.State{Name: OrderCreated, Title: "Created", Description: "Order created, not yet submitted"},
		state.State{Name: OrderReceived, Title: "Received", Description: "Order waiting for a professional"},
		state.State{Name: OrderAssigned, Title: "Assigned", Description: "A professional is assigned"},
		state.State{Name: OrderScheduled, Title: "Scheduled", Description: "The shoot is scheduled"},
		state.State{Name: OrderInQA, Title: "In QA", Description: "Assets are under quality assurance"},
		state.State{Name: OrderDelivered, Title: "Delivered", Description: "Assets delivered to the customer"},
		state.State{Name: OrderRefused, Title: "Refused", Description: "Customer refused the delivery"},
		state.State{Name: OrderAccepted, Title: "Accepted", Description: "Customer accepted the delivery"},
		state.State{Name: OrderCancelled, Title: "Cancelled", Description: "Order cancelled"},
	).
		Permission("can_submit", roles(authority.RoleOwner, authority.RoleProjectManager, authority.RoleSystem), nil).
		Permission("can_assign", roles(authority.RoleSystem, authority.RoleScout, authority.RoleProjectManager), nil).
		Permission("can_schedule", roles(authority.RoleSystem, authority.RoleProjectManager, authority.RoleScout, authority.RoleProfessional), nil).
		Permission("can_unassign", roles(authority.RoleProjectManager, authority.RoleScout), nil).
		Permission("can_edit_availability", roles(authority.RoleOwner, authority.RoleProjectManager), nil).
		Permission("can_start_qa", roles(authority.RoleSystem), nil).
		Permission("can_deliver", roles(authority.RoleSystem, authority.RoleQA), nil).
		Permission("can_reshoot", roles(authority.RoleProjectManager, authority.RoleQA), nil).
		Permission("can_perm_reject", roles(authority.RoleQA, authority.RoleProjectManager), nil).
		Permission("can_accept", roles(authority.RoleOwner, authority.RoleProjectManager, authority.RoleSystem), nil).
		Permission("can_refuse", roles(authority.RoleOwner, authority.RoleProjectManager), nil).
		Permission("can_require_revision", roles(authority.RoleProjectManager), nil).
		Permission("can_cancel", roles(authority.RoleOwner, authority.RoleProjectManager, authority.RoleBriefy, authority.RoleSystem),
			cancellable(settings)).
		Permission("can_edit_location", roles(authority.RoleOwner, authority.RoleProjectManager), nil).
		Permission("can_edit_requirements", roles(authority.RoleProjectManager), nil).
		Permission("can_edit_delivery", roles(authority.RoleProjectManager, authority.RoleQA), nil).
		Transition(state.Transition{Name: "submit", Title: "Submit", To: OrderReceived, Permission: "can_submit"},
			OrderCreated).
		Transition(state.Transition{Name: "assign", Title: "Assign", To: OrderAssigned, Permission: "can_assign"},
			OrderReceived).
		Transition(state.Transition{Name: "schedule", Title: "Schedule", To: OrderScheduled, Permission: "can_schedule",
			RequiredFields: []string{"scheduled_datetime"}, Effect: setOrderSchedule}, OrderAssigned).
		Transition(state.Transition{Name: "reschedule", Title: "Reschedule", To: OrderScheduled, Permission: "can_schedule",
			RequiredFields: []string{"scheduled_datetime"}, Effect: setOrderSchedule}, OrderScheduled).
		Transition(state.Transition{Name: "remove_schedule", Title: "Remove schedule", To: OrderAssigned, Permission: "can_schedule",
			Effect: clearOrderSchedule}, OrderScheduled).
		Transition(state.Transition{Name: "unassign", Title: "Unassign", To: OrderReceived, Permission: "can_unassign",
			RequiresMessage: true, Effect: clearOrderSchedule}, OrderAssigned, OrderScheduled).
		Transition(state.Transition{Name: "reassign", Title: "Reassign", To: OrderAssigned, Permission: "can_unassign",
			RequiredFields: []string{"professional_id", "payout_value", "payout_currency", "travel_expenses"},
			Effect:         clearOrderSchedule}, OrderAssigned, OrderScheduled).
		Transition(state.Transition{Name: "remove_availability", Title: "Remove availability", To: OrderReceived,
			Permission: "can_edit_availability", Effect: clearAvailability}, OrderReceived, OrderAssigned, OrderScheduled).
		Transition(state.Transition{Name: "set_availability", Title: "Set availability", Permission: "can_edit_availability",
			RequiredFields: []string{"availability"}, Effect: setAvailability}, OrderReceived).
		Transition(state.Transition{Name: "start_qa", Title: "Start QA", To: OrderInQA, Permission: "can_start_qa"},
			OrderScheduled).
		Transition(state.Transition{Name: "deliver", Title: "Deliver", To: OrderDelivered, Permission: "can_deliver",
			Effect: markDelivered}, OrderInQA).
		Transition(state.Transition{Name: "reshoot", Title: "Reshoot", To: OrderAssigned, Permission: "can_reshoot",
			RequiresMessage: true, Effect: clearOrderSchedule}, OrderInQA, OrderRefused).
		Transition(state.Transition{Name: "new_shoot", Title: "New shoot", To: OrderReceived, Permission: "can_reshoot",
			RequiresMessage: true, Effect: clearOrderSchedule}, OrderInQA, OrderRefused).
		Transition(state.Transition{Name: "perm_reject", Title: "Permanently reject", To: OrderReceived, Permission: "can_perm_reject",
			OptionalFields: []string{"additional_compensation", "reason_additional_compensation"},
			Effect:         clearOrderSchedule}, OrderInQA).
		Transition(state.Transition{Name: "accept", Title: "Accept", To: OrderAccepted, Permission: "can_accept"},
			OrderDelivered).
		Transition(state.Transition{Name: "refuse", Title: "Refuse", To: OrderRefused, Permission: "can_refuse",
			RequiresMessage: true}, OrderDelivered).
		Transition(state.Transition{Name: "require_revision", Title: "Require revision", To: OrderInQA,
			Permission: "can_require_revision"}, OrderRefused).
		Transition(state.Transition{Name: "cancel", Title: "Cancel", To: OrderCancelled, Permission: "can_cancel"},
			OrderCreated, OrderReceived, OrderAssigned, OrderScheduled).
		Transition(state.Transition{Name: "edit_location", Title: "Edit location", Permission: "can_edit_location",
			RequiredFields: []string{"address"}, OptionalFields: []string{"country", "lat", "lng"}, Effect: editLocation},
			OrderCreated, OrderReceived, OrderAssigned, OrderScheduled).
		Transition(state.Transition{Name: "edit_requirements", Title: "Edit requirements", Permission: "can_edit_requirements",
			RequiredFields: []string{"number_required_assets"}, OptionalFields: []string{"description"}, Effect: editRequirements},
			OrderCreated, OrderReceived, OrderAssigned, OrderScheduled).
		Transition(state.Transition{Name: "edit_delivery", Title: "Edit delivery", Permission: "can_edit_delivery",
			RequiredFields: []string{"archive"}, OptionalFields: []string{"gdrive"}, Effect: editDelivery},
			OrderInQA, OrderDelivered, OrderRefused).
		MustBuild()
}

// cancellable: nothing was uploaded yet, the current assignment can still be
// cancelled, and a customer is still outside the
// cancellation window of a scheduled shoot.
func cancellable(settings Settings) state.Check {
	window := time.Duration(settings.CancellationWindowDays) * 24 * time.Hour
	return func(actor state.Principal, doc state.Document, now time.Time) bool {
		order := doc.(*domain.Order)
		if order.HasSubmission() {
			return false
		}
		if a := order.CurrentAssignment(); a != nil && !containsState(CancellableAssignmentStates, a.State) {
			return false
		}
		if actor.PrincipalRoles().HasAny(authority.RoleProjectManager, authority.RoleBriefy, authority.RoleSystem) {
			return true
		}
		return order.ScheduledDatetime == nil || order.ScheduledDatetime.Sub(now) > window
	}
}

func containsState(states []string, name string) bool {
	for _, s := range states {
		if s == name {
			return true
		}
	}
	return false
}

func setOrderSchedule(c *state.TransitionContext) error {
	t, err := c.Fields.Time("scheduled_datetime")
	if err != nil {
		return c.Invalid("scheduled_datetime", err)
	}
	c.Document.(*domain.Order).ScheduledDatetime = &t
	return nil
}

func clearOrderSchedule(c *state.TransitionContext) error {
	c.Document.(*domain.Order).ScheduledDatetime = nil
	return nil
}

func clearAvailability(c *state.TransitionContext) error {
	order := c.Document.(*domain.Order)
	order.Availability = domain.Availability{}
	order.ScheduledDatetime = nil
	return nil
}

func setAvailability(c *state.TransitionContext) error {
	availability, err := FieldAvailability(c.Fields, "availability")
	if err != nil {
		return c.Invalid("availability", err)
	}
	for _, slot := range availability {
		if !slot.After(c.Now) {
			return c.Reject("availability must be in the future")
		}
	}
	c.Document.(*domain.Order).Availability = availability
	return nil
}

func markDelivered(c *state.TransitionContext) error {
	now := c.Now
	c.Document.(*domain.Order).DeliveredAt = &now
	return nil
}

func editLocation(c *state.TransitionContext) error {
	location := c.Document.(*domain.Order).Location
	location.Address = c.Fields.String("address")
	if c.Fields.Present("country") {
		location.Country = c.Fields.String("country")
	}
	for _, coordinate := range []struct {
		name   string
		target *float64
	}{{"lat", &location.Lat}, {"lng", &location.Lng}} {
		if !c.Fields.Has(coordinate.name) {
			continue
		}
		v, err := c.Fields.Float64(coordinate.name)
		if err != nil {
			return c.Invalid(coordinate.name, err)
		}
		*coordinate.target = v
	}
	c.Document.(*domain.Order).Location = location
	return nil
}

func editRequirements(c *state.TransitionContext) error {
	n, err := c.Fields.Int64("number_required_assets")
	if err != nil {
		return c.Invalid("number_required_assets", err)
	}
	if n <= 0 {
		return c.Reject("number of required assets must be positive")
	}
	order := c.Document.(*domain.Order)
	order.Requirements.NumberRequiredAssets = int(n)
	if c.Fields.Present("description") {
		order.Requirements.Description = c.Fields.String("description")
	}
	return nil
}

func editDelivery(c *state.TransitionContext) error {
	order := c.Document.(*domain.Order)
	order.Delivery.Archive = c.Fields.String("archive")
	if c.Fields.Present("gdrive") {
		order.Delivery.Gdrive = c.Fields.String("gdrive")
	}
	return nil
}
