package fulfillment_test

import (
	"leica/authority"
	"leica/common"
	"leica/domain"
	"leica/domain/flow"
	"leica/domain/fulfillment"
	"leica/domain/state"
	"time"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type actor struct {
	id    string
	roles authority.Roles
}

func (a actor) PrincipalID() string             { return a.id }
func (a actor) PrincipalRoles() authority.Roles { return a.roles }

func as(id string, roles ...authority.Role) actor {
	return actor{id: id, roles: authority.NewRoles(roles...)}
}

var (
	now          = time.Date(2021, 6, 1, 9, 0, 0, 0, time.UTC)
	customer     = as("customer-1", authority.RoleCustomer)
	scout        = as("scout-1", authority.RoleScout)
	pm           = as("pm-1", authority.RoleProjectManager)
	qa           = as("qa-1", authority.RoleQA)
	professional = as("pro-1", authority.RoleProfessional)
	system       = as("system", authority.RoleSystem)

	assignFields = state.Fields{"professional_id": "501", "professional_user_id": "pro-1",
		"payout_value": 15000, "payout_currency": "EUR", "travel_expenses": 2000}
)

// aggregate is a deep copy used to assert that failed operations changed nothing.
type aggregate struct {
	order       domain.Order
	assignments []domain.Assignment
}

func snapshot(o *domain.Order) aggregate {
	a := aggregate{order: *o}
	a.order.StateHistory = o.StateHistory.Clone()
	a.order.Assignments = nil
	for _, as := range o.Assignments {
		c := *as
		c.StateHistory = as.StateHistory.Clone()
		c.Order = nil
		a.assignments = append(a.assignments, c)
	}
	return a
}

func countTransition(h state.History, name string) int {
	n := 0
	for _, e := range h {
		if e.Transition == name {
			n++
		}
	}
	return n
}

var _ = Describe("Service", func() {
	var (
		svc   *fulfillment.Service
		clock *common.FixedClock
		order *domain.Order
	)

	must := func(o *fulfillment.Outcome, err error) *fulfillment.Outcome {
		ExpectWithOffset(1, err).To(BeNil())
		return o
	}
	current := func() *domain.Assignment { return order.CurrentAssignment() }

	submitted := func() {
		must(svc.Submit(order, customer, ""))
	}
	assigned := func() {
		submitted()
		must(svc.Assign(order, scout, assignFields, ""))
	}
	scheduled := func() {
		assigned()
		must(svc.Schedule(order, professional, state.Fields{"scheduled_datetime": now.Add(72 * time.Hour)}, ""))
	}
	uploaded := func() {
		scheduled()
		clock.Advance(73 * time.Hour)
		must(svc.FireAssignment(order, current().ID, system, "ready_for_upload", nil, ""))
		must(svc.FireAssignment(order, current().ID, professional, "upload",
			state.Fields{"submission_path": "https://storage.example.com/orders/1/"}, ""))
	}
	inQA := func() {
		uploaded()
		must(svc.ValidateAssets(order, system, ""))
	}

	BeforeEach(func() {
		clock = common.NewFixedClock(now)
		next := types.ID(1000)
		svc = &fulfillment.Service{Workflows: flow.New(flow.DefaultSettings()), Clock: clock,
			NewID: func() types.ID { next++; return next }}
		order = &domain.Order{ID: 1, CustomerUserID: "customer-1", Title: "Villa",
			Requirements: domain.Requirements{NumberRequiredAssets: 3},
			Stateful:     domain.Stateful{State: flow.OrderCreated}}
	})

	It("should open the first assignment on submit", func() {
		outcome := must(svc.Submit(order, customer, "please"))
		Expect(order.State).To(Equal(flow.OrderReceived))
		Expect(order.Assignments).To(HaveLen(1))
		Expect(current().State).To(Equal(flow.AssignmentPending))
		Expect(current().OrderID).To(Equal(order.ID))
		Expect(current().StateHistory[0].Actor).To(Equal("customer-1"))
		Expect(outcome.Fired).To(HaveLen(2))
		Expect(outcome.Fired[1].Cascaded).To(BeTrue())
	})

	It("scenario A: assignment assign cascades to the order", func() {
		submitted()
		orderHistory := len(order.StateHistory)
		must(svc.FireAssignment(order, current().ID, scout, "assign", assignFields, ""))

		Expect(current().State).To(Equal(flow.AssignmentAssigned))
		Expect(order.State).To(Equal(flow.OrderAssigned))
		Expect(countTransition(current().StateHistory, "assign")).To(Equal(1))
		Expect(countTransition(order.StateHistory, "assign")).To(Equal(1))
		Expect(len(order.StateHistory)).To(Equal(orderHistory + 1))
		Expect(order.StateHistory.Validate()).To(Succeed())
		Expect(current().StateHistory.Validate()).To(Succeed())
	})

	It("scenario B: too early shoots are rejected without side effects", func() {
		assigned()
		before := snapshot(order)
		_, err := svc.Schedule(order, professional, state.Fields{"scheduled_datetime": now.Add(24 * time.Hour)}, "")
		Expect(state.IsRejected(err)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("in the future"))
		Expect(snapshot(order)).To(Equal(before))
	})

	It("should copy the schedule to the order", func() {
		scheduled()
		Expect(order.State).To(Equal(flow.OrderScheduled))
		Expect(*order.ScheduledDatetime).To(Equal(now.Add(72 * time.Hour)))

		must(svc.Reschedule(order, professional, state.Fields{"scheduled_datetime": now.Add(96 * time.Hour)}, ""))
		Expect(*order.ScheduledDatetime).To(Equal(now.Add(96 * time.Hour)))
		Expect(*current().ScheduledDatetime).To(Equal(now.Add(96 * time.Hour)))

		must(svc.RemoveSchedule(order, pm, ""))
		Expect(order.State).To(Equal(flow.OrderAssigned))
		Expect(order.ScheduledDatetime).To(BeNil())
		Expect(current().State).To(Equal(flow.AssignmentAssigned))
	})

	It("scenario C: upload, validation and QA cascade", func() {
		uploaded()
		Expect(current().State).To(Equal(flow.AssignmentAssetValidation))
		Expect(order.State).To(Equal(flow.OrderScheduled))

		must(svc.FireAssignment(order, current().ID, system, "validate_assets", nil, ""))
		Expect(current().State).To(Equal(flow.AssignmentInQA))
		Expect(order.State).To(Equal(flow.OrderInQA))
	})

	It("scenario D: perm_reject through the order spawns a replacement", func() {
		inQA()
		old := current()
		must(svc.FireOrder(order, qa, "perm_reject",
			state.Fields{"additional_compensation": 0, "reason_additional_compensation": nil}, ""))

		Expect(order.Assignments).To(HaveLen(2))
		Expect(old.State).To(Equal(flow.AssignmentPermRejected))
		Expect(current().State).To(Equal(flow.AssignmentPending))
		Expect(current().Payout).To(Equal(domain.Money{}))
		Expect(order.State).To(Equal(flow.OrderReceived))
		Expect(order.StateHistory.Validate()).To(Succeed())
	})

	Describe("unassign", func() {
		It("should cancel the old assignment and create exactly one new", func() {
			scheduled()
			old := current()
			outcome := must(svc.Unassign(order, pm, "professional is sick"))

			Expect(order.State).To(Equal(flow.OrderReceived))
			Expect(order.ScheduledDatetime).To(BeNil())
			Expect(order.Assignments).To(HaveLen(2))
			Expect(old.State).To(Equal(flow.AssignmentCancelled))
			Expect(current().State).To(Equal(flow.AssignmentPending))
			Expect(current().Payout).To(Equal(old.Payout))
			Expect(current().TravelExpenses).To(Equal(old.TravelExpenses))
			Expect(current().ProfessionalID).To(BeZero())
			Expect(outcome.Touched(old.ID)).To(BeTrue())
			Expect(outcome.Touched(current().ID)).To(BeTrue())
		})

		It("should refuse when content was uploaded", func() {
			uploaded()
			before := snapshot(order)
			_, err := svc.Unassign(order, pm, "too late")
			Expect(err).To(MatchError(ContainSubstring("already has a submission")))
			Expect(snapshot(order)).To(Equal(before))
			Expect(order.Assignments).To(HaveLen(1))
		})

		It("should refuse when the assignment cannot be cancelled", func() {
			scheduled()
			clock.Advance(73 * time.Hour)
			must(svc.FireAssignment(order, current().ID, system, "ready_for_upload", nil, ""))
			before := snapshot(order)
			_, err := svc.Unassign(order, pm, "too late")
			Expect(err).To(MatchError(ContainSubstring("does not support cancellation")))
			Expect(snapshot(order)).To(Equal(before))
		})

		It("should require a message", func() {
			assigned()
			_, err := svc.Unassign(order, pm, "")
			Expect(state.IsValidationFailed(err)).To(BeTrue())
		})
	})

	It("should reassign to another professional", func() {
		assigned()
		old := current()
		must(svc.Reassign(order, scout, state.Fields{"professional_id": "502", "professional_user_id": "pro-2",
			"payout_value": 9000, "payout_currency": "EUR", "travel_expenses": 0}, ""))
		Expect(old.State).To(Equal(flow.AssignmentCancelled))
		Expect(current().State).To(Equal(flow.AssignmentAssigned))
		Expect(current().ProfessionalID).To(Equal(types.ID(502)))
		Expect(order.State).To(Equal(flow.OrderAssigned))
	})

	It("should replace the assignment when availability is removed", func() {
		scheduled()
		must(svc.RemoveAvailability(order, customer, ""))
		Expect(order.State).To(Equal(flow.OrderReceived))
		Expect(order.Assignments).To(HaveLen(2))
		Expect(current().State).To(Equal(flow.AssignmentPending))

		must(svc.RemoveAvailability(order, customer, ""))
		Expect(order.Assignments).To(HaveLen(2))
	})

	Describe("cancel", func() {
		It("should cancel both sides", func() {
			assigned()
			must(svc.FireAssignment(order, current().ID, pm, "cancel", nil, "customer request"))
			Expect(order.State).To(Equal(flow.OrderCancelled))
			Expect(current().State).To(Equal(flow.AssignmentCancelled))
		})

		It("should stop customers inside the window", func() {
			scheduled()
			clock.Advance(60 * time.Hour)
			_, err := svc.Cancel(order, customer, "")
			Expect(state.IsPermissionDenied(err)).To(BeTrue())
			Expect(order.State).To(Equal(flow.OrderScheduled))
		})

		It("should explain why an assignment awaiting assets blocks cancellation", func() {
			scheduled()
			clock.Advance(73 * time.Hour)
			must(svc.FireAssignment(order, current().ID, system, "ready_for_upload", nil, ""))
			Expect(svc.OrderTransitions(order, pm)).ToNot(HaveKey("cancel"))

			before := snapshot(order)
			_, err := svc.Cancel(order, pm, "")
			Expect(state.IsRejected(err)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring("does not support cancellation")))
			Expect(snapshot(order)).To(Equal(before))
		})

		It("should explain why uploaded content blocks cancellation", func() {
			uploaded()
			_, err := svc.Cancel(order, pm, "")
			Expect(err).To(MatchError(ContainSubstring("already has a submission")))
			Expect(order.State).To(Equal(flow.OrderScheduled))
		})

		It("should cancel orders never submitted", func() {
			must(svc.Cancel(order, customer, ""))
			Expect(order.State).To(Equal(flow.OrderCancelled))
			Expect(order.Assignments).To(BeEmpty())
		})
	})

	Describe("delivery", func() {
		BeforeEach(func() {
			inQA()
			must(svc.Approve(order, qa, nil, ""))
		})

		It("should deliver on approval and complete on acceptance", func() {
			Expect(current().State).To(Equal(flow.AssignmentApproved))
			Expect(order.State).To(Equal(flow.OrderDelivered))
			Expect(order.DeliveredAt).ToNot(BeNil())

			must(svc.Accept(order, customer, ""))
			Expect(order.State).To(Equal(flow.OrderAccepted))
			Expect(current().State).To(Equal(flow.AssignmentCompleted))
		})

		It("should go back to QA after a refusal", func() {
			must(svc.FireOrder(order, customer, "refuse", nil, "too dark"))
			Expect(current().State).To(Equal(flow.AssignmentRefused))

			must(svc.RequireRevision(order, pm, ""))
			Expect(order.State).To(Equal(flow.OrderInQA))
			Expect(current().State).To(Equal(flow.AssignmentInQA))
		})

		It("should reshoot with the same professional", func() {
			must(svc.Refuse(order, customer, "wrong house"))
			old := current()
			must(svc.Reshoot(order, pm, "reshoot next week"))
			Expect(old.State).To(Equal(flow.AssignmentCompleted))
			Expect(order.State).To(Equal(flow.OrderAssigned))
			Expect(current().State).To(Equal(flow.AssignmentAssigned))
			Expect(current().ProfessionalID).To(Equal(old.ProfessionalID))
			Expect(current().Payout).To(Equal(old.Payout))
		})

		It("should open a new shoot with the same payout", func() {
			must(svc.Refuse(order, customer, "wrong house"))
			must(svc.NewShoot(order, qa, "new professional"))
			Expect(order.State).To(Equal(flow.OrderReceived))
			Expect(current().State).To(Equal(flow.AssignmentPending))
			Expect(current().Payout.Value).To(Equal(int64(15000)))
		})
	})

	Describe("lockstep", func() {
		It("should not fire cascaded order transitions directly", func() {
			inQA()
			Expect(svc.OrderTransitions(order, qa)).ToNot(HaveKey("deliver"))
			before := snapshot(order)
			_, err := svc.FireOrder(order, qa, "deliver", nil, "")
			Expect(state.IsRejected(err)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring("approve")))
			Expect(snapshot(order)).To(Equal(before))

			_, err = svc.FireOrder(order, system, "deliver", nil, "")
			Expect(state.IsRejected(err)).To(BeTrue())
			Expect(order.State).To(Equal(flow.OrderInQA))
		})

		It("should not start QA on the order alone", func() {
			uploaded()
			_, err := svc.FireOrder(order, system, "start_qa", nil, "")
			Expect(state.IsRejected(err)).To(BeTrue())
			Expect(order.State).To(Equal(flow.OrderScheduled))
			Expect(current().State).To(Equal(flow.AssignmentAssetValidation))
		})

		It("should not complete the current assignment without the order", func() {
			inQA()
			Expect(svc.AssignmentTransitions(order, current(), pm)).ToNot(HaveKey("complete"))
			before := snapshot(order)
			_, err := svc.FireAssignment(order, current().ID, pm, "complete", nil, "")
			Expect(state.IsRejected(err)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring("accept")))
			Expect(snapshot(order)).To(Equal(before))

			must(svc.Reshoot(order, pm, "reshoot next week"))
			Expect(order.State).To(Equal(flow.OrderAssigned))
		})

		It("should not refuse or return the current assignment without the order", func() {
			inQA()
			must(svc.Approve(order, qa, nil, ""))
			_, err := svc.FireAssignment(order, current().ID, system, "refuse", nil, "")
			Expect(state.IsRejected(err)).To(BeTrue())
			Expect(current().State).To(Equal(flow.AssignmentApproved))
			Expect(order.State).To(Equal(flow.OrderDelivered))

			must(svc.Refuse(order, customer, "too dark"))
			_, err = svc.FireAssignment(order, current().ID, pm, "return_to_qa", nil, "")
			Expect(state.IsRejected(err)).To(BeTrue())
			Expect(current().State).To(Equal(flow.AssignmentRefused))
			Expect(order.State).To(Equal(flow.OrderRefused))
		})
	})

	It("should self assign from a pool and schedule the order", func() {
		submitted()
		must(svc.FireAssignment(order, current().ID, scout, "assign_pool", state.Fields{"pool_id": "9",
			"payout_value": 8000, "payout_currency": "EUR"}, ""))
		Expect(order.State).To(Equal(flow.OrderReceived))

		member := &flow.ProfessionalActor{Principal: professional,
			Professional: &domain.Professional{ID: 501, UserID: "pro-1", Pools: domain.IDList{9}}}
		must(svc.FireAssignment(order, current().ID, member, "self_assign",
			state.Fields{"scheduled_datetime": now.Add(80 * time.Hour)}, ""))
		Expect(current().State).To(Equal(flow.AssignmentScheduled))
		Expect(order.State).To(Equal(flow.OrderScheduled))
		Expect(*order.ScheduledDatetime).To(Equal(now.Add(80 * time.Hour)))
	})

	It("should reject assignments of other orders", func() {
		submitted()
		_, err := svc.FireAssignment(order, 42, scout, "assign", assignFields, "")
		Expect(state.IsRejected(err)).To(BeTrue())
	})

	It("should pass other transitions through", func() {
		inQA()
		must(svc.FireAssignment(order, current().ID, qa, "assign_qa_manager", state.Fields{"qa_manager": "qa-1"}, ""))
		Expect(current().QAManager).To(Equal("qa-1"))
		must(svc.FireOrder(order, pm, "edit_delivery", state.Fields{"archive": "https://storage.example.com/a.zip"}, ""))
		Expect(order.Delivery.Archive).To(Equal("https://storage.example.com/a.zip"))
	})

	It("scenario E: professional review transitions are hidden from outsiders", func() {
		p := &domain.Professional{UserID: "pro-1", Stateful: domain.Stateful{State: flow.ProfessionalPending}}
		outsider := as("someone", authority.RoleFinance)
		wf := svc.Workflows.Professional.Bind(p, outsider)
		Expect(wf.Transitions()).To(BeEmpty())
		Expect(state.IsPermissionDenied(wf.Fire("submit", nil, ""))).To(BeTrue())
	})
})
