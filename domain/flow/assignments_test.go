package flow_test

import (
	"leica/authority"
	"leica/domain"
	"leica/domain/flow"
	"leica/domain/state"
	"time"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Assignment", func() {
	workflows := flow.New(flow.Settings{SchedulingLeadDays: 2, CancellationWindowDays: 1})
	professional := as("pro-1", authority.RoleProfessional)
	qa := as("qa-1", authority.RoleQA)

	var order *domain.Order
	var assignment *domain.Assignment

	BeforeEach(func() {
		order = &domain.Order{CustomerUserID: "customer-1", Stateful: domain.Stateful{State: flow.OrderAssigned}}
		assignment = &domain.Assignment{ProfessionalUserID: "pro-1", Stateful: domain.Stateful{State: flow.AssignmentAssigned}}
		order.Attach(assignment)
	})

	Describe("scheduling lead time", func() {
		It("should reject shoots closer than the lead time", func() {
			err := workflows.Assignment.Bind(assignment, professional).WithClock(clock).
				Fire("schedule", state.Fields{"scheduled_datetime": now.Add(24 * time.Hour)}, "")
			Expect(state.IsRejected(err)).To(BeTrue())
			Expect(err).To(MatchError("shoot time must be at least 2 days in the future"))
			Expect(assignment.State).To(Equal(flow.AssignmentAssigned))
			Expect(assignment.ScheduledDatetime).To(BeNil())
			Expect(assignment.StateHistory).To(BeEmpty())
		})

		It("should let the internal group bypass the lead time", func() {
			briefy := as("staff-1", authority.RoleBriefy)
			Expect(workflows.Assignment.Bind(assignment, briefy).WithClock(clock).
				Fire("schedule", state.Fields{"scheduled_datetime": now.Add(time.Hour)}, "")).To(Succeed())
			Expect(assignment.State).To(Equal(flow.AssignmentScheduled))
		})

		It("should accept shoots after the lead time", func() {
			Expect(workflows.Assignment.Bind(assignment, professional).WithClock(clock).
				Fire("schedule", state.Fields{"scheduled_datetime": "2021-06-04T09:00:00Z"}, "")).To(Succeed())
			Expect(*assignment.ScheduledDatetime).To(Equal(time.Date(2021, 6, 4, 9, 0, 0, 0, time.UTC)))
		})

		It("should not let other professionals schedule", func() {
			other := as("pro-2", authority.RoleProfessional)
			Expect(workflows.Assignment.Bind(assignment, other).WithClock(clock).Can("schedule")).To(BeFalse())
		})
	})

	Describe("approve", func() {
		It("should need nothing from in_qa", func() {
			assignment.State = flow.AssignmentInQA
			Expect(workflows.Assignment.Bind(assignment, qa).WithClock(clock).Fire("approve", nil, "")).To(Succeed())
			Expect(assignment.State).To(Equal(flow.AssignmentApproved))
		})

		It("should need customer message and archive from post_processing", func() {
			assignment.State = flow.AssignmentPostProcessing
			wf := workflows.Assignment.Bind(assignment, qa).WithClock(clock)

			err := wf.Fire("approve", nil, "")
			Expect(state.IsValidationFailed(err)).To(BeTrue())
			Expect(err.(*state.TransitionValidationError).Field).To(Equal("customer_message"))

			err = wf.Fire("approve", state.Fields{"customer_message": "enjoy"}, "")
			Expect(err).To(MatchError("cannot approve without archive URL"))
			Expect(assignment.State).To(Equal(flow.AssignmentPostProcessing))
			Expect(assignment.CustomerMessage).To(BeEmpty())

			order.Delivery.Archive = "https://storage.example.com/archive.zip"
			Expect(wf.Fire("approve", state.Fields{"customer_message": "enjoy"}, "")).To(Succeed())
			Expect(assignment.CustomerMessage).To(Equal("enjoy"))
		})
	})

	Describe("assign", func() {
		BeforeEach(func() {
			assignment.State = flow.AssignmentPending
			assignment.ProfessionalUserID = ""
		})

		It("should set professional and payout", func() {
			scout := as("scout-1", authority.RoleScout)
			Expect(workflows.Assignment.Bind(assignment, scout).WithClock(clock).Fire("assign", state.Fields{
				"professional_id": "42", "professional_user_id": "pro-1", "payout_value": 12000,
				"payout_currency": "EUR", "travel_expenses": 1500}, "")).To(Succeed())
			Expect(assignment.ProfessionalID).To(Equal(types.ID(42)))
			Expect(assignment.ProfessionalUserID).To(Equal("pro-1"))
			Expect(assignment.Payout).To(Equal(domain.Money{Value: 12000, Currency: "EUR"}))
			Expect(assignment.TravelExpenses).To(Equal(int64(1500)))
		})

		It("should name malformed fields", func() {
			scout := as("scout-1", authority.RoleScout)
			wf := workflows.Assignment.Bind(assignment, scout).WithClock(clock)
			err := wf.Fire("assign", state.Fields{"professional_id": "42", "payout_value": "lots",
				"payout_currency": "EUR", "travel_expenses": 0}, "")
			Expect(err.(*state.TransitionValidationError).Field).To(Equal("payout_value"))

			err = wf.Fire("assign", state.Fields{"professional_id": "42", "payout_value": 1,
				"payout_currency": "EURO", "travel_expenses": 0}, "")
			Expect(err.(*state.TransitionValidationError).Field).To(Equal("payout_currency"))
			Expect(assignment.State).To(Equal(flow.AssignmentPending))
		})
	})

	Describe("self_assign", func() {
		pool := types.ID(77)

		BeforeEach(func() {
			assignment.State = flow.AssignmentPublished
			assignment.PoolID = pool
			assignment.ProfessionalUserID = ""
		})

		It("should require pool membership", func() {
			Expect(workflows.Assignment.Bind(assignment, professional).WithClock(clock).Can("self_assign")).To(BeFalse())

			outsider := &flow.ProfessionalActor{Principal: professional,
				Professional: &domain.Professional{ID: 5, UserID: "pro-1", Pools: domain.IDList{1}}}
			Expect(workflows.Assignment.Bind(assignment, outsider).WithClock(clock).Can("self_assign")).To(BeFalse())
		})

		It("should assign and schedule at once", func() {
			member := &flow.ProfessionalActor{Principal: professional,
				Professional: &domain.Professional{ID: 5, UserID: "pro-1", Pools: domain.IDList{pool}}}
			Expect(workflows.Assignment.Bind(assignment, member).WithClock(clock).Fire("self_assign",
				state.Fields{"scheduled_datetime": now.Add(96 * time.Hour)}, "")).To(Succeed())
			Expect(assignment.State).To(Equal(flow.AssignmentScheduled))
			Expect(assignment.ProfessionalID).To(Equal(types.ID(5)))
			Expect(assignment.ProfessionalUserID).To(Equal("pro-1"))
		})
	})

	Describe("upload", func() {
		It("should require a url", func() {
			assignment.State = flow.AssignmentAwaitingAssets
			wf := workflows.Assignment.Bind(assignment, professional).WithClock(clock)
			err := wf.Fire("upload", state.Fields{"submission_path": "not a url"}, "")
			Expect(err.(*state.TransitionValidationError).Field).To(Equal("submission_path"))

			Expect(wf.Fire("upload", state.Fields{"submission_path": "https://storage.example.com/shoot-1/"}, "")).To(Succeed())
			Expect(assignment.State).To(Equal(flow.AssignmentAssetValidation))
			Expect(assignment.HasSubmission()).To(BeTrue())
		})
	})

	Describe("perm_reject", func() {
		It("should accept optional compensation", func() {
			assignment.State = flow.AssignmentInQA
			Expect(workflows.Assignment.Bind(assignment, qa).WithClock(clock).Fire("perm_reject",
				state.Fields{"additional_compensation": 0, "reason_additional_compensation": nil}, "")).To(Succeed())
			Expect(assignment.State).To(Equal(flow.AssignmentPermRejected))
			Expect(assignment.AdditionalCompensation).To(BeZero())
		})
	})
})
