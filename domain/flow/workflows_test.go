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

var _ = Describe("Workflows", func() {
	workflows := flow.New(flow.DefaultSettings())

	It("should declare sound graphs", func() {
		for _, sm := range workflows.All() {
			Expect(sm.Unreachable()).To(BeEmpty(), sm.Entity)
			for _, s := range sm.States() {
				Expect(s.Title).ToNot(BeEmpty())
			}
			found, ok := workflows.ByKind(sm.Entity)
			Expect(ok).To(BeTrue())
			Expect(found).To(BeIdenticalTo(sm))
		}
		_, ok := workflows.ByKind("unknown")
		Expect(ok).To(BeFalse())
	})

	It("should keep required fields per source state", func() {
		fromQA, found := workflows.Assignment.FindTransition(flow.AssignmentInQA, "approve")
		Expect(found).To(BeTrue())
		Expect(fromQA.RequiredFields).To(BeEmpty())

		fromPostProcessing, found := workflows.Assignment.FindTransition(flow.AssignmentPostProcessing, "approve")
		Expect(found).To(BeTrue())
		Expect(fromPostProcessing.RequiredFields).To(Equal([]string{"customer_message"}))
	})

	Describe("FieldID", func() {
		It("should accept strings, numbers and ids", func() {
			Expect(flow.FieldID(state.Fields{"id": "123"}, "id")).To(Equal(types.ID(123)))
			Expect(flow.FieldID(state.Fields{"id": float64(7)}, "id")).To(Equal(types.ID(7)))
			Expect(flow.FieldID(state.Fields{"id": types.ID(9)}, "id")).To(Equal(types.ID(9)))
			_, err := flow.FieldID(state.Fields{"id": "x"}, "id")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("FieldAvailability", func() {
		It("should parse rfc 3339 lists", func() {
			a, err := flow.FieldAvailability(state.Fields{"a": []interface{}{"2021-06-10T10:00:00Z"}}, "a")
			Expect(err).To(BeNil())
			Expect(a).To(Equal(domain.Availability{time.Date(2021, 6, 10, 10, 0, 0, 0, time.UTC)}))

			_, err = flow.FieldAvailability(state.Fields{"a": []interface{}{"soon"}}, "a")
			Expect(err).To(MatchError("field a[0] is not a RFC 3339 time"))
			_, err = flow.FieldAvailability(state.Fields{"a": 3}, "a")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Professional", func() {
		It("should hide review transitions from outsiders", func() {
			p := &domain.Professional{UserID: "pro-1", Stateful: domain.Stateful{State: flow.ProfessionalPending}}
			outsider := as("someone", authority.RoleCustomer, authority.RoleFinance)
			wf := workflows.Professional.Bind(p, outsider).WithClock(clock)
			Expect(wf.Transitions()).To(BeEmpty())
			err := wf.Fire("submit", nil, "")
			Expect(state.IsPermissionDenied(err)).To(BeTrue())
			Expect(p.State).To(Equal(flow.ProfessionalPending))
			Expect(p.StateHistory).To(BeEmpty())

			owner := as("pro-1", authority.RoleProfessional)
			Expect(workflows.Professional.Bind(p, owner).Fire("submit", nil, "")).To(Succeed())
			Expect(p.State).To(Equal(flow.ProfessionalValidation))

			scout := as("scout-1", authority.RoleScout)
			Expect(workflows.Professional.Bind(p, scout).Transitions()).To(HaveKey("approve"))
			Expect(workflows.Professional.Bind(p, owner).Transitions()).ToNot(HaveKey("approve"))
		})
	})

	Describe("Order", func() {
		var order *domain.Order
		customer := as("customer-1", authority.RoleCustomer)
		pm := as("pm-1", authority.RoleProjectManager)

		BeforeEach(func() {
			order = &domain.Order{CustomerUserID: "customer-1", Stateful: domain.Stateful{State: flow.OrderScheduled},
				Requirements: domain.Requirements{NumberRequiredAssets: 10}}
			order.Attach(&domain.Assignment{Stateful: domain.Stateful{State: flow.AssignmentScheduled}})
		})

		It("should let customers cancel only outside the window", func() {
			order.ScheduledDatetime = ptr(now.Add(12 * time.Hour))
			Expect(workflows.Order.Bind(order, customer).WithClock(clock).Can("cancel")).To(BeFalse())
			Expect(workflows.Order.Bind(order, as("customer-2", authority.RoleCustomer)).WithClock(clock).Can("cancel")).To(BeFalse())
			Expect(workflows.Order.Bind(order, pm).WithClock(clock).Can("cancel")).To(BeTrue())

			order.ScheduledDatetime = ptr(now.Add(72 * time.Hour))
			Expect(workflows.Order.Bind(order, customer).WithClock(clock).Can("cancel")).To(BeTrue())
		})

		It("should forbid cancellation once content exists", func() {
			order.CurrentAssignment().SubmissionPath = "https://storage.example.com/shoot-1"
			Expect(workflows.Order.Bind(order, pm).WithClock(clock).Can("cancel")).To(BeFalse())
			err := workflows.Order.Bind(order, pm).WithClock(clock).Fire("cancel", nil, "")
			Expect(state.IsPermissionDenied(err)).To(BeTrue())
		})

		It("should forbid cancellation once the assignment left the cancellable states", func() {
			order.CurrentAssignment().State = flow.AssignmentAwaitingAssets
			Expect(workflows.Order.Bind(order, pm).WithClock(clock).Can("cancel")).To(BeFalse())
			Expect(workflows.Order.Bind(order, pm).WithClock(clock).Transitions()).ToNot(HaveKey("cancel"))
		})

		It("should edit requirements as a self loop", func() {
			wf := workflows.Order.Bind(order, pm).WithClock(clock)
			err := wf.Fire("edit_requirements", state.Fields{"number_required_assets": 0}, "")
			Expect(state.IsRejected(err)).To(BeTrue())
			Expect(order.StateHistory).To(BeEmpty())

			Expect(wf.Fire("edit_requirements", state.Fields{"number_required_assets": 25, "description": "exterior"}, "")).To(Succeed())
			Expect(order.Requirements).To(Equal(domain.Requirements{NumberRequiredAssets: 25, Description: "exterior"}))
			Expect(order.State).To(Equal(flow.OrderScheduled))
			Expect(order.StateHistory).To(HaveLen(1))
		})

		It("should reject availability in the past", func() {
			order.State = flow.OrderReceived
			wf := workflows.Order.Bind(order, customer).WithClock(clock)
			err := wf.Fire("set_availability", state.Fields{"availability": []string{"2021-05-01T10:00:00Z"}}, "")
			Expect(err).To(MatchError("availability must be in the future"))

			Expect(wf.Fire("set_availability", state.Fields{"availability": []string{"2021-06-05T10:00:00Z"}}, "")).To(Succeed())
			Expect(order.Availability).To(HaveLen(1))
		})

		It("should stamp delivery time", func() {
			order.State = flow.OrderInQA
			Expect(workflows.Order.Bind(order, as("qa-1", authority.RoleQA)).WithClock(clock).Fire("deliver", nil, "")).To(Succeed())
			Expect(*order.DeliveredAt).To(Equal(now))
		})
	})
})
