package state_test

import (
	"errors"
	"leica/authority"
	"leica/domain/state"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("StateMachine", func() {
	var (
		stateMachine *state.StateMachine
		now          = time.Date(2021, 3, 4, 10, 0, 0, 0, time.UTC)
		clock        = func() time.Time { return now }
		editor       = actor{id: "editor-1", roles: authority.NewRoles(authority.RoleProjectManager)}
		stranger     = actor{id: "stranger", roles: authority.NewRoles(authority.RoleCustomer)}
	)

	BeforeEach(func() {
		//         PENDING      DOING         DONE
		// PENDING   edit         V (begin)     V (close)
		// DOING     V (cancel)   edit          V (finish)
		// DONE      V (reopen)   X             -
		stateMachine = state.NewBuilder("task", "PENDING",
			state.State{Name: "PENDING", Title: "Pending"},
			state.State{Name: "DOING", Title: "Doing"},
			state.State{Name: "DONE", Title: "Done"},
		).
			Permission("can_work", state.Roles(authority.RoleProjectManager), nil).
			Permission("can_edit", state.Roles(authority.RoleProjectManager, authority.RoleOwner),
				func(a state.Principal, doc state.Document, now time.Time) bool {
					return !doc.(*document).locked
				}).
			Transition(state.Transition{Name: "begin", To: "DOING", Permission: "can_work"}, "PENDING").
			Transition(state.Transition{Name: "close", To: "DONE", Permission: "can_work", RequiresMessage: true}, "PENDING").
			Transition(state.Transition{Name: "cancel", To: "PENDING", Permission: "can_work"}, "DOING").
			Transition(state.Transition{Name: "finish", To: "DONE", Permission: "can_work", RequiredFields: []string{"result", "hours"},
				Effect: func(c *state.TransitionContext) error {
					if c.Fields.String("result") == "broken" {
						return c.Reject("cannot finish a broken result")
					}
					c.Document.(*document).note = c.Fields.String("result")
					return nil
				}}, "DOING").
			Transition(state.Transition{Name: "reopen", To: "PENDING", Permission: "can_work"}, "DONE").
			Transition(state.Transition{Name: "edit", Permission: "can_edit", RequiredFields: []string{"note"},
				Effect: func(c *state.TransitionContext) error {
					c.Document.(*document).note = c.Fields.String("note")
					return nil
				}}, "PENDING", "DOING").
			MustBuild()
	})

	Describe("Build", func() {
		It("should keep declared states and expand fan-in edges", func() {
			Expect(stateMachine.Entity).To(Equal("task"))
			Expect(stateMachine.Initial).To(Equal("PENDING"))
			Expect(len(stateMachine.States())).To(Equal(3))
			Expect(len(stateMachine.Transitions())).To(Equal(7))

			edit, found := stateMachine.FindTransition("DOING", "edit")
			Expect(found).To(BeTrue())
			Expect(edit.From).To(Equal("DOING"))
			Expect(edit.To).To(Equal("DOING"))
		})

		It("should reject unknown states, permissions and duplicated edges", func() {
			_, err := state.NewBuilder("x", "A", state.State{Name: "A"}).
				Permission("p", state.Roles(authority.RoleQA), nil).
				Transition(state.Transition{Name: "go", To: "B", Permission: "p"}, "A").Build()
			Expect(err).To(MatchError(`x: transition "go" enters unknown state "B"`))

			_, err = state.NewBuilder("x", "A", state.State{Name: "A"}).
				Transition(state.Transition{Name: "go", To: "A", Permission: "p"}, "A").Build()
			Expect(err).To(MatchError(`x: transition "go" uses unknown permission "p"`))

			_, err = state.NewBuilder("x", "A", state.State{Name: "A"}).
				Permission("p", state.Roles(authority.RoleQA), nil).
				Transition(state.Transition{Name: "go", To: "A", Permission: "p"}, "A", "A").Build()
			Expect(err).To(MatchError(`x: transition "go" declared twice from "A"`))

			_, err = state.NewBuilder("x", "Z", state.State{Name: "A"}).Build()
			Expect(err).To(MatchError(`x: initial state "Z" is not declared`))
		})
	})

	Describe("AvailableTransitions", func() {
		It("should return availableTransitions as expected", func() {
			Expect(len(stateMachine.AvailableTransitions("PENDING", ""))).To(Equal(3))
			Expect(len(stateMachine.AvailableTransitions("", "DONE"))).To(Equal(2))
			Expect(len(stateMachine.AvailableTransitions("DONE", "PENDING"))).To(Equal(1))
			Expect(len(stateMachine.AvailableTransitions("UNKNOWN", ""))).To(Equal(0))
		})
	})

	Describe("Unreachable", func() {
		It("should report states without an incoming chain from the initial state", func() {
			Expect(stateMachine.Unreachable()).To(BeEmpty())

			sm := state.NewBuilder("x", "A", state.State{Name: "A"}, state.State{Name: "B"}, state.State{Name: "C"}).
				Permission("p", state.Roles(authority.RoleQA), nil).
				Transition(state.Transition{Name: "go", To: "B", Permission: "p"}, "A").
				Transition(state.Transition{Name: "back", To: "B", Permission: "p"}, "C").
				MustBuild()
			Expect(sm.Unreachable()).To(Equal([]string{"C"}))
		})
	})

	Describe("Workflow.Transitions", func() {
		It("should filter by current state and permission", func() {
			doc := &document{state: "PENDING", owner: "owner-1"}
			Expect(keys(stateMachine.Bind(doc, editor).WithClock(clock).Transitions())).To(ConsistOf("begin", "close", "edit"))
			Expect(stateMachine.Bind(doc, stranger).Transitions()).To(BeEmpty())

			owner := actor{id: "owner-1", roles: authority.NewRoles(authority.RoleCustomer)}
			Expect(keys(stateMachine.Bind(doc, owner).Transitions())).To(ConsistOf("edit"))

			doc.locked = true
			Expect(keys(stateMachine.Bind(doc, owner).Transitions())).To(BeEmpty())
		})

		It("should reflect mutations immediately", func() {
			doc := &document{state: "PENDING"}
			wf := stateMachine.Bind(doc, editor).WithClock(clock)
			Expect(wf.Fire("begin", nil, "")).To(Succeed())
			Expect(keys(wf.Transitions())).To(ConsistOf("cancel", "finish", "edit"))
			Expect(wf.State().Title).To(Equal("Doing"))
		})
	})

	Describe("Workflow.Fire", func() {
		It("should change state and append history", func() {
			doc := &document{state: "PENDING"}
			wf := stateMachine.Bind(doc, editor).WithClock(clock)
			Expect(wf.Fire("begin", nil, "go")).To(Succeed())
			Expect(wf.Fire("finish", state.Fields{"result": "ok", "hours": 0}, "")).To(Succeed())

			Expect(doc.state).To(Equal("DONE"))
			Expect(doc.note).To(Equal("ok"))
			Expect(doc.history).To(Equal(state.History{
				{Date: now, From: "PENDING", To: "DOING", Transition: "begin", Actor: "editor-1", Message: "go"},
				{Date: now, From: "DOING", To: "DONE", Transition: "finish", Actor: "editor-1", Message: ""},
			}))
			Expect(doc.history.Validate()).To(Succeed())
		})

		It("should record self loops", func() {
			doc := &document{state: "DOING"}
			Expect(stateMachine.Bind(doc, editor).WithClock(clock).Fire("edit", state.Fields{"note": "n1"}, "")).To(Succeed())
			Expect(doc.state).To(Equal("DOING"))
			Expect(len(doc.history)).To(Equal(1))
			Expect(doc.history[0].From).To(Equal("DOING"))
			Expect(doc.history[0].To).To(Equal("DOING"))
		})

		It("should reject transitions that do not leave the current state", func() {
			doc := &document{state: "DONE"}
			err := stateMachine.Bind(doc, editor).Fire("finish", nil, "")
			Expect(state.IsInvalidTransition(err)).To(BeTrue())
			Expect(err.Error()).To(Equal(`task: transition "finish" is not available in state "DONE"`))
			assertUntouched(doc, "DONE")
		})

		It("should reject actors without permission", func() {
			doc := &document{state: "PENDING"}
			err := stateMachine.Bind(doc, stranger).Fire("begin", nil, "")
			Expect(state.IsPermissionDenied(err)).To(BeTrue())
			assertUntouched(doc, "PENDING")
		})

		It("should require the message when declared", func() {
			doc := &document{state: "PENDING"}
			err := stateMachine.Bind(doc, editor).Fire("close", nil, "  ")
			Expect(state.IsValidationFailed(err)).To(BeTrue())
			Expect(err.(*state.TransitionValidationError).Field).To(Equal(""))
			assertUntouched(doc, "PENDING")

			Expect(stateMachine.Bind(doc, editor).Fire("close", nil, "duplicate")).To(Succeed())
		})

		It("should name the first missing required field in declaration order", func() {
			doc := &document{state: "DOING"}
			err := stateMachine.Bind(doc, editor).Fire("finish", state.Fields{"hours": 3}, "")
			Expect(err.(*state.TransitionValidationError).Field).To(Equal("result"))

			err = stateMachine.Bind(doc, editor).Fire("finish", nil, "")
			Expect(err.(*state.TransitionValidationError).Field).To(Equal("result"))

			err = stateMachine.Bind(doc, editor).Fire("finish", state.Fields{"result": "ok", "hours": nil}, "")
			Expect(err.(*state.TransitionValidationError).Field).To(Equal("hours"))
			assertUntouched(doc, "DOING")
		})

		It("should abort on effect rejections without touching state", func() {
			doc := &document{state: "DOING"}
			err := stateMachine.Bind(doc, editor).Fire("finish", state.Fields{"result": "broken", "hours": 1}, "")
			Expect(state.IsRejected(err)).To(BeTrue())
			Expect(err.(*state.WorkflowTransitionError).Entity).To(Equal("task"))
			Expect(err.Error()).To(Equal("cannot finish a broken result"))
			assertUntouched(doc, "DOING")
		})

		It("should propagate unexpected effect errors unchanged", func() {
			boom := errors.New("boom")
			sm := state.NewBuilder("x", "A", state.State{Name: "A"}, state.State{Name: "B"}).
				Permission("p", state.Roles(authority.RoleQA), nil).
				Transition(state.Transition{Name: "go", To: "B", Permission: "p",
					Effect: func(c *state.TransitionContext) error { return boom }}, "A").
				MustBuild()
			doc := &document{state: "A"}
			err := sm.Bind(doc, actor{id: "q", roles: authority.NewRoles(authority.RoleQA)}).Fire("go", nil, "")
			Expect(err).To(Equal(boom))
			assertUntouched(doc, "A")
		})
	})
})

func keys(m map[string]state.Transition) []string {
	r := []string{}
	for k := range m {
		r = append(r, k)
	}
	return r
}

func assertUntouched(doc *document, expectedState string) {
	Expect(doc.state).To(Equal(expectedState))
	Expect(doc.history).To(BeEmpty())
}
