package flow

import (
	"leica/authority"
	"leica/domain"
	"leica/domain/state"
	"time"

	"github.com/go-playground/validator/v10"
)

// Assignment states.
const (
	AssignmentCreated         = "created"
	AssignmentPending         = "pending"
	AssignmentPublished       = "published"
	AssignmentAssigned        = "assigned"
	AssignmentScheduled       = "scheduled"
	AssignmentCancelled       = "cancelled"
	AssignmentAwaitingAssets  = "awaiting_assets"
	AssignmentAssetValidation = "asset_validation"
	AssignmentInQA            = "in_qa"
	AssignmentPostProcessing  = "post_processing"
	AssignmentApproved        = "approved"
	AssignmentRefused         = "refused"
	AssignmentPermRejected    = "perm_rejected"
	AssignmentCompleted       = "completed"
)

// CancellableAssignmentStates are the sources of the assignment cancel transition.
var CancellableAssignmentStates = []string{AssignmentCreated, AssignmentPending, AssignmentPublished,
	AssignmentAssigned, AssignmentScheduled}

var validate = validator.New()

func assignmentWorkflow(settings Settings) *state.StateMachine {
	roles := state.Roles
	guard := leadTimeGuard(settings)
	schedule := func(c *state.TransitionContext) error {
		t, err := guard(c)
		if err != nil {
			return err
		}
		c.Document.(*domain.Assignment).ScheduledDatetime = &t
		return nil
	}

	return state.NewBuilder(domain.KindAssignment, AssignmentCreated,
		state.State{Name: AssignmentCreated, Title: "Created"},
		state.State{Name: AssignmentPending, Title: "Pending", Description: "Waiting for a professional"},
		state.State{Name: AssignmentPublished, Title: "Published", Description: "Open for self assignment in a pool"},
		state.State{Name: AssignmentAssigned, Title: "Assigned", Description: "A professional is assigned"},
		state.State{Name: AssignmentScheduled, Title: "Scheduled", Description: "Shoot date agreed"},
		state.State{Name: AssignmentCancelled, Title: "Cancelled"},
		state.State{Name: AssignmentAwaitingAssets, Title: "Awaiting assets", Description: "Shoot done, waiting for the upload"},
		state.State{Name: AssignmentAssetValidation, Title: "Asset validation", Description: "Submission under automatic validation"},
		state.State{Name: AssignmentInQA, Title: "In QA"},
		state.State{Name: AssignmentPostProcessing, Title: "Post processing"},
		state.State{Name: AssignmentApproved, Title: "Approved"},
		state.State{Name: AssignmentRefused, Title: "Refused", Description: "Customer refused the delivery"},
		state.State{Name: AssignmentPermRejected, Title: "Permanently rejected"},
		state.State{Name: AssignmentCompleted, Title: "Completed"},
	).
		Permission("can_submit", roles(authority.RoleSystem, authority.RoleProjectManager), nil).
		Permission("can_assign", roles(authority.RoleScout, authority.RoleProjectManager, authority.RoleSystem), nil).
		Permission("can_self_assign", roles(authority.RoleProfessional), poolMember).
		Permission("can_manage_pool", roles(authority.RoleScout, authority.RoleProjectManager), nil).
		Permission("can_schedule", roles(authority.RoleOwner, authority.RoleProjectManager, authority.RoleScout,
			authority.RoleBriefy, authority.RoleSystem), nil).
		Permission("can_cancel", roles(authority.RoleProjectManager, authority.RoleBriefy, authority.RoleSystem), withoutSubmission).
		Permission("can_ready_for_upload", roles(authority.RoleSystem), nil).
		Permission("can_upload", roles(authority.RoleOwner, authority.RoleProjectManager), nil).
		Permission("can_validate", roles(authority.RoleSystem), nil).
		Permission("can_qa", roles(authority.RoleQA), nil).
		Permission("can_perm_reject", roles(authority.RoleQA, authority.RoleProjectManager), nil).
		Permission("can_return_to_qa", roles(authority.RoleQA, authority.RoleProjectManager, authority.RoleSystem), nil).
		Permission("can_refuse", roles(authority.RoleSystem, authority.RoleProjectManager), nil).
		Permission("can_complete", roles(authority.RoleSystem, authority.RoleProjectManager), nil).
		Permission("can_edit_payout", roles(authority.RoleProjectManager, authority.RoleFinance), nil).
		Transition(state.Transition{Name: "submit", Title: "Submit", To: AssignmentPending, Permission: "can_submit"},
			AssignmentCreated).
		Transition(state.Transition{Name: "assign", Title: "Assign", To: AssignmentAssigned, Permission: "can_assign",
			RequiredFields: []string{"professional_id", "payout_value", "payout_currency", "travel_expenses"},
			OptionalFields: []string{"professional_user_id"}, Effect: assignProfessional},
			AssignmentPending, AssignmentPublished).
		Transition(state.Transition{Name: "self_assign", Title: "Self assign", To: AssignmentScheduled, Permission: "can_self_assign",
			RequiredFields: []string{"scheduled_datetime"}, Effect: func(c *state.TransitionContext) error {
				t, err := guard(c)
				if err != nil {
					return err
				}
				member := c.Actor.(PoolMember)
				assignment := c.Document.(*domain.Assignment)
				assignment.ProfessionalID = member.ProfessionalID()
				assignment.ProfessionalUserID = member.PrincipalID()
				assignment.ScheduledDatetime = &t
				return nil
			}}, AssignmentPublished).
		Transition(state.Transition{Name: "assign_pool", Title: "Assign pool", To: AssignmentPublished, Permission: "can_manage_pool",
			RequiredFields: []string{"pool_id"}, OptionalFields: []string{"payout_value", "payout_currency"}, Effect: assignPool},
			AssignmentPending).
		Transition(state.Transition{Name: "retract", Title: "Retract", To: AssignmentPending, Permission: "can_manage_pool",
			Effect: func(c *state.TransitionContext) error {
				c.Document.(*domain.Assignment).PoolID = 0
				return nil
			}}, AssignmentPublished).
		Transition(state.Transition{Name: "schedule", Title: "Schedule", To: AssignmentScheduled, Permission: "can_schedule",
			RequiredFields: []string{"scheduled_datetime"}, Effect: schedule}, AssignmentAssigned).
		Transition(state.Transition{Name: "reschedule", Title: "Reschedule", To: AssignmentScheduled, Permission: "can_schedule",
			RequiredFields: []string{"scheduled_datetime"}, Effect: schedule}, AssignmentScheduled).
		Transition(state.Transition{Name: "remove_schedule", Title: "Remove schedule", To: AssignmentAssigned, Permission: "can_schedule",
			Effect: func(c *state.TransitionContext) error {
				c.Document.(*domain.Assignment).ScheduledDatetime = nil
				return nil
			}}, AssignmentScheduled).
		Transition(state.Transition{Name: "cancel", Title: "Cancel", To: AssignmentCancelled, Permission: "can_cancel"},
			CancellableAssignmentStates...).
		Transition(state.Transition{Name: "ready_for_upload", Title: "Ready for upload", To: AssignmentAwaitingAssets,
			Permission: "can_ready_for_upload"}, AssignmentScheduled).
		Transition(state.Transition{Name: "upload", Title: "Upload", To: AssignmentAssetValidation, Permission: "can_upload",
			RequiredFields: []string{"submission_path"}, Effect: upload}, AssignmentAwaitingAssets).
		Transition(state.Transition{Name: "validate_assets", Title: "Validate assets", To: AssignmentInQA,
			Permission: "can_validate"}, AssignmentAssetValidation).
		Transition(state.Transition{Name: "invalidate_assets", Title: "Invalidate assets", To: AssignmentAwaitingAssets,
			Permission: "can_validate", RequiresMessage: true}, AssignmentAssetValidation).
		Transition(state.Transition{Name: "start_post_process", Title: "Start post processing", To: AssignmentPostProcessing,
			Permission: "can_qa"}, AssignmentInQA).
		Transition(state.Transition{Name: "approve", Title: "Approve", To: AssignmentApproved, Permission: "can_qa"},
			AssignmentInQA).
		Transition(state.Transition{Name: "approve", Title: "Approve", To: AssignmentApproved, Permission: "can_qa",
			RequiredFields: []string{"customer_message"}, Effect: approvePostProcessed}, AssignmentPostProcessing).
		Transition(state.Transition{Name: "reject", Title: "Reject", To: AssignmentAwaitingAssets, Permission: "can_qa",
			RequiresMessage: true}, AssignmentInQA).
		Transition(state.Transition{Name: "perm_reject", Title: "Permanently reject", To: AssignmentPermRejected,
			Permission:     "can_perm_reject",
			OptionalFields: []string{"additional_compensation", "reason_additional_compensation"},
			Effect:         setCompensation}, AssignmentInQA).
		Transition(state.Transition{Name: "return_to_qa", Title: "Return to QA", To: AssignmentInQA, Permission: "can_return_to_qa"},
			AssignmentRefused).
		Transition(state.Transition{Name: "refuse", Title: "Refuse", To: AssignmentRefused, Permission: "can_refuse"},
			AssignmentApproved).
		Transition(state.Transition{Name: "complete", Title: "Complete", To: AssignmentCompleted, Permission: "can_complete"},
			AssignmentInQA, AssignmentPostProcessing, AssignmentApproved, AssignmentRefused).
		Transition(state.Transition{Name: "edit_payout", Title: "Edit payout", Permission: "can_edit_payout",
			RequiredFields: []string{"payout_value", "payout_currency"}, Effect: editPayout},
			AssignmentPending, AssignmentPublished, AssignmentAssigned, AssignmentScheduled, AssignmentAwaitingAssets,
			AssignmentAssetValidation, AssignmentInQA).
		Transition(state.Transition{Name: "edit_compensation", Title: "Edit compensation", Permission: "can_edit_payout",
			RequiredFields: []string{"additional_compensation", "reason_additional_compensation"}, Effect: setCompensation},
			AssignmentInQA, AssignmentPostProcessing, AssignmentApproved, AssignmentCompleted).
		Transition(state.Transition{Name: "assign_qa_manager", Title: "Assign QA manager", Permission: "can_qa",
			RequiredFields: []string{"qa_manager"}, Effect: func(c *state.TransitionContext) error {
				c.Document.(*domain.Assignment).QAManager = c.Fields.String("qa_manager")
				return nil
			}}, AssignmentAwaitingAssets, AssignmentAssetValidation, AssignmentInQA, AssignmentPostProcessing).
		MustBuild()
}

// leadTimeGuard parses scheduled_datetime and rejects shoots closer than the
// configured lead time, the internal group is exempt.
func leadTimeGuard(settings Settings) func(c *state.TransitionContext) (time.Time, error) {
	lead := time.Duration(settings.SchedulingLeadDays) * 24 * time.Hour
	return func(c *state.TransitionContext) (time.Time, error) {
		t, err := c.Fields.Time("scheduled_datetime")
		if err != nil {
			return t, c.Invalid("scheduled_datetime", err)
		}
		if c.Actor.PrincipalRoles().Has(authority.RoleBriefy) {
			return t, nil
		}
		if t.Before(c.Now.Add(lead)) {
			return t, c.Reject("shoot time must be at least %d days in the future", settings.SchedulingLeadDays)
		}
		return t, nil
	}
}

func poolMember(actor state.Principal, doc state.Document, now time.Time) bool {
	member, ok := actor.(PoolMember)
	if !ok {
		return false
	}
	assignment := doc.(*domain.Assignment)
	return assignment.PoolID != 0 && member.MemberOf(assignment.PoolID)
}

func withoutSubmission(actor state.Principal, doc state.Document, now time.Time) bool {
	return !doc.(*domain.Assignment).HasSubmission()
}

func assignProfessional(c *state.TransitionContext) error {
	professionalID, err := FieldID(c.Fields, "professional_id")
	if err != nil {
		return c.Invalid("professional_id", err)
	}
	assignment := c.Document.(*domain.Assignment)
	payout, err := readPayout(c, assignment.Payout)
	if err != nil {
		return err
	}
	travelExpenses, err := c.Fields.Int64("travel_expenses")
	if err != nil {
		return c.Invalid("travel_expenses", err)
	}
	if travelExpenses < 0 {
		return c.Reject("travel expenses must not be negative")
	}

	assignment.ProfessionalID = professionalID
	assignment.ProfessionalUserID = c.Fields.String("professional_user_id")
	assignment.Payout = payout
	assignment.TravelExpenses = travelExpenses
	return nil
}

func assignPool(c *state.TransitionContext) error {
	poolID, err := FieldID(c.Fields, "pool_id")
	if err != nil {
		return c.Invalid("pool_id", err)
	}
	assignment := c.Document.(*domain.Assignment)
	payout := assignment.Payout
	if c.Fields.Has("payout_value") {
		if payout, err = readPayout(c, payout); err != nil {
			return err
		}
	}
	assignment.PoolID = poolID
	assignment.Payout = payout
	return nil
}

func editPayout(c *state.TransitionContext) error {
	assignment := c.Document.(*domain.Assignment)
	payout, err := readPayout(c, assignment.Payout)
	if err != nil {
		return err
	}
	assignment.Payout = payout
	return nil
}

func readPayout(c *state.TransitionContext, current domain.Money) (domain.Money, error) {
	value, err := c.Fields.Int64("payout_value")
	if err != nil {
		return current, c.Invalid("payout_value", err)
	}
	if value < 0 {
		return current, c.Reject("payout must not be negative")
	}
	currency := current.Currency
	if c.Fields.Has("payout_currency") {
		currency = c.Fields.String("payout_currency")
		if err := validate.Var(currency, "len=3,alpha"); err != nil {
			return current, c.Invalid("payout_currency", err)
		}
	}
	return domain.Money{Value: value, Currency: currency}, nil
}

func upload(c *state.TransitionContext) error {
	path := c.Fields.String("submission_path")
	if err := validate.Var(path, "required,url"); err != nil {
		return c.Invalid("submission_path", err)
	}
	c.Document.(*domain.Assignment).SubmissionPath = path
	return nil
}

func approvePostProcessed(c *state.TransitionContext) error {
	assignment := c.Document.(*domain.Assignment)
	if assignment.Order == nil || assignment.Order.Delivery.Archive == "" {
		return c.Reject("cannot approve without archive URL")
	}
	assignment.CustomerMessage = c.Fields.String("customer_message")
	return nil
}

func setCompensation(c *state.TransitionContext) error {
	assignment := c.Document.(*domain.Assignment)
	compensation := assignment.AdditionalCompensation
	if c.Fields.Has("additional_compensation") {
		v, err := c.Fields.Int64("additional_compensation")
		if err != nil {
			return c.Invalid("additional_compensation", err)
		}
		if v < 0 {
			return c.Reject("additional compensation must not be negative")
		}
		compensation = v
	}
	assignment.AdditionalCompensation = compensation
	if c.Fields.Has("reason_additional_compensation") {
		assignment.ReasonAdditionalCompensation = c.Fields.String("reason_additional_compensation")
	}
	return nil
}
