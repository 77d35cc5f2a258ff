package flow

import (
	"leica/authority"
	"leica/domain"
	"leica/domain/state"
)

const (
	ProfessionalPending    = "pending"
	ProfessionalValidation = "validation"
	ProfessionalActive     = "active"
	ProfessionalRejected   = "rejected"
	ProfessionalInactive   = "inactive"
)

func professionalWorkflow() *state.StateMachine {
	roles := state.Roles
	return state.NewBuilder(domain.KindProfessional, ProfessionalPending,
		state.State{Name: ProfessionalPending, Title: "Pending", Description: "Profile being filled in"},
		state.State{Name: ProfessionalValidation, Title: "Validation", Description: "Profile under review"},
		state.State{Name: ProfessionalActive, Title: "Active"},
		state.State{Name: ProfessionalRejected, Title: "Rejected"},
		state.State{Name: ProfessionalInactive, Title: "Inactive"},
	).
		Permission("can_submit", roles(authority.RoleOwner, authority.RoleScout, authority.RoleQA), nil).
		Permission("can_review", roles(authority.RoleScout, authority.RoleQA), nil).
		Permission("can_retract", roles(authority.RoleOwner, authority.RoleScout), nil).
		Permission("can_toggle", roles(authority.RoleScout, authority.RoleQA, authority.RoleProjectManager), nil).
		Transition(state.Transition{Name: "submit", Title: "Submit", To: ProfessionalValidation, Permission: "can_submit"},
			ProfessionalPending).
		Transition(state.Transition{Name: "approve", Title: "Approve", To: ProfessionalActive, Permission: "can_review"},
			ProfessionalValidation).
		Transition(state.Transition{Name: "reject", Title: "Reject", To: ProfessionalRejected, Permission: "can_review",
			RequiresMessage: true}, ProfessionalValidation).
		Transition(state.Transition{Name: "retract", Title: "Retract", To: ProfessionalPending, Permission: "can_retract"},
			ProfessionalValidation).
		Transition(state.Transition{Name: "inactivate", Title: "Inactivate", To: ProfessionalInactive, Permission: "can_toggle"},
			ProfessionalActive).
		Transition(state.Transition{Name: "activate", Title: "Activate", To: ProfessionalActive, Permission: "can_toggle"},
			ProfessionalInactive).
		MustBuild()
}

const (
	AssetPending   = "pending"
	AssetApproved  = "approved"
	AssetRejected  = "rejected"
	AssetDelivered = "delivered"
)

func assetWorkflow() *state.StateMachine {
	roles := state.Roles
	return state.NewBuilder(domain.KindAsset, AssetPending,
		state.State{Name: AssetPending, Title: "Pending"},
		state.State{Name: AssetApproved, Title: "Approved"},
		state.State{Name: AssetRejected, Title: "Rejected"},
		state.State{Name: AssetDelivered, Title: "Delivered"},
	).
		Permission("can_qa", roles(authority.RoleQA), nil).
		Permission("can_deliver", roles(authority.RoleSystem), nil).
		Transition(state.Transition{Name: "approve", Title: "Approve", To: AssetApproved, Permission: "can_qa"}, AssetPending).
		Transition(state.Transition{Name: "reject", Title: "Reject", To: AssetRejected, Permission: "can_qa",
			RequiresMessage: true}, AssetPending).
		Transition(state.Transition{Name: "retract", Title: "Retract", To: AssetPending, Permission: "can_qa"},
			AssetApproved, AssetRejected).
		Transition(state.Transition{Name: "deliver", Title: "Deliver", To: AssetDelivered, Permission: "can_deliver"},
			AssetApproved).
		MustBuild()
}

// Shared by pools, customers, working locations and links.
const (
	ResourceCreated  = "created"
	ResourcePending  = "pending"
	ResourceActive   = "active"
	ResourceInactive = "inactive"
)

func poolWorkflow() *state.StateMachine {
	return state.NewBuilder(domain.KindPool, ResourceCreated,
		state.State{Name: ResourceCreated, Title: "Created"},
		state.State{Name: ResourceActive, Title: "Active"},
		state.State{Name: ResourceInactive, Title: "Inactive"},
	).
		Permission("can_manage", state.Roles(authority.RoleProjectManager, authority.RoleScout), nil).
		Transition(state.Transition{Name: "activate", Title: "Activate", To: ResourceActive, Permission: "can_manage"},
			ResourceCreated).
		Transition(state.Transition{Name: "disable", Title: "Disable", To: ResourceInactive, Permission: "can_manage"},
			ResourceActive).
		Transition(state.Transition{Name: "enable", Title: "Enable", To: ResourceActive, Permission: "can_manage"},
			ResourceInactive).
		MustBuild()
}

func customerWorkflow() *state.StateMachine {
	roles := state.Roles
	return state.NewBuilder(domain.KindCustomer, ResourceCreated,
		state.State{Name: ResourceCreated, Title: "Created"},
		state.State{Name: ResourcePending, Title: "Pending"},
		state.State{Name: ResourceActive, Title: "Active"},
		state.State{Name: ResourceInactive, Title: "Inactive"},
	).
		Permission("can_submit", roles(authority.RoleProjectManager, authority.RoleBriefy), nil).
		Permission("can_manage", roles(authority.RoleProjectManager), nil).
		Transition(state.Transition{Name: "submit", Title: "Submit", To: ResourcePending, Permission: "can_submit"},
			ResourceCreated).
		Transition(state.Transition{Name: "activate", Title: "Activate", To: ResourceActive, Permission: "can_manage"},
			ResourcePending, ResourceInactive).
		Transition(state.Transition{Name: "inactivate", Title: "Inactivate", To: ResourceInactive, Permission: "can_manage"},
			ResourceActive).
		MustBuild()
}

func activationWorkflow(kind string) *state.StateMachine {
	return state.NewBuilder(kind, ResourceCreated,
		state.State{Name: ResourceCreated, Title: "Created"},
		state.State{Name: ResourceActive, Title: "Active"},
		state.State{Name: ResourceInactive, Title: "Inactive"},
	).
		Permission("can_manage", state.Roles(authority.RoleOwner, authority.RoleScout, authority.RoleProjectManager), nil).
		Transition(state.Transition{Name: "activate", Title: "Activate", To: ResourceActive, Permission: "can_manage"},
			ResourceCreated, ResourceInactive).
		Transition(state.Transition{Name: "inactivate", Title: "Inactivate", To: ResourceInactive, Permission: "can_manage"},
			ResourceActive).
		MustBuild()
}
