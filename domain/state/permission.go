package state

import (
	"leica/authority"
	"time"
)

// Principal is the acting user or service.
type Principal interface {
	PrincipalID() string
	PrincipalRoles() authority.Roles
}

// Document is an entity under workflow control.
type Document interface {
	CurrentState() string
	SetCurrentState(name string)
	History() History
	AppendHistory(entry HistoryEntry)
}

// Owned documents grant authority.RoleOwner to the listed principal ids.
type Owned interface {
	OwnerIDs() []string
}

// Check is the data dependent part of a permission. It must not mutate doc.
type Check func(actor Principal, doc Document, now time.Time) bool

// Permission is a reusable, named guard of transitions.
type Permission struct {
	Name  string          `json:"name"`
	Roles authority.Roles `json:"roles"`
	Check Check           `json:"-"`
}

// Evaluate holds iff the actor's effective roles intersect p.Roles and the
// check, when present, passes.
func (p *Permission) Evaluate(actor Principal, doc Document, now time.Time) bool {
	if actor == nil {
		return false
	}
	if !EffectiveRoles(actor, doc).Intersects(p.Roles) {
		return false
	}
	return p.Check == nil || p.Check(actor, doc, now)
}

// EffectiveRoles is the actor's roles plus the local owner role on doc.
func EffectiveRoles(actor Principal, doc Document) authority.Roles {
	roles := actor.PrincipalRoles()
	owned, ok := doc.(Owned)
	if !ok || actor.PrincipalID() == "" {
		return roles
	}
	for _, id := range owned.OwnerIDs() {
		if id != "" && id == actor.PrincipalID() {
			return roles.With(authority.RoleOwner)
		}
	}
	return roles
}

// Roles is shorthand for authority.NewRoles in declarations.
func Roles(roles ...authority.Role) authority.Roles {
	return authority.NewRoles(roles...)
}
