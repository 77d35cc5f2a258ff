package state_test

import (
	"leica/authority"
	"leica/domain/state"
)

type document struct {
	state   string
	history state.History
	owner   string
	note    string
	locked  bool
}

func (d *document) CurrentState() string                   { return d.state }
func (d *document) SetCurrentState(name string)            { d.state = name }
func (d *document) History() state.History                 { return d.history }
func (d *document) AppendHistory(entry state.HistoryEntry) { d.history = append(d.history, entry) }
func (d *document) OwnerIDs() []string                     { return []string{d.owner} }

type actor struct {
	id    string
	roles authority.Roles
}

func (a actor) PrincipalID() string             { return a.id }
func (a actor) PrincipalRoles() authority.Roles { return a.roles }
