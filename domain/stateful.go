package domain

import (
	"leica/domain/state"
)

// Stateful is embedded by every entity under workflow control.
type Stateful struct {
	State        string        `json:"state"`
	StateHistory state.History `json:"stateHistory" sql:"type:TEXT"`
	Version      int           `json:"version"`
}

func (s *Stateful) CurrentState() string {
	return s.State
}

func (s *Stateful) SetCurrentState(name string) {
	s.State = name
}

func (s *Stateful) History() state.History {
	return s.StateHistory
}

func (s *Stateful) AppendHistory(entry state.HistoryEntry) {
	s.StateHistory = append(s.StateHistory, entry)
}

// GetVersion and SetVersion serve the optimistic check on save.
func (s *Stateful) GetVersion() int {
	return s.Version
}

func (s *Stateful) SetVersion(v int) {
	s.Version = v
}

// Reset puts a new document in the initial state, unsaved.
func (s *Stateful) Reset(initial string) {
	s.State = initial
	s.StateHistory = state.History{}
	s.Version = 0
}

// Snapshot copies the state part, history included.
func (s Stateful) Snapshot() Stateful {
	s.StateHistory = s.StateHistory.Clone()
	return s
}

// Entity kinds, used in events, indices and REST paths.
const (
	KindOrder           = "order"
	KindAssignment      = "assignment"
	KindProfessional    = "professional"
	KindAsset           = "asset"
	KindPool            = "pool"
	KindCustomer        = "customer"
	KindWorkingLocation = "working_location"
	KindLink            = "link"
)
