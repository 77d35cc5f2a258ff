package state

import (
	"fmt"
	"leica/authority"
	"time"
)

// State is one named state of an entity type. States never change once declared.
type State struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// StateMachine is the immutable declaration of one entity type's workflow:
// states, permissions and the (source state, transition name) edge table.
// It is stateless, a Workflow binds it to a document and an actor.
type StateMachine struct {
	Entity  string `json:"entity"`
	Initial string `json:"initial"`

	states      []State
	permissions map[string]*Permission
	transitions []*Transition
	edges       map[edgeKey]*Transition
}

type edgeKey struct {
	from string
	name string
}

// States returns the declared states in declaration order.
func (sm *StateMachine) States() []State {
	r := make([]State, len(sm.states))
	copy(r, sm.states)
	return r
}

// Transitions returns every declared edge in declaration order.
func (sm *StateMachine) Transitions() []Transition {
	r := make([]Transition, 0, len(sm.transitions))
	for _, t := range sm.transitions {
		r = append(r, *t)
	}
	return r
}

func (sm *StateMachine) FindState(name string) (State, bool) {
	for _, s := range sm.states {
		if s.Name == name {
			return s, true
		}
	}
	return State{}, false
}

// FindTransition resolves the edge named name leaving state from.
func (sm *StateMachine) FindTransition(from, name string) (*Transition, bool) {
	t, found := sm.edges[edgeKey{from: from, name: name}]
	return t, found
}

// AvailableTransitions filters edges by source and target state, an empty
// argument matches any state. No permission is evaluated.
func (sm *StateMachine) AvailableTransitions(fromState string, toState string) []Transition {
	r := []Transition{}
	for _, transition := range sm.transitions {
		if (fromState == "" || fromState == transition.From) && (toState == "" || toState == transition.To) {
			r = append(r, *transition)
		}
	}
	return r
}

// Unreachable lists the states that no chain of edges leads to from Initial.
func (sm *StateMachine) Unreachable() []string {
	visited := map[string]bool{sm.Initial: true}
	queue := []string{sm.Initial}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, t := range sm.transitions {
			if t.From == current && !visited[t.To] {
				visited[t.To] = true
				queue = append(queue, t.To)
			}
		}
	}

	r := []string{}
	for _, s := range sm.states {
		if !visited[s.Name] {
			r = append(r, s.Name)
		}
	}
	return r
}

// Bind creates the per-use workflow of document acting as actor.
func (sm *StateMachine) Bind(document Document, actor Principal) *Workflow {
	return &Workflow{machine: sm, document: document, actor: actor, now: time.Now}
}

// Builder collects declarations for one entity type. It is used once at
// startup, Build returns the immutable StateMachine.
type Builder struct {
	machine *StateMachine
	errs    []error
}

func NewBuilder(entity, initial string, states ...State) *Builder {
	return &Builder{machine: &StateMachine{
		Entity:      entity,
		Initial:     initial,
		states:      states,
		permissions: map[string]*Permission{},
		edges:       map[edgeKey]*Transition{},
	}}
}

// Permission declares a named guard. check may be nil, then only the roles count.
func (b *Builder) Permission(name string, roles authority.Roles, check Check) *Builder {
	if _, exists := b.machine.permissions[name]; exists {
		b.errs = append(b.errs, fmt.Errorf("%s: permission %q declared twice", b.machine.Entity, name))
		return b
	}
	b.machine.permissions[name] = &Permission{Name: name, Roles: roles, Check: check}
	return b
}

// Transition declares t once per source state. Declaring the same name from
// several states is the fan-in form; t.From is ignored. An empty t.To keeps
// the document in its source state.
func (b *Builder) Transition(t Transition, from ...string) *Builder {
	if len(from) == 0 {
		b.errs = append(b.errs, fmt.Errorf("%s: transition %q has no source state", b.machine.Entity, t.Name))
	}
	for _, source := range from {
		edge := t
		edge.From = source
		if edge.To == "" {
			edge.To = source
		}
		edge.RequiredFields = append([]string(nil), t.RequiredFields...)
		edge.OptionalFields = append([]string(nil), t.OptionalFields...)
		key := edgeKey{from: source, name: t.Name}
		if _, exists := b.machine.edges[key]; exists {
			b.errs = append(b.errs, fmt.Errorf("%s: transition %q declared twice from %q", b.machine.Entity, t.Name, source))
			continue
		}
		b.machine.edges[key] = &edge
		b.machine.transitions = append(b.machine.transitions, &edge)
	}
	return b
}

func (b *Builder) Build() (*StateMachine, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	sm := b.machine
	seen := map[string]bool{}
	for _, s := range sm.states {
		if s.Name == "" {
			return nil, fmt.Errorf("%s: state without name", sm.Entity)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("%s: state %q declared twice", sm.Entity, s.Name)
		}
		seen[s.Name] = true
	}
	if !seen[sm.Initial] {
		return nil, fmt.Errorf("%s: initial state %q is not declared", sm.Entity, sm.Initial)
	}
	for _, t := range sm.transitions {
		if !seen[t.From] {
			return nil, fmt.Errorf("%s: transition %q leaves unknown state %q", sm.Entity, t.Name, t.From)
		}
		if !seen[t.To] {
			return nil, fmt.Errorf("%s: transition %q enters unknown state %q", sm.Entity, t.Name, t.To)
		}
		if _, found := sm.permissions[t.Permission]; !found {
			return nil, fmt.Errorf("%s: transition %q uses unknown permission %q", sm.Entity, t.Name, t.Permission)
		}
	}
	b.machine = nil
	return sm, nil
}

// MustBuild is Build for package level declarations.
func (b *Builder) MustBuild() *StateMachine {
	sm, err := b.Build()
	if err != nil {
		panic(err)
	}
	return sm
}
