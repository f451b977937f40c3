// Package lifecycle provides the declarative instance state machine shared by
// backends (which declare it) and the API service (which consults it to decide
// which actions are legal in which state).
//
// A machine is declared as an ordered table of rules and validated once at
// construction; all queries afterwards are pure.
package lifecycle

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidMachine is wrapped by every construction-time validation error.
var ErrInvalidMachine = errors.New("invalid state machine")

// Rule is one declared (from, to, trigger) tuple.
// An empty Action marks a transition that fires automatically.
type Rule struct {
	From   string
	To     string
	Action string
}

// On declares a transition triggered by a client-initiated action.
func On(from, to, action string) Rule {
	return Rule{From: from, To: to, Action: action}
}

// Auto declares a transition that happens without a client action.
func Auto(from, to string) Rule {
	return Rule{From: from, To: to}
}

// IsAutomatic reports whether the rule has no trigger action.
func (r Rule) IsAutomatic() bool {
	return r.Action == ""
}

// Transition is an outbound edge of a State.
type Transition struct {
	To     string
	Action string // empty for automatic transitions
}

// IsAutomatic reports whether the transition has no explicit trigger action.
func (t Transition) IsAutomatic() bool {
	return t.Action == ""
}

// IsAutomatic is the free-function form of Transition.IsAutomatic.
func IsAutomatic(t Transition) bool {
	return t.IsAutomatic()
}

// State is a named node with its outbound transitions in declaration order.
type State struct {
	Name        string
	Transitions []Transition
}

// IsTerminal reports whether the state has no outbound transitions.
func (s State) IsTerminal() bool {
	return len(s.Transitions) == 0
}

// ActionSet is a set of trigger action names.
type ActionSet map[string]struct{}

// Has reports whether the set contains action.
func (s ActionSet) Has(action string) bool {
	_, ok := s[action]
	return ok
}

// Sorted returns the members in lexical order.
func (s ActionSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Edge is one transition in the graph projection.
type Edge struct {
	From      string
	To        string
	Action    string
	Automatic bool
}

// Graph is an order-preserving projection of the declared table.
type Graph struct {
	Nodes []string
	Edges []Edge
}

// Machine is a validated, immutable state machine.
type Machine struct {
	rules     []Rule
	states    []State
	index     map[string]int
	start     string
	terminals []string
}

// New builds a machine from an ordered rule table.
// States are ordered by first appearance in the table.
func New(rules []Rule) (*Machine, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: no transitions declared", ErrInvalidMachine)
	}

	m := &Machine{
		rules: append([]Rule(nil), rules...),
		index: make(map[string]int),
	}

	addState := func(name string) int {
		if i, ok := m.index[name]; ok {
			return i
		}
		m.states = append(m.states, State{Name: name})
		m.index[name] = len(m.states) - 1
		return len(m.states) - 1
	}

	seen := make(map[Rule]bool)
	targets := make(map[[2]string]string) // (from, action) -> to
	incoming := make(map[string]bool)

	for i, r := range rules {
		if r.From == "" || r.To == "" {
			return nil, fmt.Errorf("%w: rule %d has an empty state name", ErrInvalidMachine, i)
		}
		if seen[r] {
			return nil, fmt.Errorf("%w: duplicate rule %s -> %s (%s)", ErrInvalidMachine, r.From, r.To, triggerName(r.Action))
		}
		seen[r] = true

		if r.Action != "" {
			key := [2]string{r.From, r.Action}
			if prev, ok := targets[key]; ok && prev != r.To {
				return nil, fmt.Errorf("%w: action %q from %q leads to both %q and %q",
					ErrInvalidMachine, r.Action, r.From, prev, r.To)
			}
			targets[key] = r.To
		}

		from := addState(r.From)
		addState(r.To)
		m.states[from].Transitions = append(m.states[from].Transitions, Transition{To: r.To, Action: r.Action})

		if r.From != r.To {
			incoming[r.To] = true
		}
	}

	var starts []string
	for _, s := range m.states {
		if !incoming[s.Name] {
			starts = append(starts, s.Name)
		}
		if s.IsTerminal() {
			m.terminals = append(m.terminals, s.Name)
		}
	}

	if len(starts) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one start state, found %d %v", ErrInvalidMachine, len(starts), starts)
	}
	if len(m.terminals) == 0 {
		return nil, fmt.Errorf("%w: no terminal state", ErrInvalidMachine)
	}
	m.start = starts[0]

	return m, nil
}

// MustNew is New for statically declared tables; it panics on an invalid table.
func MustNew(rules []Rule) *Machine {
	m, err := New(rules)
	if err != nil {
		panic(err)
	}
	return m
}

// Start returns the unique start state.
func (m *Machine) Start() string {
	return m.start
}

// Terminals returns the states without outbound transitions.
func (m *Machine) Terminals() []string {
	return append([]string(nil), m.terminals...)
}

// IsTerminal reports whether name is a known terminal state.
func (m *Machine) IsTerminal(name string) bool {
	s, ok := m.State(name)
	return ok && s.IsTerminal()
}

// Rules returns a copy of the declared table.
func (m *Machine) Rules() []Rule {
	return append([]Rule(nil), m.rules...)
}

// States returns all states in declaration order.
func (m *Machine) States() []State {
	out := make([]State, len(m.states))
	for i, s := range m.states {
		out[i] = State{Name: s.Name, Transitions: append([]Transition(nil), s.Transitions...)}
	}
	return out
}

// State looks up a state by name.
func (m *Machine) State(name string) (State, bool) {
	i, ok := m.index[name]
	if !ok {
		return State{}, false
	}
	s := m.states[i]
	return State{Name: s.Name, Transitions: append([]Transition(nil), s.Transitions...)}, true
}

// TransitionsFrom returns the outbound transitions of a state.
// Unknown states have none.
func (m *Machine) TransitionsFrom(name string) []Transition {
	s, _ := m.State(name)
	return s.Transitions
}

// ActionsAvailableFrom returns the explicit trigger actions leaving a state.
func (m *Machine) ActionsAvailableFrom(name string) ActionSet {
	set := make(ActionSet)
	for _, t := range m.TransitionsFrom(name) {
		if !t.IsAutomatic() {
			set[t.Action] = struct{}{}
		}
	}
	return set
}

// Actions returns the explicit trigger actions leaving a state, deduplicated,
// in declaration order.
func (m *Machine) Actions(name string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range m.TransitionsFrom(name) {
		if t.IsAutomatic() || seen[t.Action] {
			continue
		}
		seen[t.Action] = true
		out = append(out, t.Action)
	}
	return out
}

// CanPerform reports whether action is a legal trigger in state.
func (m *Machine) CanPerform(state, action string) bool {
	_, ok := m.Next(state, action)
	return ok
}

// Next returns the destination reached from state by action.
func (m *Machine) Next(state, action string) (string, bool) {
	if action == "" {
		return "", false
	}
	for _, t := range m.TransitionsFrom(state) {
		if t.Action == action {
			return t.To, true
		}
	}
	return "", false
}

// Settle follows automatic transitions from state until none apply.
// A state is never visited twice, so automatic cycles terminate.
func (m *Machine) Settle(state string) string {
	visited := map[string]bool{state: true}
	for {
		next := ""
		for _, t := range m.TransitionsFrom(state) {
			if t.IsAutomatic() && t.To != state {
				next = t.To
				break
			}
		}
		if next == "" || visited[next] {
			return state
		}
		visited[next] = true
		state = next
	}
}

// Graph returns the nodes and edges in declaration order.
func (m *Machine) Graph() Graph {
	g := Graph{Nodes: make([]string, len(m.states))}
	for i, s := range m.states {
		g.Nodes[i] = s.Name
		for _, t := range s.Transitions {
			g.Edges = append(g.Edges, Edge{From: s.Name, To: t.To, Action: t.Action, Automatic: t.IsAutomatic()})
		}
	}
	return g
}

func triggerName(action string) string {
	if action == "" {
		return "automatically"
	}
	return "on " + action
}
