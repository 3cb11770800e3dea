// Package lifecycle is the status-transition engine shared by orders,
// appointments, lab bookings, deliveries and prescriptions. Each kind owns a
// declarative Table; the Machine validates and applies actions against it.
package lifecycle

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

type (
	Kind      string
	Status    string
	Action    string
	Milestone string
)

const (
	KindOrder        Kind = "order"
	KindAppointment  Kind = "appointment"
	KindLabBooking   Kind = "lab_booking"
	KindDelivery     Kind = "delivery"
	KindPrescription Kind = "prescription"
)

// Write-once timestamps stamped when an entity first reaches certain statuses.
const (
	MilestoneConfirmed Milestone = "confirmed_at"
	MilestoneAssigned  Milestone = "assigned_at"
	MilestonePickedUp  Milestone = "picked_up_at"
	MilestoneDelivered Milestone = "delivered_at"
	MilestoneCompleted Milestone = "completed_at"
	MilestoneRejected  Milestone = "rejected_at"
	MilestoneCancelled Milestone = "cancelled_at"
	MilestoneProcessed Milestone = "processed_at"
)

// StatusHeld is a rule target meaning "the status recorded by the last
// holding rule".
const StatusHeld Status = "@held"

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnknownKind       = errors.New("unknown lifecycle kind")
)

// InvalidTransitionError carries the rejected move so callers can show
// exactly what was refused.
type InvalidTransitionError struct {
	Kind   Kind
	Status Status
	Action Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s in status %s", e.Action, e.Kind, e.Status)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// State is the lifecycle part of every entity. Held is only set while an
// entity sits in an escalation status that later resumes.
type State struct {
	Status    Status    `db:"status" json:"status"`
	Held      Status    `db:"held_status" json:"held_status,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Entity is anything the Machine can move.
type Entity interface {
	Kind() Kind
	Lifecycle() *State
	Stamp(m Milestone, at time.Time)
}

// Machine applies actions using the table registered for each kind.
type Machine struct {
	tables map[Kind]*Table
	now    func() time.Time
}

// NewMachine registers tables. With no tables it uses the built-in ones.
func NewMachine(tables ...*Table) *Machine {
	if len(tables) == 0 {
		tables = DefaultTables()
	}
	m := &Machine{
		tables: make(map[Kind]*Table, len(tables)),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, t := range tables {
		m.tables[t.kind] = t
	}
	return m
}

// WithClock replaces the time source. Used by tests.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

// Table returns the table registered for kind.
func (m *Machine) Table(kind Kind) (*Table, error) {
	t, ok := m.tables[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return t, nil
}

// Transition moves e by action. On error e is left exactly as it was.
func (m *Machine) Transition(e Entity, action Action) error {
	t, err := m.Table(e.Kind())
	if err != nil {
		return err
	}
	return t.Apply(e, action, m.now())
}

// Rule is one row of a transition table. Every status in From accepts Action
// and moves to To. Hold records the status being left so a later rule
// targeting StatusHeld can return to it.
type Rule struct {
	From   []Status
	Action Action
	To     Status
	Hold   bool
}

type edge struct {
	from   Status
	action Action
}

type target struct {
	to   Status
	hold bool
}

// Table is one kind's declarative rule set.
type Table struct {
	kind       Kind
	initial    Status
	edges      map[edge]target
	terminal   map[Status]bool
	milestones map[Status]Milestone
}

// NewTable builds a table. It panics on conflicting rules since tables are
// static program data.
func NewTable(kind Kind, initial Status, rules []Rule, terminal []Status, milestones map[Status]Milestone) *Table {
	t := &Table{
		kind:       kind,
		initial:    initial,
		edges:      make(map[edge]target),
		terminal:   make(map[Status]bool, len(terminal)),
		milestones: milestones,
	}
	for _, s := range terminal {
		t.terminal[s] = true
	}
	for _, r := range rules {
		for _, from := range r.From {
			if t.terminal[from] {
				panic(fmt.Sprintf("lifecycle: %s rule %s leaves terminal status %s", kind, r.Action, from))
			}
			k := edge{from: from, action: r.Action}
			if _, dup := t.edges[k]; dup {
				panic(fmt.Sprintf("lifecycle: duplicate %s rule (%s, %s)", kind, from, r.Action))
			}
			t.edges[k] = target{to: r.To, hold: r.Hold}
		}
	}
	return t
}

func (t *Table) Kind() Kind      { return t.kind }
func (t *Table) Initial() Status { return t.initial }

// IsTerminal reports whether no action leaves s.
func (t *Table) IsTerminal(s Status) bool { return t.terminal[s] }

// Actions lists the actions accepted in status s, sorted.
func (t *Table) Actions(s Status) []Action {
	var out []Action
	for k := range t.edges {
		if k.from == s {
			out = append(out, k.action)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Next resolves the status action would lead to from the given state.
func (t *Table) Next(st State, action Action) (Status, bool) {
	tg, ok := t.edges[edge{from: st.Status, action: action}]
	if !ok {
		return "", false
	}
	if tg.to == StatusHeld {
		if st.Held == "" {
			return "", false
		}
		return st.Held, true
	}
	return tg.to, true
}

// Apply validates and performs one transition at time at.
func (t *Table) Apply(e Entity, action Action, at time.Time) error {
	st := e.Lifecycle()
	next, ok := t.Next(*st, action)
	if !ok {
		return &InvalidTransitionError{Kind: t.kind, Status: st.Status, Action: action}
	}

	tg := t.edges[edge{from: st.Status, action: action}]
	switch {
	case tg.hold:
		st.Held = st.Status
	case st.Held != "":
		st.Held = ""
	}
	st.Status = next
	st.UpdatedAt = at

	if m, ok := t.milestones[next]; ok {
		e.Stamp(m, at)
	}
	return nil
}

// SetOnce assigns at to *field unless it already holds a time.
func SetOnce(field **time.Time, at time.Time) {
	if *field != nil {
		return
	}
	v := at
	*field = &v
}
