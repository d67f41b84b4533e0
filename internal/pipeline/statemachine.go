package pipeline

import (
	"errors"
	"fmt"
)

// StepStatus is the lifecycle state of one pipeline step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepActive    StepStatus = "active"
	StepCompleted StepStatus = "completed"
)

// Step is one agent's slot in a run. Order defines the sequence; Response
// holds the raw text that completed the step.
type Step struct {
	ID       string     `json:"id"`
	Status   StepStatus `json:"status"`
	Response string     `json:"response,omitempty"`
	Order    int        `json:"order"`
}

var (
	ErrStepNotFound     = errors.New("step not found")
	ErrStepNotActive    = errors.New("step is not active")
	ErrStepNotPending   = errors.New("step is not pending")
	ErrStepNotCompleted = errors.New("step is not completed")
	ErrActiveStepExists = errors.New("another step is already active")
)

// Machine owns the step statuses of one run. Transitions are monotonic
// (pending, active, completed) except Reset, which returns a single completed
// step to pending. At most one step is active at a time.
type Machine struct {
	steps   []Step
	current int
}

// NewMachine builds a fresh machine with one pending step per id, ordered as
// given.
func NewMachine(ids []string) *Machine {
	steps := make([]Step, len(ids))
	for i, id := range ids {
		steps[i] = Step{ID: id, Status: StepPending, Order: i}
	}
	return &Machine{steps: steps}
}

// Restore rebuilds a machine from persisted state.
func Restore(steps []Step, currentIndex int) *Machine {
	copied := make([]Step, len(steps))
	copy(copied, steps)
	if currentIndex < 0 {
		currentIndex = 0
	}
	if currentIndex > len(copied) {
		currentIndex = len(copied)
	}
	return &Machine{steps: copied, current: currentIndex}
}

// Steps returns a copy of the step slice.
func (m *Machine) Steps() []Step {
	out := make([]Step, len(m.steps))
	copy(out, m.steps)
	return out
}

// CurrentIndex is the index of the next step to run; it equals len(steps)
// once every step completed.
func (m *Machine) CurrentIndex() int { return m.current }

// Done reports whether every step completed.
func (m *Machine) Done() bool {
	for _, s := range m.steps {
		if s.Status != StepCompleted {
			return false
		}
	}
	return len(m.steps) > 0
}

// ActiveStep returns the currently active step, if any.
func (m *Machine) ActiveStep() (Step, bool) {
	for _, s := range m.steps {
		if s.Status == StepActive {
			return s, true
		}
	}
	return Step{}, false
}

func (m *Machine) index(id string) (int, error) {
	for i, s := range m.steps {
		if s.ID == id {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrStepNotFound, id)
}

// Activate marks a pending step active. Only one step may be active at a
// time; callers either activate the step at CurrentIndex or explicitly select
// another pending step.
func (m *Machine) Activate(id string) error {
	idx, err := m.index(id)
	if err != nil {
		return err
	}
	if active, ok := m.ActiveStep(); ok {
		if active.ID == id {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrActiveStepExists, active.ID)
	}
	if m.steps[idx].Status != StepPending {
		return fmt.Errorf("%w: %s is %s", ErrStepNotPending, id, m.steps[idx].Status)
	}
	m.steps[idx].Status = StepActive
	return nil
}

// Complete stores the validated response and marks the step completed. When
// the completed step sits at CurrentIndex, the index advances past it and
// past any already-completed successors.
func (m *Machine) Complete(id, response string) error {
	idx, err := m.index(id)
	if err != nil {
		return err
	}
	if m.steps[idx].Status != StepActive {
		return fmt.Errorf("%w: %s is %s", ErrStepNotActive, id, m.steps[idx].Status)
	}
	m.steps[idx].Status = StepCompleted
	m.steps[idx].Response = response

	if idx == m.current {
		m.current++
		for m.current < len(m.steps) && m.steps[m.current].Status == StepCompleted {
			m.current++
		}
	}
	return nil
}

// Deactivate returns an active step to pending without recording a response.
// Used when an execution fails so the step stays retryable.
func (m *Machine) Deactivate(id string) error {
	idx, err := m.index(id)
	if err != nil {
		return err
	}
	if m.steps[idx].Status != StepActive {
		return fmt.Errorf("%w: %s is %s", ErrStepNotActive, id, m.steps[idx].Status)
	}
	m.steps[idx].Status = StepPending
	return nil
}

// Reset returns one completed step to pending and clears its response.
// Sibling steps keep their state; CurrentIndex moves back so the step can run
// again.
func (m *Machine) Reset(id string) error {
	idx, err := m.index(id)
	if err != nil {
		return err
	}
	if m.steps[idx].Status != StepCompleted {
		return fmt.Errorf("%w: %s is %s", ErrStepNotCompleted, id, m.steps[idx].Status)
	}
	m.steps[idx].Status = StepPending
	m.steps[idx].Response = ""
	if idx < m.current {
		m.current = idx
	}
	return nil
}
