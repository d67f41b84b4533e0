package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyInput aborts a run before any step executes.
var ErrEmptyInput = errors.New("input text is empty")

// Node is what the scheduler knows about an agent: its identity, whether its
// failure demotes the run, and which agents must run before it.
type Node interface {
	ID() string
	Required() bool
	DependsOn() []string
}

// Scheduler computes and caches the execution order of registered nodes.
// Dependencies run before dependents; registration order breaks ties. Cycles
// and missing dependencies are tolerated rather than fatal. Execution is
// strictly sequential because downstream prompts consume upstream results.
type Scheduler struct {
	nodes map[string]Node
	ids   []string
	order []string
}

func NewScheduler() *Scheduler {
	return &Scheduler{nodes: make(map[string]Node)}
}

// Register adds or replaces a node and invalidates the cached order.
func (s *Scheduler) Register(n Node) {
	if _, exists := s.nodes[n.ID()]; !exists {
		s.ids = append(s.ids, n.ID())
	}
	s.nodes[n.ID()] = n
	s.order = nil
}

// Node returns a registered node by id.
func (s *Scheduler) Node(id string) (Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Order returns the cached topological order, recomputing it only after the
// registration set changed.
func (s *Scheduler) Order() []string {
	if s.order == nil {
		s.order = s.computeOrder()
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Scheduler) computeOrder() []string {
	order := make([]string, 0, len(s.ids))
	visited := make(map[string]bool, len(s.ids))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		node, ok := s.nodes[id]
		if !ok {
			return
		}
		// Marking before descending makes cycles terminate instead of fail.
		visited[id] = true
		for _, dep := range node.DependsOn() {
			visit(dep)
		}
		order = append(order, id)
	}

	for _, id := range s.ids {
		visit(id)
	}
	return order
}

// Report summarizes one sequential run: which steps failed and whether a
// required failure demoted the run to partial.
type Report struct {
	Executed []string
	Failures map[string]error
	Partial  bool
}

// Run executes every registered node in dependency order, one at a time. A
// step's error or panic is captured into the report and execution continues;
// a required step's failure marks the run partial. Only an empty input text
// aborts before anything runs.
func (s *Scheduler) Run(ctx context.Context, text string, step func(ctx context.Context, id string) error) (Report, error) {
	if strings.TrimSpace(text) == "" {
		return Report{}, ErrEmptyInput
	}

	report := Report{Failures: make(map[string]error)}
	for _, id := range s.Order() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		err := runStep(ctx, id, step)
		report.Executed = append(report.Executed, id)
		if err != nil {
			report.Failures[id] = err
			if s.nodes[id].Required() {
				report.Partial = true
			}
		}
	}
	return report, nil
}

func runStep(ctx context.Context, id string, step func(ctx context.Context, id string) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", id, r)
		}
	}()
	return step(ctx, id)
}
