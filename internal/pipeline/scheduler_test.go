package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type fakeNode struct {
	id       string
	required bool
	deps     []string
}

func (n fakeNode) ID() string          { return n.id }
func (n fakeNode) Required() bool      { return n.required }
func (n fakeNode) DependsOn() []string { return n.deps }

func TestSchedulerOrdersDependenciesFirst(t *testing.T) {
	s := NewScheduler()
	s.Register(fakeNode{id: "feedback", deps: []string{"grammar", "criteria"}})
	s.Register(fakeNode{id: "grammar"})
	s.Register(fakeNode{id: "criteria"})

	got := s.Order()
	want := []string{"grammar", "criteria", "feedback"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestSchedulerCachesOrderUntilRegistration(t *testing.T) {
	s := NewScheduler()
	s.Register(fakeNode{id: "a"})
	first := s.Order()

	s.Register(fakeNode{id: "b", deps: []string{"a"}})
	second := s.Order()
	if len(first) != 1 || len(second) != 2 {
		t.Fatalf("orders = %v then %v", first, second)
	}
}

func TestSchedulerToleratesCyclesAndMissingDeps(t *testing.T) {
	s := NewScheduler()
	s.Register(fakeNode{id: "a", deps: []string{"b", "ghost"}})
	s.Register(fakeNode{id: "b", deps: []string{"a"}})

	got := s.Order()
	if len(got) != 2 {
		t.Fatalf("order = %v, want both nodes exactly once", got)
	}
}

func TestRunRejectsEmptyInput(t *testing.T) {
	s := NewScheduler()
	s.Register(fakeNode{id: "a"})

	_, err := s.Run(context.Background(), "   ", func(ctx context.Context, id string) error {
		t.Fatal("step executed despite empty input")
		return nil
	})
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestRunContinuesPastFailures(t *testing.T) {
	s := NewScheduler()
	s.Register(fakeNode{id: "grammar", required: true})
	s.Register(fakeNode{id: "theme"})
	s.Register(fakeNode{id: "feedback", required: true, deps: []string{"grammar", "theme"}})

	boom := errors.New("model unavailable")
	report, err := s.Run(context.Background(), "texto", func(ctx context.Context, id string) error {
		if id == "grammar" {
			return boom
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Partial {
		t.Fatal("required failure did not mark run partial")
	}
	if len(report.Executed) != 3 {
		t.Fatalf("executed = %v, want every step", report.Executed)
	}
	if !errors.Is(report.Failures["grammar"], boom) {
		t.Fatalf("failures = %v", report.Failures)
	}
}

func TestRunOptionalFailureIsNotPartial(t *testing.T) {
	s := NewScheduler()
	s.Register(fakeNode{id: "theme"})

	report, err := s.Run(context.Background(), "texto", func(ctx context.Context, id string) error {
		return errors.New("nope")
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Partial {
		t.Fatal("optional failure marked run partial")
	}
}

func TestRunCapturesPanic(t *testing.T) {
	s := NewScheduler()
	s.Register(fakeNode{id: "a", required: true})

	report, err := s.Run(context.Background(), "texto", func(ctx context.Context, id string) error {
		panic("agent blew up")
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failures["a"] == nil || !report.Partial {
		t.Fatalf("report = %+v", report)
	}
}
