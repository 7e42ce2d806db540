package fleet

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeRunner struct {
	mu      sync.Mutex
	callers []Caller
	kinds   []ProbeKind
}

func (f *fakeRunner) RunFleetCheck(_ context.Context, caller Caller, kind ProbeKind) (*Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callers = append(f.callers, caller)
	f.kinds = append(f.kinds, kind)
	return &Summary{}, nil
}

func (f *fakeRunner) runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.callers)
}

func TestSchedulerRejectsInvalidExpression(t *testing.T) {
	s := NewScheduler(&fakeRunner{}, "not a cron expr", zap.NewNop())
	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestSchedulerRunsAsSystem(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner, "@every 10ms", zap.NewNop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for runner.runs() == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduler never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.callers[0] != SystemCaller {
		t.Errorf("caller = %+v, want SystemCaller", runner.callers[0])
	}
	if runner.kinds[0] != KindHealth {
		t.Errorf("kind = %q, want %q", runner.kinds[0], KindHealth)
	}
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s := NewScheduler(&fakeRunner{}, "@hourly", zap.NewNop())
	s.Stop() // must not panic
}
