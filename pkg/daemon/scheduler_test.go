package daemon

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRejectsInvalidExpression(t *testing.T) {
	s := NewScheduler(func() error { return nil })

	if err := s.Schedule("not a cron expression"); err == nil {
		t.Error("expected an error for a bogus expression")
	}
	if _, running := s.Status(); running {
		t.Error("scheduler must not run after a failed Schedule")
	}
}

func TestSchedulerStatus(t *testing.T) {
	s := NewScheduler(func() error { return nil })

	if err := s.Schedule("@daily"); err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	next, running := s.Status()
	if !running {
		t.Error("scheduler not running after Start")
	}
	if !next.After(time.Now()) {
		t.Errorf("next run %s is not in the future", next)
	}

	s.Stop()
	if _, running := s.Status(); running {
		t.Error("scheduler still running after Stop")
	}
	// Stopping twice must be safe.
	s.Stop()
}

func TestSchedulerFires(t *testing.T) {
	var fired atomic.Int32
	s := NewScheduler(func() error {
		fired.Add(1)
		return nil
	})

	if err := s.Schedule("@every 10ms"); err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for fired.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("task fired %d times, want at least 2", fired.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSchedulerStartWithoutSchedule(t *testing.T) {
	s := NewScheduler(func() error { return nil })
	s.Start()
	if _, running := s.Status(); running {
		t.Error("scheduler must not run without a schedule")
	}
}
