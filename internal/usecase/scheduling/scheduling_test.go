package scheduling

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func counting(count *atomic.Int32) func(context.Context) error {
	return func(context.Context) error {
		count.Add(1)
		return nil
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(newTestLogger())
	s.Start(context.Background())
	s.Stop()
}

func TestSchedulerTaskFires(t *testing.T) {
	var count atomic.Int32

	s := NewScheduler(newTestLogger())
	if err := s.AddTask(Task{Name: "status", Schedule: "50ms", Run: counting(&count)}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	time.Sleep(200 * time.Millisecond)
	s.Stop()

	if c := count.Load(); c < 1 {
		t.Errorf("task fired %d times, expected at least 1", c)
	}
}

func TestSchedulerStopHaltsTasks(t *testing.T) {
	var count atomic.Int32

	s := NewScheduler(newTestLogger())
	_ = s.AddTask(Task{Name: "status", Schedule: "50ms", Run: counting(&count)})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	time.Sleep(150 * time.Millisecond)
	cancel()
	s.Stop()

	countAfterStop := count.Load()
	time.Sleep(100 * time.Millisecond)

	if count.Load() != countAfterStop {
		t.Error("task continued after stop")
	}
}

func TestSchedulerMultipleTasks(t *testing.T) {
	var a, b atomic.Int32

	s := NewScheduler(newTestLogger())
	_ = s.AddTask(Task{Name: "a", Schedule: "50ms", Run: counting(&a)})
	_ = s.AddTask(Task{Name: "b", Schedule: "50ms", Run: counting(&b)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	time.Sleep(200 * time.Millisecond)
	s.Stop()

	if a.Load() < 1 || b.Load() < 1 {
		t.Errorf("tasks fired a=%d b=%d, expected both at least once", a.Load(), b.Load())
	}
}

func TestSchedulerTaskErrorKeepsRunning(t *testing.T) {
	var count atomic.Int32

	s := NewScheduler(newTestLogger())
	_ = s.AddTask(Task{Name: "failing", Schedule: "50ms", Run: func(context.Context) error {
		count.Add(1)
		return fmt.Errorf("simulated error")
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	time.Sleep(250 * time.Millisecond)
	s.Stop()

	if c := count.Load(); c < 2 {
		t.Errorf("failing task fired %d times, expected repeated runs", c)
	}
}

func TestSchedulerDoubleStop(t *testing.T) {
	s := NewScheduler(newTestLogger())
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s := NewScheduler(newTestLogger())
	s.Stop()
}

func TestSchedulerRejectsBadTasks(t *testing.T) {
	s := NewScheduler(newTestLogger())

	if err := s.AddTask(Task{Name: "bad", Schedule: "not-valid", Run: func(context.Context) error { return nil }}); err == nil {
		t.Error("expected error for invalid schedule string")
	}
	if err := s.AddTask(Task{Name: "nil", Schedule: "1h"}); err == nil {
		t.Error("expected error for missing run function")
	}
}

func TestParseSchedule(t *testing.T) {
	valid := []string{"*/5 * * * *", "@every 30m", "@hourly", "30m", "100ms"}
	for _, s := range valid {
		sched, err := ParseSchedule(s)
		if err != nil {
			t.Errorf("ParseSchedule(%q): %v", s, err)
			continue
		}
		if sched == nil {
			t.Errorf("ParseSchedule(%q) returned nil schedule", s)
		}
	}

	invalid := []string{"", "not-a-schedule", "-5m", "0s"}
	for _, s := range invalid {
		if _, err := ParseSchedule(s); err == nil {
			t.Errorf("ParseSchedule(%q): expected error", s)
		}
	}
}

func TestConstantDelayNext(t *testing.T) {
	sched, err := ParseSchedule("90s")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := sched.Next(now); !got.Equal(now.Add(90 * time.Second)) {
		t.Errorf("Next = %v, want %v", got, now.Add(90*time.Second))
	}
}
