// Package status periodically logs session states and routing counters.
package status

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"honeypot/internal/domain"
	"honeypot/internal/usecase/scheduling"
	"honeypot/internal/usecase/session"
)

// Counters is a snapshot of routing activity since start.
type Counters struct {
	Routed     uint64
	Unresolved uint64
	RouteError uint64
	Delivered  uint64
	Failed     uint64
}

// Reporter counts bus events and logs a summary on a schedule.
type Reporter struct {
	bus      domain.EventBus
	sessions func() []session.Snapshot
	logger   *slog.Logger
	sched    *scheduling.Scheduler

	routed     atomic.Uint64
	unresolved atomic.Uint64
	routeError atomic.Uint64
	delivered  atomic.Uint64
	failed     atomic.Uint64

	mu    sync.Mutex
	unsub func()
}

// New creates a reporter. sessions supplies the current session snapshots.
func New(bus domain.EventBus, sessions func() []session.Snapshot, logger *slog.Logger) *Reporter {
	return &Reporter{
		bus:      bus,
		sessions: sessions,
		logger:   logger,
		sched:    scheduling.NewScheduler(logger),
	}
}

// Start subscribes to the bus and schedules the report.
func (r *Reporter) Start(ctx context.Context, schedule string) error {
	if err := r.sched.AddTask(scheduling.Task{Name: "status", Schedule: schedule, Run: r.Report}); err != nil {
		return domain.WrapOp("status.Start", err)
	}

	r.mu.Lock()
	r.unsub = r.bus.SubscribeAll(r.count)
	r.mu.Unlock()

	r.sched.Start(ctx)
	return nil
}

// Stop halts the schedule and stops counting.
func (r *Reporter) Stop() {
	r.sched.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unsub != nil {
		r.unsub()
		r.unsub = nil
	}
}

func (r *Reporter) count(_ context.Context, ev domain.Event) {
	switch ev.Type {
	case domain.EventRouted:
		r.routed.Add(1)
	case domain.EventUnresolved:
		r.unresolved.Add(1)
	case domain.EventRouteError:
		r.routeError.Add(1)
	case domain.EventDeliverySucceeded:
		r.delivered.Add(1)
	case domain.EventDeliveryFailed:
		r.failed.Add(1)
	}
}

// Counters returns the current counter values.
func (r *Reporter) Counters() Counters {
	return Counters{
		Routed:     r.routed.Load(),
		Unresolved: r.unresolved.Load(),
		RouteError: r.routeError.Load(),
		Delivered:  r.delivered.Load(),
		Failed:     r.failed.Load(),
	}
}

// Report logs one line per session followed by the counters.
func (r *Reporter) Report(_ context.Context) error {
	ready := 0
	for _, s := range r.sessions() {
		if s.State == domain.SessionReady {
			ready++
		}
		r.logger.Info("session status", "session", s.Label, "state", string(s.State), "user", s.Username)
	}

	c := r.Counters()
	r.logger.Info("honeypot status",
		"sessions_ready", ready,
		"routed", c.Routed,
		"unresolved", c.Unresolved,
		"route_errors", c.RouteError,
		"delivered", c.Delivered,
		"delivery_failed", c.Failed,
	)
	return nil
}
