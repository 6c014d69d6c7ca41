// Package router implements the per-event pipeline: filter, resolve the
// acting user, format the report and fan it out to every sink.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"honeypot/internal/domain"
	"honeypot/internal/infra/tracer"
	"honeypot/internal/usecase/report"
)

// Router dispatches qualifying inbound events to the configured sinks.
// The sink list is fixed at construction and only read afterwards, so
// Route is safe to call concurrently from every session.
type Router struct {
	sinks  []domain.Sink
	bus    domain.EventBus // nil = no lifecycle events
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Router for sinks. bus may be nil.
func New(sinks []domain.Sink, bus domain.EventBus, logger *slog.Logger) *Router {
	return &Router{
		sinks:  sinks,
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the report timestamp source.
func (r *Router) SetClock(now func() time.Time) { r.now = now }

// Sinks returns the configured sinks.
func (r *Router) Sinks() []domain.Sink { return r.sinks }

// Route runs the pipeline for one event. It never returns an error and never
// panics: every failure is logged and contained to the event or the sink.
func (r *Router) Route(ctx context.Context, sess domain.Session, ev domain.InboundEvent) {
	if ev.ID == "" {
		ev.ID = ulid.Make().String()
	}
	log := r.logger.With("session", labelOf(sess), "event_id", ev.ID)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("error routing event", "panic", rec)
			r.emit(ctx, domain.EventRouteError, sess, map[string]string{
				"event_id": ev.ID,
				"error":    fmt.Sprint(rec),
			})
		}
	}()

	ctx, span := tracer.StartRoute(ctx, ev.ID, ev.Kind, labelOf(sess))
	defer span.End()

	if reason, ok := r.qualifies(sess, ev); !ok {
		log.Debug("event ignored", "kind", ev.Kind, "reason", reason)
		return
	}

	actor, err := r.resolve(ctx, sess, ev.Actor)
	if err != nil {
		log.Error("could not fetch user information", "user_id", ev.Actor.ID, "error", err)
		tracer.Finish(span, err)
		r.emit(ctx, domain.EventUnresolved, sess, map[string]string{
			"event_id": ev.ID,
			"user_id":  ev.Actor.ID,
		})
		return
	}

	honeypot := sess.Self()
	rep := report.New(ev, actor, honeypot, r.now())

	log.Info("honeypot event",
		"user", actor.Name(),
		"user_id", actor.ID,
		"kind", ev.Kind,
		"honeypot", honeypot.Name(),
		"honeypot_id", honeypot.ID,
		"info", rep.Info,
	)
	r.emit(ctx, domain.EventRouted, sess, map[string]any{
		"event_id": ev.ID,
		"kind":     ev.Kind,
		"user_id":  actor.ID,
	})

	for _, s := range r.sinks {
		r.deliver(ctx, log, sess, s, rep)
	}
	tracer.Finish(span, nil)
}

// qualifies applies the message filters. Relationship events always qualify.
func (r *Router) qualifies(sess domain.Session, ev domain.InboundEvent) (string, bool) {
	switch ev.Kind {
	case domain.EventKindRelationship:
		return "", true
	case domain.EventKindMessage:
		if !ev.Direct {
			return "not a direct message", false
		}
		if self := sess.Self().ID; self != "" && ev.Actor.ID == self {
			return "authored by the honeypot", false
		}
		return "", true
	default:
		return "unknown event kind", false
	}
}

// resolve returns the acting user, fetching it through the session when the
// event carries only an id. It makes exactly one attempt.
func (r *Router) resolve(ctx context.Context, sess domain.Session, ref domain.UserRef) (domain.User, error) {
	if ref.Resolved() {
		return *ref.User, nil
	}
	if ref.ID == "" {
		return domain.User{}, domain.NewDomainError("Router.resolve", domain.ErrUserUnknown, "empty user reference")
	}
	u, err := sess.FetchUser(ctx, ref.ID)
	if err != nil {
		return domain.User{}, domain.WrapOp("Router.resolve", err)
	}
	return u, nil
}

// deliver makes one delivery attempt to s. Failures, including panics, are
// logged and never reach the caller.
func (r *Router) deliver(ctx context.Context, log *slog.Logger, sess domain.Session, s domain.Sink, rep domain.Report) {
	log = log.With("sink", s.Kind(), "target", s.Target())
	payload := domain.DeliveryPayload{EventID: rep.EventID, Sink: s.Kind(), Target: s.Target()}

	ctx, span := tracer.StartDelivery(ctx, s.Kind(), s.Target())
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("sink delivery panicked", "panic", rec)
			tracer.Finish(span, fmt.Errorf("panic: %v", rec))
			payload.Code = domain.CodeUnknown
			r.emit(ctx, domain.EventDeliveryFailed, sess, payload)
		}
	}()

	err := s.Deliver(ctx, sess, rep)
	if err == nil {
		log.Debug("report delivered")
		tracer.Finish(span, nil)
		r.emit(ctx, domain.EventDeliverySucceeded, sess, payload)
		return
	}

	tracer.Finish(span, err)
	payload.Code = domain.ErrorCodeOf(err)
	r.emit(ctx, domain.EventDeliveryFailed, sess, payload)

	self := sess.Self()
	switch {
	case errors.Is(err, domain.ErrChannelUnknown):
		log.Warn("ATTENTION: honeypot is not in the notify channel. Make sure the account is in the channel and has the correct permissions.",
			"honeypot", self.Name(), "username", self.Username, "channel", s.Target())
	case errors.Is(err, domain.ErrChannelNotText):
		log.Warn("ATTENTION: notify channel is not a text channel. Make sure the account is in a text channel and has the correct permissions.",
			"honeypot", self.Name(), "username", self.Username, "channel", s.Target())
	case errors.Is(err, domain.ErrCircuitOpen):
		log.Warn("sink circuit open, delivery skipped")
	default:
		log.Error("failed to deliver report", "code", payload.Code, "error", err)
	}
}

func (r *Router) emit(ctx context.Context, t domain.EventType, sess domain.Session, payload any) {
	if r.bus == nil {
		return
	}
	r.bus.Emit(ctx, t, labelOf(sess), payload)
}

func labelOf(sess domain.Session) string {
	if sess == nil {
		return ""
	}
	return sess.Label()
}
