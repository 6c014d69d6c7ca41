package eventbus

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"honeypot/internal/domain"
)

func BenchmarkBusPublish(b *testing.B) {
	bus := New(slog.Default())
	ctx := context.Background()
	event := domain.Event{
		Type:      domain.EventRouted,
		Timestamp: time.Now(),
		SessionID: "session-1",
	}

	bus.Subscribe(domain.EventRouted, func(_ context.Context, _ domain.Event) {
	})

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		bus.Publish(ctx, event)
	}

	bus.Close()
}

func BenchmarkBusPublishMultipleSubscribers(b *testing.B) {
	bus := New(slog.Default())
	ctx := context.Background()
	event := domain.Event{
		Type:      domain.EventRouted,
		Timestamp: time.Now(),
		SessionID: "session-1",
	}

	for i := 0; i < 10; i++ {
		bus.Subscribe(domain.EventRouted, func(_ context.Context, _ domain.Event) {
			})
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		bus.Publish(ctx, event)
	}

	bus.Close()
}

func BenchmarkBusPublishAllSubscribers(b *testing.B) {
	bus := New(slog.Default())
	ctx := context.Background()
	event := domain.Event{
		Type:      domain.EventRouted,
		Timestamp: time.Now(),
	}

	bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
	})

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		bus.Publish(ctx, event)
	}

	bus.Close()
}

func BenchmarkBusSubscribe(b *testing.B) {
	bus := New(slog.Default())
	handler := func(_ context.Context, _ domain.Event) {}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		unsub := bus.Subscribe(domain.EventRouted, handler)
		_ = unsub
	}
}

func BenchmarkBusUnsubscribe(b *testing.B) {
	bus := New(slog.Default())
	handler := func(_ context.Context, _ domain.Event) {}

	// Pre-create unsubscribe functions
	unsubs := make([]func(), b.N)
	for i := 0; i < b.N; i++ {
		unsubs[i] = bus.Subscribe(domain.EventRouted, handler)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		unsubs[i]()
	}
}

func BenchmarkBusPublishParallel(b *testing.B) {
	bus := New(slog.Default())
	event := domain.Event{
		Type:      domain.EventRouted,
		Timestamp: time.Now(),
	}

	bus.Subscribe(domain.EventRouted, func(_ context.Context, _ domain.Event) {
	})

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			bus.Publish(ctx, event)
		}
	})

	bus.Close()
}

func BenchmarkBusPublishNoSubscribers(b *testing.B) {
	bus := New(slog.Default())
	ctx := context.Background()
	event := domain.Event{
		Type:      domain.EventRouted,
		Timestamp: time.Now(),
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		bus.Publish(ctx, event)
	}

	bus.Close()
}

func BenchmarkBusEmitDelivery(b *testing.B) {
	bus := New(slog.Default())
	ctx := context.Background()
	bus.Subscribe(domain.EventDeliverySucceeded, func(_ context.Context, _ domain.Event) {})
	payload := domain.DeliveryPayload{EventID: "01H", Sink: domain.SinkKindWebhook, Target: "https://example.com/hook"}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		bus.Emit(ctx, domain.EventDeliverySucceeded, "session-1", payload)
	}

	bus.Close()
}
