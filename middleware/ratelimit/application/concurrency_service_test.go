package application

import (
	"context"
	"testing"
	"time"

	"crpt-gateway/middleware/ratelimit/domain"
)

// fullPool nunca tem vaga: só retorna quando o ctx acaba.
type fullPool struct{}

func (fullPool) Acquire(ctx context.Context) (func(), bool) {
	<-ctx.Done()
	return nil, false
}

type countingPool struct {
	acquired int
}

func (p *countingPool) Acquire(ctx context.Context) (func(), bool) {
	p.acquired++
	return func() {}, true
}

func TestConcurrencyService_Acquire_AllowsWhenNoPool(t *testing.T) {
	svc := ConcurrencyService{}
	release, ok := svc.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected ok")
	}
	release()
}

func TestConcurrencyService_Acquire_TimeoutIsRecordedAsDenied(t *testing.T) {
	stats := &ctxAwareStats{}
	svc := ConcurrencyService{
		Pool:           fullPool{},
		AcquireTimeout: 10 * time.Millisecond,
		Stats:          stats,
		Key:            "concurrency",
		Method:         "POST",
		Path:           "/api/v3/lk/documents/create",
	}

	if _, ok := svc.Acquire(context.Background()); ok {
		t.Fatalf("expected timeout and ok=false")
	}

	if len(stats.events) != 1 {
		t.Fatalf("expected one rejection event, got %+v", stats.events)
	}
	ev := stats.events[0]
	if ev.Outcome != domain.OutcomeDenied || ev.Key != "concurrency" || ev.Path != "/api/v3/lk/documents/create" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Wait < 10*time.Millisecond {
		t.Fatalf("expected wait to cover the timeout, got %s", ev.Wait)
	}
}

func TestConcurrencyService_Acquire_CallerCancelIsRecordedAsCancelled(t *testing.T) {
	stats := &ctxAwareStats{}
	svc := ConcurrencyService{Pool: fullPool{}, Stats: stats, Key: "concurrency"}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, ok := svc.Acquire(ctx); ok {
		t.Fatalf("expected ok=false after caller deadline")
	}
	if len(stats.events) != 1 || stats.events[0].Outcome != domain.OutcomeCancelled {
		t.Fatalf("expected a cancelled event recorded despite the finished ctx, got %+v", stats.events)
	}
}

func TestConcurrencyService_Acquire_SuccessIsNotRecorded(t *testing.T) {
	pool := &countingPool{}
	stats := &recordingStats{}
	svc := ConcurrencyService{Pool: pool, Stats: stats}

	_, ok := svc.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected ok")
	}
	if pool.acquired != 1 {
		t.Fatalf("expected pool Acquire to be called once, got %d", pool.acquired)
	}
	if len(stats.events) != 0 {
		t.Fatalf("expected no stats on success, got %+v", stats.events)
	}
}
