package application

import (
	"testing"
	"time"

	"crpt-gateway/middleware/ratelimit/domain"
)

type fakeLimiter struct {
	allow bool
}

func (f fakeLimiter) Allow() bool { return f.allow }

type fakeStore struct {
	lim domain.Limiter
}

func (s fakeStore) Get(domain.Key) domain.Limiter { return s.lim }

func TestService_Decide_AllowsWhenNoStore(t *testing.T) {
	svc := Service{}
	dec := svc.Decide("k")
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_AllowsWhenLimiterAllows(t *testing.T) {
	svc := Service{Store: fakeStore{lim: fakeLimiter{allow: true}}, RetryAfter: 5 * time.Second}
	dec := svc.Decide("k")
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
}

func TestService_Decide_BlocksWithRetryAfterDefault(t *testing.T) {
	svc := Service{Store: fakeStore{lim: fakeLimiter{allow: false}}}
	dec := svc.Decide("k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 1*time.Second {
		t.Fatalf("expected default RetryAfter=1s, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_BlocksWithConfiguredRetryAfter(t *testing.T) {
	svc := Service{Store: fakeStore{lim: fakeLimiter{allow: false}}, RetryAfter: 2500 * time.Millisecond}
	dec := svc.Decide("k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 2500*time.Millisecond {
		t.Fatalf("expected RetryAfter=2.5s, got %s", dec.RetryAfter)
	}
}

type hintingLimiter struct {
	retry time.Duration
}

func (hintingLimiter) Allow() bool                 { return false }
func (h hintingLimiter) RetryAfter() time.Duration { return h.retry }

func TestService_Decide_UsesLimiterHintRoundedUp(t *testing.T) {
	svc := Service{Store: fakeStore{lim: hintingLimiter{retry: 1200 * time.Millisecond}}, RetryAfter: 5 * time.Second}
	dec := svc.Decide("k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 2*time.Second {
		t.Fatalf("expected hint rounded up to 2s, got %s", dec.RetryAfter)
	}
	if dec.Outcome() != domain.OutcomeDenied {
		t.Fatalf("expected denied outcome, got %s", dec.Outcome())
	}
}

func TestService_Decide_FallsBackWhenHintIsZero(t *testing.T) {
	svc := Service{Store: fakeStore{lim: hintingLimiter{}}, RetryAfter: 3 * time.Second}
	if dec := svc.Decide("k"); dec.RetryAfter != 3*time.Second {
		t.Fatalf("expected configured RetryAfter, got %s", dec.RetryAfter)
	}
}
