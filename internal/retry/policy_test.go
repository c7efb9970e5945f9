package retry

import (
	"testing"
	"time"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Mode != BackoffLinear {
		t.Fatalf("expected linear default mode got %s", p.Mode)
	}
	if p.Initial != time.Second {
		t.Fatalf("expected initial 1s got %v", p.Initial)
	}
	if p.Max != 30*time.Second {
		t.Fatalf("expected max 30s got %v", p.Max)
	}
	if p.MaxRetries != 2 {
		t.Fatalf("expected max retries 2 got %d", p.MaxRetries)
	}
}

func TestDelayGrowth(t *testing.T) {
	fixed := NewPolicy(BackoffFixed, 2*time.Second, time.Minute, 3)
	for i := 1; i <= 3; i++ {
		if d := fixed.Delay(i); d != 2*time.Second {
			t.Fatalf("fixed delay attempt %d: got %v", i, d)
		}
	}

	linear := NewPolicy(BackoffLinear, time.Second, 2500*time.Millisecond, 5)
	if d := linear.Delay(2); d != 2*time.Second {
		t.Fatalf("linear delay attempt 2: got %v", d)
	}
	if d := linear.Delay(10); d != 2500*time.Millisecond {
		t.Fatalf("linear delay must cap at max, got %v", d)
	}

	exp := NewPolicy(BackoffExponential, time.Second, 5*time.Second, 5)
	if d := exp.Delay(3); d != 4*time.Second {
		t.Fatalf("exponential delay attempt 3: got %v", d)
	}
	if d := exp.Delay(6); d != 5*time.Second {
		t.Fatalf("exponential delay must cap at max, got %v", d)
	}
}

func TestDelayZeroAttempt(t *testing.T) {
	if d := DefaultPolicy().Delay(0); d != 0 {
		t.Fatalf("attempt 0 should have no delay, got %v", d)
	}
}

func TestNewPolicyFallbacks(t *testing.T) {
	p := NewPolicy(BackoffMode("bogus"), 0, 0, -1)
	if p.Mode != BackoffLinear || p.Initial != time.Second || p.MaxRetries != 2 {
		t.Fatalf("invalid inputs must fall back to defaults: %+v", p)
	}

	p = NewPolicy(BackoffFixed, time.Minute, time.Second, 1)
	if p.Initial != time.Second {
		t.Fatalf("initial must be clamped to max, got %v", p.Initial)
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy must validate: %v", err)
	}
	bad := Policy{Mode: BackoffFixed, Initial: 0, Max: time.Second, MaxRetries: 1}
	if err := bad.Validate(); err == nil {
		t.Fatal("zero initial must fail validation")
	}
}
