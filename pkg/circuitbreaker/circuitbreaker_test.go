package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := New(3, 1, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(func() (interface{}, error) { return nil, errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: got %v, want %v", i, err, errBoom)
		}
	}
	if got := cb.State(); got != Open {
		t.Fatalf("state after failures = %v, want Open", got)
	}
	if _, err := cb.Execute(func() (interface{}, error) { return "ok", nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("execute while open: got %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerRecoversViaHalfOpen(t *testing.T) {
	cb := New(1, 2, 10*time.Millisecond)

	if _, err := cb.Execute(func() (interface{}, error) { return nil, errBoom }); err == nil {
		t.Fatal("expected failure")
	}
	if got := cb.State(); got != Open {
		t.Fatalf("state = %v, want Open", got)
	}

	time.Sleep(20 * time.Millisecond)

	for i := 0; i < 2; i++ {
		res, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
		if err != nil {
			t.Fatalf("half-open call %d: %v", i, err)
		}
		if res != "ok" {
			t.Fatalf("half-open call %d: res = %v", i, res)
		}
	}
	if got := cb.State(); got != Closed {
		t.Fatalf("state after recovery = %v, want Closed", got)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := New(1, 2, 5*time.Millisecond)

	cb.Execute(func() (interface{}, error) { return nil, errBoom })
	time.Sleep(10 * time.Millisecond)

	if _, err := cb.Execute(func() (interface{}, error) { return nil, errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("got %v, want %v", err, errBoom)
	}
	if got := cb.State(); got != Open {
		t.Fatalf("state = %v, want Open", got)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := New(2, 1, time.Minute)

	cb.Execute(func() (interface{}, error) { return nil, errBoom })
	cb.Execute(func() (interface{}, error) { return "ok", nil })
	cb.Execute(func() (interface{}, error) { return nil, errBoom })

	if got := cb.State(); got != Closed {
		t.Fatalf("state = %v, want Closed", got)
	}
}
