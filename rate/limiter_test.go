package rate

import (
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	burst := 1

	interval := 10 * time.Millisecond
	lim := Every(interval)
	r := NewLimiter(burst, time.Hour, lim)
	defer r.Stop()

	tooshort := 1 * time.Millisecond

	client := "10.0.0.1"
	expected := []bool{true, false, true, true, false, false}
	waits := []time.Duration{tooshort, interval, interval, tooshort, tooshort, tooshort}
	for i, exp := range expected {
		if got := r.Check(client); got != exp {
			t.Fatalf("iteration %d: expected %v, but got %v", i, exp, got)
		}
		time.Sleep(waits[i])
	}
}

func TestLimiterClientsAreIndependent(t *testing.T) {
	r := NewLimiter(1, time.Hour, Every(time.Hour))
	defer r.Stop()

	if !r.Check("10.0.0.1") {
		t.Fatal("first request of client 1 should pass")
	}
	if r.Check("10.0.0.1") {
		t.Fatal("second request of client 1 should be throttled")
	}
	if !r.Check("10.0.0.2") {
		t.Fatal("client 2 should not be throttled by client 1")
	}
}

func TestEvictIdleClients(t *testing.T) {
	r := NewLimiter(1, time.Millisecond, Every(time.Hour))
	defer r.Stop()

	r.Check("10.0.0.1")
	time.Sleep(5 * time.Millisecond)
	r.evict()

	if !r.Check("10.0.0.1") {
		t.Fatal("an evicted client starts with a full bucket")
	}
}
