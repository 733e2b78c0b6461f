package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
)

func TestShutdownWaitsForTasks(t *testing.T) {
	log, _ := test.NewNullLogger()
	bg := New(log)

	var n int32
	for i := 0; i < 10; i++ {
		bg.Go(func() {
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&n, 1)
		})
	}

	if err := bg.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if got := atomic.LoadInt32(&n); got != 10 {
		t.Fatalf("expected 10 finished tasks, got %d", got)
	}
}

func TestShutdownTimeout(t *testing.T) {
	log, _ := test.NewNullLogger()
	bg := New(log)

	release := make(chan struct{})
	defer close(release)
	bg.Go(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := bg.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	log, hook := test.NewNullLogger()
	bg := New(log)

	bg.Go(func() { panic("boom") })

	if err := bg.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if hook.LastEntry() == nil {
		t.Fatal("expected the panic to be logged")
	}
}
