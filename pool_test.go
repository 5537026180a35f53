package corofiber

import (
	"runtime"
	"testing"
	"time"
)

func echoEntry(f *Fiber, param any) any {
	return param
}

func TestPool_AcquireReusesExitedFiber(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)
	p, err := newPool(rt, pageSize, 0, 1, 4, time.Hour, 1, nil)
	if err != nil {
		t.Fatalf("newPool: %v", err)
	}
	defer p.Close()

	f1, err := p.Acquire(echoEntry, "a")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := f1.Resume(nil); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if f1.Status() != StatusExited {
		t.Fatalf("Status = %v, want %v", f1.Status(), StatusExited)
	}
	p.Release(f1)

	if got := p.Len(); got != 1 {
		t.Fatalf("Len() after release = %d, want 1", got)
	}

	f2, err := p.Acquire(echoEntry, "b")
	if err != nil {
		t.Fatalf("Acquire (reuse): %v", err)
	}
	if f2 != f1 {
		t.Fatal("expected Acquire to reuse the released fiber")
	}
	if f2.Status() != StatusInited {
		t.Fatalf("Status after reacquire = %v, want %v", f2.Status(), StatusInited)
	}

	result, err := f2.Resume(nil)
	if err != nil {
		t.Fatalf("Resume (reuse): %v", err)
	}
	if result != "b" {
		t.Fatalf("result = %v, want %q", result, "b")
	}
}

func TestPool_AcquireExhausted(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)
	p, err := newPool(rt, pageSize, 0, 0, 1, time.Hour, 1, nil)
	if err != nil {
		t.Fatalf("newPool: %v", err)
	}
	defer p.Close()

	f, err := p.Acquire(echoEntry, nil)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer p.Release(f)

	if _, err := p.Acquire(echoEntry, nil); err != ErrPoolExhausted {
		t.Fatalf("second Acquire err = %v, want %v", err, ErrPoolExhausted)
	}
}

func TestPool_TickShrinksAboveMin(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)
	p, err := newPool(rt, pageSize, 0, 1, 8, -time.Second, 8, nil)
	if err != nil {
		t.Fatalf("newPool: %v", err)
	}
	defer p.Close()

	var fibers []*Fiber
	for i := 0; i < 4; i++ {
		f, err := p.Acquire(echoEntry, nil)
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		fibers = append(fibers, f)
	}
	for _, f := range fibers {
		if _, err := f.Resume(nil); err != nil {
			t.Fatalf("Resume: %v", err)
		}
		p.Release(f)
	}

	if got := p.Total(); got != 4 {
		t.Fatalf("Total() before Tick = %d, want 4", got)
	}

	p.Tick(time.Now())

	if got := p.Total(); got != 1 {
		t.Fatalf("Total() after Tick = %d, want 1 (minCount)", got)
	}
}

// TestPool_CloseReleasesPreallocatedGoroutines guards against leaking the
// backing goroutine of a minCount-preallocated fiber that is never
// Acquired: such a fiber's bootstrap is parked on <-f.in, not <-f.reuse,
// so Close must unblock both park points.
func TestPool_CloseReleasesPreallocatedGoroutines(t *testing.T) {
	rt := newTestRuntime(t)

	runtime.GC()
	startRoutines := runtime.NumGoroutine()

	p, err := newPool(rt, pageSize, 0, 32, 32, time.Hour, 1, nil)
	if err != nil {
		t.Fatalf("newPool: %v", err)
	}

	p.Close()

	time.Sleep(100 * time.Millisecond)
	runtime.GC()
	endRoutines := runtime.NumGoroutine()

	if endRoutines > startRoutines+1 {
		t.Fatalf("Goroutine leak! started with %d, ended with %d. "+
			"preallocated fibers never Acquired should still exit on Close.",
			startRoutines, endRoutines)
	}
}
