//go:build linux || darwin

package corofiber

import (
	"runtime/debug"
)

// Grow proactively commits additional stack below the fiber's current
// lower bound, for callers about to hand the fiber body a working area
// that may touch memory below what is currently committed (e.g. before
// invoking a routine known to recurse deeply). It mirrors
// ef_fiber_expand_stack's bounds check and commit step, without waiting
// for an actual fault.
func (f *Fiber) Grow(addr uintptr) error {
	if f.stack == nil {
		return nil // the thread-fiber owns no stack region
	}
	return f.stack.touch(addr)
}

// installFaultGuard arms runtime/debug.SetPanicOnFault for the calling
// goroutine, converting an accidental read/write to an unmapped or
// PROT_NONE page into a recoverable panic instead of a fatal signal. This
// is a best-effort safety net only: normal stack growth should go through
// Grow; this guard exists purely for an unexpected guard-page touch that
// Grow did not anticipate.
//
// It deliberately does not install a process-wide SIGSEGV/SIGBUS handler:
// the Go runtime already owns those signals for its own goroutine stack
// growth, and a competing handler cannot safely resume execution without
// per-architecture assembly this package does not carry.
func installFaultGuard() (restore func()) {
	prev := debug.SetPanicOnFault(true)
	return func() { debug.SetPanicOnFault(prev) }
}

// recoverFault converts any recovered panic value that is an error (a
// memory fault raised under SetPanicOnFault, but also any other error
// panic) into a *FaultError for f, carrying the faulting address when the
// error reports one. A non-error panic value is re-panicked unchanged.
// Call from the deferred recover in the fiber bootstrap trampoline.
func recoverFault(f *Fiber, r any) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		if f.runtime != nil {
			f.runtime.metrics.recordFault()
		}
		fe := &FaultError{Fiber: f, Cause: err}
		if a, ok := err.(interface{ Addr() uintptr }); ok {
			fe.Addr = a.Addr()
		}
		return fe
	}
	panic(r)
}
