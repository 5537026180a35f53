package corofiber

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by fiber and runtime operations.
var (
	// ErrFiberNotInited is returned by Resume when the target fiber's
	// status is neither StatusInited nor StatusExited. A freshly created,
	// never-resumed fiber is StatusInited and resumes normally.
	ErrFiberNotInited = errors.New("corofiber: fiber not initialized")

	// ErrFiberExited is returned by Resume when the target fiber's entry
	// routine has already returned.
	ErrFiberExited = errors.New("corofiber: fiber already exited")

	// ErrPoolExhausted is returned by Pool.Acquire when the pool has
	// reached its configured maximum and has no free fiber to hand out.
	ErrPoolExhausted = errors.New("corofiber: pool exhausted")

	// ErrRuntimeStopping identifies a stopped Runtime. No function in this
	// package returns it: AddListen and Run do not check the stopping flag
	// before proceeding.
	ErrRuntimeStopping = errors.New("corofiber: runtime stopping")

	// ErrRuntimeAlreadyRunning is returned by Run on any call after the
	// first on the same Runtime, whether that first call is still running
	// or has already returned.
	ErrRuntimeAlreadyRunning = errors.New("corofiber: runtime already running")

	// ErrUnsupportedPlatform is returned by poller construction on
	// platforms without a concrete backend.
	ErrUnsupportedPlatform = errors.New("corofiber: unsupported platform")
)

// FaultError reports a guard-page touch that could not be resolved by
// growing the owning fiber's stack.
type FaultError struct {
	Fiber *Fiber
	Addr  uintptr
	Cause error
}

func (e *FaultError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("corofiber: stack fault at %#x: %v", e.Addr, e.Cause)
	}
	return fmt.Sprintf("corofiber: stack fault at %#x", e.Addr)
}

func (e *FaultError) Unwrap() error {
	return e.Cause
}

// WrapError wraps cause with a corofiber-prefixed message, preserving it
// for errors.Is/errors.As via %w.
func WrapError(message string, cause error) error {
	return fmt.Errorf("corofiber: %s: %w", message, cause)
}
