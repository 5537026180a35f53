//go:build linux || darwin

package corofiber

import (
	"errors"
	"runtime/debug"
	"testing"
)

func TestInstallFaultGuard_Restores(t *testing.T) {
	before := debug.SetPanicOnFault(false)
	debug.SetPanicOnFault(before)

	restore := installFaultGuard()
	restore()

	if got := debug.SetPanicOnFault(before); got != before {
		t.Errorf("restore() left PanicOnFault at %v, want %v", got, before)
	}
	debug.SetPanicOnFault(before)
}

func TestRecoverFault(t *testing.T) {
	t.Parallel()

	rt := &Runtime{}
	f := &Fiber{runtime: rt}

	cause := errors.New("segv")
	err := recoverFault(f, cause)
	var fe *FaultError
	if !errors.As(err, &fe) {
		t.Fatalf("recoverFault should return a *FaultError, got %T", err)
	}
	if fe.Fiber != f {
		t.Error("FaultError.Fiber should be the recovering fiber")
	}
	if !errors.Is(fe, cause) {
		t.Error("FaultError should wrap the recovered cause")
	}
}

func TestRecoverFault_Nil(t *testing.T) {
	t.Parallel()

	if err := recoverFault(&Fiber{}, nil); err != nil {
		t.Errorf("recoverFault(nil) = %v, want nil", err)
	}
}

func TestRecoverFault_RepanicsNonError(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Error("recoverFault should re-panic a non-error value")
		}
	}()
	recoverFault(&Fiber{}, "not an error")
}
