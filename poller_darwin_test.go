//go:build darwin

package corofiber

import (
	"testing"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

func TestKqueuePoller_AssociateWaitDissociate(t *testing.T) {
	t.Parallel()

	p, err := newPoller()
	if err != nil {
		t.Fatalf("newPoller: %v", err)
	}
	defer p.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	var cookie int
	if err := p.Associate(fds[0], EventRead, unsafe.Pointer(&cookie), false); err != nil {
		t.Fatalf("Associate: %v", err)
	}

	if _, err := unix.Write(fds[1], []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	events := make([]ReadyEvent, 4)
	n, err := p.Wait(events, time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 1 {
		t.Fatalf("Wait returned %d events, want 1", n)
	}
	if events[0].Ptr != unsafe.Pointer(&cookie) {
		t.Error("Wait returned the wrong cookie")
	}
	if events[0].Events&EventRead == 0 {
		t.Error("expected EventRead to be set")
	}

	if err := p.Dissociate(fds[0], true, false); err != nil {
		t.Fatalf("Dissociate: %v", err)
	}
}

func TestKqueuePoller_AssociateDiffsInterest(t *testing.T) {
	t.Parallel()

	p, err := newPoller()
	if err != nil {
		t.Fatalf("newPoller: %v", err)
	}
	defer p.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	var cookie int
	if err := p.Associate(fds[0], EventRead|EventWrite, unsafe.Pointer(&cookie), false); err != nil {
		t.Fatalf("Associate (read+write): %v", err)
	}
	// Re-associate with only EventRead: EventWrite interest should be
	// dropped via an EV_DELETE diff, not merely left registered.
	if err := p.Associate(fds[0], EventRead, unsafe.Pointer(&cookie), false); err != nil {
		t.Fatalf("Associate (read only): %v", err)
	}

	kp := p.(*kqueuePoller)
	kp.mu.RLock()
	got := kp.interest[fds[0]]
	kp.mu.RUnlock()
	if got != EventRead {
		t.Errorf("interest[fd] = %v, want %v", got, EventRead)
	}
}
