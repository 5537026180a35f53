package corofiber

import (
	"time"
	"unsafe"
)

// IOEvents is a bitmask of I/O readiness conditions, matching the
// EF_POLLIN/EF_POLLOUT/EF_POLLERR/EF_POLLHUP constants of poll.h.
type IOEvents uint32

const (
	// EventRead indicates the file descriptor is ready for reading, or
	// (for a listening socket) has a pending connection to accept.
	EventRead IOEvents = 0x001
	// EventWrite indicates the file descriptor is ready for writing, or
	// that a pending nonblocking connect has completed.
	EventWrite IOEvents = 0x004
	// EventError indicates an error condition on the file descriptor.
	EventError IOEvents = 0x008
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup IOEvents = 0x010
)

// ReadyEvent is one readiness notification returned by Poller.Wait: the
// events that fired, and the opaque cookie that was supplied to
// Associate (in this package always an *ioAssoc, resolved without a map
// lookup, per spec.md's association-record design).
type ReadyEvent struct {
	Events IOEvents
	Ptr    unsafe.Pointer
}

// Poller is the abstract nonblocking I/O readiness multiplexer a Runtime
// drives its dispatch loop from. It corresponds to poll.h's ef_poll_t
// function-pointer table: associate/dissociate fd <-> interest, and wait
// for a batch of readiness events.
type Poller interface {
	// Associate registers fd for the given event interest, attaching ptr
	// as the cookie returned alongside any future readiness event for fd.
	// If fired is true, the implementation may (but need not) report an
	// immediate synthetic readiness event for fd on the next Wait, for
	// level-triggered semantics on conditions that are already true.
	Associate(fd int, events IOEvents, ptr unsafe.Pointer, fired bool) error

	// Dissociate removes fd's registration. onclose indicates the caller
	// is about to close fd, letting edge-triggered backends skip a
	// redundant deregistration syscall that close(2) makes moot.
	Dissociate(fd int, fired, onclose bool) error

	// Wait blocks up to timeout (0 means return immediately, <0 means
	// block indefinitely) for readiness events, writing up to len(events)
	// of them into events and returning the count.
	Wait(events []ReadyEvent, timeout time.Duration) (int, error)

	// Close releases the poller's own resources (e.g. the epoll/kqueue
	// fd). It does not close any fd previously passed to Associate.
	Close() error
}
