//go:build linux || darwin

package corofiber

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// suspendUntilReady registers fd for events on f's runtime, yields
// control back to whoever resumed f, and returns once the runtime's
// dispatch loop has resumed f in response to a readiness notification.
// This is the common retry-template plumbing spec.md describes for
// Connect/Read/Write/Recv/Send: register desired interest, yield, get
// woken, retry the syscall.
func suspendUntilReady(f *Fiber, fd int, events IOEvents) IOEvents {
	assoc := &ioAssoc{kind: assocRWC, fd: fd, fiber: f}
	rt := f.runtime
	if err := rt.poller.Associate(fd, events, unsafe.Pointer(assoc), false); err != nil {
		// Nothing useful to do with a registration failure beyond
		// letting the retry loop observe the original syscall error
		// again; yield once so we do not busy-spin.
		return f.Yield(nil).(IOEvents)
	}
	got, _ := f.Yield(nil).(IOEvents)
	_ = rt.poller.Dissociate(fd, true, false)
	return got
}

// Read performs an apparently-synchronous read on fd from within fiber
// f, suspending f (without blocking the Runtime's OS thread) whenever
// the socket is not yet readable.
func Read(f *Fiber, fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Read(fd, buf)
		if err == nil {
			return n, nil
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			suspendUntilReady(f, fd, EventRead)
			continue
		}
		if err == unix.EINTR {
			continue
		}
		return n, WrapError("read", err)
	}
}

// Write performs an apparently-synchronous write on fd from within fiber
// f.
func Write(f *Fiber, fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Write(fd, buf)
		if err == nil {
			return n, nil
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			suspendUntilReady(f, fd, EventWrite)
			continue
		}
		if err == unix.EINTR {
			continue
		}
		return n, WrapError("write", err)
	}
}

// Recv performs an apparently-synchronous recv on sockfd from within
// fiber f.
func Recv(f *Fiber, sockfd int, buf []byte, flags int) (int, error) {
	for {
		n, _, err := unix.Recvfrom(sockfd, buf, flags)
		if err == nil {
			return n, nil
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			suspendUntilReady(f, sockfd, EventRead)
			continue
		}
		if err == unix.EINTR {
			continue
		}
		return n, WrapError("recv", err)
	}
}

// Send performs an apparently-synchronous send on sockfd from within
// fiber f.
func Send(f *Fiber, sockfd int, buf []byte, flags int) (int, error) {
	for {
		err := unix.Sendto(sockfd, buf, flags, nil)
		if err == nil {
			return len(buf), nil
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			suspendUntilReady(f, sockfd, EventWrite)
			continue
		}
		if err == unix.EINTR {
			continue
		}
		return 0, WrapError("send", err)
	}
}

// Connect performs an apparently-synchronous nonblocking connect on
// sockfd from within fiber f.
func Connect(f *Fiber, sockfd int, addr unix.Sockaddr) error {
	if err := setNonblock(sockfd); err != nil {
		return WrapError("connect: set nonblocking", err)
	}

	err := unix.Connect(sockfd, addr)
	if err == nil {
		return nil
	}
	if err != unix.EINPROGRESS {
		return WrapError("connect", err)
	}

	suspendUntilReady(f, sockfd, EventWrite)

	if err := socketError(sockfd); err != nil {
		return WrapError("connect", err)
	}
	return nil
}

// Close dissociates fd from f's runtime poller and closes it. Safe to
// call even if fd was never registered.
func Close(f *Fiber, fd int) error {
	_ = f.runtime.poller.Dissociate(fd, false, true)
	return closeFD(fd)
}
