//go:build darwin

package corofiber

import (
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// kqueuePoller is the kqueue-backed concrete Poller, grounded on the
// teacher's FastPoller (eventloop/poller_darwin.go), adapted from
// callback dispatch to poll.h's association-record + Wait buffer
// contract, matching poller_linux.go's epollPoller shape.
type kqueuePoller struct {
	kq int

	mu     sync.RWMutex
	ptrs   map[int]unsafe.Pointer
	interest map[int]IOEvents
	buf    []unix.Kevent_t
	closed bool
}

func newPoller() (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, WrapError("kqueue", err)
	}
	unix.CloseOnExec(kq)
	return &kqueuePoller{
		kq:       kq,
		ptrs:     make(map[int]unsafe.Pointer),
		interest: make(map[int]IOEvents),
		buf:      make([]unix.Kevent_t, 256),
	}, nil
}

func (p *kqueuePoller) Associate(fd int, events IOEvents, ptr unsafe.Pointer, fired bool) error {
	p.mu.Lock()
	old := p.interest[fd]
	p.ptrs[fd] = ptr
	p.interest[fd] = events
	p.mu.Unlock()

	var kevents []unix.Kevent_t
	kevents = append(kevents, eventsToKevents(fd, events&^old, unix.EV_ADD|unix.EV_ENABLE)...)
	kevents = append(kevents, eventsToKevents(fd, old&^events, unix.EV_DELETE)...)
	if len(kevents) == 0 {
		return nil
	}
	if _, err := unix.Kevent(p.kq, kevents, nil, nil); err != nil {
		return WrapError("kevent register", err)
	}
	return nil
}

func (p *kqueuePoller) Dissociate(fd int, fired, onclose bool) error {
	p.mu.Lock()
	old := p.interest[fd]
	delete(p.ptrs, fd)
	delete(p.interest, fd)
	p.mu.Unlock()

	if onclose {
		// close(2) implicitly drops kqueue registrations for fd.
		return nil
	}
	kevents := eventsToKevents(fd, old, unix.EV_DELETE)
	if len(kevents) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, kevents, nil, nil)
	return err
}

func (p *kqueuePoller) Wait(events []ReadyEvent, timeout time.Duration) (int, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeout / time.Second),
			Nsec: int64(timeout % time.Second),
		}
	}

	n, err := unix.Kevent(p.kq, nil, p.buf, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, WrapError("kevent wait", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	count := 0
	for i := 0; i < n && count < len(events); i++ {
		fd := int(p.buf[i].Ident)
		ptr, ok := p.ptrs[fd]
		if !ok {
			continue
		}
		events[count] = ReadyEvent{Events: keventToEvents(&p.buf[i]), Ptr: ptr}
		count++
	}
	return count, nil
}

func (p *kqueuePoller) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return unix.Close(p.kq)
}

func eventsToKevents(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t
	if events&EventRead != 0 {
		kevents = append(kevents, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&EventWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return kevents
}

func keventToEvents(kev *unix.Kevent_t) IOEvents {
	var events IOEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	return events
}
