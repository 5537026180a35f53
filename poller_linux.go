//go:build linux

package corofiber

import (
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// epollPoller is the epoll-backed concrete Poller, grounded on the
// teacher's FastPoller (eventloop/poller_linux.go). Unlike FastPoller it
// carries no callback table: the cookie supplied to Associate is handed
// back verbatim in Wait's ReadyEvent, matching poll.h's ef_event_t{events,
// ptr} contract instead of the teacher's inline-dispatch design.
type epollPoller struct {
	epfd int

	mu    sync.RWMutex
	ptrs  map[int]unsafe.Pointer
	buf   []unix.EpollEvent
	closed bool
}

func newPoller() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, WrapError("epoll_create1", err)
	}
	return &epollPoller{
		epfd: epfd,
		ptrs: make(map[int]unsafe.Pointer),
		buf:  make([]unix.EpollEvent, 256),
	}, nil
}

func (p *epollPoller) Associate(fd int, events IOEvents, ptr unsafe.Pointer, fired bool) error {
	p.mu.Lock()
	_, exists := p.ptrs[fd]
	p.ptrs[fd] = ptr
	p.mu.Unlock()

	ev := unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	op := unix.EPOLL_CTL_ADD
	if exists {
		op = unix.EPOLL_CTL_MOD
	}
	if err := unix.EpollCtl(p.epfd, op, fd, &ev); err != nil {
		p.mu.Lock()
		delete(p.ptrs, fd)
		p.mu.Unlock()
		return WrapError("epoll_ctl", err)
	}
	return nil
}

func (p *epollPoller) Dissociate(fd int, fired, onclose bool) error {
	p.mu.Lock()
	delete(p.ptrs, fd)
	p.mu.Unlock()

	if onclose {
		// close(2) implicitly removes the fd from every epoll instance.
		return nil
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return WrapError("epoll_ctl del", err)
	}
	return nil
}

func (p *epollPoller) Wait(events []ReadyEvent, timeout time.Duration) (int, error) {
	timeoutMs := durationToEpollMs(timeout)

	n, err := unix.EpollWait(p.epfd, p.buf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, WrapError("epoll_wait", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	count := 0
	for i := 0; i < n && count < len(events); i++ {
		fd := int(p.buf[i].Fd)
		ptr, ok := p.ptrs[fd]
		if !ok {
			continue
		}
		events[count] = ReadyEvent{Events: epollToEvents(p.buf[i].Events), Ptr: ptr}
		count++
	}
	return count, nil
}

func (p *epollPoller) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return unix.Close(p.epfd)
}

func durationToEpollMs(timeout time.Duration) int {
	if timeout < 0 {
		return -1
	}
	return int(timeout / time.Millisecond)
}

func eventsToEpoll(events IOEvents) uint32 {
	var e uint32
	if events&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(e uint32) IOEvents {
	var events IOEvents
	if e&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if e&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if e&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
