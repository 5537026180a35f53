//go:build linux || darwin

package corofiber

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sliceAddr returns the address of the first byte backing b.
func sliceAddr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

// fiberStack is the mmap-backed reservation that backs a single Fiber's
// stack bookkeeping. Only the topmost page is committed (PROT_READ|
// PROT_WRITE) at creation time; everything below stackLower remains
// PROT_NONE until touch grows it, and the bottommost page is never
// committed, acting as a permanent guard.
//
// This package does not actually run fiber bodies on this memory (Go
// goroutines already provide a growable, guarded stack); the arena exists
// so the commit/guard/grow invariants described for the original runtime
// hold over real memory and can be exercised by tests, and so Fiber.Grow
// has a concrete region to validate bounds against.
type fiberStack struct {
	area       uintptr // base of the reservation (stack_area)
	size       uintptr // total reserved size (stack_size)
	upper      uintptr // base of the fiber header (stack_upper)
	lower      uintptr // lowest committed address (stack_lower)
	headerSize uintptr
	mem        []byte // the mmap'd region, for Munmap
}

var pageSize = uintptr(unix.Getpagesize())

// roundUpPage rounds n up to the nearest multiple of pageSize, matching
// the original's `(n + page_size - 1) & ~(page_size - 1)` arithmetic.
func roundUpPage(n uintptr) uintptr {
	if n == 0 {
		n = pageSize
	}
	return (n + pageSize - 1) &^ (pageSize - 1)
}

// newFiberStack reserves stackSize bytes (rounded to a page multiple),
// commits the top page, and carves out headerSize bytes at the very top
// (stack_upper sits below them). The Fiber control block itself is an
// ordinary Go heap object; nothing is stored in the carve-out.
func newFiberStack(stackSize, headerSize uintptr) (*fiberStack, error) {
	size := roundUpPage(stackSize)
	if headerSize > pageSize {
		return nil, fmt.Errorf("corofiber: header size %d exceeds one page (%d)", headerSize, pageSize)
	}

	mem, err := unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, WrapError("reserve stack", err)
	}

	top := uintptr(len(mem)) - pageSize
	if err := unix.Mprotect(mem[top:], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		_ = unix.Munmap(mem)
		return nil, WrapError("commit top page", err)
	}

	base := sliceAddr(mem)
	s := &fiberStack{
		area:       base,
		size:       size,
		upper:      base + size - headerSize,
		lower:      base + size - pageSize,
		headerSize: headerSize,
		mem:        mem,
	}
	return s, nil
}

// release unmaps the entire reservation, including the committed top page
// and its header carve-out.
func (s *fiberStack) release() error {
	if s.mem == nil {
		return nil
	}
	err := unix.Munmap(s.mem)
	s.mem = nil
	return err
}

// touch grows the committed region to cover addr, matching
// ef_fiber_expand_stack: addr is aligned down to its page, bounds-checked
// against the guard page and the current lower bound, then the gap is
// committed and lower is advanced.
func (s *fiberStack) touch(addr uintptr) error {
	lower := addr &^ (pageSize - 1)

	// Written as lower < area+pageSize rather than lower-area < pageSize:
	// the subtraction form underflows (uintptr is unsigned) for an addr
	// below s.area and would wrongly pass the check.
	if lower < s.area+pageSize || lower >= s.lower {
		return fmt.Errorf("corofiber: address %#x outside growable stack region", addr)
	}

	off := lower - s.area
	size := s.lower - lower
	if err := unix.Mprotect(s.mem[off:off+size], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return WrapError("grow stack", err)
	}
	s.lower = lower
	return nil
}

// committedBytes reports how much of the reservation is currently
// PROT_READ|PROT_WRITE, for diagnostics and tests.
func (s *fiberStack) committedBytes() uintptr {
	return s.area + s.size - s.lower
}
