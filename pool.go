package corofiber

import (
	"sync"
	"time"
)

// Pool manages a bounded set of reusable Fibers, amortizing the cost of
// the mmap/mprotect calls behind newFiber across many short-lived
// connections, and periodically releasing idle fibers back to the OS.
//
// Grounded on framework.h's ef_coroutine_pool_t (min/max counts, a free
// list) and on the teacher's registry.go ring-buffer scavenge, adapted
// from promise-tracking to a bounded free list with batch-limited
// shrinking per Tick.
type Pool struct {
	rt         *Runtime
	stackSize  uintptr
	headerSize uintptr

	mu         sync.Mutex
	free       []*Fiber
	minCount   int
	maxCount   int
	total      int // fibers currently allocated (free + in use)
	shrinkEvery time.Duration
	shrinkBatch int
	lastShrink time.Time
}

// newPool constructs a Pool bound to rt, eagerly allocating minCount
// fibers so Acquire's common case never pays the mmap cost.
func newPool(rt *Runtime, stackSize, headerSize uintptr, minCount, maxCount int, shrinkEvery time.Duration, shrinkBatch int, entry EntryFunc) (*Pool, error) {
	p := &Pool{
		rt:          rt,
		stackSize:   stackSize,
		headerSize:  headerSize,
		minCount:    minCount,
		maxCount:    maxCount,
		shrinkEvery: shrinkEvery,
		shrinkBatch: shrinkBatch,
		lastShrink:  time.Now(),
	}
	for i := 0; i < minCount; i++ {
		f, err := newFiber(rt, stackSize, headerSize, entry, nil)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.free = append(p.free, f)
		p.total++
	}
	return p, nil
}

// Acquire hands back a free fiber (reusing one if available), or
// allocates a new one if the pool has not yet reached maxCount.
func (p *Pool) Acquire(entry EntryFunc, param any) (*Fiber, error) {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		f := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		if f.started {
			f.reacquire(entry, param)
		} else {
			f.entry = entry
			if param == nil {
				param = f
			}
			f.param = param
		}
		return f, nil
	}
	if p.maxCount > 0 && p.total >= p.maxCount {
		p.mu.Unlock()
		return nil, ErrPoolExhausted
	}
	p.total++
	p.mu.Unlock()

	f, err := newFiber(p.rt, p.stackSize, p.headerSize, entry, param)
	if err != nil {
		p.mu.Lock()
		p.total--
		p.mu.Unlock()
		return nil, err
	}
	return f, nil
}

// Release returns an exited fiber to the free list. Only StatusExited
// fibers may be released; anything else is a programmer error and is
// deleted outright rather than risking reuse of a still-running fiber.
func (p *Pool) Release(f *Fiber) {
	if f.Status() != StatusExited {
		_ = f.delete()
		p.mu.Lock()
		p.total--
		p.mu.Unlock()
		return
	}
	p.mu.Lock()
	p.free = append(p.free, f)
	p.mu.Unlock()
}

// Tick performs at most one bounded batch of shrink work, called once per
// Runtime loop iteration. It releases idle fibers above minCount back to
// the OS, shrinkBatch at a time, no more often than shrinkEvery.
func (p *Pool) Tick(now time.Time) {
	p.mu.Lock()
	if now.Sub(p.lastShrink) < p.shrinkEvery {
		p.mu.Unlock()
		return
	}
	p.lastShrink = now

	n := p.shrinkBatch
	for n > 0 && len(p.free) > p.minCount {
		last := len(p.free) - 1
		f := p.free[last]
		p.free = p.free[:last]
		p.total--
		p.mu.Unlock()
		_ = f.delete()
		p.mu.Lock()
		n--
	}
	p.mu.Unlock()
}

// Len reports the number of fibers currently idle in the free list.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Total reports the total number of fibers allocated (free plus in use).
func (p *Pool) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Current returns the fiber currently running on the pool's Runtime, the
// Go analogue of ef_routine_current/ef_coroutine_current.
func (p *Pool) Current() *Fiber {
	return p.rt.currentFiber()
}

// Close releases every fiber currently in the free list. Fibers that have
// been acquired and not yet released are not tracked by the pool and are
// not deleted.
func (p *Pool) Close() {
	p.mu.Lock()
	free := p.free
	p.free = nil
	p.mu.Unlock()
	for _, f := range free {
		_ = f.delete()
	}
}
