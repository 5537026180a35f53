package corofiber

import "fmt"

// EntryFunc is the body of a Fiber, the Go analogue of ef_routine_proc_t /
// ef_fiber_proc_t. It receives the owning Fiber (so it can Yield) and the
// param given at creation or to Pool.Acquire (or the Fiber itself, if that
// param was nil); the value passed to the first Resume is discarded. Its
// return value becomes the value delivered to whichever Resume
// call observes the fiber's exit.
type EntryFunc func(f *Fiber, param any) any

// Fiber is a single lightweight, cooperatively-scheduled execution context.
// Exactly one Fiber per Runtime is ever actually running at a time; the
// rest are parked, each represented by a blocked goroutine waiting on its
// in channel.
type Fiber struct {
	id      uint64
	runtime *Runtime
	entry   EntryFunc
	param   any
	parent  *Fiber
	stack   *fiberStack // nil for the thread-fiber

	status *atomicState

	// started is true once the fiber's backing goroutine has run entry
	// at least once. The backing goroutine sets it before delivering its
	// exit value on out, and Pool reads it only after that handoff (while
	// the fiber sits in its free list), so it needs no synchronization of
	// its own. It
	// distinguishes a never-yet-resumed pooled fiber (bootstrap still
	// parked on its first <-f.in) from an exited, previously-used one
	// (bootstrap parked on <-f.reuse), which require different handoffs
	// on reacquisition.
	started bool

	in    chan any  // Resume -> fiber body
	out   chan any  // fiber body -> Resume/Yield caller
	reuse chan bool // Pool.Acquire -> parked bootstrap goroutine, after exit
	done  chan struct{} // delete -> parked bootstrap goroutine, at any park point
}

// newFiber allocates a Fiber's bookkeeping (including its guarded stack
// reservation) and starts its backing goroutine, parked waiting for the
// first Resume. This mirrors ef_fiber_create followed by ef_fiber_init.
func newFiber(rt *Runtime, stackSize, headerSize uintptr, entry EntryFunc, param any) (*Fiber, error) {
	stack, err := newFiberStack(stackSize, headerSize)
	if err != nil {
		return nil, err
	}

	f := &Fiber{
		runtime: rt,
		entry:   entry,
		param:   param,
		stack:   stack,
		status:  newAtomicState(uint32(StatusInited)),
		in:      make(chan any),
		out:     make(chan any),
		reuse:   make(chan bool),
		done:    make(chan struct{}),
	}
	if f.param == nil {
		f.param = f
	}

	go f.bootstrap()
	return f, nil
}

// newThreadFiber builds the distinguished root Fiber representing the
// runtime's own event-loop goroutine: it owns no stack region and is
// never itself resumed (it has no backing goroutine).
func newThreadFiber(rt *Runtime) *Fiber {
	return &Fiber{
		runtime: rt,
		status:  newAtomicState(uint32(StatusInited)),
	}
}

// bootstrap is the body of a fiber's backing goroutine. It runs entry to
// completion once per acquisition, guarded against a stray fault on the
// reserved guard page, then parks waiting for either Pool.Acquire to hand
// it a fresh entry/param (reuse<-true) or delete to tear it down (done
// closed). Both park points select on done, since a pooled fiber that was
// pre-allocated and never Resumed is parked on <-f.in, not <-f.reuse.
func (f *Fiber) bootstrap() {
	restore := installFaultGuard()
	defer restore()

	for {
		// The first Resume of a cycle merely unblocks this goroutine; its
		// sndval carries no defined meaning (mirroring the original,
		// where a freshly created fiber's entry point is already bound
		// to a fixed param at creation time, not to whatever value the
		// first resume happens to carry). Subsequent values arrive as
		// the return value of Yield, inside entry.
		select {
		case <-f.in:
		case <-f.done:
			return
		}
		f.started = true
		param := f.param

		var result any
		func() {
			defer func() {
				if r := recover(); r != nil {
					if err := recoverFault(f, r); err != nil {
						result = err
						return
					}
					panic(r)
				}
			}()
			result = f.entry(f, param)
		}()

		f.status.Store(uint32(StatusExited))
		f.out <- result

		select {
		case again := <-f.reuse:
			if !again {
				return
			}
		case <-f.done:
			return
		}
	}
}

// Status reports the fiber's current lifecycle state.
func (f *Fiber) Status() FiberStatus {
	return FiberStatus(f.status.Load())
}

// resume transfers control to f, the Go rendition of ef_fiber_resume's
// symmetric stack swap: the calling goroutine blocks until f either
// yields or exits.
func (rt *Runtime) resume(f *Fiber, sndval any) (any, error) {
	switch f.Status() {
	case StatusExited:
		return nil, ErrFiberExited
	case StatusInited:
		// ok
	default:
		return nil, ErrFiberNotInited
	}

	current := rt.currentFiber()
	f.parent = current
	rt.setCurrentFiber(f)

	f.in <- sndval
	result := <-f.out

	rt.setCurrentFiber(current)
	return result, nil
}

// Resume transfers control to f on its owning Runtime.
func (f *Fiber) Resume(sndval any) (any, error) {
	return f.runtime.resume(f, sndval)
}

// Yield suspends the calling fiber, returning sndval to whichever Resume
// call is waiting on it, and blocks until it is resumed again.
func (f *Fiber) Yield(sndval any) any {
	rt := f.runtime
	rt.setCurrentFiber(f.parent)
	f.out <- sndval
	return <-f.in
}

// reacquire hands an exited, pooled fiber a fresh entry/param and wakes
// its parked bootstrap goroutine to accept another Resume cycle. status is
// set to StatusInited here, in the acquiring goroutine, before the
// reuse<-true rendezvous: the bootstrap goroutine's matching receive
// happens-after this send, but nothing orders its own writes relative to
// the acquirer's subsequent resume() status check, so the store cannot be
// left for the bootstrap goroutine to do after waking.
func (f *Fiber) reacquire(entry EntryFunc, param any) {
	f.entry = entry
	if param == nil {
		param = f
	}
	f.param = param
	f.status.Store(uint32(StatusInited))
	f.reuse <- true
}

// delete releases a fiber's stack reservation and stops its backing
// goroutine. A fiber can never delete itself (mirroring "the fiber cannot
// delete itself" in the original); the attempt returns an error. Deleting
// an already-deleted fiber is a no-op.
func (f *Fiber) delete() error {
	if f.runtime.currentFiber() == f {
		return fmt.Errorf("corofiber: fiber cannot delete itself")
	}
	if f.stack == nil {
		return nil
	}
	select {
	case <-f.done:
		return nil
	default:
	}
	close(f.done)
	return f.stack.release()
}
