package corofiber

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

// defaultHeaderSize is the bookkeeping allowance carved from the top of
// each fiber's reserved stack region, the Go analogue of the header_size
// parameter threaded through ef_fiber_create for an outer struct a fiber
// is embedded in. This package has no such outer struct, so it reserves
// a small fixed allowance purely to keep the real commit/guard-page
// arithmetic exercising a non-trivial header carve-out.
const defaultHeaderSize = 256

// assocKind distinguishes the two flavors of fd <-> cookie association a
// Runtime registers with its Poller, matching framework.h's
// FD_TYPE_LISTEN / FD_TYPE_RWC discriminator.
type assocKind int

const (
	assocListen assocKind = iota
	assocRWC
)

// ioAssoc is the cookie handed to Poller.Associate and read back out of
// ReadyEvent.Ptr, the Go rendition of ef_poll_data_t.
type ioAssoc struct {
	kind     assocKind
	fd       int
	listener *listener // set when kind == assocListen
	fiber    *Fiber    // set when kind == assocRWC: the fiber waiting on this fd
	events   IOEvents  // events observed by the most recent Wait, for assocRWC
}

// listener is one accept-loop registration added via AddListen.
type listener struct {
	fd    int
	entry EntryFunc
	assoc *ioAssoc
}

// Runtime owns one Pool, one Poller, and the single goroutine that drives
// the accept/dispatch loop for every Fiber it resumes. It is the Go
// analogue of ef_runtime_t plus the global ef_fiber_sched_t scheduler
// context, scoped per-value instead of per-process.
type Runtime struct {
	poller Poller
	pool   *Pool

	threadFiber *Fiber
	current     atomic.Pointer[Fiber]

	state    *atomicState
	stopping atomic.Bool

	wakeReadFD, wakeWriteFD int
	wakeAssoc               *ioAssoc

	// spareFDs holds a reserve of already-open file descriptors (each an
	// fd on /dev/null) that acceptLoop can sacrifice to make room for one
	// more accept(2) call when the process is out of descriptors
	// (EMFILE/ENFILE), so it can drain and reject the offending
	// connection instead of spinning on accept forever.
	spareMu  sync.Mutex
	spareFDs []int

	mu        sync.Mutex
	listeners []*listener

	logger      Logger
	metrics     *Metrics
	pollTimeout time.Duration

	shrinkInterval time.Duration
	shrinkBatch    int

	headerSize uintptr
	stackSize  uintptr

	doneCh chan struct{}
}

// RuntimeInit constructs a Runtime with its own Poller and fiber Pool,
// the Go analogue of ef_init: stackSize bounds each pooled fiber's
// reserved stack region; minCount/maxCount bound the pool; shrinkInterval
// and shrinkBatch bound how aggressively idle fibers above minCount are
// released back to the OS.
func RuntimeInit(stackSize uintptr, minCount, maxCount int, shrinkInterval time.Duration, shrinkBatch int, opts ...RuntimeOption) (*Runtime, error) {
	cfg, err := resolveRuntimeOptions(opts)
	if err != nil {
		return nil, err
	}

	poller, err := newPoller()
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		poller:         poller,
		state:          newAtomicState(uint32(RuntimeAwake)),
		logger:         cfg.logger,
		pollTimeout:    cfg.pollTimeout,
		shrinkInterval: shrinkInterval,
		shrinkBatch:    shrinkBatch,
		headerSize:     defaultHeaderSize,
		stackSize:      stackSize,
		doneCh:         make(chan struct{}),
	}
	if cfg.metrics {
		rt.metrics = newMetrics()
	}
	for i := 0; i < cfg.fdCacheSize; i++ {
		fd, err := openSpareFD()
		if err != nil {
			break // best-effort reserve; acceptLoop tolerates an empty one
		}
		rt.spareFDs = append(rt.spareFDs, fd)
	}
	rt.threadFiber = newThreadFiber(rt)
	rt.current.Store(rt.threadFiber)

	pool, err := newPool(rt, stackSize, defaultHeaderSize, minCount, maxCount, shrinkInterval, shrinkBatch, nil)
	if err != nil {
		_ = poller.Close()
		return nil, err
	}
	rt.pool = pool

	readFD, writeFD, err := createWakeFd()
	if err != nil {
		pool.Close()
		_ = poller.Close()
		return nil, err
	}
	rt.wakeReadFD, rt.wakeWriteFD = readFD, writeFD
	rt.wakeAssoc = &ioAssoc{kind: assocRWC, fd: readFD}
	if err := rt.poller.Associate(readFD, EventRead, unsafe.Pointer(rt.wakeAssoc), false); err != nil {
		pool.Close()
		_ = poller.Close()
		closeWakeFd(readFD, writeFD)
		return nil, err
	}

	return rt, nil
}

// Pool returns the runtime's fiber pool.
func (rt *Runtime) Pool() *Pool { return rt.pool }

// Metrics returns a snapshot of the runtime's counters, or the zero
// Snapshot if metrics were not enabled via WithMetrics.
func (rt *Runtime) Metrics() Snapshot { return rt.metrics.Snapshot() }

// currentFiber and setCurrentFiber implement the per-Runtime analogue of
// rt->current_fiber: an atomic.Pointer scoped to this value, never a
// package-level global, so independent Runtimes never observe each
// other's active fiber. Correctness does not depend on the atomics
// themselves so much as on the channel handoffs in Fiber.resume/Yield,
// which establish a happens-before edge between writer and the next
// reader (see DESIGN.md, Open Question 3).
func (rt *Runtime) currentFiber() *Fiber {
	return rt.current.Load()
}

func (rt *Runtime) setCurrentFiber(f *Fiber) {
	rt.current.Store(f)
}

// CurrentFiber returns the fiber currently running on rt, or rt's
// thread-fiber if none is.
func CurrentFiber(rt *Runtime) *Fiber {
	return rt.currentFiber()
}

// AddListen registers fd (already bound and listening) for accept
// dispatch: each accepted connection is handed to a fiber acquired from
// the pool, running entry. Mirrors ef_add_listen.
func (rt *Runtime) AddListen(fd int, entry EntryFunc) error {
	if err := setNonblock(fd); err != nil {
		return WrapError("set listener nonblocking", err)
	}
	l := &listener{fd: fd, entry: entry}
	l.assoc = &ioAssoc{kind: assocListen, fd: fd, listener: l}

	rt.mu.Lock()
	rt.listeners = append(rt.listeners, l)
	rt.mu.Unlock()

	return rt.poller.Associate(fd, EventRead, unsafe.Pointer(l.assoc), false)
}

// Stop requests that the run loop exit after its current tick, the Go
// analogue of setting ef_runtime_t.stopping, and wakes a sleeping poller
// so the request is observed promptly rather than after pollTimeout.
func (rt *Runtime) Stop() {
	rt.stopping.Store(true)
	rt.state.TryTransition(uint32(RuntimeSleeping), uint32(RuntimeTerminating))
	rt.state.TryTransition(uint32(RuntimeRunning), uint32(RuntimeTerminating))
	_ = writeWake(rt.wakeWriteFD)
}

// Stopping reports whether Stop has been called.
func (rt *Runtime) Stopping() bool {
	return rt.stopping.Load()
}

// Close stops the runtime (if not already) and releases the poller, wake
// fds, and the entire fiber pool. Safe to call after Run has returned.
func (rt *Runtime) Close() error {
	rt.Stop()
	rt.pool.Close()
	closeWakeFd(rt.wakeReadFD, rt.wakeWriteFD)
	rt.spareMu.Lock()
	for _, fd := range rt.spareFDs {
		_ = closeFD(fd)
	}
	rt.spareFDs = nil
	rt.spareMu.Unlock()
	return rt.poller.Close()
}

// Run drives the accept/dispatch loop until Stop is called. Only one
// goroutine may call Run on a given Runtime at a time.
func (rt *Runtime) Run() error {
	if !rt.state.TryTransition(uint32(RuntimeAwake), uint32(RuntimeRunning)) {
		return ErrRuntimeAlreadyRunning
	}
	defer close(rt.doneCh)
	defer rt.state.Store(uint32(RuntimeTerminated))

	events := make([]ReadyEvent, 256)
	for !rt.Stopping() {
		rt.pool.Tick(time.Now())

		rt.state.TransitionAny([]uint32{uint32(RuntimeRunning)}, uint32(RuntimeSleeping))
		waitTimeout := rt.pollTimeout
		if rt.shrinkInterval > 0 && rt.shrinkInterval < waitTimeout {
			// Bound the wait by the shrink interval too, per the run-loop
			// contract of waiting no longer than the pool's shrink period,
			// so Tick actually fires every shrinkInterval under idle load
			// instead of being starved by a longer pollTimeout.
			waitTimeout = rt.shrinkInterval
		}
		waitStart := time.Now()
		n, err := rt.poller.Wait(events, waitTimeout)
		rt.metrics.observePollWait(time.Since(waitStart))
		rt.state.TransitionAny([]uint32{uint32(RuntimeSleeping)}, uint32(RuntimeRunning))
		if err != nil {
			rt.logger.Warn("poll wait failed", "err", err)
			continue
		}

		for i := 0; i < n; i++ {
			rt.dispatch(&events[i])
		}
	}
	return nil
}

// dispatch handles one readiness notification: waking the wake-fd is a
// no-op beyond draining it, a listener readiness runs the accept drain
// loop, and an RWC readiness resumes the fiber parked waiting on it.
func (rt *Runtime) dispatch(ev *ReadyEvent) {
	assoc := (*ioAssoc)(ev.Ptr)
	switch assoc.kind {
	case assocRWC:
		if assoc == rt.wakeAssoc {
			drainWake(rt.wakeReadFD)
			return
		}
		assoc.events = ev.Events
		rt.resumeAndRelease(assoc.fiber, ev.Events)
	case assocListen:
		rt.acceptLoop(assoc.listener)
	}
}

// resumeAndRelease resumes f and, if its entry routine has now returned,
// hands it back to the pool for reuse.
func (rt *Runtime) resumeAndRelease(f *Fiber, sndval any) {
	rt.metrics.recordResume()
	if _, err := rt.resume(f, sndval); err != nil {
		rt.logger.Error("resume failed", "err", err)
		return
	}
	if f.Status() == StatusExited {
		rt.pool.Release(f)
	}
}

// acceptLoop drains every pending connection on l's listening socket,
// handing each to a pooled fiber. A partial failure (EMFILE/ENFILE, or
// any other accept error) is logged and the loop simply stops for this
// tick rather than busy-spinning, per the "log and continue" partial
// failure idiom (see DESIGN.md, Open Question 2).
func (rt *Runtime) acceptLoop(l *listener) {
	for {
		connFD, err := acceptNonblock(l.fd)
		if err != nil {
			if isFDExhausted(err) {
				rt.acceptAndDropWithSpareFD(l)
				return
			}
			if !isWouldBlock(err) {
				rt.logger.Warn("accept failed", "fd", l.fd, "err", err)
			}
			return
		}

		if err := setNonblock(connFD); err != nil {
			rt.logger.Warn("set conn nonblocking failed", "err", err)
			_ = closeFD(connFD)
			continue
		}

		f, err := rt.pool.Acquire(l.entry, connFD)
		if err != nil {
			rt.logger.Warn("pool exhausted, dropping connection", "err", err)
			_ = closeFD(connFD)
			continue
		}

		rt.metrics.recordAccept()
		rt.resumeAndRelease(f, nil)
	}
}

// acceptAndDropWithSpareFD sacrifices one reserved spare fd to make room
// for exactly one more accept(2) when the process is out of descriptors,
// so the offending connection is drained and closed rather than left to
// spin the accept loop forever. If no spare remains, it does nothing: the
// next poll readiness notification will simply retry.
func (rt *Runtime) acceptAndDropWithSpareFD(l *listener) {
	rt.spareMu.Lock()
	n := len(rt.spareFDs)
	if n == 0 {
		rt.spareMu.Unlock()
		rt.logger.Warn("accept failed: descriptors exhausted and spare reserve empty", "fd", l.fd)
		return
	}
	spare := rt.spareFDs[n-1]
	rt.spareFDs = rt.spareFDs[:n-1]
	rt.spareMu.Unlock()

	_ = closeFD(spare)

	connFD, err := acceptNonblock(l.fd)
	if err == nil {
		rt.logger.Warn("dropping connection: descriptors exhausted", "fd", l.fd)
		_ = closeFD(connFD)
	} else if !isWouldBlock(err) {
		rt.logger.Warn("accept failed even after freeing a spare fd", "fd", l.fd, "err", err)
	}

	if fd, err := openSpareFD(); err == nil {
		rt.spareMu.Lock()
		rt.spareFDs = append(rt.spareFDs, fd)
		rt.spareMu.Unlock()
	}
}
