// Package reactor is a readiness-notification loop: one epoll instance,
// one-shot per-await registrations, a deferred-callback queue drained
// after each event batch. Grounded in original_source's epoll-based
// AsyncIO.hpp/main.cpp event loop and in the epoll wiring shown by the
// pack's anamulislamshamim-go_raw_epoll_http_server example, using
// golang.org/x/sys/unix instead of raw syscall the way the
// nczempin-0004_std_lib_http_client/go-uring example leans on x/sys for its
// own reactor-flavored transport.
package reactor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Callback is invoked with the raw epoll event mask when its descriptor
// becomes ready. It's a resume token: the reactor doesn't know what a
// Callback does, only that it must be called at most once per
// registration when one-shot semantics are in play.
type Callback func(events uint32)

// Reactor is the process-wide epoll wrapper. Everything it touches is
// single-thread data — it carries no locks, because only the goroutine
// running Run ever calls Register/Deregister/Post/dispatch.
type Reactor struct {
	epfd int

	waiters map[int32]Callback

	deferred []func()
}

// New creates the underlying epoll instance. A failure here is an
// environment error and is fatal to bootstrap.
func New() (*Reactor, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	return &Reactor{
		epfd:    fd,
		waiters: make(map[int32]Callback),
	}, nil
}

// Close releases the epoll descriptor. Best-effort: errors are not
// reported, mirroring Deregister's contract.
func (r *Reactor) Close() {
	_ = unix.Close(r.epfd)
}

// Register arms fd for events. It's idempotent: add if unseen, modify if
// already registered. events should usually include unix.EPOLLONESHOT so
// the registration fires at most once before the caller re-arms it; the
// accept listener is the one exception, registered level-triggered
// without one-shot so a burst of connections drains in one notification.
func (r *Reactor) Register(fd int, events uint32) error {
	ev := &unix.EpollEvent{Events: events, Fd: int32(fd)}

	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, ev)
	if err == unix.EEXIST {
		err = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, ev)
	}

	if err != nil {
		return fmt.Errorf("epoll_ctl: %w", err)
	}

	return nil
}

// Bind records the callback to resume when fd next becomes ready, without
// touching the epoll registration itself. Register and Bind are kept
// separate so a caller can re-arm (Register) without re-binding the same
// callback, or vice versa.
func (r *Reactor) Bind(fd int, cb Callback) {
	r.waiters[int32(fd)] = cb
}

// Deregister removes fd from epoll and drops its callback. Best-effort:
// it never fails the caller.
func (r *Reactor) Deregister(fd int) {
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(r.waiters, int32(fd))
}

// Post enqueues cb to run once the current batch of resumed callbacks has
// all returned. This guarantees a deferred callback never runs while a
// connection's own callback is still on the stack — while Run is still
// inside its dispatch loop for the current event batch.
func (r *Reactor) Post(cb func()) {
	r.deferred = append(r.deferred, cb)
}

// maxEvents bounds one epoll_wait batch, matching the pack's raw-epoll
// example's 128-slot buffer, sized up for a production listener.
const maxEvents = 256

// Run blocks for up to timeout waiting for readiness, resumes every ready
// descriptor's callback, then drains the deferred queue — strictly after
// every callback from the batch has suspended or returned. shouldStop is
// polled once per iteration so a bounded timeout lets a shutdown flag be
// observed promptly without the reactor blocking indefinitely.
// onTick, when non-nil, runs once per loop iteration after the deferred
// queue drains — whether or not any descriptor was actually ready. It's
// how periodic maintenance (the acceptor's idle-connection sweep) rides
// the reactor's own wakeups instead of needing a dedicated timer fd.
func (r *Reactor) Run(timeout time.Duration, shouldStop func() bool, onTick func()) error {
	events := make([]unix.EpollEvent, maxEvents)
	ms := int(timeout / time.Millisecond)

	for !shouldStop() {
		n, err := unix.EpollWait(r.epfd, events, ms)
		if err != nil {
			if err == unix.EINTR {
				continue
			}

			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := events[i].Fd
			mask := events[i].Events

			if cb, ok := r.waiters[fd]; ok {
				cb(mask)
			}
		}

		r.drainDeferred()

		if onTick != nil {
			onTick()
		}
	}

	r.drainDeferred()

	return nil
}

func (r *Reactor) drainDeferred() {
	if len(r.deferred) == 0 {
		return
	}

	pending := r.deferred
	r.deferred = nil

	for _, cb := range pending {
		cb()
	}
}
