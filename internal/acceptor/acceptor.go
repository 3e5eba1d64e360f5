// Package acceptor is the accept loop: a listening socket registered
// level-triggered (not one-shot, unlike every connection's read/write
// registrations) so a burst of simultaneous connections is drained in one
// readiness notification instead of one epoll round trip each.
package acceptor

import (
	"time"

	"github.com/corowave/evhttpd/internal/conn"
	"github.com/corowave/evhttpd/internal/reactor"
	"github.com/corowave/evhttpd/internal/socket"
	"github.com/corowave/evhttpd/logger"
	"github.com/corowave/evhttpd/perfmon"

	"golang.org/x/sys/unix"
)

// sweepInterval is how often the acceptor asks the registry to close
// idle connections, piggy-backing on the reactor's periodic timeout
// instead of a dedicated timer fd.
const sweepInterval = 5 * time.Second

// Acceptor owns the listening socket and the live-connection registry.
type Acceptor struct {
	listener *socket.Listener
	rea      *reactor.Reactor
	registry *conn.Registry
	handler  conn.Handler
	monitor  *perfmon.Monitor
	log      *logger.Logger

	lastSweep time.Time
}

// New binds and arms a Listener on addr.
func New(addr string, rea *reactor.Reactor, handler conn.Handler, monitor *perfmon.Monitor, log *logger.Logger) (*Acceptor, error) {
	l, err := socket.Listen(addr)
	if err != nil {
		return nil, err
	}

	a := &Acceptor{
		listener:  l,
		rea:       rea,
		registry:  conn.NewRegistry(rea),
		handler:   handler,
		monitor:   monitor,
		log:       log,
		lastSweep: time.Now(),
	}

	rea.Bind(l.FD(), a.onAcceptable)
	if err := rea.Register(l.FD(), unix.EPOLLIN); err != nil {
		l.Close()
		return nil, err
	}

	return a, nil
}

// onAcceptable drains every pending connection: a level-triggered
// listener keeps firing while a backlog remains, so one call loops
// Accept until it would block.
func (a *Acceptor) onAcceptable(events uint32) {
	for {
		c, ok, err := a.listener.Accept()
		if err != nil {
			if a.log != nil {
				a.log.Warning("accept: %v", err)
			}
			return
		}

		if !ok {
			return
		}

		connection := conn.New(c, a.rea, a.registry, a.handler, a.monitor, a.log)
		connection.Start()
	}
}

// Tick runs the idle-connection sweep at most once per sweepInterval.
// Pass it as the reactor's onTick so it keeps firing even during a quiet
// period with no accept activity at all.
func (a *Acceptor) Tick() {
	if time.Since(a.lastSweep) < sweepInterval {
		return
	}

	a.registry.SweepIdle()
	a.lastSweep = time.Now()
}

// Registry exposes the live-connection registry, used by graceful
// shutdown.
func (a *Acceptor) Registry() *conn.Registry {
	return a.registry
}

// Close closes the listening socket. Already-accepted connections are
// untouched; callers drive graceful shutdown through Registry().CloseAll.
func (a *Acceptor) Close() error {
	a.rea.Deregister(a.listener.FD())
	return a.listener.Close()
}
