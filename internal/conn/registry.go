package conn

import "github.com/corowave/evhttpd/internal/reactor"

// Registry tracks every live Connection by file descriptor. An entry must
// never be erased while the reactor is still inside the very callback
// that owns it — doing so would free state that callback is about to
// touch next. Remove always defers through the reactor's post queue to
// satisfy that.
type Registry struct {
	rea   *reactor.Reactor
	conns map[int]*Connection
}

// NewRegistry returns an empty Registry bound to rea for deferred removal.
func NewRegistry(rea *reactor.Reactor) *Registry {
	return &Registry{
		rea:   rea,
		conns: make(map[int]*Connection),
	}
}

// Add records a newly accepted Connection.
func (r *Registry) Add(c *Connection) {
	r.conns[c.fd] = c
}

// Remove schedules c's entry for deletion after the current event batch
// has finished dispatching.
func (r *Registry) Remove(c *Connection) {
	r.rea.Post(func() {
		delete(r.conns, c.fd)
	})
}

// Len reports the number of tracked connections, used by graceful
// shutdown to tell when every connection has drained.
func (r *Registry) Len() int {
	return len(r.conns)
}

// CloseAll force-closes every tracked connection, used by graceful
// shutdown once the grace period elapses.
func (r *Registry) CloseAll() {
	for _, c := range r.conns {
		c.forceClose()
	}
}

// SweepIdle closes every connection that has sat in READ_REQUEST with no
// read activity for longer than IdleTimeout — the periodic half of abandoned-client handling, the
// other half being closing on an outright read error.
func (r *Registry) SweepIdle() {
	for _, c := range r.conns {
		if c.IsReadingRequest() && c.IdleFor() > IdleTimeout {
			c.Close()
		}
	}
}
