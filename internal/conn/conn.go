// Package conn implements the connection state machine: READ_REQUEST ->
// DISPATCH -> WRITE_RESPONSE, looping back to READ_REQUEST on keep-alive
// or advancing to CLOSE otherwise. Each connection is modeled as an
// explicit state plus a per-state entry function the reactor resumes on
// readiness, rather than as a goroutine-per-connection — the one place
// this system deliberately departs from indigo-web/indigo's
// net.Listener-and-goroutine model, to keep the reactor a genuinely
// distinct component instead of hiding it behind blocking goroutines.
package conn

import (
	"strings"
	"time"

	goHttp "github.com/corowave/evhttpd/http"
	"github.com/corowave/evhttpd/http/parser"
	"github.com/corowave/evhttpd/http/status"
	"github.com/corowave/evhttpd/internal/reactor"
	"github.com/corowave/evhttpd/internal/socket"
	"github.com/corowave/evhttpd/logger"
	"github.com/corowave/evhttpd/perfmon"

	"golang.org/x/sys/unix"
)

// Handler turns a completed Request into a Response. dispatch.Handler
// satisfies this; kept as an interface here so conn never imports the
// dispatch package — dispatch is a collaborator the state machine calls
// into, not something it depends on directly.
type Handler interface {
	Handle(req *goHttp.Request, resp *goHttp.Response)
}

// State is a connection's current position in the state machine. Only
// READ_REQUEST and WRITE_RESPONSE wait on the reactor; DISPATCH runs to
// completion synchronously and CLOSED is terminal.
type State int

const (
	StateReadRequest State = iota
	StateDispatch
	StateWriteResponse
	StateClosed
)

// readBufSize is the fixed per-connection read buffer: a fixed array, not
// a growable slice, so a connection's memory footprint is bounded and
// predictable under load.
const readBufSize = 16 * 1024

// IdleTimeout closes a connection that sits in READ_REQUEST without
// receiving any bytes for too long, guarding against an abandoned client
// tying up a descriptor indefinitely. Every successful read restarts the
// clock, so a client that keeps trickling bytes is not closed by it. The accept loop's
// periodic sweep applies it; Connection itself never times out on its own.
const IdleTimeout = 60 * time.Second

// Connection is one accepted client socket driven by the reactor. It is
// never accessed from more than one goroutine: all of its callbacks run
// inside the single reactor loop.
type Connection struct {
	fd   int
	sock *socket.Conn

	rea      *reactor.Reactor
	registry *Registry
	handler  Handler
	monitor  *perfmon.Monitor
	log      *logger.Logger

	state State

	readBuf [readBufSize]byte
	parser  *parser.Parser
	req     *goHttp.Request
	resp    *goHttp.Response

	reqID        string
	keepAlive    bool
	lastActivity time.Time
}

// New wraps an accepted socket.Conn as a Connection ready to be started.
func New(sock *socket.Conn, rea *reactor.Reactor, registry *Registry, handler Handler, monitor *perfmon.Monitor, log *logger.Logger) *Connection {
	req := goHttp.NewRequest()

	return &Connection{
		fd:           sock.FD(),
		sock:         sock,
		rea:          rea,
		registry:     registry,
		handler:      handler,
		monitor:      monitor,
		log:          log,
		state:        StateReadRequest,
		parser:       parser.New(req),
		req:          req,
		resp:         goHttp.NewResponse(),
		lastActivity: time.Now(),
	}
}

// Start registers the connection for read readiness and enters
// READ_REQUEST, the first suspension point in a connection's lifecycle.
func (c *Connection) Start() {
	c.registry.Add(c)
	c.monitor.ConnectionEstablished()
	c.armRead()
}

func (c *Connection) armRead() {
	c.rea.Bind(c.fd, c.guarded(c.onReadable))
	if err := c.rea.Register(c.fd, unix.EPOLLIN|unix.EPOLLONESHOT); err != nil {
		c.fail("register read: %v", err)
	}
}

func (c *Connection) armWrite() {
	c.rea.Bind(c.fd, c.guarded(c.onWritable))
	if err := c.rea.Register(c.fd, unix.EPOLLOUT|unix.EPOLLONESHOT); err != nil {
		c.fail("register write: %v", err)
	}
}

// guarded wraps a resume callback with a recover that turns a panic
// anywhere in the connection's read/dispatch/write path — including a
// handler bug reached through Handle — into either a synthesized 500 (no
// response bytes sent yet) or a logged close (a write was already in
// flight), rather than letting it escape into the reactor's dispatch loop
// and take every other connection down with it.
func (c *Connection) guarded(cb reactor.Callback) reactor.Callback {
	return func(events uint32) {
		defer c.recoverPanic()
		cb(events)
	}
}

// recoverPanic is guarded's panic-handling body. A panic caught while the
// connection is still in READ_REQUEST or DISPATCH means no response bytes
// have gone out yet, so it's handled exactly like a protocol error — a
// synthesized 500 via respondAndClose. A panic caught in WRITE_RESPONSE
// means some bytes may already be on the wire, so there is no response
// left to synthesize; it just closes.
func (c *Connection) recoverPanic() {
	r := recover()
	if r == nil {
		return
	}

	if c.log != nil {
		c.log.Error("panic recovered: %v", r)
	}

	if !needsSynthesizedResponse(c.state) {
		c.close()
		return
	}

	c.respondWithErrorAfterPanic()
}

// needsSynthesizedResponse reports whether a panic caught while the
// connection sat in state should get a synthesized error response rather
// than a bare close: true for every state except WRITE_RESPONSE, where a
// partial response may already be on the wire and there is nothing left to
// synthesize in its place.
func needsSynthesizedResponse(state State) bool {
	return state != StateWriteResponse
}

// respondWithErrorAfterPanic calls respondAndClose, guarded by its own
// recover so a second panic while synthesizing the error response (rather
// than a third connection-killing crash) still just closes the connection.
func (c *Connection) respondWithErrorAfterPanic() {
	defer func() {
		if r := recover(); r != nil {
			if c.log != nil {
				c.log.Error("panic recovered while synthesizing error response: %v", r)
			}
			c.close()
		}
	}()

	c.respondAndClose(status.InternalServerError)
}

// onReadable is the READ_REQUEST entry function: it performs one
// non-blocking read, feeds the parser, and either re-arms for more data,
// advances to DISPATCH, or closes on a terminal condition.
func (c *Connection) onReadable(events uint32) {
	if c.state != StateReadRequest {
		return
	}

	n, wouldBlock, err := c.sock.Read(c.readBuf[:])
	if err != nil {
		c.close()
		return
	}

	if wouldBlock {
		c.armRead()
		return
	}

	if n == 0 {
		// Peer closed its end of the connection.
		c.close()
		return
	}

	c.lastActivity = time.Now()

	if err := c.parser.Feed(c.readBuf[:n]); err != nil {
		c.respondAndClose(status.BadRequest)
		return
	}

	if !c.req.Complete() {
		c.armRead()
		return
	}

	c.dispatch()
}

// dispatch is the DISPATCH state: synchronous, with no suspension point —
// it never awaits I/O.
func (c *Connection) dispatch() {
	c.state = StateDispatch

	c.reqID = perfmon.NewRequestID()
	c.monitor.StartRequest(c.reqID, c.req.Method, c.req.Path)

	c.keepAlive = keepAliveFor(c.req)

	c.handler.Handle(c.req, c.resp)
	setConnectionHeaders(c.resp, c.keepAlive)
	c.resp.Init()

	c.monitor.EndRequest(c.reqID, c.req.Method, c.req.Path, int(c.resp.Code))

	c.state = StateWriteResponse
	c.armWrite()
}

// onWritable is the WRITE_RESPONSE entry function: it flushes as much of
// the serialized response as the socket will take. Advance is only ever
// told the real byte count the kernel accepted, so completion is never
// reported early.
func (c *Connection) onWritable(events uint32) {
	if c.state != StateWriteResponse {
		return
	}

	n, wouldBlock, err := c.sock.Write(c.resp.Remaining())
	if err != nil {
		c.close()
		return
	}

	if n > 0 {
		c.resp.Advance(n)
	}

	if !c.resp.WriteComplete() {
		c.armWrite()
		return
	}

	if wouldBlock {
		c.armWrite()
		return
	}

	c.finishExchange()
}

// finishExchange loops back to READ_REQUEST on keep-alive, or advances to
// CLOSE.
func (c *Connection) finishExchange() {
	if !c.keepAlive {
		c.close()
		return
	}

	c.req.Reset()
	c.resp.Reset()
	c.parser.Reset(c.req)
	c.state = StateReadRequest
	c.lastActivity = time.Now()

	if c.parser.Complete() {
		// A pipelined request's bytes were already carried into the
		// fresh buffer by parser.Reset; it may already be complete.
		c.dispatch()
		return
	}

	c.armRead()
}

// respondAndClose answers with a minimal status-only response and closes
// once it's flushed — used for protocol errors, where no response bytes
// have been written yet for this request.
func (c *Connection) respondAndClose(code status.Code) {
	c.resp.Reset()
	c.resp.SetStatus(code).SetContentType("text/plain").SetBodyString(status.Text(code) + "\n")
	c.keepAlive = false
	setConnectionHeaders(c.resp, c.keepAlive)
	c.resp.Init()
	c.state = StateWriteResponse
	c.armWrite()
}

func (c *Connection) fail(format string, args ...any) {
	if c.log != nil {
		c.log.Error(format, args...)
	}
	c.close()
}

// close tears down the connection: deregister, close the socket, drop
// the registry entry, and record the closed connection with the monitor.
// Deregistration happens immediately (the fd must stop being epoll-armed
// right away); the registry removal is deferred by Registry.Remove.
func (c *Connection) close() {
	if c.state == StateClosed {
		return
	}

	c.state = StateClosed
	c.rea.Deregister(c.fd)
	_ = c.sock.Close()
	c.monitor.ConnectionClosed()
	c.registry.Remove(c)
}

// forceClose is close's entry point for shutdown's CloseAll sweep, kept
// distinct in case future graceful-shutdown logic needs to distinguish a
// client-driven close from a server-driven one.
func (c *Connection) forceClose() {
	c.close()
}

// IdleFor reports how long ago the connection last read bytes or finished
// an exchange, used by the accept loop's idle sweep.
func (c *Connection) IdleFor() time.Duration {
	return time.Since(c.lastActivity)
}

// IsReadingRequest reports whether the connection is still waiting on
// request bytes, the only state IdleTimeout applies to.
func (c *Connection) IsReadingRequest() bool {
	return c.state == StateReadRequest
}

// Close exposes forceClose for the accept loop's idle sweep.
func (c *Connection) Close() {
	c.forceClose()
}

// keepAliveFor decides persistence: HTTP/1.1 defaults to keep-alive unless
// the client sends "Connection: close"; HTTP/1.0 defaults to close unless
// the client sends "Connection: keep-alive".
func keepAliveFor(req *goHttp.Request) bool {
	conn, has := req.Headers.Get("Connection")

	if req.Version == "HTTP/1.0" {
		return has && strings.EqualFold(conn, "keep-alive")
	}

	return !(has && strings.EqualFold(conn, "close"))
}

// keepAliveHeader is sent alongside "Connection: keep-alive" so the client
// knows how long the server will hold the connection open and how many
// requests it will serve on it before closing anyway.
const keepAliveHeader = "timeout=5, max=100"

// setConnectionHeaders writes keepAliveFor's decision back onto the
// outgoing response, so the client learns the same thing the connection
// state machine already decided for itself.
func setConnectionHeaders(resp *goHttp.Response, keepAlive bool) {
	if !keepAlive {
		resp.SetHeader("Connection", "close")
		return
	}

	resp.SetHeader("Connection", "keep-alive")
	resp.SetHeader("Keep-Alive", keepAliveHeader)
}
