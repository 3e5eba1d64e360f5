// Package socket is a non-blocking listen/accept/read/send facade,
// grounded in original_source's SocketWrapper.hpp/AddrInfoWrapper.hpp
// (itself a thin non-blocking BSD socket wrapper) and translated into the
// golang.org/x/sys/unix calls the reactor's epoll loop expects to drive.
package socket

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Listener wraps a non-blocking, SO_REUSEADDR TCP listening socket.
type Listener struct {
	fd int
}

// Listen creates, binds and listens on addr ("host:port"), returning a
// Listener whose file descriptor is already in non-blocking mode — every
// socket handed to the reactor must be non-blocking before its first
// registration. Resolution is address-family-agnostic ("tcp", not "tcp4"),
// so an IPv6 host or literal binds an AF_INET6 socket instead of failing,
// the way original_source's AddrInfoWrapper resolves with AF_UNSPEC and
// binds whatever family the resolver hands back.
func Listen(addr string) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}

	domain, sa := sockaddrFor(tcpAddr)

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set nonblock: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set reuseaddr: %w", err)
	}

	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}

	const backlog = 1024
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen: %w", err)
	}

	return &Listener{fd: fd}, nil
}

// sockaddrFor picks AF_INET or AF_INET6 from the resolved address's actual
// IP length, building whichever unix.Sockaddr that family needs. An empty
// IP (the resolver's answer for an empty host) defaults to IPv4, matching
// net.ResolveTCPAddr's own INADDR_ANY behavior for a bare ":port".
func sockaddrFor(addr *net.TCPAddr) (int, unix.Sockaddr) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa
	}

	if ip6 := addr.IP.To16(); ip6 != nil {
		sa := &unix.SockaddrInet6{Port: addr.Port}
		copy(sa.Addr[:], ip6)
		return unix.AF_INET6, sa
	}

	return unix.AF_INET, &unix.SockaddrInet4{Port: addr.Port}
}

// FD returns the raw descriptor for reactor registration.
func (l *Listener) FD() int {
	return l.fd
}

// Close releases the listening socket.
func (l *Listener) Close() error {
	return unix.Close(l.fd)
}

// Accept drains exactly one pending connection. A would-block result is
// not an error: callers distinguish it via ok=false, err=nil and re-await
// readiness instead of retrying immediately.
func (l *Listener) Accept() (conn *Conn, ok bool, err error) {
	nfd, _, aerr := unix.Accept(l.fd)
	if aerr != nil {
		if aerr == unix.EAGAIN || aerr == unix.EWOULDBLOCK {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("accept: %w", aerr)
	}

	if err := unix.SetNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		return nil, false, fmt.Errorf("set nonblock: %w", err)
	}

	_ = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

	return &Conn{fd: nfd}, true, nil
}

// Conn wraps one accepted, non-blocking client socket.
type Conn struct {
	fd int
}

// FD returns the raw descriptor for reactor registration.
func (c *Conn) FD() int {
	return c.fd
}

// Read performs one non-blocking read into buf. A would-block condition is
// reported as n=0, wouldBlock=true, err=nil; a peer-closed condition is
// reported as n=0, wouldBlock=false, err=nil — the caller tells the two
// apart to distinguish a transient condition from a terminal one.
func (c *Conn) Read(buf []byte) (n int, wouldBlock bool, err error) {
	n, err = unix.Read(c.fd, buf)
	if err == nil {
		return n, false, nil
	}

	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, true, nil
	}

	return 0, false, fmt.Errorf("read: %w", err)
}

// Write performs one non-blocking write of buf, returning the number of
// bytes actually accepted by the kernel socket buffer — never more than
// len(buf), possibly zero on would-block.
func (c *Conn) Write(buf []byte) (n int, wouldBlock bool, err error) {
	n, err = unix.Write(c.fd, buf)
	if err == nil {
		return n, false, nil
	}

	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, true, nil
	}

	return 0, false, fmt.Errorf("write: %w", err)
}

// Close closes the client socket. Best-effort: a close is always allowed
// to fail silently once a connection is being torn down.
func (c *Conn) Close() error {
	return unix.Close(c.fd)
}
