// Package resolver performs the asynchronous host:port → address lookups
// shared by every listener kind (C3).
package resolver

import (
	"context"
	"fmt"
	"net"
)

// Error wraps a resolution failure for a given lookup key.
type Error struct {
	Key   string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.Key, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Resolve looks up hostPort (accepting bracketed IPv6 literals) and returns
// exactly one usable address, or a *Error on failure. DNS runs through
// net.DefaultResolver, which offloads blocking getaddrinfo calls to the
// runtime's own worker threads so callers never block the scheduler.
func Resolve(ctx context.Context, hostPort string) (*net.TCPAddr, error) {
	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return nil, &Error{Key: hostPort, Cause: err}
	}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, &Error{Key: hostPort, Cause: err}
	}
	if len(ips) == 0 {
		return nil, &Error{Key: hostPort, Cause: fmt.Errorf("no addresses found")}
	}

	var p int
	if _, err := fmt.Sscanf(port, "%d", &p); err != nil {
		return nil, &Error{Key: hostPort, Cause: err}
	}

	return &net.TCPAddr{IP: ips[0].IP, Port: p, Zone: ips[0].Zone}, nil
}

// Dial resolves hostPort and dials a TCP connection to it with TCP_NODELAY
// set, per the pool/engine contract in C10/C11.
func Dial(ctx context.Context, hostPort string) (*net.TCPConn, error) {
	addr, err := Resolve(ctx, hostPort)
	if err != nil {
		return nil, err
	}

	d := net.Dialer{Control: setSocketOptions}
	conn, err := d.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, &Error{Key: hostPort, Cause: err}
	}
	tcpConn := conn.(*net.TCPConn)
	tcpConn.SetNoDelay(true)
	return tcpConn, nil
}
