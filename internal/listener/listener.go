// Package listener implements the dual-stack TCP acceptor (C2) shared by
// every listener kind: tcppm, socks4, socks5, and http all bind through it
// and differ only in the per-connection handler they supply.
package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Handler processes one accepted client connection. It owns conn and must
// close it before returning.
type Handler func(conn net.Conn)

// Listen binds a dual-stack TCP socket on ":<port>" with SO_REUSEADDR and
// IPV6_V6ONLY disabled, then runs the accept loop, spawning handle as an
// independent goroutine per client. The listen backlog is not set here; it
// is the Go runtime's platform default. Listen blocks until the listener
// is closed (returning nil) or Accept fails; any other Accept error ends
// the loop and is returned.
func Listen(ctx context.Context, port int, handle Handler) error {
	lc := net.ListenConfig{
		Control: setListenerOptions,
	}

	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen :%d: %w", port, err)
	}
	defer ln.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept on :%d: %w", port, err)
		}

		if tc, ok := conn.(*net.TCPConn); ok {
			tc.SetNoDelay(true)
		}

		go handle(conn)
	}
}
