// Package tcppm implements the tcppm listener kind: plain TCP
// port-forwarding to a fixed upstream address, the simplest of the four
// listener kinds and the most direct consumer of the shared relay (C1).
package tcppm

import (
	"context"
	"net"
	"time"

	"github.com/ealireza/multiproxy/internal/proxylog"
	"github.com/ealireza/multiproxy/internal/relay"
	"github.com/ealireza/multiproxy/internal/resolver"
)

const dialTimeout = 15 * time.Second

// Handle dials target and relays conn<->target bidirectionally, logging
// under listener label name.
func Handle(conn net.Conn, name, target string) {
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	upstream, err := resolver.Dial(ctx, target)
	if err != nil {
		proxylog.ClientError("TargetUnreachable")
		return
	}
	defer upstream.Close()

	proxylog.Printf("tcppm.%s %s -> %s", name, conn.RemoteAddr(), target)

	if err := relay.Run(conn, upstream); err != nil {
		proxylog.ClientError("Internal")
	}
}
