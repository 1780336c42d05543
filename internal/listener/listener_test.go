package listener

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"
)

func TestListenAcceptsAndHandles(t *testing.T) {
	// Bind to an ephemeral port by asking the OS to pick one first, then
	// reusing that port number through Listen (which always binds "::").
	probe, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("probe listen: %v", err)
	}
	port := probe.Addr().(*net.TCPAddr).Port
	probe.Close()

	received := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- Listen(ctx, port, func(conn net.Conn) {
			defer conn.Close()
			received <- struct{}{}
		})
	}()

	// Give the listener a moment to bind.
	time.Sleep(50 * time.Millisecond)

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatalf("handler was not invoked")
	}
}
