package tcppm

import (
	"io"
	"net"
	"testing"
	"time"
)

func TestHandleRelaysBothDirections(t *testing.T) {
	echo, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer echo.Close()
	go func() {
		c, err := echo.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		io.Copy(c, c)
	}()

	client, server := net.Pipe()
	defer client.Close()
	client.SetDeadline(time.Now().Add(2 * time.Second))

	go Handle(server, "test", echo.Addr().String())

	payload := []byte("hello-tcppm")
	if _, err := client.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := make([]byte, len(payload))
	if _, err := io.ReadFull(client, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestHandleClosesOnUnreachableTarget(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	client.SetDeadline(time.Now().Add(2 * time.Second))

	done := make(chan struct{})
	go func() {
		Handle(server, "test", "127.0.0.1:1")
		close(done)
	}()

	buf := make([]byte, 1)
	_, err := client.Read(buf)
	if err == nil {
		t.Fatalf("expected read to fail once server side closes")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Handle did not return for unreachable target")
	}
}
