package httpproxy

import (
	"context"
	"net"
	"testing"
)

func startEchoServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 4096)
				for {
					n, err := c.Read(buf)
					if n > 0 {
						c.Write(buf[:n])
					}
					if err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func TestPoolAcquireReleaseReuse(t *testing.T) {
	addr := startEchoServer(t)
	p := NewPool()
	defer p.Close()

	ctx := context.Background()

	h1, err := p.Acquire(ctx, addr)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	conn1 := h1.Conn()
	h1.Release()

	h2, err := p.Acquire(ctx, addr)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if h2.Conn() != conn1 {
		t.Fatalf("expected reused connection from pool")
	}
	h2.Release()
}

func TestPoolInvalidateClosesInsteadOfReuse(t *testing.T) {
	addr := startEchoServer(t)
	p := NewPool()
	defer p.Close()

	ctx := context.Background()

	h1, err := p.Acquire(ctx, addr)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	conn1 := h1.Conn()
	h1.Invalidate()
	h1.Release()

	h2, err := p.Acquire(ctx, addr)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if h2.Conn() == conn1 {
		t.Fatalf("expected a fresh connection after invalidation")
	}
	h2.Release()
}

func TestPoolCapacityEvictsLRU(t *testing.T) {
	p := NewPool()
	defer p.Close()

	var addrs []string
	for i := 0; i < poolCapacity+2; i++ {
		addrs = append(addrs, startEchoServer(t))
	}

	ctx := context.Background()
	var handles []*Handle
	for _, a := range addrs {
		h, err := p.Acquire(ctx, a)
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		handles = append(handles, h)
	}
	for _, h := range handles {
		h.Release()
	}

	if got := p.order.Len(); got != poolCapacity {
		t.Fatalf("expected pool capped at %d entries, got %d", poolCapacity, got)
	}
	// Released in order, so the first two keys are the least recently used.
	for _, a := range addrs[:2] {
		if _, ok := p.byKey[a]; ok {
			t.Fatalf("expected least recently used key %s to be evicted", a)
		}
	}
	if _, ok := p.byKey[addrs[len(addrs)-1]]; !ok {
		t.Fatalf("expected most recently released key to be kept")
	}
}
