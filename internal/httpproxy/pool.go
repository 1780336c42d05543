package httpproxy

import (
	"container/list"
	"context"
	"net"
	"sync"

	"github.com/ealireza/multiproxy/internal/resolver"
)

// poolCapacity bounds the number of idle upstream connections kept per
// client connection.
const poolCapacity = 10

// entry is one idle pooled connection, keyed by its dial string.
type entry struct {
	key  string
	conn *net.TCPConn
}

// Pool is a per-client-connection LRU of idle upstream TCP streams keyed
// by "host:port", capacity 10. It is never shared across client
// connections, grounded on the hostPool/pooledConnection idle-list shape
// in WhileEndless-go-rawhttp/pkg/transport/transport.go, scaled down to a
// single-client, mutex-protected LRU with no background eviction.
type Pool struct {
	mu    sync.Mutex
	order *list.List               // list.Element.Value == *entry, front = most-recently-used
	byKey map[string]*list.Element // only ever holds idle entries
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{
		order: list.New(),
		byKey: make(map[string]*list.Element),
	}
}

// Handle is a scoped wrapper granting exclusive access to an upstream
// stream acquired from the pool. It must be released exactly once.
type Handle struct {
	pool    *Pool
	key     string
	conn    *net.TCPConn
	invalid bool
}

// Conn returns the underlying stream.
func (h *Handle) Conn() *net.TCPConn { return h.conn }

// Invalidate marks the stream as unfit for reuse; Release will close it
// instead of returning it to the pool.
func (h *Handle) Invalidate() { h.invalid = true }

// Release returns the stream to its pool unless Invalidate was called, in
// which case the stream is closed. Safe to call via defer.
func (h *Handle) Release() {
	if h.invalid {
		h.conn.Close()
		return
	}
	h.pool.put(h.key, h.conn)
}

// Acquire removes and returns the pool's idle entry for key if present;
// otherwise it resolves key and dials a fresh TCP_NODELAY connection.
func (p *Pool) Acquire(ctx context.Context, key string) (*Handle, error) {
	if conn := p.take(key); conn != nil {
		return &Handle{pool: p, key: key, conn: conn}, nil
	}

	conn, err := resolver.Dial(ctx, key)
	if err != nil {
		return nil, newKeyedErr(ErrTargetUnreachable, key, err)
	}
	return &Handle{pool: p, key: key, conn: conn}, nil
}

func (p *Pool) take(key string) *net.TCPConn {
	p.mu.Lock()
	defer p.mu.Unlock()

	el, ok := p.byKey[key]
	if !ok {
		return nil
	}
	e := el.Value.(*entry)
	p.order.Remove(el)
	delete(p.byKey, key)
	return e.conn
}

func (p *Pool) put(key string, conn *net.TCPConn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if old, ok := p.byKey[key]; ok {
		p.order.Remove(old)
		old.Value.(*entry).conn.Close()
		delete(p.byKey, key)
	}

	if p.order.Len() >= poolCapacity {
		oldest := p.order.Back()
		if oldest != nil {
			p.order.Remove(oldest)
			oe := oldest.Value.(*entry)
			delete(p.byKey, oe.key)
			oe.conn.Close()
		}
	}

	el := p.order.PushFront(&entry{key: key, conn: conn})
	p.byKey[key] = el
}

// Close closes every idle connection still held by the pool.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for el := p.order.Front(); el != nil; el = el.Next() {
		el.Value.(*entry).conn.Close()
	}
	p.order.Init()
	p.byKey = make(map[string]*list.Element)
}
