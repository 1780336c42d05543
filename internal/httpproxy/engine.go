package httpproxy

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ealireza/multiproxy/internal/proxylog"
	"github.com/ealireza/multiproxy/internal/relay"
	"github.com/ealireza/multiproxy/internal/resolver"
)

const (
	initialReadTimeout = 120 * time.Second
	keepAliveSlack     = 10 * time.Second
	dialTimeout        = 15 * time.Second
)

// Handle drives the per-connection HTTP/1.1 forward-proxy state machine
// (C11): READ_REQ_HEADER → PARSE → dispatch, looping on keep-alive.
func Handle(conn net.Conn, name string) {
	defer conn.Close()

	br := bufio.NewReader(conn)
	pool := NewPool()
	defer pool.Close()

	conn.SetReadDeadline(time.Now().Add(initialReadTimeout))

	for {
		again, err := serveOne(conn, br, pool, name)
		if err != nil {
			proxylog.ClientError(string(KindOf(err)))
			return
		}
		if !again {
			return
		}
	}
}

// serveOne reads and dispatches one request. It returns again=true when
// the client connection should be kept open for another request.
func serveOne(conn net.Conn, br *bufio.Reader, pool *Pool, name string) (again bool, err error) {
	req, err := readRequest(br)
	if err != nil {
		version := "1.1"
		writeErrorPage(conn, version, 400, "invalid header", page400)
		return false, err
	}

	if req.Method == "CONNECT" {
		handleConnect(conn, req, name)
		return false, nil
	}

	return handleForward(conn, br, req, pool, name)
}

// handleConnect treats the request-URI as a literal host:port, dials it,
// replies 200, and hands both ends to the relay. No further requests are
// served on this connection afterward.
func handleConnect(conn net.Conn, req *Request, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	upstream, derr := dialTarget(ctx, req.URI)
	if derr != nil {
		writeErrorPage(conn, req.Version, 502, "connection failed", page502)
		proxylog.ClientError(string(ErrTargetUnreachable))
		return
	}
	defer upstream.Close()

	if _, werr := fmt.Fprintf(conn, "HTTP/%s 200 OK\r\n\r\n", req.Version); werr != nil {
		proxylog.ClientError(string(ErrInternal))
		return
	}

	proxylog.Printf("http.%s CONECT %s -> %s", name, conn.RemoteAddr(), req.URI)

	conn.SetReadDeadline(time.Time{})
	if rerr := relay.Run(conn, upstream); rerr != nil {
		proxylog.ClientError(string(ErrInternal))
	}
}

// handleForward drives URL_PARSE → POOL_ACQUIRE → WRITE_REQ →
// MAYBE_FWD_REQ_BODY → READ_RESP_HEADER → PARSE_RESP → WRITE_RESP →
// UPDATE_TIMEOUT → MAYBE_FWD_RESP_BODY → KEEP_ALIVE_DECISION.
func handleForward(conn net.Conn, br *bufio.Reader, req *Request, pool *Pool, name string) (again bool, err error) {
	url, err := ParseURL(req.URI)
	if err != nil || url.Protocol != "http" {
		e := newErr(ErrUrlProtocolInvalid, fmt.Errorf("unsupported protocol in %q", req.URI))
		writeErrorPage(conn, req.Version, 400, "invalid header", page400)
		return false, e
	}

	key := net.JoinHostPort(url.Host, strconv.Itoa(url.Port))

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	handle, err := pool.Acquire(ctx, key)
	cancel()
	if err != nil {
		writeErrorPage(conn, req.Version, 502, "connection failed", page502)
		return false, err
	}

	upstream := handle.Conn()
	status, rerr := forwardOnce(conn, br, req, upstream, url)
	if rerr != nil {
		handle.Invalidate()
		handle.Release()
		return false, rerr
	}

	proxylog.Printf("http.%s %s %s -> %s %d", name, req.Method, conn.RemoteAddr(), req.URI, status.code)

	if !req.Headers.IsKeepAlive() || !status.respKeepAlive {
		handle.Invalidate()
	}
	handle.Release()

	return req.Headers.IsKeepAlive() && status.respKeepAlive, nil
}

type forwardResult struct {
	code          int
	respKeepAlive bool
}

// forwardOnce writes the rewritten request (and body, if any) to upstream,
// reads and relays the response, and returns the response status plus its
// keep-alive verdict.
func forwardOnce(client net.Conn, clientBR *bufio.Reader, req *Request, upstream net.Conn, url *URL) (forwardResult, error) {
	reqLine := fmt.Sprintf("%s %s HTTP/%s\r\n", req.Method, url.Path, req.Version)
	if _, err := upstream.Write([]byte(reqLine + req.Headers.Serialize() + "\r\n")); err != nil {
		return forwardResult{}, newErr(ErrInternal, err)
	}

	if req.Method == "POST" {
		if err := forwardRequestBody(upstream, clientBR, req); err != nil {
			return forwardResult{}, err
		}
	}

	// A fresh bufio.Reader per call is safe only because this engine never
	// pipelines: forwardOnce reads exactly one response's header + body off
	// upstream before returning, so no origin bytes are ever left sitting
	// unread in a reader we're about to discard on the next keep-alive
	// iteration's pool checkout.
	upstreamBR := bufio.NewReader(upstream)
	resp, err := readResponse(upstreamBR)
	if err != nil {
		return forwardResult{}, err
	}

	if ka, ok := resp.Headers.KeepAliveParams(); ok {
		client.SetReadDeadline(time.Now().Add(time.Duration(ka.Timeout)*time.Second + keepAliveSlack))
	} else {
		client.SetReadDeadline(time.Now().Add(initialReadTimeout))
	}

	statusLine := fmt.Sprintf("HTTP/%s %d %s\r\n", resp.Version, resp.Status, resp.Reason)
	if _, err := client.Write([]byte(statusLine + resp.Headers.Serialize() + "\r\n")); err != nil {
		return forwardResult{}, newErr(ErrInternal, err)
	}

	if bodyAllowed(req, resp) {
		if err := forwardResponseBody(client, upstreamBR, resp); err != nil {
			return forwardResult{}, err
		}
	}

	return forwardResult{code: resp.Status, respKeepAlive: resp.Headers.IsKeepAlive()}, nil
}

// bodyAllowed reports whether a response body is present, per §3: absent
// for HEAD requests, 1xx responses, 204, and 304.
func bodyAllowed(req *Request, resp *Response) bool {
	if req.Method == "HEAD" {
		return false
	}
	if resp.Status >= 100 && resp.Status < 200 {
		return false
	}
	if resp.Status == 204 || resp.Status == 304 {
		return false
	}
	return true
}

// forwardRequestBody forwards a POST body by Content-Length (length wins
// over chunked when both are present) or chunked framing; otherwise no
// body is forwarded.
func forwardRequestBody(upstream net.Conn, clientBR *bufio.Reader, req *Request) error {
	if cl, ok := req.Headers.ContentLength(); ok {
		return limited(upstream, clientBR, cl)
	}
	if req.Headers.IsChunked() {
		return chunked(upstream, clientBR)
	}
	return nil
}

// forwardResponseBody forwards a response body by Content-Length or
// chunked framing. §9's open question is resolved in favor of the fix:
// exactly Content-Length bytes are forwarded, not Content-Length+2 (see
// DESIGN.md) — the reference engine's 2-byte over-read desyncs keep-alive
// against any origin that does not itself emit that same slack.
func forwardResponseBody(client net.Conn, upstreamBR *bufio.Reader, resp *Response) error {
	if cl, ok := resp.Headers.ContentLength(); ok {
		return limited(client, upstreamBR, cl)
	}
	if resp.Headers.IsChunked() {
		return chunked(client, upstreamBR)
	}
	return nil
}

func readRequest(br *bufio.Reader) (*Request, error) {
	raw, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	line, rest, err := splitHeaderBlock(raw)
	if err != nil {
		return nil, err
	}
	method, uri, version, err := ParseRequestLine(line)
	if err != nil {
		return nil, err
	}
	headers, err := ParseHeaderBlock(rest)
	if err != nil {
		return nil, err
	}
	return &Request{Method: method, URI: uri, Version: version, Headers: *headers}, nil
}

func readResponse(br *bufio.Reader) (*Response, error) {
	raw, err := readHeader(br)
	if err != nil {
		return nil, newErr(ErrResponseHeaderParse, err)
	}
	line, rest, err := splitHeaderBlock(raw)
	if err != nil {
		return nil, newErr(ErrResponseHeaderParse, err)
	}
	version, status, reason, err := ParseStatusLine(line)
	if err != nil {
		return nil, err
	}
	headers, err := ParseHeaderBlock(rest)
	if err != nil {
		return nil, newErr(ErrResponseHeaderParse, err)
	}
	return &Response{Version: version, Status: status, Reason: reason, Headers: *headers}, nil
}

// splitHeaderBlock splits a raw header block (first line + CRLF + the
// remaining header lines, ending in the blank-line terminator) into its
// first line and the rest.
func splitHeaderBlock(raw string) (line, rest string, err error) {
	for i := 0; i+1 < len(raw); i++ {
		if raw[i] == '\r' && raw[i+1] == '\n' {
			return raw[:i], raw[i+2:], nil
		}
	}
	return "", "", newErr(ErrHeaderParse, fmt.Errorf("no line terminator in header block"))
}

func dialTarget(ctx context.Context, hostPort string) (net.Conn, error) {
	conn, err := resolver.Dial(ctx, hostPort)
	if err != nil {
		return nil, newKeyedErr(ErrTargetUnreachable, hostPort, err)
	}
	return conn, nil
}
