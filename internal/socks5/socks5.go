// Package socks5 implements the SOCKS5 no-auth CONNECT engine (C5):
// AUTH_HELLO → AUTH_REPLY → REQUEST → REPLY → RELAY, generalized from the
// teacher's fixed-outbound-IPv6 SOCKS5 handler in
// Ealireza-SuperProxy/proxy.go to the full IPv4/IPv6/domain destination
// set required by the spec.
//
// Per the design notes, the REQUEST decoder is incremental: it never
// preallocates a fixed-size buffer for the variable-length address field,
// instead growing a buffer and retrying the whole-message parse after each
// read until enough bytes are available.
package socks5

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/ealireza/multiproxy/internal/proxylog"
	"github.com/ealireza/multiproxy/internal/relay"
	"github.com/ealireza/multiproxy/internal/resolver"
)

// ErrorKind enumerates the SOCKS5 failure taxonomy (§7).
type ErrorKind string

const (
	ErrHandshake         ErrorKind = "Handshake"
	ErrHeaderInvalid     ErrorKind = "HeaderInvalid"
	ErrTargetUnreachable ErrorKind = "TargetUnreachable"
	ErrTransceiver       ErrorKind = "Transceiver"
	ErrInvalidAuth       ErrorKind = "InvalidAuth"
	ErrInvalidRequest    ErrorKind = "InvalidRequest"
)

// Error carries a SOCKS5 failure kind for logging.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

const (
	version = 0x05

	authNone           = 0x00
	authNoAcceptable   = 0xFF

	cmdConnect = 0x01

	atypIPv4   = 0x01
	atypDomain = 0x03
	atypIPv6   = 0x04

	repSuccess              = 0x00
	repGeneralFailure       = 0x01
	repCommandNotSupported  = 0x07
	repAddrTypeNotSupported = 0x08

	handshakeTimeout = 10 * time.Second
)

// connectRequest is the parsed REQUEST message.
type connectRequest struct {
	cmd  byte
	atyp byte
	addr string // IP literal or domain name
	port uint16
}

// need signals that the incremental parser requires more bytes before it
// can make progress.
type need struct{ n int }

func (need) Error() string { return "need more bytes" }

// Handle drives one SOCKS5 client connection to completion.
func Handle(conn net.Conn, name string) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(handshakeTimeout))

	buf := &growBuffer{}

	if err := authHello(conn, buf); err != nil {
		proxylog.ClientError(string(kindOf(err)))
		return
	}

	// buf may already hold REQUEST bytes the client pipelined behind
	// AUTH_HELLO in the same segment; authHello only discarded the hello
	// bytes it consumed, so readRequest continues parsing the same buffer
	// rather than resetting it and blocking on a read for data already in
	// hand.
	req, err := readRequest(conn, buf)
	if err != nil {
		proxylog.ClientError(string(kindOf(err)))
		return
	}

	if req.cmd != cmdConnect {
		writeReply(conn, repCommandNotSupported, nil, 0)
		proxylog.ClientError(string(ErrInvalidRequest))
		return
	}

	target := net.JoinHostPort(req.addr, strconv.Itoa(int(req.port)))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	upstream, err := resolver.Dial(ctx, target)
	if err != nil {
		proxylog.ClientError(string(ErrTargetUnreachable))
		return
	}
	defer upstream.Close()

	boundAddr, _ := upstream.RemoteAddr().(*net.TCPAddr)
	if err := writeReply(conn, repSuccess, boundAddr.IP, uint16(boundAddr.Port)); err != nil {
		proxylog.ClientError(string(ErrTransceiver))
		return
	}

	proxylog.Printf("socks5.%s %s -> %s", name, conn.RemoteAddr(), target)

	conn.SetDeadline(time.Time{})
	if err := relay.Run(conn, upstream); err != nil {
		proxylog.ClientError(string(ErrTransceiver))
	}
}

// authHello reads [VER, NMETHODS, methods...] and replies with the chosen
// method, or 0xFF and an error if no-auth is not offered.
func authHello(conn net.Conn, buf *growBuffer) error {
	for {
		n, perr := parseAuthHello(buf.bytes())
		if perr == nil {
			buf.discard(n)
			_, err := conn.Write([]byte{version, authNone})
			return err
		}
		if _, ok := perr.(need); !ok {
			conn.Write([]byte{version, authNoAcceptable})
			return &Error{Kind: ErrInvalidAuth, Err: perr}
		}
		if err := buf.fill(conn); err != nil {
			return &Error{Kind: ErrHandshake, Err: err}
		}
	}
}

// parseAuthHello attempts to decode a complete AUTH_HELLO message from b.
// Returns the number of bytes consumed, or a need{} error if more data is
// required, or a hard error if no-auth was not offered.
func parseAuthHello(b []byte) (int, error) {
	if len(b) < 2 {
		return 0, need{2 - len(b)}
	}
	if b[0] != version {
		return 0, &Error{Kind: ErrInvalidAuth, Err: io.ErrUnexpectedEOF}
	}
	nmethods := int(b[1])
	total := 2 + nmethods
	if len(b) < total {
		return 0, need{total - len(b)}
	}
	for _, m := range b[2:total] {
		if m == authNone {
			return total, nil
		}
	}
	return 0, &Error{Kind: ErrInvalidAuth, Err: io.ErrUnexpectedEOF}
}

// readRequest reads and parses the REQUEST message incrementally.
func readRequest(conn net.Conn, buf *growBuffer) (*connectRequest, error) {
	for {
		req, n, perr := parseRequest(buf.bytes())
		if perr == nil {
			buf.discard(n)
			return req, nil
		}
		if _, ok := perr.(need); !ok {
			return nil, &Error{Kind: ErrInvalidRequest, Err: perr}
		}
		if err := buf.fill(conn); err != nil {
			return nil, &Error{Kind: ErrHandshake, Err: err}
		}
	}
}

// parseRequest attempts to decode a complete REQUEST message from b:
// [VER, CMD, RSV, ATYP, ADDR, PORT(be16)].
func parseRequest(b []byte) (*connectRequest, int, error) {
	if len(b) < 4 {
		return nil, 0, need{4 - len(b)}
	}
	if b[0] != version {
		return nil, 0, &Error{Kind: ErrInvalidRequest, Err: io.ErrUnexpectedEOF}
	}
	cmd := b[1]
	atyp := b[3]

	var addrLen, headerLen int
	switch atyp {
	case atypIPv4:
		addrLen = 4
		headerLen = 4
	case atypDomain:
		if len(b) < 5 {
			return nil, 0, need{5 - len(b)}
		}
		addrLen = int(b[4])
		headerLen = 5
	case atypIPv6:
		addrLen = 16
		headerLen = 4
	default:
		return nil, 0, &Error{Kind: ErrInvalidRequest, Err: io.ErrUnexpectedEOF}
	}

	total := headerLen + addrLen + 2
	if len(b) < total {
		return nil, 0, need{total - len(b)}
	}

	addrBytes := b[headerLen : headerLen+addrLen]
	var addr string
	switch atyp {
	case atypIPv4, atypIPv6:
		addr = net.IP(addrBytes).String()
	case atypDomain:
		addr = string(addrBytes)
	}

	port := binary.BigEndian.Uint16(b[headerLen+addrLen : total])

	return &connectRequest{cmd: cmd, atyp: atyp, addr: addr, port: port}, total, nil
}

// writeReply writes [VER, REP, RSV, ATYP, BND.ADDR, BND.PORT]. Per the
// design notes this reflects the dialed upstream peer address rather than
// a client-facing bind address, preserved for bug compatibility with the
// reference implementation.
func writeReply(w io.Writer, rep byte, ip net.IP, port uint16) error {
	var buf [22]byte
	buf[0] = version
	buf[1] = rep
	buf[2] = 0x00

	n := 4
	if ip != nil {
		if v4 := ip.To4(); v4 != nil {
			buf[3] = atypIPv4
			copy(buf[4:8], v4)
			n = 8
		} else {
			buf[3] = atypIPv6
			copy(buf[4:20], ip.To16())
			n = 20
		}
	} else {
		buf[3] = atypIPv4
		n = 8
	}
	binary.BigEndian.PutUint16(buf[n:n+2], port)
	n += 2

	_, err := w.Write(buf[:n])
	return err
}

func kindOf(err error) ErrorKind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return ErrHandshake
}

// growBuffer is a minimal growable read buffer for the incremental
// parser: fill reads whatever is available and appends it; discard drops
// consumed bytes from the front.
type growBuffer struct {
	data []byte
}

func (g *growBuffer) bytes() []byte { return g.data }

func (g *growBuffer) discard(n int) {
	g.data = g.data[n:]
}

func (g *growBuffer) fill(r io.Reader) error {
	var tmp [256]byte
	n, err := r.Read(tmp[:])
	if n > 0 {
		g.data = append(g.data, tmp[:n]...)
	}
	if err != nil {
		return err
	}
	return nil
}
