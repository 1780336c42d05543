// Package socks4 implements the SOCKS4 CONNECT engine (C4): an 8-byte
// header plus NUL-terminated identity, followed by a dial, reply, and
// relay — generalized from the teacher's SOCKS5 handshake in
// Ealireza-SuperProxy/proxy.go to the simpler SOCKS4 wire format.
package socks4

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/ealireza/multiproxy/internal/proxylog"
	"github.com/ealireza/multiproxy/internal/relay"
	"github.com/ealireza/multiproxy/internal/resolver"
)

// ErrorKind enumerates the small SOCKS4 failure taxonomy (§7).
type ErrorKind string

const (
	ErrHandshake         ErrorKind = "Handshake"
	ErrHeaderInvalid     ErrorKind = "HeaderInvalid"
	ErrTargetUnreachable ErrorKind = "TargetUnreachable"
	ErrTransceiver       ErrorKind = "Transceiver"
)

// Error carries a SOCKS4 failure kind for logging.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

const (
	version    = 0x04
	cmdConnect = 0x01

	replyGranted = 0x5A
	replyFailed  = 0x5B

	maxIDLen = 1000

	handshakeTimeout = 10 * time.Second
)

// request is the parsed SOCKS4 CONNECT header.
type request struct {
	cmd byte
	dst net.TCPAddr
	id  string
}

// Handle runs the SOCKS4 state machine READ_HEADER → READ_ID → VALIDATE →
// DIAL → REPLY → RELAY over conn, logging under listener label name.
func Handle(conn net.Conn, name string) {
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(handshakeTimeout))

	req, err := readRequest(conn)
	if err != nil {
		writeReply(conn, replyFailed, net.IPv4zero, 0)
		proxylog.ClientError(string(classify(err)))
		return
	}

	if req.cmd != cmdConnect {
		writeReply(conn, replyFailed, net.IPv4zero, 0)
		proxylog.ClientError(string(ErrHeaderInvalid))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	upstream, err := resolver.Dial(ctx, req.dst.String())
	if err != nil {
		writeReply(conn, replyFailed, net.IPv4zero, 0)
		proxylog.ClientError(string(ErrTargetUnreachable))
		return
	}
	defer upstream.Close()

	if err := writeReply(conn, replyGranted, net.IPv4zero, 0); err != nil {
		proxylog.ClientError(string(ErrTransceiver))
		return
	}

	proxylog.Printf("socks4.%s %s %s -> %s", name, conn.RemoteAddr(), req.id, req.dst.String())

	conn.SetDeadline(time.Time{})
	if err := relay.Run(conn, upstream); err != nil {
		proxylog.ClientError(string(ErrTransceiver))
	}
}

// readRequest reads the 8-byte header and NUL-terminated id.
func readRequest(r io.Reader) (*request, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, &Error{Kind: ErrHandshake, Err: err}
	}
	if hdr[0] != version {
		return nil, &Error{Kind: ErrHeaderInvalid, Err: io.ErrUnexpectedEOF}
	}

	cmd := hdr[1]
	port := binary.BigEndian.Uint16(hdr[2:4])
	ip := net.IPv4(hdr[4], hdr[5], hdr[6], hdr[7])

	id, err := readID(r)
	if err != nil {
		return nil, err
	}

	return &request{
		cmd: cmd,
		dst: net.TCPAddr{IP: ip, Port: int(port)},
		id:  id,
	}, nil
}

// readID reads ASCII bytes up to and excluding a terminating NUL,
// bounded at maxIDLen bytes.
func readID(r io.Reader) (string, error) {
	var buf []byte
	var b [1]byte
	for {
		if len(buf) >= maxIDLen {
			return "", &Error{Kind: ErrHeaderInvalid, Err: io.ErrShortBuffer}
		}
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return "", &Error{Kind: ErrHandshake, Err: err}
		}
		if b[0] == 0 {
			return string(buf), nil
		}
		buf = append(buf, b[0])
	}
}

// writeReply writes the fixed 8-byte SOCKS4 reply: [0x00, code, 0,0, 0,0,0,0].
func writeReply(w io.Writer, code byte, ip net.IP, port uint16) error {
	var buf [8]byte
	buf[0] = 0x00
	buf[1] = code
	_, err := w.Write(buf[:])
	return err
}

func classify(err error) ErrorKind {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
		return e.Kind
	}
	return ErrHandshake
}
