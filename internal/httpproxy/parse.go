// Package httpproxy implements the HTTP/1.1 forward-proxy engine: the line
// and header reader (C6), the request/status/URL/chunk-size parser (C7),
// the header model and policy (C8), the chunked/limited body transceiver
// (C9), the upstream connection pool (C10), and the per-connection engine
// that drives all of them together (C11).
package httpproxy

import (
	"fmt"
	"strconv"
	"strings"
)

var registeredMethods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true, "DELETE": true,
	"TRACE": true, "OPTIONS": true, "CONNECT": true, "PATCH": true,
}

// Request is a parsed HTTP request line plus headers.
type Request struct {
	Method  string
	URI     string
	Version string
	Headers Headers
}

// Response is a parsed HTTP status line plus headers.
type Response struct {
	Version string
	Status  int
	Reason  string
	Headers Headers
}

// URL is a parsed absolute request-URI: protocol "://" host (":" port)? path.
type URL struct {
	Protocol string
	Host     string
	Port     int
	Path     string
}

// tokenChar reports whether r is a valid HTTP token character: not a
// control character, not in the token-delimiter set, and not SP/DEL.
func tokenChar(r byte) bool {
	if r <= 0x20 || r == 0x7f {
		return false
	}
	switch r {
	case '(', ')', '<', '>', '@', ',', ';', ':', '"', '/', '[', ']', '?', '=', '{', '}', '\t', '\\':
		return false
	}
	return true
}

func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !tokenChar(s[i]) {
			return false
		}
	}
	return true
}

// ParseRequestLine parses "METHOD SP URI SP HTTP/version".
func ParseRequestLine(line string) (method, uri, version string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", "", newErr(ErrHeaderParse, fmt.Errorf("malformed request line %q", line))
	}

	method = parts[0]
	if !registeredMethods[method] {
		return "", "", "", newErr(ErrHeaderParse, fmt.Errorf("unregistered method %q", method))
	}

	uri = parts[1]

	const prefix = "HTTP/"
	if !strings.HasPrefix(parts[2], prefix) {
		return "", "", "", newErr(ErrHeaderParse, fmt.Errorf("malformed HTTP version %q", parts[2]))
	}
	version = strings.TrimPrefix(parts[2], prefix)
	if version == "" {
		return "", "", "", newErr(ErrHeaderParse, fmt.Errorf("empty HTTP version"))
	}

	return method, uri, version, nil
}

// ParseStatusLine parses "HTTP/version SP status SP phrase".
func ParseStatusLine(line string) (version string, status int, reason string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return "", 0, "", newErr(ErrResponseHeaderParse, fmt.Errorf("malformed status line %q", line))
	}

	const prefix = "HTTP/"
	if !strings.HasPrefix(parts[0], prefix) {
		return "", 0, "", newErr(ErrResponseHeaderParse, fmt.Errorf("malformed HTTP version %q", parts[0]))
	}
	version = strings.TrimPrefix(parts[0], prefix)

	status, err = strconv.Atoi(parts[1])
	if err != nil || status < 10 || status > 999 {
		return "", 0, "", newErr(ErrResponseHeaderParse, fmt.Errorf("invalid status %q", parts[1]))
	}

	if len(parts) == 3 {
		reason = parts[2]
	}

	return version, status, reason, nil
}

// ParseHeaderBlock parses the CRLF-delimited lines following a request or
// status line out of raw (which must include the terminating blank line).
// Legacy line folding is preserved verbatim: a continuation line (starting
// with SP or TAB) is appended to the previous pair's value together with
// its leading CRLF and whitespace, exactly as it appeared on the wire.
func ParseHeaderBlock(raw string) (*Headers, error) {
	lines := strings.Split(raw, "\r\n")
	// raw ends with "\r\n\r\n" so the split yields two trailing "" entries
	// (one between the final two CRLFs, one after the last). The last is
	// dropped here; the other is skipped by the empty-line check below.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	h := &Headers{}
	for _, line := range lines {
		if line == "" {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if len(h.pairs) == 0 {
				return nil, newErr(ErrHeaderParse, fmt.Errorf("continuation line with no preceding header"))
			}
			last := &h.pairs[len(h.pairs)-1]
			last.Value += "\r\n" + line
			continue
		}

		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return nil, newErr(ErrHeaderParse, fmt.Errorf("malformed header line %q", line))
		}
		name := line[:idx]
		if !isToken(name) {
			return nil, newErr(ErrHeaderParse, fmt.Errorf("invalid header token %q", name))
		}
		value := strings.TrimPrefix(line[idx+1:], " ")
		h.Add(name, value)
	}

	return h, nil
}

// ParseURL parses an absolute request-URI: scheme "://" host (":" port)? path.
// Host may be a bracketed IPv6 literal. Port defaults to 80 when absent.
// Any leftover, unconsumed input is a protocol error.
func ParseURL(s string) (*URL, error) {
	schemeIdx := strings.Index(s, "://")
	if schemeIdx < 0 {
		return nil, newErr(ErrHeaderParse, fmt.Errorf("missing scheme in URL %q", s))
	}
	protocol := s[:schemeIdx]
	rest := s[schemeIdx+3:]

	var host, path string
	var port = 80

	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, newErr(ErrHeaderParse, fmt.Errorf("unterminated IPv6 host in URL %q", s))
		}
		literal := rest[1:end]
		for i := 0; i < len(literal); i++ {
			c := literal[i]
			isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') || c == ':'
			if !isHex {
				return nil, newErr(ErrHeaderParse, fmt.Errorf("invalid IPv6 host %q", literal))
			}
		}
		host = "[" + literal + "]"
		rest = rest[end+1:]
	} else {
		i := 0
		for i < len(rest) && rest[i] != ':' && rest[i] != '/' {
			i++
		}
		host = rest[:i]
		rest = rest[i:]
	}

	if strings.HasPrefix(rest, ":") {
		i := 1
		for i < len(rest) && rest[i] != '/' {
			i++
		}
		portStr := rest[1:i]
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, newErr(ErrHeaderParse, fmt.Errorf("invalid port %q", portStr))
		}
		port = p
		rest = rest[i:]
	}

	if rest == "" {
		path = "/"
	} else {
		path = rest
	}

	if host == "" {
		return nil, newErr(ErrHeaderParse, fmt.Errorf("empty host in URL %q", s))
	}

	return &URL{Protocol: protocol, Host: host, Port: port, Path: path}, nil
}

// ParseChunkSizeLine parses "hex-size (';' extensions)?", consuming the
// entire input. Leftover bytes are a protocol error.
func ParseChunkSizeLine(line string) (int64, error) {
	s := line
	if idx := strings.IndexByte(s, ';'); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, newErr(ErrHeaderParse, fmt.Errorf("empty chunk-size line"))
	}
	size, err := strconv.ParseInt(s, 16, 64)
	if err != nil || size < 0 {
		return 0, newErr(ErrHeaderParse, fmt.Errorf("invalid chunk-size %q", s))
	}
	return size, nil
}
