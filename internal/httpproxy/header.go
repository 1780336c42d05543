package httpproxy

import (
	"strconv"
	"strings"
)

// HeaderPair is one (name, value) entry in insertion order.
type HeaderPair struct {
	Name  string
	Value string
}

// Headers is an ordered, duplicate-preserving sequence of header pairs
// (C8). Unlike net/http.Header it never folds repeated names into a map,
// which is what lets legacy folded-header values round-trip verbatim.
type Headers struct {
	pairs []HeaderPair
}

// Add appends a new (name, value) pair, preserving any existing entries
// with the same name.
func (h *Headers) Add(name, value string) {
	h.pairs = append(h.pairs, HeaderPair{Name: name, Value: value})
}

// Pairs returns the underlying ordered pairs.
func (h *Headers) Pairs() []HeaderPair { return h.pairs }

// Combined returns the comma-joined concatenation, in insertion order, of
// every value whose name matches name case-sensitively, or ("", false) if
// none match.
func (h *Headers) Combined(name string) (string, bool) {
	var vals []string
	for _, p := range h.pairs {
		if p.Name == name {
			vals = append(vals, p.Value)
		}
	}
	if len(vals) == 0 {
		return "", false
	}
	return strings.Join(vals, ", "), true
}

// ContentLength parses the Content-Length header as a non-negative
// 64-bit integer, returning (0, false) if absent or unparsable.
func (h *Headers) ContentLength() (int64, bool) {
	v, ok := h.Combined("Content-Length")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IsChunked reports whether the Transfer-Encoding token list contains the
// token "chunked".
func (h *Headers) IsChunked() bool {
	v, ok := h.Combined("Transfer-Encoding")
	if !ok {
		return false
	}
	for _, tok := range strings.Split(v, ",") {
		if strings.EqualFold(strings.TrimSpace(tok), "chunked") {
			return true
		}
	}
	return false
}

// IsKeepAlive reports whether the combined Connection value equals
// "keep-alive" case-insensitively.
func (h *Headers) IsKeepAlive() bool {
	v, ok := h.Combined("Connection")
	if !ok {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(v), "keep-alive")
}

// KeepAliveParams is the parsed {timeout, max} pair from a Keep-Alive
// header, valid only when both keys are present and integral.
type KeepAliveParams struct {
	Timeout int
	Max     int
}

// KeepAliveParams parses the Keep-Alive header's comma-separated k=v
// tokens. ok is false unless both "timeout" and "max" are present and
// parse as integers.
func (h *Headers) KeepAliveParams() (KeepAliveParams, bool) {
	v, ok := h.Combined("Keep-Alive")
	if !ok {
		return KeepAliveParams{}, false
	}

	var p KeepAliveParams
	var haveTimeout, haveMax bool

	for _, tok := range strings.Split(v, ",") {
		kv := strings.SplitN(strings.TrimSpace(tok), "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		val, err := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err != nil {
			continue
		}
		switch key {
		case "timeout":
			p.Timeout = val
			haveTimeout = true
		case "max":
			p.Max = val
			haveMax = true
		}
	}

	if !haveTimeout || !haveMax {
		return KeepAliveParams{}, false
	}
	return p, true
}

// Serialize emits each pair as "name: value\r\n" in insertion order. The
// caller is responsible for the blank line that terminates the header
// block at the framing layer.
func (h *Headers) Serialize() string {
	var b strings.Builder
	for _, p := range h.pairs {
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(p.Value)
		b.WriteString("\r\n")
	}
	return b.String()
}
