package httpproxy

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestLimitedExactLength(t *testing.T) {
	src := strings.NewReader("hello world, extra bytes not forwarded")
	var dst bytes.Buffer
	if err := limited(&dst, src, 11); err != nil {
		t.Fatalf("limited: %v", err)
	}
	if dst.String() != "hello world" {
		t.Fatalf("got %q", dst.String())
	}
}

func TestLimitedStopsEarlyOnEOF(t *testing.T) {
	src := strings.NewReader("short")
	var dst bytes.Buffer
	if err := limited(&dst, src, 100); err != nil {
		t.Fatalf("limited: %v", err)
	}
	if dst.String() != "short" {
		t.Fatalf("got %q", dst.String())
	}
}

func TestChunkedRoundTrip(t *testing.T) {
	encoded := "5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"
	src := bufio.NewReader(strings.NewReader(encoded))
	var dst bytes.Buffer
	if err := chunked(&dst, src); err != nil {
		t.Fatalf("chunked: %v", err)
	}
	if dst.String() != encoded {
		t.Fatalf("got %q, want %q", dst.String(), encoded)
	}
}

func TestChunkedPropagatesSizeLineError(t *testing.T) {
	src := bufio.NewReader(strings.NewReader("not-hex\r\n\r\n"))
	var dst bytes.Buffer
	if err := chunked(&dst, src); err == nil {
		t.Fatalf("expected error for invalid chunk-size line")
	}
}
