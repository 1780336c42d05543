package httpproxy

import "testing"

func TestParseRequestLine(t *testing.T) {
	method, uri, version, err := ParseRequestLine("GET http://example.net/p HTTP/1.1")
	if err != nil {
		t.Fatalf("ParseRequestLine: %v", err)
	}
	if method != "GET" || uri != "http://example.net/p" || version != "1.1" {
		t.Fatalf("got %q %q %q", method, uri, version)
	}
}

func TestParseRequestLineRejectsUnknownMethod(t *testing.T) {
	if _, _, _, err := ParseRequestLine("FOO / HTTP/1.1"); err == nil {
		t.Fatalf("expected error for unregistered method")
	}
}

func TestParseStatusLine(t *testing.T) {
	version, status, reason, err := ParseStatusLine("HTTP/1.1 200 OK")
	if err != nil {
		t.Fatalf("ParseStatusLine: %v", err)
	}
	if version != "1.1" || status != 200 || reason != "OK" {
		t.Fatalf("got %q %d %q", version, status, reason)
	}
}

func TestParseURL(t *testing.T) {
	u, err := ParseURL("http://example.net:8080/a/b?c=1")
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	if u.Protocol != "http" || u.Host != "example.net" || u.Port != 8080 || u.Path != "/a/b?c=1" {
		t.Fatalf("got %+v", u)
	}
}

func TestParseURLDefaultPort(t *testing.T) {
	u, err := ParseURL("http://example.net/p")
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	if u.Port != 80 {
		t.Fatalf("expected default port 80, got %d", u.Port)
	}
}

func TestParseURLIPv6Host(t *testing.T) {
	u, err := ParseURL("http://[::1]:8080/p")
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	if u.Host != "[::1]" || u.Port != 8080 {
		t.Fatalf("got %+v", u)
	}
}

func TestParseURLNoPath(t *testing.T) {
	u, err := ParseURL("http://example.net")
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	if u.Path != "/" {
		t.Fatalf("expected default path '/', got %q", u.Path)
	}
}

func TestParseChunkSizeLine(t *testing.T) {
	size, err := ParseChunkSizeLine("1a")
	if err != nil || size != 26 {
		t.Fatalf("got %d, %v", size, err)
	}
}

func TestParseChunkSizeLineWithExtensions(t *testing.T) {
	size, err := ParseChunkSizeLine("5;foo=bar")
	if err != nil || size != 5 {
		t.Fatalf("got %d, %v", size, err)
	}
}

func TestParseChunkSizeLineInvalid(t *testing.T) {
	if _, err := ParseChunkSizeLine("zzz"); err == nil {
		t.Fatalf("expected error for invalid chunk-size")
	}
}
