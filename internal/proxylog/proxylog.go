// Package proxylog formats the single-line stdout events emitted by every
// listener kind.
package proxylog

import (
	"fmt"
	"os"
	"time"
)

// Printf writes one timestamped event line to stdout.
//
// Format: "YYYY-MM-DD HH:MM:SS:mmm: <message>".
func Printf(format string, args ...any) {
	ts := time.Now().Format("2006-01-02 15:04:05")
	ms := time.Now().Nanosecond() / 1e6
	fmt.Fprintf(os.Stdout, "%s:%03d: %s\n", ts, ms, fmt.Sprintf(format, args...))
}

// ClientError logs a per-connection failure using the canonical
// "client error: <Kind>" message.
func ClientError(kind string) {
	Printf("client error: %s", kind)
}
