package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/ealireza/multiproxy/internal/httpproxy"
	"github.com/ealireza/multiproxy/internal/listener"
	"github.com/ealireza/multiproxy/internal/socks4"
	"github.com/ealireza/multiproxy/internal/socks5"
	"github.com/ealireza/multiproxy/internal/tcppm"
)

func main() {
	testConfig := flag.Bool("t", false, "test configuration and exit")
	flag.Parse()

	var cfg *Config
	var err error

	if path := flag.Arg(0); path != "" {
		cfg, err = LoadConfig(path)
	} else {
		cfg, err = LoadDefaultConfig()
	}
	if err != nil {
		if *testConfig {
			fmt.Fprintf(os.Stderr, "configuration test FAILED: %v\n", err)
			os.Exit(1)
		}
		log.Fatalf("[main] %v", err)
	}

	if *testConfig {
		fmt.Printf("configuration test OK\n")
		fmt.Printf("  listeners: %d\n", len(cfg.Listeners))
		for _, e := range cfg.Listeners {
			if e.Kind == "tcppm" {
				fmt.Printf("    %s.%-10s :%-5d -> %s\n", e.Kind, e.Name, e.Port, e.Target)
			} else {
				fmt.Printf("    %s.%-10s :%-5d\n", e.Kind, e.Name, e.Port)
			}
		}
		os.Exit(0)
	}

	log.Printf("[main] loaded %d listener entries", len(cfg.Listeners))

	errCh := make(chan error, len(cfg.Listeners))
	for _, entry := range cfg.Listeners {
		entry := entry
		go func() {
			if err := startListener(entry); err != nil {
				errCh <- fmt.Errorf("%s.%s: %w", entry.Kind, entry.Name, err)
			}
		}()
	}

	log.Println("[main] ─────────────────────────────────────")
	for _, e := range cfg.Listeners {
		log.Printf("[main]   %s.%-10s listening on :%d", e.Kind, e.Name, e.Port)
	}
	log.Println("[main] ─────────────────────────────────────")
	log.Println("[main] all listeners running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("[main] received signal %s, shutting down...", sig)
	case err := <-errCh:
		log.Fatalf("[main] fatal: %v", err)
	}
}

// startListener binds entry's listener kind and runs its accept loop,
// dispatching each accepted connection to the matching protocol handler.
func startListener(entry ListenerEntry) error {
	ctx := context.Background()

	switch entry.Kind {
	case "http":
		return listener.Listen(ctx, entry.Port, func(conn net.Conn) {
			httpproxy.Handle(conn, entry.Name)
		})
	case "socks4":
		return listener.Listen(ctx, entry.Port, func(conn net.Conn) {
			socks4.Handle(conn, entry.Name)
		})
	case "socks5":
		return listener.Listen(ctx, entry.Port, func(conn net.Conn) {
			socks5.Handle(conn, entry.Name)
		})
	case "tcppm":
		return listener.Listen(ctx, entry.Port, func(conn net.Conn) {
			tcppm.Handle(conn, entry.Name, entry.Target)
		})
	default:
		return fmt.Errorf("unknown listener kind %q", entry.Kind)
	}
}
