package socks4

import (
	"encoding/binary"
	"net"
	"testing"
	"time"
)

func startTarget(t *testing.T) (addr net.TCPAddr) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()
	return *ln.Addr().(*net.TCPAddr)
}

func TestHandleSuccessfulConnect(t *testing.T) {
	target := startTarget(t)

	client, server := net.Pipe()
	defer client.Close()

	go Handle(server, "test")

	var req [8]byte
	req[0] = 0x04
	req[1] = 0x01
	binary.BigEndian.PutUint16(req[2:4], uint16(target.Port))
	copy(req[4:8], target.IP.To4())

	client.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := client.Write(req[:]); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if _, err := client.Write([]byte("usr\x00")); err != nil {
		t.Fatalf("write id: %v", err)
	}

	var reply [8]byte
	if _, err := client.Read(reply[:]); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply[0] != 0x00 || reply[1] != 0x5A {
		t.Fatalf("got reply %v, want granted", reply)
	}
}

func TestHandleRejectsNonConnectCommand(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	go Handle(server, "test")

	var req [8]byte
	req[0] = 0x04
	req[1] = 0x02 // BIND, unsupported
	binary.BigEndian.PutUint16(req[2:4], 80)
	req[4], req[5], req[6], req[7] = 127, 0, 0, 1

	client.SetDeadline(time.Now().Add(2 * time.Second))
	client.Write(req[:])
	client.Write([]byte{0})

	var reply [8]byte
	if _, err := client.Read(reply[:]); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply[1] != 0x5B {
		t.Fatalf("got reply %v, want rejected", reply)
	}
}
