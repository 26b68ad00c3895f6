package rcon

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
)

// fakeServer implements just enough of the Source RCON protocol for tests
type fakeServer struct {
	listener net.Listener
	password string
	handler  func(command string) string

	mu    sync.Mutex
	conns []net.Conn
}

func newFakeServer(t *testing.T, password string, handler func(string) string) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeServer{listener: ln, password: password, handler: handler}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeServer) addr() string { return s.listener.Addr().String() }

func (s *fakeServer) shutdown() {
	s.listener.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		conn.Close()
	}
}

func (s *fakeServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go s.handle(conn)
	}
}

func (s *fakeServer) handle(conn net.Conn) {
	defer conn.Close()
	authed := false
	for {
		id, ptype, body, err := readPacket(conn)
		if err != nil {
			return
		}
		switch {
		case !authed && ptype == packetAuth:
			if body != s.password {
				writePacket(conn, -1, packetAuthResponse, "")
				return
			}
			authed = true
			writePacket(conn, id, packetAuthResponse, "")
		case authed:
			writePacket(conn, id, packetResponse, s.handler(body))
		default:
			return
		}
	}
}

func TestExecuteRoundTrip(t *testing.T) {
	srv := newFakeServer(t, "secret", func(cmd string) string {
		if cmd == "list" {
			return "There are 1 of a max of 20 players online: Alice"
		}
		return "unknown"
	})

	client := NewClient(srv.addr(), "secret")
	defer client.Close()

	out, err := client.Execute(context.Background(), "list")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "Alice") {
		t.Errorf("unexpected response: %q", out)
	}

	// Second call reuses the connection
	if _, err := client.Execute(context.Background(), "list"); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
}

func TestExecuteAuthFailure(t *testing.T) {
	srv := newFakeServer(t, "secret", func(string) string { return "" })

	client := NewClient(srv.addr(), "wrong")
	defer client.Close()

	_, err := client.Execute(context.Background(), "list")
	if err == nil {
		t.Fatal("expected auth error")
	}
	var chErr *ChannelError
	if !errors.As(err, &chErr) {
		t.Fatalf("expected *ChannelError, got %T", err)
	}
	if chErr.Op != "auth" {
		t.Errorf("Op = %q, want auth", chErr.Op)
	}
	if client.LastError() == nil {
		t.Error("LastError should be recorded after a failure")
	}
}

func TestExecuteConnectionRefused(t *testing.T) {
	// Reserve a port, then close it so nothing is listening
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	client := NewClient(addr, "secret")
	defer client.Close()

	_, err = client.Execute(context.Background(), "list")
	var chErr *ChannelError
	if !errors.As(err, &chErr) {
		t.Fatalf("expected *ChannelError, got %v", err)
	}
	if chErr.Op != "connect" {
		t.Errorf("Op = %q, want connect", chErr.Op)
	}
}

func TestReconnectAfterServerRestart(t *testing.T) {
	srv := newFakeServer(t, "secret", func(string) string { return "ok" })
	client := NewClient(srv.addr(), "secret")
	defer client.Close()

	if _, err := client.Execute(context.Background(), "ping"); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Kill the server; the established connection is now dead
	srv.shutdown()
	if _, err := client.Execute(context.Background(), "ping"); err == nil {
		t.Fatal("expected error after server went away")
	}

	// The client keeps failing fast while the server is down, without
	// crashing or retrying within a call
	if _, err := client.Execute(context.Background(), "ping"); err == nil {
		t.Fatal("expected error while server is down")
	}
}

func TestPacketFraming(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	go func() {
		writePacket(c1, 7, packetExec, "save-all")
	}()

	id, ptype, body, err := readPacket(c2)
	if err != nil {
		t.Fatalf("readPacket: %v", err)
	}
	if id != 7 || ptype != packetExec || body != "save-all" {
		t.Errorf("got id=%d type=%d body=%q", id, ptype, body)
	}
}
