package corehttp

import (
	"bufio"
	"net"
	"testing"
	"time"
)

func TestServerRunServesAndStop(t *testing.T) {
	s := NewServer(WithAddr("127.0.0.1"), WithPort(0))
	s.AddPathHandler("/hello", nil, nil, func(_ []RouteValue, _ RequestString) (Response, error) {
		return NewResponse(StatusOK, StringBody("hi")), nil
	})

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- s.Run() }()

	var addr string
	for i := 0; i < 100; i++ {
		if a := s.Addr(); a != "" {
			addr = a
			break
		}
		time.Sleep(time.Millisecond)
	}
	if addr == "" {
		t.Fatal("server never bound a listener")
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("GET /hello HTTP/1.1\r\nConnection: close\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}
	status, _, body := readTestResponse(t, bufio.NewReader(conn))
	if status != StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body != "hi" {
		t.Fatalf("body = %q, want hi", body)
	}

	s.Stop()
	select {
	case err := <-runErrCh:
		if err != nil {
			t.Fatalf("Run returned %v after Stop, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestServerRunConfigErrorOnBadAddr(t *testing.T) {
	s := NewServer(WithAddr("256.256.256.256"), WithPort(0))
	err := s.Run()
	if err == nil {
		t.Fatal("expected a ConfigError for an unbindable address")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Fatalf("expected *ConfigError, got %T: %v", err, err)
	}
}

func TestServerWithListenerAdoptsExistingSocket(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := NewServer(WithListener(ln))
	s.AddPathHandler("/ping", nil, nil, func(_ []RouteValue, _ RequestString) (Response, error) {
		return NewResponse(StatusOK, StringBody("pong")), nil
	})

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- s.Run() }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("GET /ping HTTP/1.1\r\nConnection: close\r\n\r\n"))
	status, _, body := readTestResponse(t, bufio.NewReader(conn))
	if status != StatusOK || body != "pong" {
		t.Fatalf("status=%d body=%q", status, body)
	}

	s.Stop()
	<-runErrCh
}
