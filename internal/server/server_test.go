package server

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewHTTPServer(ctx, "0", http.NotFoundHandler())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunReportsListenError(t *testing.T) {
	s := NewHTTPServer(context.Background(), "not-a-port", http.NotFoundHandler())
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected listen error")
	}
}
