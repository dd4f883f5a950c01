package solvernet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newWSTestServer serves WebSocket upgrades, closing the first accepted
// connection immediately so the client's read loop trips a reconnect.
// Later connections stay open until the server shuts down.
func newWSTestServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	var mu sync.Mutex
	accepted := 0
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		accepted++
		first := accepted == 1
		mu.Unlock()
		if first {
			c.Close()
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestPingLoopEndsWithConnection(t *testing.T) {
	w := NewWSClient("ws://unreachable.invalid", time.Second)
	connDone := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		w.pingLoop(nil, connDone)
		close(exited)
	}()

	close(connDone)
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("ping loop still running after its connection was torn down")
	}
}

func TestReconnectRetiresPreviousConnection(t *testing.T) {
	url := newWSTestServer(t)

	w := NewWSClient(url, 10*time.Millisecond)
	if err := w.Connect(context.Background()); err != nil {
		t.Fatalf("Connect = %v", err)
	}
	defer w.Close()

	w.mu.RLock()
	first := w.connDone
	w.mu.RUnlock()
	if first == nil {
		t.Fatal("Connect left no connection marker")
	}

	// The server drops the first connection; the read loop must tear it
	// down, ending its ping loop, before dialing again.
	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("dropped connection was never torn down")
	}

	deadline := time.After(2 * time.Second)
	for {
		w.mu.RLock()
		current := w.connDone
		w.mu.RUnlock()
		if current != nil && current != first {
			return
		}
		select {
		case <-deadline:
			t.Fatal("client never re-established the connection")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
