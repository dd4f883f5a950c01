// Package solvernet connects the engine to the solver network over two
// redundant transports: a persistent bidirectional WebSocket and a plain
// HTTP request/response call. Either transport may fail independently; an
// intent is considered published when at least one succeeds.
package solvernet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/solvernet/intentbot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// QuoteHandler is called for every quote message received on the channel.
type QuoteHandler func(domain.Quote)

// WSClient is the persistent WebSocket channel to the solver network. It
// manages the connection lifecycle, intent subscriptions, and dispatches
// inbound quotes to registered handlers. On drop it reconnects with a
// fixed backoff and restores subscriptions, so registered handlers and
// callers polling for quotes never notice the gap.
type WSClient struct {
	wsURL          string
	reconnectDelay time.Duration
	conn           *websocket.Conn

	// connDone is closed when the current connection is torn down, ending
	// the ping loop bound to it. Each Connect starts exactly one.
	connDone chan struct{}

	mu     sync.RWMutex
	closed bool

	// Intent subscriptions to restore on reconnect.
	subscriptions map[string]struct{}

	handlerMu sync.RWMutex
	handlers  []QuoteHandler

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewWSClient creates a client for the given solver-network WebSocket URL.
func NewWSClient(wsURL string, reconnectDelay time.Duration) *WSClient {
	if reconnectDelay <= 0 {
		reconnectDelay = 2 * time.Second
	}
	return &WSClient{
		wsURL:          wsURL,
		reconnectDelay: reconnectDelay,
		subscriptions:  make(map[string]struct{}),
		done:           make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read and
// ping loops.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("solvernet/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("solvernet/ws: connect: %w", err)
	}
	w.conn = conn
	w.connDone = make(chan struct{})

	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.readLoop()
	go w.pingLoop(conn, w.connDone)

	// Restore intent subscriptions after a reconnect.
	if len(w.subscriptions) > 0 {
		intents := make([]string, 0, len(w.subscriptions))
		for id := range w.subscriptions {
			intents = append(intents, id)
		}
		if err := w.sendCommand(WSCommand{Type: "subscribe", Intents: intents}); err != nil {
			return fmt.Errorf("solvernet/ws: restore subscriptions: %w", err)
		}
	}
	return nil
}

// PublishIntent announces an intent to the solver network and subscribes
// to its quote stream.
func (w *WSClient) PublishIntent(ctx context.Context, intent domain.Intent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("solvernet/ws: not connected: %w", domain.ErrWSDisconnect)
	}
	if err := w.sendCommand(WSCommand{Type: "publish_intent", Payload: EncodeIntent(intent)}); err != nil {
		return fmt.Errorf("solvernet/ws: publish intent %s: %w", intent.ID, err)
	}
	if err := w.sendCommand(WSCommand{Type: "subscribe", Intents: []string{intent.ID}}); err != nil {
		return fmt.Errorf("solvernet/ws: subscribe intent %s: %w", intent.ID, err)
	}
	w.subscriptions[intent.ID] = struct{}{}
	return nil
}

// Unsubscribe stops the quote stream for an intent (e.g. after selection
// or timeout).
func (w *WSClient) Unsubscribe(ctx context.Context, intentID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.subscriptions, intentID)
	if w.conn == nil {
		return nil
	}
	return w.sendCommand(WSCommand{Type: "unsubscribe", Intents: []string{intentID}})
}

// OnQuote registers a handler called for every inbound quote. Handlers
// survive reconnects.
func (w *WSClient) OnQuote(handler QuoteHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Close shuts down the connection and stops the loops.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}
	return nil
}

// sendCommand sends a JSON command. Caller must hold w.mu.
func (w *WSClient) sendCommand(cmd WSCommand) error {
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads messages and dispatches quotes to handlers. On a read
// error it triggers reconnection and exits; Connect starts a fresh loop.
func (w *WSClient) readLoop() {
	for {
		select {
		case <-w.done:
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}
			w.reconnect()
			return
		}
		w.handleMessage(message)
	}
}

// pingLoop keeps one connection alive. It exits when that connection is
// torn down, so reconnects never leave a stale loop pinging behind the
// fresh one.
func (w *WSClient) pingLoop(conn *websocket.Conn, connDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-connDone:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reconnect retries Connect with a fixed backoff until it succeeds or the
// client is closed. Subscribers registered before the drop are preserved.
func (w *WSClient) reconnect() {
	w.mu.Lock()
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
	if w.connDone != nil {
		close(w.connDone)
		w.connDone = nil
	}
	w.mu.Unlock()

	for {
		select {
		case <-w.done:
			return
		case <-time.After(w.reconnectDelay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()
		if err == nil {
			return
		}
	}
}

func (w *WSClient) handleMessage(message []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return
	}
	if env.Type != "quote" {
		return
	}
	quote, err := env.Quote.Decode()
	if err != nil {
		return
	}

	w.handlerMu.RLock()
	handlers := w.handlers
	w.handlerMu.RUnlock()
	for _, h := range handlers {
		h(quote)
	}
}
