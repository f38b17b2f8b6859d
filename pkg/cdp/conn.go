package cdp

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the socket a Multiplexer drives. *websocket.Conn satisfies it;
// tests substitute their own.
type Conn interface {
	// ReadMessage blocks for the next message. Only the reader goroutine
	// calls it.
	ReadMessage() (messageType int, p []byte, err error)

	// WriteMessage writes one message. Only the dispatch loop calls it.
	WriteMessage(messageType int, data []byte) error

	// Close closes the underlying connection, unblocking ReadMessage.
	Close() error
}

// handshakeTimeout bounds the WebSocket upgrade against the browser.
const handshakeTimeout = 10 * time.Second

// Dial connects to a browser's debugger URL
// (ws://host:port/devtools/browser/<id>) and starts a Multiplexer on it.
func Dial(ctx context.Context, url string, opts Options) (*Multiplexer, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		ReadBufferSize:   64 * 1024,
		WriteBufferSize:  64 * 1024,
	}

	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, &ConnectionError{Op: "dial", Err: err}
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	return New(conn, opts), nil
}
