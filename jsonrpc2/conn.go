package jsonrpc2

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

// Conn reads and writes typed JSON-RPC messages over a Stream. Reads are
// single-consumer; writes are serialised by a mutex so handlers and
// server-initiated notifications can interleave safely.
type Conn struct {
	stream *Stream
	mu     sync.Mutex // guards writes and the closed flag
	closed bool
}

// NewConn wraps a Stream.
func NewConn(stream *Stream) *Conn {
	return &Conn{stream: stream}
}

// Read blocks for the next message and decodes it into a *RequestMessage,
// *NotificationMessage or *ResponseMessage, sniffing the method/id fields
// to tell them apart. ctx is only consulted before the blocking read
// starts; the read itself is not cancellable mid-frame.
func (c *Conn) Read(ctx context.Context) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	raw, err := c.stream.ReadMessage()
	if err != nil {
		// Framing errors and EOF both mean the byte stream can no longer
		// be trusted; mark the connection dead.
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		return nil, err
	}

	var probe struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, Errorf(ParseError, "failed to parse message: %v", err)
	}
	hasID := len(probe.ID) > 0 && string(probe.ID) != "null"

	switch {
	case probe.Method != "" && hasID:
		var req RequestMessage
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, Errorf(ParseError, "failed to parse request: %v", err)
		}
		return &req, nil
	case probe.Method != "":
		var ntf NotificationMessage
		if err := json.Unmarshal(raw, &ntf); err != nil {
			return nil, Errorf(ParseError, "failed to parse notification: %v", err)
		}
		return &ntf, nil
	case hasID:
		// A client reply to a server-initiated request.
		var resp ResponseMessage
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, Errorf(ParseError, "failed to parse response: %v", err)
		}
		return &resp, nil
	default:
		return nil, NewError(InvalidRequest, "message is not a request, notification, or response")
	}
}

// Write marshals and sends one message. Safe for concurrent use.
func (c *Conn) Write(ctx context.Context, msg interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return io.ErrClosedPipe
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return c.stream.WriteMessage(msg)
}

// Close marks the connection closed and closes the underlying stream.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.stream.Close()
}
