package jsonrpc2

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	headerContentLength = "Content-Length"
	headerContentType   = "Content-Type"
	headerSeparator     = "\r\n"

	// expectedContentType is the only Content-Type value this stream accepts.
	expectedContentType = "application/vscode-jsonrpc; charset=utf-8"
)

// Stream frames JSON-RPC message bodies over an io.ReadWriter using
// CRLF-terminated headers and Content-Length-bounded bodies.
type Stream struct {
	reader *bufio.Reader
	writer io.Writer
	source io.ReadWriter // retained so Close can reach the underlying stream
}

// NewStream wraps rw in a buffered framing layer.
func NewStream(rw io.ReadWriter) *Stream {
	return &Stream{
		reader: bufio.NewReader(rw),
		writer: rw,
		source: rw,
	}
}

// Close closes the underlying source if it implements io.Closer.
func (s *Stream) Close() error {
	if closer, ok := s.source.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// ReadMessage reads a single JSON-RPC message from the stream, enforcing
// strict header framing: a duplicate Content-Length or Content-Type header,
// any header name other than those two, or a Content-Type value other than
// expectedContentType, is a framing error. The connection cannot be trusted
// to resynchronise after one, so the error is returned rather than
// recovered from.
func (s *Stream) ReadMessage() ([]byte, error) {
	contentLength := -1
	haveContentLength := false
	haveContentType := false

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read header line: %w", err)
		}

		line = strings.TrimSuffix(line, "\r\n")
		line = strings.TrimSuffix(line, "\n")

		if line == "" {
			break
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed header line: %q", line)
		}

		headerName := strings.TrimSpace(parts[0])
		headerValue := strings.TrimSpace(parts[1])

		switch {
		case strings.EqualFold(headerName, headerContentLength):
			if haveContentLength {
				return nil, fmt.Errorf("duplicate %s header", headerContentLength)
			}
			length, err := strconv.Atoi(headerValue)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %q: %w", headerValue, err)
			}
			if length <= 0 {
				return nil, fmt.Errorf("invalid Content-Length: %d", length)
			}
			contentLength = length
			haveContentLength = true

		case strings.EqualFold(headerName, headerContentType):
			if haveContentType {
				return nil, fmt.Errorf("duplicate %s header", headerContentType)
			}
			if headerValue != expectedContentType {
				return nil, fmt.Errorf("unexpected Content-Type: %q", headerValue)
			}
			haveContentType = true

		default:
			return nil, fmt.Errorf("unrecognised header: %q", headerName)
		}
	}

	if !haveContentLength {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	jsonData := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, jsonData); err != nil {
		return nil, fmt.Errorf("failed to read message content (expected %d bytes): %w", contentLength, err)
	}
	return jsonData, nil
}

// WriteMessage marshals msg (a Request, Response or Notification) and
// writes it as one framed message. Header and body go out in a single
// Write call so a concurrent writer on the same fd cannot interleave
// between them.
func (s *Stream) WriteMessage(msg interface{}) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s: %d%s%s", headerContentLength, len(jsonData), headerSeparator, headerSeparator)
	buf.Write(jsonData)

	if _, err := s.writer.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}
