package jsonrpc2

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type rwBuffer struct {
	in  *bytes.Buffer
	out *bytes.Buffer
}

func (b *rwBuffer) Read(p []byte) (int, error)  { return b.in.Read(p) }
func (b *rwBuffer) Write(p []byte) (int, error) { return b.out.Write(p) }

func newTestStream(input string) (*Stream, *rwBuffer) {
	rw := &rwBuffer{in: bytes.NewBufferString(input), out: &bytes.Buffer{}}
	return NewStream(rw), rw
}

func frame(body string) string {
	return fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
}

func TestReadMessageValidFrame(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`
	s, _ := newTestStream(frame(body))
	got, err := s.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, body, string(got))
}

func TestReadMessageAcceptsContentType(t *testing.T) {
	body := `{}`
	input := fmt.Sprintf("Content-Length: %d\r\nContent-Type: %s\r\n\r\n%s",
		len(body), expectedContentType, body)
	s, _ := newTestStream(input)
	_, err := s.ReadMessage()
	require.NoError(t, err)
}

func TestReadMessageRejectsDuplicateContentLength(t *testing.T) {
	s, _ := newTestStream("Content-Length: 2\r\nContent-Length: 2\r\n\r\n{}")
	_, err := s.ReadMessage()
	require.ErrorContains(t, err, "duplicate Content-Length")
}

func TestReadMessageRejectsUnknownHeader(t *testing.T) {
	s, _ := newTestStream("Content-Length: 2\r\nX-Custom: yes\r\n\r\n{}")
	_, err := s.ReadMessage()
	require.ErrorContains(t, err, "unrecognised header")
}

func TestReadMessageRejectsWrongContentType(t *testing.T) {
	s, _ := newTestStream("Content-Length: 2\r\nContent-Type: text/plain\r\n\r\n{}")
	_, err := s.ReadMessage()
	require.ErrorContains(t, err, "unexpected Content-Type")
}

func TestReadMessageRejectsMissingContentLength(t *testing.T) {
	s, _ := newTestStream("\r\n{}")
	_, err := s.ReadMessage()
	require.ErrorContains(t, err, "missing Content-Length")
}

func TestReadMessageRejectsMalformedHeaderLine(t *testing.T) {
	s, _ := newTestStream("NotAHeader\r\n\r\n{}")
	_, err := s.ReadMessage()
	require.ErrorContains(t, err, "malformed header")
}

func TestReadMessageTruncatedBody(t *testing.T) {
	s, _ := newTestStream("Content-Length: 100\r\n\r\n{}")
	_, err := s.ReadMessage()
	require.Error(t, err)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWriteMessageFraming(t *testing.T) {
	s, rw := newTestStream("")
	err := s.WriteMessage(&NotificationMessage{JSONRPC: Version, Method: "initialized"})
	require.NoError(t, err)

	out := rw.out.String()
	require.Regexp(t, `^Content-Length: \d+\r\n\r\n`, out)

	// The written frame must read back as the same body.
	echo, _ := newTestStream(out)
	body, err := echo.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(body), `"method":"initialized"`)
}

func TestWriteThenReadRoundTripTwoMessages(t *testing.T) {
	body1 := `{"jsonrpc":"2.0","method":"one"}`
	body2 := `{"jsonrpc":"2.0","method":"two"}`
	s, _ := newTestStream(frame(body1) + frame(body2))

	got1, err := s.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, body1, string(got1))

	got2, err := s.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, body2, string(got2))
}
