package jsonrpc2

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewNotificationMarshalsParams(t *testing.T) {
	n, err := NewNotification("textDocument/didSave", map[string]string{"uri": "file:///a.sail"})
	require.NoError(t, err)
	require.Equal(t, Version, n.JSONRPC)
	require.Equal(t, "textDocument/didSave", n.Method)
	require.JSONEq(t, `{"uri":"file:///a.sail"}`, string(n.Params))
}

func TestNewNotificationNilParamsOmitsField(t *testing.T) {
	n, err := NewNotification("initialized", nil)
	require.NoError(t, err)
	require.Nil(t, n.Params)

	raw, err := json.Marshal(n)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "params")
}

func TestNewRequestStampsVersionAndID(t *testing.T) {
	r, err := NewRequest(json.RawMessage("7"), "client/registerCapability", struct{}{})
	require.NoError(t, err)
	require.Equal(t, Version, r.JSONRPC)
	require.Equal(t, "7", string(r.ID))
}

func TestNewResponseErrorWinsOverResult(t *testing.T) {
	resp := NewResponse(json.RawMessage("1"), json.RawMessage(`"ignored"`), NewError(InvalidRequest, "bad"))
	require.Nil(t, resp.Result)
	require.Equal(t, InvalidRequest, resp.Error.Code)

	ok := NewResponse(json.RawMessage("2"), json.RawMessage("null"), nil)
	require.Nil(t, ok.Error)
	require.Equal(t, "null", string(ok.Result))
}

func TestErrorObjectMessageNamesCode(t *testing.T) {
	err := Errorf(MethodNotFound, "method not found: %s", "textDocument/rename")
	require.EqualError(t, err, "jsonrpc2 method not found (-32601): method not found: textDocument/rename")
}
