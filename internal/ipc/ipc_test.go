package ipc

import (
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telesto-labs/chime/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, "ipc", logging.LevelError)
}

func startServer(t *testing.T) (*Server, *Client) {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "chimed.sock")
	s := NewServer(socket, testLogger())
	t.Cleanup(func() { _ = s.Stop() })
	require.NoError(t, s.Start())
	return s, NewClient(socket)
}

func TestRoundTrip(t *testing.T) {
	s, c := startServer(t)

	type pingParams struct {
		Echo string `json:"echo"`
	}
	s.Handle("ping", func(req *Request) *Response {
		var p pingParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return ErrorResponse(ErrCodeValidation, err.Error())
		}
		return SuccessResponse(map[string]string{"echo": p.Echo})
	})

	resp, err := c.SendOp("ping", pingParams{Echo: "hello"})
	require.NoError(t, err)
	require.True(t, resp.Success)

	var data map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "hello", data["echo"])
}

func TestUnknownOp(t *testing.T) {
	_, c := startServer(t)

	resp, err := c.SendOp("no-such-op", nil)
	require.NoError(t, err)
	require.False(t, resp.Success)
	assert.Equal(t, ErrCodeUnknownOp, resp.Error.Code)
}

func TestProtocolMismatch(t *testing.T) {
	_, c := startServer(t)

	resp, err := c.Send(&Request{ProtocolVersion: 99, Op: "ping"})
	require.NoError(t, err)
	require.False(t, resp.Success)
	assert.Equal(t, ErrCodeProtocolMismatch, resp.Error.Code)
}

func TestStop_RemovesSocket(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "chimed.sock")
	s := NewServer(socket, testLogger())
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())

	c := NewClient(socket)
	_, err := c.SendOp("ping", nil)
	assert.Error(t, err, "socket must be gone after Stop")
}
