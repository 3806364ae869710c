package realtime

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialDevice(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestHandler_AuthenticateAndReceiveEvents(t *testing.T) {
	registry := newTestRegistry()
	srv := httptest.NewServer(NewHandler(registry, nil, zerolog.Nop()))
	defer srv.Close()

	conn := dialDevice(t, srv)
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": EventAuthenticate,
		"data":  map[string]string{"token": "t1"},
	}))

	frame := readFrame(t, conn)
	assert.Equal(t, EventAuthSuccess, frame.Event)

	var endpoint interface {
		Emit(string, interface{}) bool
	}
	require.Eventually(t, func() bool {
		ep, ok := registry.Lookup("U1")
		endpoint = ep
		return ok
	}, time.Second, 10*time.Millisecond)

	assert.True(t, endpoint.Emit("call:request", map[string]string{"phone": "98765"}))
	frame = readFrame(t, conn)
	assert.Equal(t, "call:request", frame.Event)

	var data map[string]string
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	assert.Equal(t, "98765", data["phone"])
}

func TestHandler_BadTokenGetsAuthError(t *testing.T) {
	registry := newTestRegistry()
	srv := httptest.NewServer(NewHandler(registry, nil, zerolog.Nop()))
	defer srv.Close()

	conn := dialDevice(t, srv)
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"event": EventAuthenticate, "data": "nope"}))

	frame := readFrame(t, conn)
	assert.Equal(t, EventAuthError, frame.Event)
	assert.Equal(t, 0, registry.GetStats()["bound_devices"])
}

func TestHandler_DisconnectUnbinds(t *testing.T) {
	registry := newTestRegistry()
	srv := httptest.NewServer(NewHandler(registry, nil, zerolog.Nop()))
	defer srv.Close()

	conn := dialDevice(t, srv)
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"event": EventAuthenticate, "data": map[string]string{"token": "t2"}}))
	assert.Equal(t, EventAuthSuccess, readFrame(t, conn).Event)

	conn.Close()
	require.Eventually(t, func() bool {
		_, ok := registry.Lookup("U2")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}
