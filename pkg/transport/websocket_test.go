package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmont/parcelscout/pkg/protocol"
)

// newWSServer stands up the transport's mux on an httptest server and dials
// one client connection.
func newWSServer(t *testing.T, handler Handler) (*websocket.Conn, func()) {
	t.Helper()
	transport := NewWebSocket(WebSocketOptions{Handler: handler})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		transport.serveConn(context.Background(), w, r)
	}))

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func readResponse(t *testing.T, conn *websocket.Conn) *protocol.Response {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var resp protocol.Response
	require.NoError(t, json.Unmarshal(payload, &resp))
	return &resp
}

func TestWebSocket_RequestResponse(t *testing.T) {
	conn, cleanup := newWSServer(t, echoHandler)
	defer cleanup()

	err := conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"id":"r1","tool":"list_sessions"}`))
	require.NoError(t, err)

	resp := readResponse(t, conn)
	assert.Equal(t, "r1", resp.ID)
	assert.Nil(t, resp.Error)
}

func TestWebSocket_MalformedFrameKeepsConnectionOpen(t *testing.T) {
	conn, cleanup := newWSServer(t, echoHandler)
	defer cleanup()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	resp := readResponse(t, conn)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.KindInvalidRequest, resp.Error.Kind)
	assert.Empty(t, resp.ID)

	// The connection still serves subsequent requests.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"id":"r2","tool":"click"}`)))
	resp = readResponse(t, conn)
	assert.Equal(t, "r2", resp.ID)
	assert.Nil(t, resp.Error)
}

func TestWebSocket_ConcurrentRequestsEachGetOneResponse(t *testing.T) {
	staggered := func(_ context.Context, req *protocol.Request) *protocol.Response {
		if req.ID == "slow" {
			time.Sleep(100 * time.Millisecond)
		}
		return protocol.NewResultResponse(req.ID, "done")
	}

	conn, cleanup := newWSServer(t, staggered)
	defer cleanup()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"slow","tool":"a"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"fast","tool":"b"}`)))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		resp := readResponse(t, conn)
		assert.False(t, seen[resp.ID], "duplicate response for %s", resp.ID)
		seen[resp.ID] = true
	}
	assert.True(t, seen["slow"])
	assert.True(t, seen["fast"])
}

func TestWebSocket_HealthAndMetricsEndpoints(t *testing.T) {
	registry := prometheus.NewRegistry()
	transport := NewWebSocket(WebSocketOptions{
		Handler:  echoHandler,
		Gatherer: registry,
	})

	server := httptest.NewServer(transport.routes(context.Background()))
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
