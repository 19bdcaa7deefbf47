package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Registry, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := NewRegistry()
	h := NewHandler(registry, ClientOptions{}, NewLogger(zap.NewNop()))
	router := gin.New()
	router.GET("/ws", h.Connect)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		registry.CloseAll()
		srv.Close()
	})
	return registry, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

// waitForCount waits for the handler to register connections whose greeting
// has already been read.
func waitForCount(t *testing.T, registry *Registry, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return registry.Count() == n }, 5*time.Second, 5*time.Millisecond)
}

func TestConnectSendsGreeting(t *testing.T) {
	registry, url := newTestServer(t)
	conn := dial(t, url)

	msg := readJSON(t, conn)
	assert.Equal(t, TypeConnected, msg["type"])
	assert.Equal(t, connectedGreeting, msg["message"])
	assert.NotEmpty(t, msg["timestamp"])
	waitForCount(t, registry, 1)
}

func TestConnectReceivesBroadcast(t *testing.T) {
	registry, url := newTestServer(t)
	c1 := dial(t, url)
	c2 := dial(t, url)
	readJSON(t, c1)
	readJSON(t, c2)
	waitForCount(t, registry, 2)

	d := NewDispatcher(registry, time.Second, NewLogger(zap.NewNop()))
	report, err := d.BroadcastEvent(context.Background(), sampleEvent())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Delivered())

	for _, c := range []*websocket.Conn{c1, c2} {
		msg := readJSON(t, c)
		assert.Equal(t, TypeUpload, msg["type"])
		assert.Equal(t, "e1", msg["event_id"])
		assert.NotContains(t, msg, "secret_key")
	}
}

func TestConnectAnswersPing(t *testing.T) {
	_, url := newTestServer(t)
	conn := dial(t, url)
	readJSON(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	msg := readJSON(t, conn)
	assert.Equal(t, TypePong, msg["type"])
	assert.NotEmpty(t, msg["timestamp"])
}

func TestConnectUnregistersOnDisconnect(t *testing.T) {
	registry, url := newTestServer(t)
	conn := dial(t, url)
	readJSON(t, conn)
	waitForCount(t, registry, 1)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return registry.Count() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestGreetingPrecedesBroadcasts(t *testing.T) {
	registry, url := newTestServer(t)
	d := NewDispatcher(registry, time.Second, NewLogger(zap.NewNop()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for ctx.Err() == nil {
			_, _ = d.BroadcastEvent(ctx, sampleEvent())
		}
	}()

	for i := 0; i < 20; i++ {
		conn := dial(t, url)
		msg := readJSON(t, conn)
		require.Equal(t, TypeConnected, msg["type"], "dial %d", i)
		require.NoError(t, conn.Close())
	}
}

func TestEvictedClientEndsHandler(t *testing.T) {
	registry, url := newTestServer(t)
	conn := dial(t, url)
	readJSON(t, conn)
	waitForCount(t, registry, 1)

	members := registry.Snapshot()
	require.Len(t, members, 1)
	client, ok := members[0].Conn.(*Client)
	require.True(t, ok)
	require.NoError(t, client.Close())

	select {
	case <-client.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Close")
	}
	assert.Eventually(t, func() bool { return registry.Count() == 0 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
