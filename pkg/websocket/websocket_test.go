package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.RequestTimeout = 500 * time.Millisecond
	return cfg
}

func registerFake(t *testing.T, hub *Hub, device string) *Connection {
	t.Helper()
	conn := NewConnection(hub, nil, device)
	hub.register <- conn
	require.Eventually(t, func() bool { return hub.GetDeviceConnections(device) == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

// nextID 在辅助协程中读取请求帧的 ID
func nextID(conn *Connection) (string, string) {
	raw := <-conn.Send
	var m Message
	_ = json.Unmarshal(raw, &m)
	return m.Type, m.ID
}

func readFrame(t *testing.T, conn *Connection) Message {
	t.Helper()
	select {
	case raw := <-conn.Send:
		var m Message
		require.NoError(t, json.Unmarshal(raw, &m))
		return m
	case <-time.After(time.Second):
		t.Fatal("no frame sent")
	}
	return Message{}
}

func TestNewHubDefaults(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	assert.Equal(t, int64(DefaultMaxConnections), hub.config.MaxConnections)
	assert.Equal(t, 30*time.Second, hub.config.HeartbeatInterval)
	assert.NoError(t, ValidateConfig(hub.config))
}

func TestConnectionRegistration(t *testing.T) {
	hub := NewHub(testConfig())
	defer hub.Close()

	deltas := make(chan int, 4)
	hub.OnCountChange(func(d int) { deltas <- d })

	conn := registerFake(t, hub, "phone-1")
	assert.Equal(t, int64(1), hub.GetConnectionCount())
	assert.Equal(t, []string{"phone-1"}, hub.Devices())
	assert.Equal(t, 1, <-deltas)

	hub.unregister <- conn
	require.Eventually(t, func() bool { return hub.GetConnectionCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, -1, <-deltas)
	assert.Empty(t, hub.Devices())
}

func TestPingAndDispatch(t *testing.T) {
	hub := NewHub(testConfig())
	defer hub.Close()
	conn := registerFake(t, hub, "phone-1")

	conn.HandleMessage([]byte(`{"type":"ping","id":"p1"}`))
	pong := readFrame(t, conn)
	assert.Equal(t, MessageTypePong, pong.Type)
	assert.Equal(t, "p1", pong.ID)

	got := make(chan float64, 1)
	hub.On(MessageTypeMotion, func(c *Connection, msg *Message) {
		var sample struct{ X float64 }
		require.NoError(t, msg.Decode(&sample))
		assert.Equal(t, "phone-1", msg.Device)
		got <- sample.X
	})
	conn.HandleMessage([]byte(`{"type":"motion","data":{"x":19.5,"y":0,"z":0}}`))
	assert.Equal(t, 19.5, <-got)

	conn.HandleMessage([]byte(`not json`))
	assert.Equal(t, MessageTypeError, readFrame(t, conn).Type)
}

func TestHelloRecordsCapabilities(t *testing.T) {
	hub := NewHub(testConfig())
	defer hub.Close()
	conn := registerFake(t, hub, "phone-1")

	conn.HandleMessage([]byte(`{"type":"hello","id":"h","data":{"motion":true,"geolocation":false}}`))
	assert.Equal(t, MessageTypeHello, readFrame(t, conn).Type)
	v, ok := conn.Capability("motion")
	assert.True(t, ok)
	assert.Equal(t, true, v)
}

func TestRequestResponse(t *testing.T) {
	hub := NewHub(testConfig())
	defer hub.Close()
	conn := registerFake(t, hub, "phone-1")

	go func() {
		typ, id := nextID(conn)
		if typ != MessageTypeLocationRequest {
			return
		}
		conn.HandleMessage([]byte(`{"type":"response","id":"` + id + `","data":{"latitude":1.5,"longitude":2.5}}`))
	}()

	resp, err := hub.Request(context.Background(), "", MessageTypeLocationRequest, map[string]bool{"highAccuracy": true})
	require.NoError(t, err)
	var fix struct{ Latitude, Longitude float64 }
	require.NoError(t, resp.Decode(&fix))
	assert.Equal(t, 1.5, fix.Latitude)
}

func TestRequestRemoteErrorAndTimeout(t *testing.T) {
	hub := NewHub(testConfig())
	defer hub.Close()

	_, err := hub.Request(context.Background(), "", MessageTypeIntent, nil)
	assert.ErrorIs(t, err, ErrNoDeviceConnected)

	conn := registerFake(t, hub, "phone-1")
	go func() {
		_, id := nextID(conn)
		conn.HandleMessage([]byte(`{"type":"response","id":"` + id + `","error":"denied"}`))
	}()
	_, err = hub.Request(context.Background(), "phone-1", MessageTypeLocationRequest, nil)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "denied", remote.Message)

	_, err = hub.Request(context.Background(), "phone-1", MessageTypeLocationRequest, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(testConfig())
	defer hub.Close()
	a := registerFake(t, hub, "a")
	b := registerFake(t, hub, "b")

	msg, err := NewMessage(MessageTypeNotification, map[string]string{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Broadcast(msg))
	assert.Equal(t, MessageTypeNotification, readFrame(t, a).Type)
	assert.Equal(t, MessageTypeNotification, readFrame(t, b).Type)
}

func TestDeviceOverRealSocket(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(testConfig())
	defer hub.Close()

	r := gin.New()
	RegisterRoutes(r, NewHandler(hub))
	srv := httptest.NewServer(r)
	defer srv.Close()

	buttons := make(chan int, 1)
	hub.On(MessageTypeButton, func(_ *Connection, msg *Message) {
		var p struct {
			KeyCode int `json:"keyCode"`
		}
		_ = msg.Decode(&p)
		buttons <- p.KeyCode
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + RouteWebSocket + "?device=phone-9"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"button","data":{"keyCode":79}}`)))
	select {
	case code := <-buttons:
		assert.Equal(t, 79, code)
	case <-time.After(2 * time.Second):
		t.Fatal("button frame not dispatched")
	}
	assert.Equal(t, []string{"phone-9"}, hub.Devices())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, RouteWebSocketHealth, nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)
}
