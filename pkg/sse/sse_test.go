package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayBuffer(t *testing.T) {
	h := NewHub(time.Minute)
	h.SetReplaySize(3)
	for i := 0; i < 5; i++ {
		h.Publish("notification", "n")
	}
	evs := h.Since(0, nil)
	require.Len(t, evs, 3)
	assert.Equal(t, uint64(3), evs[0].ID)
	assert.Equal(t, uint64(5), evs[2].ID)
	assert.Len(t, h.Since(4, nil), 1)

	h.PublishToGroup("g1", "x", "only g1")
	assert.Len(t, h.Since(5, nil), 0)
	assert.Len(t, h.Since(5, map[string]bool{"g1": true}), 1)
}

func TestEventFrame(t *testing.T) {
	ev := Event{ID: 7, Name: "alert", Data: "a\nb"}
	assert.Equal(t, "id: 7\nevent: alert\ndata: a\ndata: b\n\n", ev.frame())
}

func TestClientCountAndReconnect(t *testing.T) {
	h := NewHub(time.Minute)
	deltas := 0
	h.OnCountChange(func(d int) { deltas += d })

	first := h.AddClient("ui")
	second := h.AddClient("ui")
	assert.Equal(t, 1, h.ClientCount())
	select {
	case <-first.done:
	default:
		t.Fatal("replaced client should be closed")
	}
	h.removeClient(first)
	assert.Equal(t, 1, h.ClientCount())
	h.removeClient(second)
	assert.Equal(t, 0, h.ClientCount())
	assert.Equal(t, 0, deltas)
}

func TestServeReplaysAndStreams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHub(time.Minute)
	h.Publish("notification", `{"message":"one"}`)
	h.Publish("notification", `{"message":"two"}`)

	r := gin.New()
	r.GET("/events", func(c *gin.Context) { h.Serve(c, "ui") })
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	req.Header.Set("Last-Event-ID", "1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 32)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()
	waitFor := func(want string) {
		t.Helper()
		for {
			select {
			case l, ok := <-lines:
				require.True(t, ok, "stream closed before %q", want)
				if strings.Contains(l, want) {
					return
				}
			case <-ctx.Done():
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	waitFor(`data: {"message":"two"}`)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	h.Publish("notification", `{"message":"three"}`)
	waitFor("id: 3")
	waitFor(`data: {"message":"three"}`)
}
