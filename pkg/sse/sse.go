package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultReplaySize 断线重连时按 Last-Event-ID 重放的事件数
const DefaultReplaySize = 50

type Client struct {
	id     string
	groups map[string]bool
	ch     chan string
	done   chan struct{}
}

// Event 已编号的事件，ID 单调递增
type Event struct {
	ID    uint64 `json:"id"`
	Name  string `json:"event,omitempty"`
	Data  string `json:"data"`
	Group string `json:"-"`
}

func (e Event) frame() string {
	var b strings.Builder
	fmt.Fprintf(&b, "id: %d\n", e.ID)
	if e.Name != "" {
		fmt.Fprintf(&b, "event: %s\n", e.Name)
	}
	for _, line := range strings.Split(e.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	return b.String()
}

type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	groups   map[string]map[string]bool // group -> clientID set
	interval time.Duration
	retryMs  int

	nextID  uint64
	replay  []Event // 环形缓冲，按 ID 递增
	size    int
	onCount func(delta int)
}

func NewHub(interval time.Duration) *Hub {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Hub{
		clients:  make(map[string]*Client),
		groups:   make(map[string]map[string]bool),
		interval: interval,
		retryMs:  5000,
		size:     DefaultReplaySize,
	}
}

// SetReplaySize n<=0 关闭重放
func (h *Hub) SetReplaySize(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.size = n
	h.trim()
}

// OnCountChange 客户端连接/断开时回调，用于指标
func (h *Hub) OnCountChange(fn func(delta int)) {
	h.mu.Lock()
	h.onCount = fn
	h.mu.Unlock()
}

func (h *Hub) AddClient(id string) *Client {
	h.mu.Lock()
	if old, ok := h.clients[id]; ok {
		// 同一 ID 重连，旧连接让位
		close(old.done)
		h.dropGroups(old)
	} else if h.onCount != nil {
		defer h.onCount(1)
	}
	c := &Client{id: id, groups: make(map[string]bool), ch: make(chan string, 64), done: make(chan struct{})}
	h.clients[id] = c
	h.mu.Unlock()
	return c
}

// removeClient 只移除同一个 Client 实例，重连后的新连接不受影响
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	cur, ok := h.clients[c.id]
	if !ok || cur != c {
		h.mu.Unlock()
		return
	}
	close(c.done)
	h.dropGroups(c)
	delete(h.clients, c.id)
	fn := h.onCount
	h.mu.Unlock()
	if fn != nil {
		fn(-1)
	}
}

func (h *Hub) RemoveClient(id string) {
	h.mu.RLock()
	c := h.clients[id]
	h.mu.RUnlock()
	if c != nil {
		h.removeClient(c)
	}
}

func (h *Hub) dropGroups(c *Client) {
	for g := range c.groups {
		delete(h.groups[g], c.id)
	}
}

func (h *Hub) Join(id, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return
	}
	c.groups[group] = true
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]bool)
	}
	h.groups[group][id] = true
}

func (h *Hub) Leave(id, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return
	}
	delete(c.groups, group)
	if h.groups[group] != nil {
		delete(h.groups[group], id)
	}
}

// Publish 编号、入重放缓冲并广播，返回事件 ID
func (h *Hub) Publish(name, data string) uint64 {
	return h.publish(name, data, "")
}

func (h *Hub) PublishJSON(name string, v interface{}) (uint64, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return h.publish(name, string(b), ""), nil
}

// PublishToGroup 只发给组内客户端，重放时也只重放给同组
func (h *Hub) PublishToGroup(group, name, data string) uint64 {
	return h.publish(name, data, group)
}

func (h *Hub) publish(name, data, group string) uint64 {
	h.mu.Lock()
	h.nextID++
	ev := Event{ID: h.nextID, Name: name, Data: data, Group: group}
	if h.size > 0 {
		h.replay = append(h.replay, ev)
		h.trim()
	}
	msg := ev.frame()
	for _, c := range h.clients {
		if group != "" && !c.groups[group] {
			continue
		}
		select {
		case c.ch <- msg:
		default:
		}
	}
	h.mu.Unlock()
	return ev.ID
}

func (h *Hub) trim() {
	if h.size <= 0 {
		h.replay = nil
		return
	}
	if over := len(h.replay) - h.size; over > 0 {
		h.replay = append([]Event(nil), h.replay[over:]...)
	}
}

// Since 重放缓冲中 ID 大于 last 的事件
func (h *Hub) Since(last uint64, groups map[string]bool) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []Event
	for _, ev := range h.replay {
		if ev.ID <= last {
			continue
		}
		if ev.Group != "" && !groups[ev.Group] {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (h *Hub) Broadcast(data string)       { h.Publish("", data) }
func (h *Hub) BroadcastJSON(v interface{}) { _, _ = h.PublishJSON("", v) }

// SendTo 点对点消息不编号也不重放
func (h *Hub) SendTo(id, data string) {
	h.mu.RLock()
	if c := h.clients[id]; c != nil {
		select {
		case c.ch <- formatData(data):
		default:
		}
	}
	h.mu.RUnlock()
}
func (h *Hub) SendToJSON(id string, v interface{}) { b, _ := json.Marshal(v); h.SendTo(id, string(b)) }
func (h *Hub) SendToGroup(group, data string)      { h.PublishToGroup(group, "", data) }

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func formatData(s string) string { return fmt.Sprintf("data: %s\n\n", s) }

func (h *Hub) Serve(c *gin.Context, clientID string) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	fmt.Fprintf(c.Writer, "retry: %d\n\n", h.retryMs)

	client := h.AddClient(clientID)
	defer h.removeClient(client)
	groups := map[string]bool{}
	if gid := c.Query("group"); gid != "" {
		h.Join(clientID, gid)
		groups[gid] = true
	}

	lastEventID := c.GetHeader("Last-Event-ID")
	if lastEventID == "" {
		lastEventID = c.Query("lastEventId")
	}
	if lastEventID != "" {
		if last, err := strconv.ParseUint(lastEventID, 10, 64); err == nil {
			for _, ev := range h.Since(last, groups) {
				io.WriteString(c.Writer, ev.frame())
			}
		}
	}
	flusher.Flush()

	ping := time.NewTicker(h.interval)
	defer ping.Stop()

	for {
		select {
		case <-client.done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			fmt.Fprintf(c.Writer, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		case msg := <-client.ch:
			io.WriteString(c.Writer, msg)
			flusher.Flush()
		}
	}
}
