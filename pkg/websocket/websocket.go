package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ErrNoDeviceConnected 没有设备在线时的请求错误
var ErrNoDeviceConnected = errors.New(ErrNoDevice)

// Message 设备帧。请求/响应通过 ID 关联
type Message struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Device    string          `json:"device,omitempty"`
}

// NewMessage data 为 nil 时不带 data 字段
func NewMessage(msgType string, data interface{}) (*Message, error) {
	m := &Message{Type: msgType, Timestamp: time.Now().UnixMilli()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		m.Data = raw
	}
	return m, nil
}

// Decode 解析 data
func (m *Message) Decode(out interface{}) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s: %s", ErrInvalidMessageData, m.Type)
	}
	return json.Unmarshal(m.Data, out)
}

// Connection 一个设备连接
type Connection struct {
	ID       string
	DeviceID string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub
	LastPing time.Time
	IsAlive  bool
	mu       sync.RWMutex
	Metadata map[string]interface{}
}

// HandlerFunc 设备帧处理函数，在连接的读协程中调用
type HandlerFunc func(conn *Connection, msg *Message)

// Hub 管理设备连接、帧路由与待回复的请求
type Hub struct {
	connections       map[string]*Connection
	deviceConnections map[string]map[string]bool
	register          chan *Connection
	unregister        chan *Connection
	connectionCount   int64
	config            *Config
	mu                sync.RWMutex
	ctx               context.Context
	cancel            context.CancelFunc

	handlersMu sync.RWMutex
	handlers   map[string][]HandlerFunc

	pendingMu sync.Mutex
	pending   map[string]chan *Message

	// 连接数变化回调，用于指标
	onCount func(delta int)
}

// Config 设备通道配置
type Config struct {
	MaxConnections    int64
	HeartbeatInterval time.Duration
	ConnectionTimeout time.Duration
	MessageBufferSize int
	ReadBufferSize    int
	WriteBufferSize   int
	MaxMessageSize    int
	EnableCompression bool
	// 发送缓冲区满时是否丢弃
	DropOnFull bool
	// 非 DropOnFull 模式下的发送等待时长
	SendTimeout time.Duration
	// 服务端请求（定位、意图）等待设备回复的时长
	RequestTimeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		MaxConnections:    DefaultMaxConnections,
		HeartbeatInterval: DefaultHeartbeatInterval * time.Second,
		ConnectionTimeout: DefaultConnectionTimeout * time.Second,
		MessageBufferSize: DefaultMessageBufferSize,
		ReadBufferSize:    DefaultReadBufferSize,
		WriteBufferSize:   DefaultWriteBufferSize,
		MaxMessageSize:    DefaultMaxMessageSize,
		EnableCompression: false,
		DropOnFull:        false,
		SendTimeout:       200 * time.Millisecond,
		RequestTimeout:    DefaultRequestTimeoutMs * time.Millisecond,
	}
}

func NewHub(config *Config) *Hub {
	if config == nil {
		config = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	hub := &Hub{
		connections:       make(map[string]*Connection),
		deviceConnections: make(map[string]map[string]bool),
		register:          make(chan *Connection, 16),
		unregister:        make(chan *Connection, 16),
		config:            config,
		ctx:               ctx,
		cancel:            cancel,
		handlers:          make(map[string][]HandlerFunc),
		pending:           make(map[string]chan *Message),
	}
	go hub.run()
	return hub
}

// Register 注册一个已建立的连接（HandleWebSocket 内部使用，也可用于进程内设备）
func (h *Hub) Register(conn *Connection) { h.register <- conn }

func (h *Hub) Unregister(conn *Connection) { h.unregister <- conn }

// OnCountChange 连接数变化时回调
func (h *Hub) OnCountChange(fn func(delta int)) {
	h.mu.Lock()
	h.onCount = fn
	h.mu.Unlock()
}

// On 注册某类设备帧的处理函数
func (h *Hub) On(msgType string, fn HandlerFunc) {
	h.handlersMu.Lock()
	h.handlers[msgType] = append(h.handlers[msgType], fn)
	h.handlersMu.Unlock()
}

func (h *Hub) dispatch(conn *Connection, msg *Message) {
	h.handlersMu.RLock()
	fns := append([]HandlerFunc(nil), h.handlers[msg.Type]...)
	h.handlersMu.RUnlock()
	if len(fns) == 0 {
		logrus.Warnf("未知的设备帧类型: %s", msg.Type)
		return
	}
	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logrus.Errorf("设备帧处理异常 type=%s: %v", msg.Type, r)
				}
			}()
			fn(conn, msg)
		}()
	}
}

func (h *Hub) run() {
	ticker := time.NewTicker(h.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case conn := <-h.register:
			h.registerConnection(conn)
		case conn := <-h.unregister:
			h.unregisterConnection(conn)
		case <-ticker.C:
			h.checkHeartbeats()
		}
	}
}

func (h *Hub) registerConnection(conn *Connection) {
	h.mu.Lock()
	if atomic.LoadInt64(&h.connectionCount) >= h.config.MaxConnections {
		h.mu.Unlock()
		if conn.Conn != nil {
			conn.Conn.Close()
		}
		logrus.Warnf("达到最大连接数限制: %d", h.config.MaxConnections)
		return
	}

	h.connections[conn.ID] = conn
	atomic.AddInt64(&h.connectionCount, 1)
	if conn.DeviceID != "" {
		if h.deviceConnections[conn.DeviceID] == nil {
			h.deviceConnections[conn.DeviceID] = make(map[string]bool)
		}
		h.deviceConnections[conn.DeviceID][conn.ID] = true
	}
	onCount := h.onCount
	h.mu.Unlock()

	if onCount != nil {
		onCount(1)
	}
	logrus.Infof("设备连接已注册: %s, 设备: %s, 当前连接数: %d",
		conn.ID, conn.DeviceID, atomic.LoadInt64(&h.connectionCount))
}

func (h *Hub) unregisterConnection(conn *Connection) {
	h.mu.Lock()
	if _, exists := h.connections[conn.ID]; !exists {
		h.mu.Unlock()
		return
	}
	delete(h.connections, conn.ID)
	atomic.AddInt64(&h.connectionCount, -1)
	if conn.DeviceID != "" && h.deviceConnections[conn.DeviceID] != nil {
		delete(h.deviceConnections[conn.DeviceID], conn.ID)
		if len(h.deviceConnections[conn.DeviceID]) == 0 {
			delete(h.deviceConnections, conn.DeviceID)
		}
	}
	conn.mu.Lock()
	conn.IsAlive = false
	conn.mu.Unlock()
	close(conn.Send)
	onCount := h.onCount
	h.mu.Unlock()

	if onCount != nil {
		onCount(-1)
	}
	logrus.Infof("设备连接已注销: %s, 当前连接数: %d", conn.ID, atomic.LoadInt64(&h.connectionCount))
}

func (h *Hub) checkHeartbeats() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := time.Now()
	for _, conn := range h.connections {
		conn.mu.Lock()
		stale := now.Sub(conn.LastPing) > h.config.ConnectionTimeout
		if stale {
			conn.IsAlive = false
		}
		conn.mu.Unlock()
		if stale && conn.Conn != nil {
			logrus.Warnf("连接 %s 心跳超时，准备关闭", conn.ID)
			conn.Conn.Close()
		}
	}
}

// Devices 在线设备 ID，按字典序
func (h *Hub) Devices() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.deviceConnections))
	for id := range h.deviceConnections {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Capabilities 返回设备 hello 上报的能力副本；deviceID 为空时取任意一个在线设备
func (h *Hub) Capabilities(deviceID string) (map[string]interface{}, bool) {
	conn := h.pickConnection(deviceID)
	if conn == nil {
		return nil, false
	}
	conn.mu.RLock()
	defer conn.mu.RUnlock()
	out := make(map[string]interface{}, len(conn.Metadata))
	for k, v := range conn.Metadata {
		out[k] = v
	}
	return out, true
}

// pickConnection deviceID 为空时取任意一个在线连接
func (h *Hub) pickConnection(deviceID string) *Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if deviceID != "" {
		for id := range h.deviceConnections[deviceID] {
			if c := h.connections[id]; c != nil && c.alive() {
				return c
			}
		}
		return nil
	}
	ids := make([]string, 0, len(h.connections))
	for id := range h.connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if c := h.connections[id]; c.alive() {
			return c
		}
	}
	return nil
}

// SendTo 发给指定设备；deviceID 为空时发给任意一个在线设备
func (h *Hub) SendTo(deviceID string, msg *Message) error {
	conn := h.pickConnection(deviceID)
	if conn == nil {
		return ErrNoDeviceConnected
	}
	return h.send(conn, msg)
}

// Broadcast 发给所有在线设备，返回成功入队的数量
func (h *Hub) Broadcast(msg *Message) int {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logrus.Errorf("消息序列化失败: %v", err)
		return 0
	}
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.connections))
	for _, c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	n := 0
	for _, c := range conns {
		if c.alive() && h.trySend(c, data) {
			n++
		}
	}
	return n
}

func (h *Hub) send(conn *Connection, msg *Message) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if !h.trySend(conn, data) {
		return errors.New(ErrSendBufferFull)
	}
	return nil
}

// Request 发送请求帧并等待设备以相同 ID 回复。设备回复的 error 字段转成错误返回
func (h *Hub) Request(ctx context.Context, deviceID, msgType string, data interface{}) (*Message, error) {
	conn := h.pickConnection(deviceID)
	if conn == nil {
		return nil, ErrNoDeviceConnected
	}
	msg, err := NewMessage(msgType, data)
	if err != nil {
		return nil, err
	}
	msg.ID = uuid.NewString()

	reply := make(chan *Message, 1)
	h.pendingMu.Lock()
	h.pending[msg.ID] = reply
	h.pendingMu.Unlock()
	defer func() {
		h.pendingMu.Lock()
		delete(h.pending, msg.ID)
		h.pendingMu.Unlock()
	}()

	if err := h.send(conn, msg); err != nil {
		return nil, err
	}

	timeout := h.config.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeoutMs * time.Millisecond
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, context.DeadlineExceeded
	case resp := <-reply:
		if resp.Error != "" {
			return resp, &RemoteError{Type: msgType, Message: resp.Error}
		}
		return resp, nil
	}
}

// RemoteError 设备回复的错误
type RemoteError struct {
	Type    string
	Message string
}

func (e *RemoteError) Error() string { return e.Type + ": " + e.Message }

// resolve 把响应帧交给等待中的请求，返回是否有人在等
func (h *Hub) resolve(msg *Message) bool {
	h.pendingMu.Lock()
	ch, ok := h.pending[msg.ID]
	h.pendingMu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- msg:
	default:
	}
	return true
}

func (h *Hub) GetConnectionCount() int64 {
	return atomic.LoadInt64(&h.connectionCount)
}

// GetDeviceConnections 某个设备的连接数
func (h *Hub) GetDeviceConnections(deviceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.deviceConnections[deviceID])
}

func (h *Hub) Close() {
	h.cancel()
	h.mu.Lock()
	for _, conn := range h.connections {
		if conn.Conn != nil {
			conn.Conn.Close()
		}
	}
	h.mu.Unlock()
	logrus.Info("设备通道 Hub 已关闭")
}

// trySend 背压策略：DropOnFull 时立即丢弃，否则最多等待 SendTimeout
func (h *Hub) trySend(conn *Connection, data []byte) (ok bool) {
	defer func() {
		// 连接注销后 Send 已关闭
		if r := recover(); r != nil {
			ok = false
		}
	}()
	if h.config.DropOnFull {
		select {
		case conn.Send <- data:
			return true
		default:
			logrus.Warnf("连接 %s 发送缓冲区已满", conn.ID)
			return false
		}
	}
	timeout := h.config.SendTimeout
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	select {
	case conn.Send <- data:
		return true
	case <-time.After(timeout):
		logrus.Warnf("连接 %s 发送超时", conn.ID)
		return false
	}
}

func (c *Connection) alive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.IsAlive
}
