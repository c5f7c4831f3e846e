package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

func newUpgrader(cfg *Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			// 设备是本机的伴生应用，不校验 Origin
			return true
		},
		EnableCompression: cfg.EnableCompression,
	}
}

// HandleWebSocket 升级连接并注册到 Hub
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request, deviceID string) {
	upgrader := newUpgrader(hub.config)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("WebSocket升级失败: %v", err)
		return
	}
	if hub.config.EnableCompression {
		conn.EnableWriteCompression(true)
	}

	connection := NewConnection(hub, conn, deviceID)
	hub.register <- connection

	go connection.writePump()
	go connection.readPump()
}

// NewConnection conn 可以为 nil（测试中直接读 Send）
func NewConnection(hub *Hub, conn *websocket.Conn, deviceID string) *Connection {
	return &Connection{
		ID:       "conn_" + uuid.NewString(),
		DeviceID: deviceID,
		Conn:     conn,
		Send:     make(chan []byte, hub.config.MessageBufferSize),
		Hub:      hub,
		LastPing: time.Now(),
		IsAlive:  true,
		Metadata: make(map[string]interface{}),
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(int64(c.Hub.config.MaxMessageSize))
	c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ConnectionTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.touch()
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ConnectionTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Errorf("WebSocket读取错误: %v", err)
			}
			break
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ConnectionTimeout))
		c.HandleMessage(message)
	}
}

func (c *Connection) writePump() {
	interval := c.Hub.config.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(time.Duration(float64(interval) * 0.9))
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// 每帧一条消息，设备端按帧解析 JSON
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HandleMessage 解析一帧：ping/hello/response 在此处理，其余交给 Hub 注册的处理函数
func (c *Connection) HandleMessage(raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		logrus.Errorf("消息解析失败: %v", err)
		c.reply(&Message{Type: MessageTypeError, Error: ErrInvalidMessageData})
		return
	}
	msg.Device = c.DeviceID
	c.touch()

	switch msg.Type {
	case MessageTypePing:
		c.reply(&Message{Type: MessageTypePong, ID: msg.ID})
	case MessageTypeHello:
		c.handleHello(&msg)
	case MessageTypeResponse:
		if !c.Hub.resolve(&msg) {
			logrus.Debugf("迟到的设备回复 id=%s", msg.ID)
		}
	default:
		c.Hub.dispatch(c, &msg)
	}
}

// handleHello 设备上报能力，写入 Metadata
func (c *Connection) handleHello(msg *Message) {
	var caps map[string]interface{}
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &caps); err != nil {
			logrus.Warnf("无效的 hello 数据: %v", err)
		}
	}
	c.mu.Lock()
	for k, v := range caps {
		c.Metadata[k] = v
	}
	c.mu.Unlock()
	c.reply(&Message{Type: MessageTypeHello, ID: msg.ID})
	c.Hub.dispatch(c, msg)
}

func (c *Connection) touch() {
	c.mu.Lock()
	c.LastPing = time.Now()
	c.IsAlive = true
	c.mu.Unlock()
}

func (c *Connection) reply(m *Message) {
	if err := c.Hub.send(c, m); err != nil {
		logrus.Warnf("连接 %s 回复失败: %v", c.ID, err)
	}
}

// Capability 读取 hello 上报的能力
func (c *Connection) Capability(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.Metadata[key]
	return v, ok
}
