package websocket

// 设备帧类型
const (
	// 系统帧
	MessageTypePing  = "ping"
	MessageTypePong  = "pong"
	MessageTypeHello = "hello"
	MessageTypeError = "error"

	// 设备 -> 服务
	MessageTypeMotion   = "motion"
	MessageTypeButton   = "button"
	MessageTypeLocation = "location"

	// 服务 -> 设备，需要设备以相同 ID 回复 MessageTypeResponse
	MessageTypeLocationRequest = "location_request"
	MessageTypeIntent          = "intent"
	MessageTypeResponse        = "response"

	// 服务 -> 设备，不需要回复
	MessageTypeNotification = "notification"
	MessageTypeCountdown    = "countdown"

	// 默认配置值
	DefaultMaxConnections    = 64
	DefaultHeartbeatInterval = 30
	DefaultConnectionTimeout = 60
	DefaultMessageBufferSize = 64
	DefaultReadBufferSize    = 1024
	DefaultWriteBufferSize   = 1024
	DefaultMaxMessageSize    = 4096
	DefaultRequestTimeoutMs  = 15000

	// 环境变量配置键
	EnvWebSocketMaxConnections    = "WEBSOCKET_MAX_CONNECTIONS"
	EnvWebSocketHeartbeatInterval = "WEBSOCKET_HEARTBEAT_INTERVAL"
	EnvWebSocketConnectionTimeout = "WEBSOCKET_CONNECTION_TIMEOUT"
	EnvWebSocketMessageBufferSize = "WEBSOCKET_MESSAGE_BUFFER_SIZE"
	EnvWebSocketEnableCompression = "WEBSOCKET_ENABLE_COMPRESSION"
	EnvWebSocketReadBufferSize    = "WEBSOCKET_READ_BUFFER_SIZE"
	EnvWebSocketWriteBufferSize   = "WEBSOCKET_WRITE_BUFFER_SIZE"
	EnvWebSocketMaxMessageSize    = "WEBSOCKET_MAX_MESSAGE_SIZE"
	EnvWebSocketDropOnFull        = "WEBSOCKET_DROP_ON_FULL"
	EnvWebSocketSendTimeoutMs     = "WEBSOCKET_SEND_TIMEOUT_MS"
	EnvWebSocketRequestTimeoutMs  = "WEBSOCKET_REQUEST_TIMEOUT_MS"

	// 错误消息
	ErrConnectionLimitExceeded = "连接数已达到上限"
	ErrInvalidMessageData      = "无效的消息数据"
	ErrNoDevice                = "没有已连接的设备"
	ErrSendBufferFull          = "发送缓冲区已满"

	// 路由路径
	RouteWebSocket       = "/ws/device"
	RouteWebSocketStats  = "/ws/stats"
	RouteWebSocketHealth = "/ws/health"

	// 设备标识
	QueryDeviceID  = "device"
	HeaderDeviceID = "X-Device-ID"
)
