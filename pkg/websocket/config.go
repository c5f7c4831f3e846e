package websocket

import (
	"fmt"
	"time"

	"SafeCircle/pkg/util"
)

// LoadConfigFromEnv 从环境变量加载设备通道配置
func LoadConfigFromEnv() *Config {
	config := DefaultConfig()

	if maxConnections := util.GetIntEnv(EnvWebSocketMaxConnections); maxConnections > 0 {
		config.MaxConnections = maxConnections
	}
	if heartbeat := util.GetIntEnv(EnvWebSocketHeartbeatInterval); heartbeat > 0 {
		config.HeartbeatInterval = time.Duration(heartbeat) * time.Second
	}
	if timeout := util.GetIntEnv(EnvWebSocketConnectionTimeout); timeout > 0 {
		config.ConnectionTimeout = time.Duration(timeout) * time.Second
	}
	if size := util.GetIntEnv(EnvWebSocketMessageBufferSize); size > 0 {
		config.MessageBufferSize = int(size)
	}
	if v := util.GetEnv(EnvWebSocketEnableCompression); v != "" {
		config.EnableCompression = util.GetBoolEnv(EnvWebSocketEnableCompression)
	}
	if readBuf := util.GetIntEnv(EnvWebSocketReadBufferSize); readBuf > 0 {
		config.ReadBufferSize = int(readBuf)
	}
	if writeBuf := util.GetIntEnv(EnvWebSocketWriteBufferSize); writeBuf > 0 {
		config.WriteBufferSize = int(writeBuf)
	}
	if maxMsg := util.GetIntEnv(EnvWebSocketMaxMessageSize); maxMsg > 0 {
		config.MaxMessageSize = int(maxMsg)
	}
	if v := util.GetEnv(EnvWebSocketDropOnFull); v != "" {
		config.DropOnFull = util.GetBoolEnv(EnvWebSocketDropOnFull)
	}
	if ms := util.GetIntEnv(EnvWebSocketSendTimeoutMs); ms > 0 {
		config.SendTimeout = time.Duration(ms) * time.Millisecond
	}
	if ms := util.GetIntEnv(EnvWebSocketRequestTimeoutMs); ms > 0 {
		config.RequestTimeout = time.Duration(ms) * time.Millisecond
	}
	return config
}

// ValidateConfig 校验配置
func ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("配置不能为空")
	}
	if config.MaxConnections <= 0 {
		return fmt.Errorf("最大连接数必须大于0")
	}
	if config.HeartbeatInterval <= 0 {
		return fmt.Errorf("心跳间隔必须大于0")
	}
	if config.ConnectionTimeout <= config.HeartbeatInterval {
		return fmt.Errorf("连接超时时间必须大于心跳间隔")
	}
	if config.MessageBufferSize <= 0 {
		return fmt.Errorf("消息缓冲区大小必须大于0")
	}
	if config.MaxMessageSize <= 0 {
		return fmt.Errorf("最大消息大小必须大于0")
	}
	if config.RequestTimeout <= 0 {
		return fmt.Errorf("请求超时时间必须大于0")
	}
	return nil
}

// GetConfigSummary 统计接口展示用
func GetConfigSummary(config *Config) map[string]interface{} {
	return map[string]interface{}{
		"max_connections":     config.MaxConnections,
		"heartbeat_interval":  config.HeartbeatInterval.String(),
		"connection_timeout":  config.ConnectionTimeout.String(),
		"message_buffer_size": config.MessageBufferSize,
		"max_message_size":    config.MaxMessageSize,
		"enable_compression":  config.EnableCompression,
		"drop_on_full":        config.DropOnFull,
		"send_timeout":        config.SendTimeout.String(),
		"request_timeout":     config.RequestTimeout.String(),
	}
}
