package models

// JourneyTracking 行程跟踪
type JourneyTracking struct {
	Active      bool   `json:"active"`
	Destination string `json:"destination"`
	EtaMs       int64  `json:"eta"`
	StartTime   int64  `json:"startTime"`
	Fired       bool   `json:"fired,omitempty"`
}

// Deadline 预计到达时间，未激活时为 0
func (j JourneyTracking) Deadline() int64 {
	if !j.Active {
		return 0
	}
	return j.StartTime + j.EtaMs
}

// CheckInSchedule 定时报平安
type CheckInSchedule struct {
	Enabled    bool     `json:"enabled"`
	Time       string   `json:"time"` // "HH:MM"，仅用于展示
	IntervalMs int64    `json:"intervalMs"`
	NextTime   int64    `json:"nextTime"`
	LastCheck  int64    `json:"lastCheck,omitempty"`
	Contacts   []string `json:"contacts"`
	Fired      bool     `json:"fired,omitempty"`
}

// ShareTimer 限时位置共享
type ShareTimer struct {
	Active    bool  `json:"active"`
	StartTime int64 `json:"startTime"`
	EndTime   int64 `json:"endTime"`
	Fired     bool  `json:"fired,omitempty"`
}

// Remaining 剩余毫秒
func (s ShareTimer) Remaining(now int64) int64 {
	if !s.Active || now >= s.EndTime {
		return 0
	}
	return s.EndTime - now
}

type RecordingType string

const (
	RecordingVideo RecordingType = "video"
	RecordingAudio RecordingType = "audio"
)

// RecordingSession 模拟录制的元数据，不包含真实音视频
type RecordingSession struct {
	ID        string        `json:"id"`
	Type      RecordingType `json:"type"`
	Timestamp int64         `json:"timestamp"`
	Duration  int64         `json:"duration"` // 秒
	Status    string        `json:"status"`   // "recording" "stopped" "uploaded"
}

const (
	RecordingStatusRecording = "recording"
	RecordingStatusStopped   = "stopped"
	RecordingStatusUploaded  = "uploaded"
)

// DecoyInfo 假来电显示信息
type DecoyInfo struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// ExportBundle 导出文件，键名与原导出格式保持一致
type ExportBundle struct {
	LocationHistory []LocationHistoryItem `json:"locationHistory"`
	SavedRoutes     []SavedRoute          `json:"savedRoutes"`
	Geofences       []Geofence            `json:"geofences"`
	ExportDate      string                `json:"exportDate"`
}

type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelWarning NotificationLevel = "warning"
	LevelAlert   NotificationLevel = "alert"
)

// Notification 面向用户的提示
type Notification struct {
	ID        string            `json:"id"`
	Level     NotificationLevel `json:"level"`
	Message   string            `json:"message"`
	Timestamp int64             `json:"timestamp"`
	Topic     string            `json:"topic,omitempty"`
}
