package models

import "time"

// LocationUnavailableText 定位失败时的占位文本
const LocationUnavailableText = "Location unavailable"

// AlertPayload 一次扇出使用的不可变告警内容
type AlertPayload struct {
	SenderName   string    `json:"senderName"`
	LocationText string    `json:"locationText"`
	TimestampISO string    `json:"timestampISO"`
	Kind         AlertKind `json:"kind"`
	Detail       string    `json:"detail,omitempty"`
}

// HasLocation 是否带有有效定位链接
func (p AlertPayload) HasLocation() bool {
	return p.LocationText != "" && p.LocationText != LocationUnavailableText
}

// Outcome 单个联系人的发送结果
type Outcome string

const (
	OutcomeSent        Outcome = "sent"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeFailed      Outcome = "failed"
)

// AlertLogEntry 告警日志，仅用于展示，不是权威记录
type AlertLogEntry struct {
	ContactID   string  `json:"contactId"`
	ContactName string  `json:"contactName"`
	Timestamp   int64   `json:"timestamp"`
	Type        string  `json:"type"`
	Outcome     Outcome `json:"outcome,omitempty"`
}

// AlertRecord 一次告警流程的结果（求助警报），写入会话数据库
type AlertRecord struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Kind         string `gorm:"size:32;index" json:"kind"`
	Source       string `gorm:"size:32" json:"source"`
	Status       string `gorm:"size:16" json:"status"` // "dispatched" "aborted" "cancelled"
	LocationText string `gorm:"size:255" json:"locationText"`
	Recipients   int    `json:"recipients"`
	Failed       int    `json:"failed"`
	CreatedAt    time.Time
}

const (
	AlertStatusDispatched = "dispatched"
	AlertStatusAborted    = "aborted"
	AlertStatusCancelled  = "cancelled"
)
