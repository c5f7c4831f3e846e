package models

// TriggerSource 触发来源
type TriggerSource string

const (
	SourceManual             TriggerSource = "manual"
	SourceHardwareButton     TriggerSource = "hardware-button"
	SourceShake              TriggerSource = "shake"
	SourceGeofenceEnterAlert TriggerSource = "geofence-enter-alert"
	SourceJourneyTimeout     TriggerSource = "journey-timeout"
	SourceCheckInTimeout     TriggerSource = "checkin-timeout"
)

// Sources 全部触发来源，用于指标初始化与参数校验
var Sources = []TriggerSource{
	SourceManual, SourceHardwareButton, SourceShake,
	SourceGeofenceEnterAlert, SourceJourneyTimeout, SourceCheckInTimeout,
}

func (s TriggerSource) Valid() bool {
	for _, v := range Sources {
		if v == s {
			return true
		}
	}
	return false
}

// Passive 被动来源只在 Safe Mode 开启时生效
func (s TriggerSource) Passive() bool {
	return s == SourceShake || s == SourceGeofenceEnterAlert
}

// EmergencyTrigger 归一化后的触发事件，生命周期只到 Gate 为止
type EmergencyTrigger struct {
	Source    TriggerSource `json:"source"`
	Timestamp int64         `json:"timestamp"` // epoch ms

	// Kind 手动触发时可指定告警类型（silent/group/panic/test），为空按来源推断
	Kind AlertKind `json:"kind,omitempty"`
	// Detail 附加信息：围栏名、目的地等
	Detail string `json:"detail,omitempty"`
	// Group 只通知该分组的联系人
	Group string `json:"group,omitempty"`
}

// AlertKind 告警类型
type AlertKind string

const (
	KindSOS            AlertKind = "sos"
	KindSilent         AlertKind = "silent"
	KindGroup          AlertKind = "group"
	KindPanic          AlertKind = "panic"
	KindTest           AlertKind = "test"
	KindJourneyOverdue AlertKind = "journey-overdue"
	KindGeofence       AlertKind = "geofence"
	KindCheckInMissed  AlertKind = "checkin-missed"
	KindShare          AlertKind = "share"
)

func (k AlertKind) Valid() bool {
	switch k {
	case KindSOS, KindSilent, KindGroup, KindPanic, KindTest,
		KindJourneyOverdue, KindGeofence, KindCheckInMissed, KindShare:
		return true
	}
	return false
}

// KindFor 由触发事件推断告警类型
func KindFor(t EmergencyTrigger) AlertKind {
	if t.Kind != "" {
		return t.Kind
	}
	switch t.Source {
	case SourceGeofenceEnterAlert:
		return KindGeofence
	case SourceJourneyTimeout:
		return KindJourneyOverdue
	case SourceCheckInTimeout:
		return KindCheckInMissed
	default:
		// manual, hardware-button, shake
		return KindSOS
	}
}
