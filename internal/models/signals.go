package models

// 进程内事件名，通过 util.Sig() 分发
const (
	// SigNotification sender: Notification
	SigNotification = "notification"
	// SigAlertIssued sender: AlertRecord, params[0]: []AlertLogEntry
	SigAlertIssued = "alert.issued"
	// SigTriggerDropped sender: EmergencyTrigger, params[0]: reason string
	SigTriggerDropped = "trigger.dropped"
	// SigGeofenceTransition sender: Geofence, params[0]: LocationFix
	SigGeofenceTransition = "geofence.enter"
	// SigLocationFix sender: LocationFix
	SigLocationFix = "location.fix"
	// SigSOSCountdown sender: 剩余秒数 int
	SigSOSCountdown = "sos.countdown"
)
