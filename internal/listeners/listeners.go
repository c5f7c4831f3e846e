// Package listeners 把引擎事件转发到 UI（SSE）与设备通道。
package listeners

import (
	"SafeCircle/internal/models"
	"SafeCircle/pkg/util"
	"SafeCircle/pkg/websocket"

	"go.uber.org/zap"
)

// SSE 事件名
const (
	EventNotification = "notification"
	EventAlert        = "alert"
	EventDropped      = "trigger-dropped"
	EventGeofence     = "geofence"
	EventLocation     = "location"
	EventCountdown    = "countdown"
)

// Publisher sse.Hub 的子集
type Publisher interface {
	PublishJSON(name string, v interface{}) (uint64, error)
}

// DevicePusher device.Bridge 的子集
type DevicePusher interface {
	Push(msgType string, data interface{}) int
}

type alertEvent struct {
	Record models.AlertRecord     `json:"record"`
	Log    []models.AlertLogEntry `json:"log"`
}

type droppedEvent struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

type geofenceEvent struct {
	Fence models.Geofence    `json:"fence"`
	Fix   models.LocationFix `json:"fix"`
}

// InitAlertListeners 订阅引擎事件，返回取消订阅函数。device 可为 nil
func InitAlertListeners(sig *util.Signals, ui Publisher, device DevicePusher, lg *zap.Logger) (stop func()) {
	if lg == nil {
		lg = zap.NewNop()
	}
	lg = lg.Named("listeners")
	publish := func(name string, v interface{}) {
		if ui == nil {
			return
		}
		if _, err := ui.PublishJSON(name, v); err != nil {
			lg.Warn("publish event failed", zap.String("event", name), zap.Error(err))
		}
	}
	push := func(msgType string, v interface{}) {
		if device != nil {
			device.Push(msgType, v)
		}
	}

	var disconnects []func()
	on := func(event string, fn util.SignalHandler) {
		disconnects = append(disconnects, sig.Connect(event, fn))
	}

	on(models.SigNotification, func(sender any, _ ...any) {
		n, ok := sender.(models.Notification)
		if !ok {
			return
		}
		publish(EventNotification, n)
		// 设备端用系统通知/震动提醒
		if n.Level == models.LevelAlert || n.Level == models.LevelWarning {
			push(websocket.MessageTypeNotification, n)
		}
	})

	on(models.SigAlertIssued, func(sender any, params ...any) {
		rec, ok := sender.(models.AlertRecord)
		if !ok {
			return
		}
		ev := alertEvent{Record: rec}
		if len(params) > 0 {
			ev.Log, _ = params[0].([]models.AlertLogEntry)
		}
		publish(EventAlert, ev)
		lg.Info("alert issued", zap.String("kind", rec.Kind), zap.Int("recipients", rec.Recipients), zap.Int("failed", rec.Failed))
	})

	on(models.SigTriggerDropped, func(sender any, params ...any) {
		t, ok := sender.(models.EmergencyTrigger)
		if !ok {
			return
		}
		ev := droppedEvent{Source: string(t.Source)}
		if len(params) > 0 {
			ev.Reason, _ = params[0].(string)
		}
		publish(EventDropped, ev)
	})

	on(models.SigGeofenceTransition, func(sender any, params ...any) {
		g, ok := sender.(models.Geofence)
		if !ok {
			return
		}
		ev := geofenceEvent{Fence: g}
		if len(params) > 0 {
			ev.Fix, _ = params[0].(models.LocationFix)
		}
		publish(EventGeofence, ev)
	})

	on(models.SigLocationFix, func(sender any, _ ...any) {
		if fix, ok := sender.(models.LocationFix); ok {
			publish(EventLocation, fix)
		}
	})

	on(models.SigSOSCountdown, func(sender any, _ ...any) {
		remaining, ok := sender.(int)
		if !ok {
			return
		}
		v := map[string]int{"remaining": remaining}
		publish(EventCountdown, v)
		push(websocket.MessageTypeCountdown, v)
	})

	return func() {
		for _, d := range disconnects {
			d()
		}
	}
}
