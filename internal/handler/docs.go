package handlers

import (
	"net/http"
	"reflect"
	"strings"

	"SafeCircle/internal/models"
	"SafeCircle/internal/trigger"
	"SafeCircle/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	TYPE_STRING  = "string"
	TYPE_NUMBER  = "number"
	TYPE_BOOLEAN = "boolean"
	TYPE_OBJECT  = "object"
	TYPE_ARRAY   = "array"
)

type DocField struct {
	Name    string     `json:"name,omitempty"`
	Type    string     `json:"type"`
	Desc    string     `json:"desc,omitempty"`
	Default string     `json:"default,omitempty"`
	CanNull bool       `json:"canNull,omitempty"`
	Fields  []DocField `json:"fields,omitempty"`
}

type UriDoc struct {
	Group    string    `json:"group"`
	Path     string    `json:"path"`
	Method   string    `json:"method"`
	Desc     string    `json:"desc"`
	Request  *DocField `json:"request,omitempty"`
	Response *DocField `json:"response,omitempty"`
}

// docDefine 按 json tag 描述结构体字段，嵌套结构体展开一层
func docDefine(v interface{}) *DocField {
	return describe(reflect.TypeOf(v), 0)
}

func describe(t reflect.Type, depth int) *DocField {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return &DocField{Type: TYPE_STRING}
	case reflect.Bool:
		return &DocField{Type: TYPE_BOOLEAN}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return &DocField{Type: TYPE_NUMBER}
	case reflect.Slice, reflect.Array:
		f := &DocField{Type: TYPE_ARRAY}
		if depth < 2 {
			if elem := describe(t.Elem(), depth+1); elem != nil {
				f.Fields = []DocField{*elem}
			}
		}
		return f
	case reflect.Struct:
		f := &DocField{Type: TYPE_OBJECT}
		if depth >= 2 {
			return f
		}
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if !sf.IsExported() {
				continue
			}
			name, opts, _ := strings.Cut(sf.Tag.Get("json"), ",")
			if name == "-" {
				continue
			}
			if name == "" {
				name = sf.Name
			}
			sub := describe(sf.Type, depth+1)
			if sub == nil {
				continue
			}
			sub.Name = name
			sub.CanNull = strings.Contains(opts, "omitempty") || sf.Type.Kind() == reflect.Ptr
			f.Fields = append(f.Fields, *sub)
		}
		return f
	}
	return nil
}

func (h *Handlers) GetDocs() []UriDoc {
	p := h.prefix
	return []UriDoc{
		{Group: "System", Path: p + "/system/health", Method: http.MethodGet, Desc: "Engine health; degraded when no device is connected"},
		{Group: "System", Path: p + "/system/capabilities", Method: http.MethodGet, Desc: "Platform capability report, `?device={ID}` merges the device handshake"},
		{Group: "System", Path: p + "/system/reset", Method: http.MethodPost, Desc: "Clear the session and in-memory state"},
		{Group: "System", Path: p + "/events", Method: http.MethodGet, Desc: "Server-sent events: notification, alert, trigger-dropped, geofence, location, countdown"},
		{Group: "System", Path: p + "/notifications", Method: http.MethodGet, Desc: "Last five notifications, newest first"},

		{Group: "Profile", Path: p + "/profile", Method: http.MethodGet, Desc: "User profile and emergency contacts", Response: docDefine(models.Profile{})},
		{Group: "Profile", Path: p + "/profile/name", Method: http.MethodPut, Desc: "Set the sender name", Request: docDefine(setNameRequest{})},
		{Group: "Profile", Path: p + "/profile/contacts", Method: http.MethodPost, Desc: "Add an emergency contact", Request: docDefine(models.Contact{})},
		{Group: "Profile", Path: p + "/profile/contacts/:id", Method: http.MethodDelete, Desc: "Remove an emergency contact"},

		{
			Group:   "Alerts",
			Path:    p + "/alerts",
			Method:  http.MethodPost,
			Desc:    "Raise a manual alert; `?wait=true` blocks until every contact intent has been dispatched. Supports `Idempotency-Key`",
			Request: docDefine(triggerAlertRequest{}),
			Response: &DocField{
				Type: TYPE_OBJECT,
				Fields: []DocField{
					{Name: "trigger", Type: TYPE_OBJECT},
					{Name: "decision", Type: TYPE_OBJECT, Desc: "accepted, disarmed, cooldown or invalid"},
					{Name: "payload", Type: TYPE_OBJECT, CanNull: true},
					{Name: "delivery", Type: TYPE_OBJECT, CanNull: true},
				},
			},
		},
		{Group: "Alerts", Path: p + "/alerts/log", Method: http.MethodGet, Desc: "Per-contact alert log, newest first, at most 100 entries", Response: docDefine([]models.AlertLogEntry{})},
		{Group: "Alerts", Path: p + "/alerts/log", Method: http.MethodDelete, Desc: "Clear the alert log"},
		{Group: "Alerts", Path: p + "/alerts/records", Method: http.MethodGet, Desc: "Persisted alert records, `?limit=` defaults to 20"},
		{Group: "SOS", Path: p + "/sos/press", Method: http.MethodPost, Desc: "Start the 3 second SOS countdown"},
		{Group: "SOS", Path: p + "/sos/cancel", Method: http.MethodPost, Desc: "Cancel a pending countdown"},
		{Group: "SOS", Path: p + "/sos", Method: http.MethodGet, Desc: "Countdown status"},

		{Group: "Settings", Path: p + "/settings", Method: http.MethodGet, Desc: "Safe mode and shake sensitivity"},
		{Group: "Settings", Path: p + "/settings/safe-mode", Method: http.MethodPut, Desc: "Arm or disarm automatic triggers", Request: docDefine(safeModeRequest{})},
		{Group: "Settings", Path: p + "/settings/shake-threshold", Method: http.MethodPut, Desc: "Shake threshold in m/s², clamped to 10..18", Request: docDefine(thresholdRequest{})},

		{Group: "Sensors", Path: p + "/sensors/motion", Method: http.MethodPost, Desc: "Accelerometer sample", Request: docDefine(trigger.MotionSample{})},
		{Group: "Sensors", Path: p + "/sensors/button", Method: http.MethodPost, Desc: "Media key press; only 79, 85, 87, 88 and 127 trigger", Request: docDefine(trigger.ButtonPress{})},
		{Group: "Sensors", Path: p + "/sensors/location", Method: http.MethodPost, Desc: "Location fix; returns entered geofences", Request: docDefine(models.LocationFix{})},
		{Group: "Sensors", Path: p + "/sensors/location", Method: http.MethodGet, Desc: "Last known fix"},

		{Group: "Geofences", Path: p + "/geofences", Method: http.MethodGet, Desc: "List geofences", Response: docDefine([]models.Geofence{})},
		{Group: "Geofences", Path: p + "/geofences", Method: http.MethodPost, Desc: "Create a geofence, centered on the last fix when `center` is omitted", Request: docDefine(createGeofenceRequest{})},
		{Group: "Geofences", Path: p + "/geofences/:id/toggle", Method: http.MethodPut, Desc: "Enable or disable a geofence"},
		{Group: "Geofences", Path: p + "/geofences/:id", Method: http.MethodDelete, Desc: "Delete a geofence"},

		{Group: "Journey", Path: p + "/journey/start", Method: http.MethodPost, Desc: "Start a journey timer, minutes default to 30", Request: docDefine(startJourneyRequest{})},
		{Group: "Journey", Path: p + "/journey/end", Method: http.MethodPost, Desc: "Mark the journey completed"},
		{Group: "Check-in", Path: p + "/checkin/schedule", Method: http.MethodPost, Desc: "Schedule periodic check-ins, hours default to 2", Request: docDefine(scheduleCheckInRequest{})},
		{Group: "Check-in", Path: p + "/checkin", Method: http.MethodPost, Desc: "Check in now and push the next deadline"},
		{Group: "Share", Path: p + "/share/location", Method: http.MethodPost, Desc: "Send the current location to every contact"},
		{Group: "Share", Path: p + "/share/timer", Method: http.MethodPost, Desc: "Timed location sharing", Request: docDefine(shareTimerRequest{})},
		{Group: "Share", Path: p + "/share/walk", Method: http.MethodPut, Desc: "Walk-with-me escort", Request: docDefine(walkRequest{})},
		{Group: "Recordings", Path: p + "/recordings/start", Method: http.MethodPost, Desc: "Start a simulated recording", Request: docDefine(recordingRequest{})},
		{Group: "Recordings", Path: p + "/recordings/stop", Method: http.MethodPost, Desc: "Stop the active recording"},
		{Group: "Decoy", Path: p + "/decoy", Method: http.MethodPut, Desc: "Decoy caller details", Request: docDefine(models.DecoyInfo{})},
		{Group: "Decoy", Path: p + "/decoy/fake-call", Method: http.MethodPost, Desc: "Simulate an incoming call"},
		{Group: "Decoy", Path: p + "/decoy/siren", Method: http.MethodPost, Desc: "Toggle the siren"},

		{Group: "History", Path: p + "/history/locations", Method: http.MethodGet, Desc: "Recent fixes, `?limit=` defaults to 10"},
		{Group: "History", Path: p + "/history/routes", Method: http.MethodPost, Desc: "Save a walking route", Request: docDefine(saveRouteRequest{})},
		{Group: "Export", Path: p + "/export", Method: http.MethodGet, Desc: "Download history, routes and geofences as JSON", Response: docDefine(models.ExportBundle{})},
		{Group: "Export", Path: p + "/export", Method: http.MethodPost, Desc: "Archive the export to object storage"},
	}
}

func (h *Handlers) handleDocs(c *gin.Context) {
	response.Success(c, "", h.GetDocs())
}
