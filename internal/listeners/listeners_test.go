package listeners

import (
	"encoding/json"
	"sync"
	"testing"

	"SafeCircle/internal/models"
	"SafeCircle/pkg/sse"
	"SafeCircle/pkg/util"
	"SafeCircle/pkg/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pushed struct {
	typ  string
	data interface{}
}

type fakeDevice struct {
	mu     sync.Mutex
	frames []pushed
}

func (f *fakeDevice) Push(t string, d interface{}) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, pushed{t, d})
	return 1
}

func TestForwardsEngineSignals(t *testing.T) {
	sig := util.NewSignals()
	hub := sse.NewHub(0)
	dev := &fakeDevice{}
	stop := InitAlertListeners(sig, hub, dev, nil)

	sig.Emit(models.SigNotification, models.Notification{ID: "n1", Level: models.LevelInfo, Message: "Safe Mode ON"})
	sig.Emit(models.SigNotification, models.Notification{ID: "n2", Level: models.LevelAlert, Message: "Shake detected"})
	sig.Emit(models.SigAlertIssued, models.AlertRecord{Kind: "panic", Recipients: 2}, []models.AlertLogEntry{{ContactID: "c1"}})
	sig.Emit(models.SigTriggerDropped, models.EmergencyTrigger{Source: models.SourceShake}, "disarmed")
	sig.Emit(models.SigSOSCountdown, 3)

	evs := hub.Since(0, nil)
	require.Len(t, evs, 5)
	assert.Equal(t, EventNotification, evs[0].Name)
	assert.Equal(t, EventAlert, evs[2].Name)

	var alert alertEvent
	require.NoError(t, json.Unmarshal([]byte(evs[2].Data), &alert))
	assert.Equal(t, 2, alert.Record.Recipients)
	require.Len(t, alert.Log, 1)

	assert.JSONEq(t, `{"source":"shake","reason":"disarmed"}`, evs[3].Data)
	assert.JSONEq(t, `{"remaining":3}`, evs[4].Data)

	// 只有 alert/warning 级别的提示推给设备
	require.Len(t, dev.frames, 2)
	assert.Equal(t, websocket.MessageTypeNotification, dev.frames[0].typ)
	assert.Equal(t, websocket.MessageTypeCountdown, dev.frames[1].typ)

	stop()
	sig.Emit(models.SigLocationFix, models.LocationFix{Latitude: 1, Longitude: 2})
	assert.Len(t, hub.Since(0, nil), 5)
}

func TestNilDeviceAndWrongSender(t *testing.T) {
	sig := util.NewSignals()
	hub := sse.NewHub(0)
	stop := InitAlertListeners(sig, hub, nil, nil)
	defer stop()

	sig.Emit(models.SigSOSCountdown, 2)
	sig.Emit(models.SigGeofenceTransition, "not a fence")
	sig.Emit(models.SigGeofenceTransition, models.Geofence{ID: "g1", Name: "Home"}, models.LocationFix{Latitude: 1})
	evs := hub.Since(0, nil)
	require.Len(t, evs, 2)
	assert.Equal(t, EventGeofence, evs[1].Name)
}
