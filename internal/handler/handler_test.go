package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"SafeCircle/internal/alerting"
	"SafeCircle/internal/export"
	"SafeCircle/internal/location"
	"SafeCircle/internal/models"
	"SafeCircle/internal/profile"
	"SafeCircle/internal/session"
	"SafeCircle/pkg/cache"
	"SafeCircle/pkg/config"
	"SafeCircle/pkg/errors"
	"SafeCircle/pkg/notification"
	"SafeCircle/pkg/scheduler"
	"SafeCircle/pkg/sse"
	"SafeCircle/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	mu        sync.Mutex
	addresses []string
}

func (d *recordingDispatcher) Dispatch(_ context.Context, _ notification.Channel, address, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addresses = append(d.addresses, address)
	return nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router   *gin.Engine
	engine   *alerting.Engine
	profiles *profile.Store
	disp     *recordingDispatcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	sess := session.New(cache.NewLocalCache(cache.LocalConfig{MaxSize: 64}), 0)
	profiles := profile.New(sess)
	db, err := util.InitDatabase("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared", false)
	require.NoError(t, err)
	history := location.NewHistory(db)
	require.NoError(t, history.AutoMigrate())

	cfg := config.DefaultAlerting()
	cfg.Stagger = 5 * time.Millisecond
	cfg.LocationTimeout = 50 * time.Millisecond
	cfg.DispatchRetries = 0
	cfg.EvaluatorTick = time.Hour

	sched := scheduler.New()
	disp := &recordingDispatcher{}
	eng, err := alerting.NewEngine(alerting.Options{
		Config:        cfg,
		Profiles:      profiles,
		Provider:      location.Static(models.LocationFix{Latitude: 19.076, Longitude: 72.8777, Accuracy: 10}),
		Dispatcher:    disp,
		Session:       sess,
		History:       history,
		Scheduler:     sched,
		Signals:       util.NewSignals(),
		CountdownTick: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, eng.Start(ctx))
	t.Cleanup(func() {
		eng.Stop()
		sched.Stop()
	})

	h := NewHandlers(Deps{
		Engine:   eng,
		Profiles: profiles,
		History:  history,
		Exporter: export.New(history, eng, nil, nil),
		Events:   sse.NewHub(0),
	})
	r := gin.New()
	h.Register(r)
	return &testServer{router: r, engine: eng, profiles: profiles, disp: disp}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") != "" && bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func TestHealthDegradedWithoutDevices(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodGet, "/api/system/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, false, body["safeMode"])
}

func TestProfileContacts(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodPut, "/api/profile/name", gin.H{"name": "  Asha "})
	require.Equal(t, http.StatusOK, w.Code)

	w, env := s.do(t, http.MethodPost, "/api/profile/contacts", models.Contact{Name: "Mom", Phone: "98765 43210"})
	require.Equal(t, http.StatusOK, w.Code)
	var added models.Contact
	require.NoError(t, json.Unmarshal(env.Data, &added))
	assert.NotEmpty(t, added.ID)

	w, env = s.do(t, http.MethodPost, "/api/profile/contacts", models.Contact{Name: "NoPhone"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.CodeInvalidInput, env.Code)

	_, env = s.do(t, http.MethodGet, "/api/profile", nil)
	var p models.Profile
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "Asha", p.Name)
	require.Len(t, p.EmergencyContacts, 1)

	w, _ = s.do(t, http.MethodDelete, "/api/profile/contacts/"+added.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, env = s.do(t, http.MethodDelete, "/api/profile/contacts/"+added.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.CodeNotFound, env.Code)
}

func TestTriggerAlertWaitsForDelivery(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	w, _ := s.do(t, http.MethodPut, "/api/profile/name", gin.H{"name": "Asha"})
	require.Equal(t, http.StatusOK, w.Code)
	_, err := s.profiles.AddContact(ctx, models.Contact{ID: "c1", Name: "Mom", Phone: "98765 43210"})
	require.NoError(t, err)
	_, err = s.profiles.AddContact(ctx, models.Contact{ID: "c2", Name: "Dad", Phone: "+1-555-123-4567"})
	require.NoError(t, err)

	w, env := s.do(t, http.MethodPost, "/api/alerts?wait=true", gin.H{"kind": "panic"})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "accepted", env.Message)

	var got struct {
		Decision struct {
			Accepted bool `json:"accepted"`
		} `json:"decision"`
		Payload  models.AlertPayload `json:"payload"`
		Delivery struct {
			Total   int               `json:"total"`
			Results []json.RawMessage `json:"results"`
		} `json:"delivery"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.True(t, got.Decision.Accepted)
	assert.Equal(t, 2, got.Delivery.Total)
	assert.Len(t, got.Delivery.Results, 2)
	assert.Equal(t, "Asha", got.Payload.SenderName)

	_, env = s.do(t, http.MethodGet, "/api/alerts/log", nil)
	var log []models.AlertLogEntry
	require.NoError(t, json.Unmarshal(env.Data, &log))
	assert.Len(t, log, 2)

	require.Eventually(t, func() bool {
		_, env := s.do(t, http.MethodGet, "/api/alerts/records", nil)
		var recs []models.AlertRecord
		return json.Unmarshal(env.Data, &recs) == nil && len(recs) == 1
	}, time.Second, 20*time.Millisecond)
}

func TestTriggerAlertErrors(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodPost, "/api/alerts", gin.H{"kind": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.CodeInvalidInput, env.Code)

	// 没有联系人
	w, env = s.do(t, http.MethodPost, "/api/alerts", gin.H{"kind": "sos"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.CodeNoContacts, env.Code)

	// group 只能配合 kind=group
	w, env = s.do(t, http.MethodPost, "/api/alerts", gin.H{"kind": "panic", "group": "family"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.CodeInvalidInput, env.Code)
}

func TestGroupAlertOnlyReachesGroup(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	_, err := s.profiles.AddContact(ctx, models.Contact{ID: "c1", Name: "Mom", Phone: "98765 43210", Group: "family"})
	require.NoError(t, err)
	_, err = s.profiles.AddContact(ctx, models.Contact{ID: "c2", Name: "Boss", Phone: "+1-555-123-4567", Group: "work"})
	require.NoError(t, err)

	w, env := s.do(t, http.MethodPost, "/api/alerts?wait=true", gin.H{"kind": "group", "group": "family"})
	require.Equal(t, http.StatusAccepted, w.Code)
	var got struct {
		Delivery struct {
			Total int `json:"total"`
		} `json:"delivery"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, 1, got.Delivery.Total)

	w, env = s.do(t, http.MethodPost, "/api/alerts", gin.H{"kind": "group", "group": "school"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.CodeNoContacts, env.Code)
}

func TestSettingsAndSensors(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodPut, "/api/settings/shake-threshold", gin.H{"threshold": 25})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"shakeThreshold":18}`, string(env.Data))

	w, _ = s.do(t, http.MethodPut, "/api/settings/safe-mode", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, env = s.do(t, http.MethodPost, "/api/sensors/button", gin.H{"keyCode": 24})
	assert.JSONEq(t, `{"accepted":false}`, string(env.Data))
	_, env = s.do(t, http.MethodPost, "/api/sensors/button", gin.H{"keyCode": 79})
	assert.JSONEq(t, `{"accepted":true}`, string(env.Data))

	w, env = s.do(t, http.MethodGet, "/api/sensors/location", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, errors.CodeLocationUnavailable, env.Code)

	w, _ = s.do(t, http.MethodPost, "/api/sensors/location", models.LocationFix{Latitude: 120, Longitude: 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGeofenceLifecycle(t *testing.T) {
	s := newTestServer(t)

	// 没有定位时不能以当前位置创建
	w, _ := s.do(t, http.MethodPost, "/api/geofences", gin.H{"name": "Home", "radiusMeters": 100})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w, env := s.do(t, http.MethodPost, "/api/geofences", gin.H{
		"name":         "Home",
		"center":       models.LatLng{Lat: 19.076, Lng: 72.8777},
		"radiusMeters": 200,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var g models.Geofence
	require.NoError(t, json.Unmarshal(env.Data, &g))
	assert.Equal(t, models.GeofenceSafe, g.Kind)
	assert.True(t, g.Active)

	_, env = s.do(t, http.MethodPost, "/api/sensors/location", models.LocationFix{Latitude: 19.0761, Longitude: 72.8777, Accuracy: 5})
	var loc struct {
		Entered []transitionView `json:"entered"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &loc))
	require.Len(t, loc.Entered, 1)
	assert.Equal(t, g.ID, loc.Entered[0].Fence.ID)

	_, env = s.do(t, http.MethodPut, "/api/geofences/"+g.ID+"/toggle", nil)
	require.NoError(t, json.Unmarshal(env.Data, &g))
	assert.False(t, g.Active)

	w, _ = s.do(t, http.MethodDelete, "/api/geofences/"+g.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodDelete, "/api/geofences/"+g.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSOSCountdown(t *testing.T) {
	s := newTestServer(t)

	_, env := s.do(t, http.MethodPost, "/api/sos/press", nil)
	assert.JSONEq(t, `{"started":true,"pending":true}`, string(env.Data))
	_, env = s.do(t, http.MethodPost, "/api/sos/cancel", nil)
	assert.JSONEq(t, `{"cancelled":true}`, string(env.Data))
	_, env = s.do(t, http.MethodGet, "/api/sos", nil)
	assert.JSONEq(t, `{"pending":false}`, string(env.Data))
}

func TestFeatures(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodPost, "/api/journey/start", gin.H{"destination": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.CodeInvalidInput, env.Code)

	w, _ = s.do(t, http.MethodPost, "/api/journey/start", gin.H{"destination": "Bandra", "minutes": 20})
	assert.Equal(t, http.StatusOK, w.Code)
	_, env = s.do(t, http.MethodPost, "/api/journey/end", nil)
	var j models.JourneyTracking
	require.NoError(t, json.Unmarshal(env.Data, &j))
	assert.False(t, j.Active)

	_, env = s.do(t, http.MethodPost, "/api/recordings/start", gin.H{"type": "audio"})
	assert.Equal(t, 0, env.Code)
	w, env = s.do(t, http.MethodPost, "/api/recordings/start", gin.H{"type": "video"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, errors.CodeConflict, env.Code)
	w, _ = s.do(t, http.MethodPost, "/api/recordings/stop", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	_, env = s.do(t, http.MethodPost, "/api/decoy/fake-call", nil)
	assert.JSONEq(t, `{"caller":"Mom"}`, string(env.Data))
	s.do(t, http.MethodPut, "/api/decoy", models.DecoyInfo{Name: "Aunt Meera"})
	_, env = s.do(t, http.MethodPost, "/api/decoy/fake-call", nil)
	assert.JSONEq(t, `{"caller":"Aunt Meera"}`, string(env.Data))

	_, env = s.do(t, http.MethodPost, "/api/decoy/siren", nil)
	assert.JSONEq(t, `{"on":true}`, string(env.Data))
}

func TestHistoryAndExport(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodPost, "/api/history/routes", gin.H{"destination": "Bandra"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s.do(t, http.MethodPost, "/api/sensors/location", models.LocationFix{Latitude: 19.076, Longitude: 72.8777, Accuracy: 5})
	w, env := s.do(t, http.MethodPost, "/api/history/routes", gin.H{"name": "Office", "destination": "Bandra"})
	require.Equal(t, http.StatusOK, w.Code)
	var route models.SavedRoute
	require.NoError(t, json.Unmarshal(env.Data, &route))
	assert.Contains(t, route.URL, "travelmode=walking")

	_, env = s.do(t, http.MethodGet, "/api/history/locations", nil)
	var items []models.LocationHistoryItem
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 1)

	w, _ = s.do(t, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "safecircle-export-")
	var bundle models.ExportBundle
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bundle))
	assert.Len(t, bundle.SavedRoutes, 1)
	assert.NotNil(t, bundle.Geofences)

	// 没有配置对象存储
	w, env = s.do(t, http.MethodPost, "/api/export", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, errors.CodePlatformUnsupported, env.Code)
}

func TestDocsListed(t *testing.T) {
	s := newTestServer(t)
	_, env := s.do(t, http.MethodGet, "/api/docs", nil)
	var docs []UriDoc
	require.NoError(t, json.Unmarshal(env.Data, &docs))
	require.NotEmpty(t, docs)
	assert.Equal(t, "/api/system/health", docs[0].Path)

	f := docDefine(models.Contact{})
	require.NotNil(t, f)
	assert.Equal(t, TYPE_OBJECT, f.Type)
	assert.Equal(t, "id", f.Fields[0].Name)
}
