package alerting

import (
	"context"

	"SafeCircle/internal/geofence"
	"SafeCircle/internal/models"
	"SafeCircle/internal/trigger"
	"SafeCircle/pkg/errors"

	"go.uber.org/zap"
)

// OnMotion 设备加速度采样
func (e *Engine) OnMotion(s trigger.MotionSample) bool {
	if s.Timestamp == 0 {
		s.Timestamp = e.clock()
	}
	return e.shake.Sample(s)
}

// OnButton 媒体键，白名单以外的键码忽略
func (e *Engine) OnButton(p trigger.ButtonPress) bool {
	if !trigger.IsSOSKey(p.KeyCode) {
		return false
	}
	ts := p.Timestamp
	if ts == 0 {
		ts = e.clock()
	}
	e.Emit(models.EmergencyTrigger{Source: models.SourceHardwareButton, Timestamp: ts})
	return true
}

// OnLocation 新定位：写历史、计算围栏进入。无效定位直接丢弃
func (e *Engine) OnLocation(ctx context.Context, fix models.LocationFix) ([]geofence.Transition, error) {
	if !fix.Valid() {
		return nil, errors.ErrInvalidInput.WithContext("field", "fix")
	}
	if fix.Timestamp == 0 {
		fix.Timestamp = e.clock()
	}
	e.rememberFix(fix)
	if e.history != nil {
		if err := e.history.Record(ctx, fix); err != nil {
			e.logger.Warn("record location history", zap.Error(err))
		}
	}

	transitions := e.geoEval.Evaluate(fix, e.fences.List())
	for _, tr := range transitions {
		e.metrics.RecordGeofenceEntry(string(tr.Fence.Kind))
		e.signals.Emit(models.SigGeofenceTransition, tr.Fence, fix)
		switch tr.Fence.Kind {
		case models.GeofenceSafe:
			e.notify(models.LevelInfo, "NotifySafeZoneEntered", map[string]interface{}{"Detail": tr.Fence.Name})
		case models.GeofenceAlert:
			e.Emit(models.EmergencyTrigger{
				Source:    models.SourceGeofenceEnterAlert,
				Timestamp: fix.Timestamp,
				Detail:    tr.Fence.Name,
			})
		}
	}
	return transitions, nil
}

func (e *Engine) rememberFix(fix models.LocationFix) {
	e.mu.Lock()
	f := fix
	e.lastFix = &f
	e.mu.Unlock()
	e.signals.Emit(models.SigLocationFix, fix)
}

// LastFix 最近一次有效定位
func (e *Engine) LastFix() (models.LocationFix, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastFix == nil {
		return models.LocationFix{}, false
	}
	return *e.lastFix, true
}

// Geofences 围栏列表副本
func (e *Engine) Geofences() []models.Geofence { return e.fences.List() }

func (e *Engine) CreateGeofence(ctx context.Context, name string, center models.LatLng, radius float64, kind models.GeofenceKind) (models.Geofence, error) {
	return e.fences.Create(ctx, name, center, radius, kind)
}

// CreateGeofenceHere 以最近一次定位为中心创建
func (e *Engine) CreateGeofenceHere(ctx context.Context, name string, radius float64, kind models.GeofenceKind) (models.Geofence, error) {
	fix, ok := e.LastFix()
	if !ok {
		return models.Geofence{}, errors.ErrLocationUnavailable.WithContext("op", "create geofence")
	}
	return e.fences.Create(ctx, name, fix.LatLng(), radius, kind)
}

func (e *Engine) ToggleGeofence(ctx context.Context, id string) (models.Geofence, error) {
	return e.fences.Toggle(ctx, id)
}

func (e *Engine) DeleteGeofence(ctx context.Context, id string) error {
	return e.fences.Delete(ctx, id)
}
