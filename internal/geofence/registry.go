package geofence

import (
	"context"
	"strings"
	"sync"

	"SafeCircle/internal/models"
	"SafeCircle/internal/session"
	"SafeCircle/pkg/errors"

	"github.com/google/uuid"
)

// Persister 会话存储的最小接口
type Persister interface {
	Put(ctx context.Context, key string, v any) error
	Get(ctx context.Context, key string, out any) (bool, error)
}

// Registry 用户编辑的围栏集合，每次修改都写回会话存储
type Registry struct {
	mu     sync.RWMutex
	fences []models.Geofence
	store  Persister
	eval   *Evaluator
}

func NewRegistry(store Persister, eval *Evaluator) *Registry {
	return &Registry{store: store, eval: eval}
}

// Load 从会话存储恢复
func (r *Registry) Load(ctx context.Context) error {
	var fences []models.Geofence
	ok, err := r.store.Get(ctx, session.KeyGeofences, &fences)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	valid := fences[:0]
	for _, f := range fences {
		if f.Validate() == nil {
			valid = append(valid, f)
		}
	}
	r.mu.Lock()
	r.fences = valid
	r.mu.Unlock()
	return nil
}

// Create 在给定中心创建围栏，默认启用
func (r *Registry) Create(ctx context.Context, name string, center models.LatLng, radius float64, kind models.GeofenceKind) (models.Geofence, error) {
	g := models.Geofence{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Center:       center,
		RadiusMeters: radius,
		Kind:         kind,
		Active:       true,
	}
	if err := g.Validate(); err != nil {
		return models.Geofence{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	next := append(r.snapshotLocked(), g)
	if err := r.store.Put(ctx, session.KeyGeofences, next); err != nil {
		return models.Geofence{}, err
	}
	r.fences = next
	return g, nil
}

// Toggle 切换启用状态
func (r *Registry) Toggle(ctx context.Context, id string) (models.Geofence, error) {
	return r.update(ctx, id, func(g *models.Geofence) { g.Active = !g.Active })
}

// SetActive 显式设置启用状态
func (r *Registry) SetActive(ctx context.Context, id string, active bool) (models.Geofence, error) {
	return r.update(ctx, id, func(g *models.Geofence) { g.Active = active })
}

func (r *Registry) update(ctx context.Context, id string, fn func(g *models.Geofence)) (models.Geofence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.snapshotLocked()
	for i := range next {
		if next[i].ID == id {
			fn(&next[i])
			if err := r.store.Put(ctx, session.KeyGeofences, next); err != nil {
				return models.Geofence{}, err
			}
			r.fences = next
			return next[i], nil
		}
	}
	return models.Geofence{}, errors.ErrNotFound.WithContext("geofence", id)
}

// Delete 删除围栏并清理评估状态
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make([]models.Geofence, 0, len(r.fences))
	for _, f := range r.fences {
		if f.ID != id {
			next = append(next, f)
		}
	}
	if len(next) == len(r.fences) {
		return errors.ErrNotFound.WithContext("geofence", id)
	}
	if err := r.store.Put(ctx, session.KeyGeofences, next); err != nil {
		return err
	}
	r.fences = next
	if r.eval != nil {
		r.eval.Forget(id)
	}
	return nil
}

// List 返回副本
func (r *Registry) List() []models.Geofence {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Registry) Get(id string) (models.Geofence, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.fences {
		if f.ID == id {
			return f, true
		}
	}
	return models.Geofence{}, false
}

func (r *Registry) snapshotLocked() []models.Geofence {
	out := make([]models.Geofence, len(r.fences))
	copy(out, r.fences)
	return out
}
