package geofence

import (
	"sync"

	"SafeCircle/internal/models"
)

// Transition 一次进入围栏
type Transition struct {
	Fence    models.Geofence
	Fix      models.LocationFix
	Distance float64
}

// Evaluator 记录每个围栏上一次定位时是否在内，只报告 外->内 的跳变。
// 停用的围栏不参与计算，但保留上一次的状态，重新启用时不会误报。
type Evaluator struct {
	mu        sync.Mutex
	wasInside map[string]bool
}

func NewEvaluator() *Evaluator {
	return &Evaluator{wasInside: make(map[string]bool)}
}

// Evaluate 无效定位直接忽略，不改变任何状态
func (e *Evaluator) Evaluate(fix models.LocationFix, fences []models.Geofence) []Transition {
	if !fix.Valid() {
		return nil
	}
	p := fix.LatLng()

	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Transition
	for _, f := range fences {
		if !f.Active {
			continue
		}
		d := Distance(p, f.Center)
		inside := d <= f.RadiusMeters
		if inside && !e.wasInside[f.ID] {
			out = append(out, Transition{Fence: f, Fix: fix, Distance: d})
		}
		e.wasInside[f.ID] = inside
	}
	return out
}

// Inside 上一次定位时是否在围栏内
func (e *Evaluator) Inside(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wasInside[id]
}

// Forget 围栏删除后清理状态
func (e *Evaluator) Forget(id string) {
	e.mu.Lock()
	delete(e.wasInside, id)
	e.mu.Unlock()
}
