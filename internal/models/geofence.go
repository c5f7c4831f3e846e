package models

import (
	"strings"

	"SafeCircle/pkg/errors"
)

type GeofenceKind string

const (
	GeofenceSafe  GeofenceKind = "safe"
	GeofenceAlert GeofenceKind = "alert"
)

// Geofence 圆形围栏
type Geofence struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Center       LatLng       `json:"center"`
	RadiusMeters float64      `json:"radiusMeters"`
	Kind         GeofenceKind `json:"kind"`
	Active       bool         `json:"active"`
}

// Validate 在编辑边界拒绝非法输入，评估器不会看到非法围栏
func (g Geofence) Validate() error {
	switch {
	case strings.TrimSpace(g.Name) == "":
		return errors.ErrInvalidGeofence.WithContext("field", "name")
	case !(g.RadiusMeters > 0):
		return errors.ErrInvalidGeofence.WithContext("field", "radius")
	case !g.Center.Valid():
		return errors.ErrInvalidGeofence.WithContext("field", "center")
	case g.Kind != GeofenceSafe && g.Kind != GeofenceAlert:
		return errors.ErrInvalidGeofence.WithContext("field", "type")
	}
	return nil
}
