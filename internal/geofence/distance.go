package geofence

import (
	"math"

	"SafeCircle/internal/models"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// EarthRadiusMeters 平均地球半径
const EarthRadiusMeters = 6371000.0

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// Distance haversine 大圆距离，单位米
//
//	a = sin²(Δφ/2) + cosφ1·cosφ2·sin²(Δλ/2)
//	c = 2·atan2(√a, √(1−a))
//	d = R·c
func Distance(a, b models.LatLng) float64 {
	phi1 := toRad(a.Lat)
	phi2 := toRad(b.Lat)
	dPhi := toRad(b.Lat - a.Lat)
	dLambda := toRad(b.Lng - a.Lng)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	h := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// Contains 点是否在围栏内（含边界）
func Contains(g models.Geofence, p models.LatLng) bool {
	return Distance(p, g.Center) <= g.RadiusMeters
}

// Bounds 经纬度包围盒，地图渲染用
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// BoundsOf 围栏的外接矩形
func BoundsOf(g models.Geofence) Bounds {
	center := s2.PointFromLatLng(s2.LatLngFromDegrees(g.Center.Lat, g.Center.Lng))
	angle := s1.Angle(g.RadiusMeters / EarthRadiusMeters)
	r := s2.CapFromCenterAngle(center, angle).RectBound()
	return Bounds{
		South: r.Lo().Lat.Degrees(),
		West:  r.Lo().Lng.Degrees(),
		North: r.Hi().Lat.Degrees(),
		East:  r.Hi().Lng.Degrees(),
	}
}
