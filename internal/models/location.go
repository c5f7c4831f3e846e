package models

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"
)

// LatLng 经纬度（度）
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid 拒绝 NaN、Inf 和越界坐标
func (p LatLng) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// LocationFix 单次定位结果
type LocationFix struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp int64   `json:"timestamp"` // epoch ms
}

func (f LocationFix) LatLng() LatLng { return LatLng{Lat: f.Latitude, Lng: f.Longitude} }

// Valid 无效定位视为不存在
func (f LocationFix) Valid() bool {
	if !f.LatLng().Valid() {
		return false
	}
	return !math.IsNaN(f.Accuracy) && f.Accuracy >= 0
}

// MapsURL 地图链接
func (f LocationFix) MapsURL() string {
	return MapsURL(f.Latitude, f.Longitude)
}

func MapsURL(lat, lng float64) string {
	return fmt.Sprintf("https://maps.google.com/?q=%s,%s", formatCoord(lat), formatCoord(lng))
}

// RouteURL 步行导航链接
func RouteURL(origin LatLng, destination string) string {
	return fmt.Sprintf("https://www.google.com/maps/dir/?api=1&origin=%s,%s&destination=%s&travelmode=walking",
		formatCoord(origin.Lat), formatCoord(origin.Lng), url.QueryEscape(destination))
}

// formatCoord 最短十进制表示，不使用科学计数法
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// LocationHistoryItem 定位历史
type LocationHistoryItem struct {
	ID        uint    `gorm:"primaryKey" json:"-"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp int64   `gorm:"index" json:"timestamp"`
}

// SavedRoute 保存的路线
type SavedRoute struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:128" json:"name"`
	OriginLat   float64   `json:"originLat"`
	OriginLng   float64   `json:"originLng"`
	Destination string    `gorm:"size:255" json:"destination"`
	URL         string    `gorm:"size:512" json:"url"`
	CreatedAt   time.Time `json:"createdAt"`
}
