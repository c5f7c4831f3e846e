package location

import (
	"context"
	"strings"
	"time"

	"SafeCircle/internal/models"
	"SafeCircle/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecentLimit 界面上展示的历史条数
const RecentLimit = 5

// History 会话数据库里的定位历史与保存的路线
type History struct {
	db *gorm.DB
}

func NewHistory(db *gorm.DB) *History {
	return &History{db: db}
}

// AutoMigrate 建表
func (h *History) AutoMigrate() error {
	return h.db.AutoMigrate(&models.LocationHistoryItem{}, &models.SavedRoute{}, &models.AlertRecord{})
}

// Record 只记录有效定位
func (h *History) Record(ctx context.Context, fix models.LocationFix) error {
	if !fix.Valid() {
		return errors.ErrInvalidInput.WithContext("field", "fix")
	}
	if fix.Timestamp == 0 {
		fix.Timestamp = time.Now().UnixMilli()
	}
	item := models.LocationHistoryItem{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Accuracy:  fix.Accuracy,
		Timestamp: fix.Timestamp,
	}
	return h.db.WithContext(ctx).Create(&item).Error
}

// Recent 最新在前
func (h *History) Recent(ctx context.Context, n int) ([]models.LocationHistoryItem, error) {
	if n <= 0 {
		n = RecentLimit
	}
	var items []models.LocationHistoryItem
	err := h.db.WithContext(ctx).Order("timestamp desc, id desc").Limit(n).Find(&items).Error
	return items, err
}

// All 全部历史，最新在前
func (h *History) All(ctx context.Context) ([]models.LocationHistoryItem, error) {
	var items []models.LocationHistoryItem
	err := h.db.WithContext(ctx).Order("timestamp desc, id desc").Find(&items).Error
	return items, err
}

// SaveRoute 从 origin 到目的地的步行路线
func (h *History) SaveRoute(ctx context.Context, name string, origin models.LatLng, destination string) (models.SavedRoute, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return models.SavedRoute{}, errors.ErrInvalidInput.WithContext("field", "destination")
	}
	if !origin.Valid() {
		return models.SavedRoute{}, errors.ErrInvalidInput.WithContext("field", "origin")
	}
	if strings.TrimSpace(name) == "" {
		name = destination
	}
	r := models.SavedRoute{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		OriginLat:   origin.Lat,
		OriginLng:   origin.Lng,
		Destination: destination,
		URL:         models.RouteURL(origin, destination),
	}
	if err := h.db.WithContext(ctx).Create(&r).Error; err != nil {
		return models.SavedRoute{}, err
	}
	return r, nil
}

func (h *History) Routes(ctx context.Context) ([]models.SavedRoute, error) {
	var routes []models.SavedRoute
	err := h.db.WithContext(ctx).Order("created_at desc").Find(&routes).Error
	return routes, err
}

func (h *History) DeleteRoute(ctx context.Context, id string) error {
	res := h.db.WithContext(ctx).Delete(&models.SavedRoute{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.ErrNotFound.WithContext("route", id)
	}
	return nil
}

// SaveAlert 记录一次告警流程的结果
func (h *History) SaveAlert(ctx context.Context, rec *models.AlertRecord) error {
	return h.db.WithContext(ctx).Create(rec).Error
}

// Alerts 最近的告警记录
func (h *History) Alerts(ctx context.Context, limit int) ([]models.AlertRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []models.AlertRecord
	err := h.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&out).Error
	return out, err
}

// Clear 会话重置时清空
func (h *History) Clear(ctx context.Context) error {
	return h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&models.LocationHistoryItem{}, &models.SavedRoute{}, &models.AlertRecord{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
