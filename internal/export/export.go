// Package export 把位置历史、常用路线和围栏打包成一个 JSON 文件，可选归档到对象存储。
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SafeCircle/internal/models"
	"SafeCircle/pkg/errors"
	"SafeCircle/pkg/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const contentType = "application/json"

// HistorySource location.History 的子集
type HistorySource interface {
	All(ctx context.Context) ([]models.LocationHistoryItem, error)
	Routes(ctx context.Context) ([]models.SavedRoute, error)
}

// FenceSource 围栏快照
type FenceSource interface {
	Geofences() []models.Geofence
}

// Archive 归档结果
type Archive struct {
	Key      string `json:"key"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
}

type Exporter struct {
	history HistorySource
	fences  FenceSource
	store   storage.Store
	now     func() time.Time
	logger  *zap.Logger
}

func New(history HistorySource, fences FenceSource, store storage.Store, lg *zap.Logger) *Exporter {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Exporter{history: history, fences: fences, store: store, now: time.Now, logger: lg.Named("export")}
}

// Bundle 没有历史库时对应字段为空数组
func (x *Exporter) Bundle(ctx context.Context) (models.ExportBundle, error) {
	b := models.ExportBundle{
		LocationHistory: []models.LocationHistoryItem{},
		SavedRoutes:     []models.SavedRoute{},
		Geofences:       []models.Geofence{},
		ExportDate:      x.now().UTC().Format(time.RFC3339),
	}
	if x.history != nil {
		items, err := x.history.All(ctx)
		if err != nil {
			return b, errors.Wrap(err, "load location history")
		}
		routes, err := x.history.Routes(ctx)
		if err != nil {
			return b, errors.Wrap(err, "load saved routes")
		}
		if items != nil {
			b.LocationHistory = items
		}
		if routes != nil {
			b.SavedRoutes = routes
		}
	}
	if x.fences != nil {
		if fences := x.fences.Geofences(); fences != nil {
			b.Geofences = fences
		}
	}
	return b, nil
}

// Filename 下载时的文件名
func (x *Exporter) Filename() string {
	return fmt.Sprintf("safecircle-export-%s.json", x.now().Format("2006-01-02"))
}

// Encode 缩进两格，和浏览器端导出一致
func Encode(b models.ExportBundle) ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}

// Save 生成并写入对象存储
func (x *Exporter) Save(ctx context.Context) (Archive, error) {
	if x.store == nil {
		return Archive{}, errors.ErrPlatformUnsupported.WithContext("feature", "export archive")
	}
	bundle, err := x.Bundle(ctx)
	if err != nil {
		return Archive{}, err
	}
	body, err := Encode(bundle)
	if err != nil {
		return Archive{}, errors.Wrap(err, "encode export")
	}
	key := fmt.Sprintf("exports/%s/%s.json", x.now().Format("2006/01/02"), uuid.NewString())
	if err := x.store.Write(ctx, key, bytes.NewReader(body), int64(len(body)), contentType); err != nil {
		return Archive{}, errors.Wrap(err, "write export archive")
	}
	x.logger.Info("export archived",
		zap.String("key", key),
		zap.Int("history", len(bundle.LocationHistory)),
		zap.Int("routes", len(bundle.SavedRoutes)),
		zap.Int("geofences", len(bundle.Geofences)))
	return Archive{Key: key, Filename: x.Filename(), URL: x.store.PublicURL(key), Size: int64(len(body))}, nil
}
