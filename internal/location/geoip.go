package location

import (
	"context"
	"net"
	"time"

	"SafeCircle/internal/models"
	"SafeCircle/pkg/errors"

	"github.com/oschwald/geoip2-golang"
)

type clientIPKey struct{}

// WithClientIP 把请求方 IP 放进 ctx，GeoIPProvider 据此粗略定位
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// CityLookup geoip2.Reader 的子集，便于替换
type CityLookup interface {
	City(ip net.IP) (*geoip2.City, error)
}

// GeoIPProvider 按 IP 做城市级定位，只作为设备定位失败时的兜底
type GeoIPProvider struct {
	db CityLookup
}

func NewGeoIPProvider(db CityLookup) *GeoIPProvider {
	return &GeoIPProvider{db: db}
}

// OpenGeoIP 打开 GeoLite2-City 数据库
func OpenGeoIP(path string) (*GeoIPProvider, func() error, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return NewGeoIPProvider(reader), reader.Close, nil
}

func (g *GeoIPProvider) CurrentLocation(ctx context.Context, _ bool) (models.LocationFix, error) {
	if g == nil || g.db == nil {
		return models.LocationFix{}, ErrUnsupported
	}
	ip := net.ParseIP(clientIP(ctx))
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() {
		return models.LocationFix{}, ErrUnsupported
	}
	record, err := g.db.City(ip)
	if err != nil {
		return models.LocationFix{}, errors.WrapCode(err, errors.CodeLocationUnavailable, "geoip lookup")
	}
	if record.Location.Latitude == 0 && record.Location.Longitude == 0 {
		return models.LocationFix{}, ErrUnsupported
	}
	return models.LocationFix{
		Latitude:  record.Location.Latitude,
		Longitude: record.Location.Longitude,
		Accuracy:  float64(record.Location.AccuracyRadius) * 1000, // km -> m
		Timestamp: time.Now().UnixMilli(),
	}, nil
}
