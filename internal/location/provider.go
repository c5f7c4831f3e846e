package location

import (
	"context"
	"fmt"
	"time"

	"SafeCircle/internal/models"
	"SafeCircle/pkg/errors"
)

// 定位失败原因，都属于 LocationUnavailable，告警流程会降级而不是中止
var (
	ErrUnsupported = errors.WithCode(errors.CodeLocationUnavailable, "location unsupported")
	ErrTimeout     = errors.WithCode(errors.CodeLocationUnavailable, "location timeout")
	ErrDenied      = errors.WithCode(errors.CodeLocationUnavailable, "location permission denied")
)

// Provider 单次定位
type Provider interface {
	CurrentLocation(ctx context.Context, highAccuracy bool) (models.LocationFix, error)
}

// ProviderFunc 函数适配
type ProviderFunc func(ctx context.Context, highAccuracy bool) (models.LocationFix, error)

func (f ProviderFunc) CurrentLocation(ctx context.Context, highAccuracy bool) (models.LocationFix, error) {
	return f(ctx, highAccuracy)
}

// Static 固定位置，drill 命令与测试使用
type Static models.LocationFix

func (s Static) CurrentLocation(context.Context, bool) (models.LocationFix, error) {
	fix := models.LocationFix(s)
	if fix.Timestamp == 0 {
		fix.Timestamp = time.Now().UnixMilli()
	}
	return fix, nil
}

// Unsupported 平台不支持定位
type Unsupported struct{}

func (Unsupported) CurrentLocation(context.Context, bool) (models.LocationFix, error) {
	return models.LocationFix{}, ErrUnsupported
}

// Chain 依次尝试，返回第一个有效定位
type Chain []Provider

func (c Chain) CurrentLocation(ctx context.Context, highAccuracy bool) (models.LocationFix, error) {
	var lastErr error = ErrUnsupported
	for _, p := range c {
		if p == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return models.LocationFix{}, ErrTimeout
		}
		fix, err := Acquire(ctx, p, 0, highAccuracy)
		if err == nil {
			return fix, nil
		}
		lastErr = err
	}
	return models.LocationFix{}, lastErr
}

// Acquire 带超时地获取一次定位。timeout<=0 时只受 ctx 约束。
// Provider 的 panic 与无效坐标都会转成错误返回，不会向上传播。
func Acquire(ctx context.Context, p Provider, timeout time.Duration, highAccuracy bool) (models.LocationFix, error) {
	if p == nil {
		return models.LocationFix{}, ErrUnsupported
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		fix models.LocationFix
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: errors.WithCodef(errors.CodeLocationUnavailable, "location provider panic: %v", r)}
			}
		}()
		fix, err := p.CurrentLocation(ctx, highAccuracy)
		ch <- result{fix: fix, err: err}
	}()

	select {
	case <-ctx.Done():
		return models.LocationFix{}, ErrTimeout
	case r := <-ch:
		if r.err != nil {
			if errors.GetCode(r.err) == 0 {
				return models.LocationFix{}, errors.WrapCode(r.err, errors.CodeLocationUnavailable, "location")
			}
			return models.LocationFix{}, r.err
		}
		if !r.fix.Valid() {
			return models.LocationFix{}, errors.WithCode(errors.CodeLocationUnavailable,
				fmt.Sprintf("invalid fix %v,%v", r.fix.Latitude, r.fix.Longitude))
		}
		return r.fix, nil
	}
}
