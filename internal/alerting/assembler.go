package alerting

import (
	"context"
	"time"

	"SafeCircle/internal/location"
	"SafeCircle/internal/models"
	"SafeCircle/pkg/errors"
	"SafeCircle/pkg/metrics"

	"go.uber.org/zap"
)

// isoLayout 与浏览器 Date.toISOString 一致
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// ProfileStore 告警流程只读取资料
type ProfileStore interface {
	Profile(ctx context.Context) (models.Profile, error)
}

// Request 一次告警的输入
type Request struct {
	Kind   models.AlertKind
	Source models.TriggerSource
	Detail string
	// Group 非空时只发给该分组的联系人
	Group string
}

// Assembly 组装结果。Payload 组装后不再修改
type Assembly struct {
	Payload  models.AlertPayload
	Contacts []models.Contact
	Fix      *models.LocationFix
	// LocationErr 定位失败原因，此时 Payload.LocationText 为 "Location unavailable"
	LocationErr error
}

// Assembler 读取资料与定位，生成告警内容。每次调用都重新定位，不做缓存
type Assembler struct {
	profiles     ProfileStore
	provider     location.Provider
	timeout      time.Duration
	highAccuracy bool
	now          func() time.Time
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

func NewAssembler(profiles ProfileStore, provider location.Provider, timeout time.Duration, highAccuracy bool) *Assembler {
	return &Assembler{
		profiles:     profiles,
		provider:     provider,
		timeout:      timeout,
		highAccuracy: highAccuracy,
		now:          time.Now,
		logger:       zap.NewNop(),
	}
}

// Assemble 先检查联系人再定位：没有联系人时直接返回 ErrNoContacts，不必等定位超时。
// 定位失败不会中止告警。
func (a *Assembler) Assemble(ctx context.Context, req Request) (Assembly, error) {
	profile, err := a.profiles.Profile(ctx)
	if err != nil {
		return Assembly{}, errors.Wrap(err, "load profile")
	}
	contacts := profile.ContactsInGroup(req.Group)
	if len(contacts) == 0 {
		return Assembly{}, errors.ErrNoContacts.WithContext("kind", string(req.Kind))
	}

	out := Assembly{Contacts: contacts}
	locationText := models.LocationUnavailableText
	fix, err := location.Acquire(ctx, a.provider, a.timeout, a.highAccuracy)
	if err != nil {
		out.LocationErr = err
		a.metrics.RecordLocationFix("unavailable")
		a.logger.Warn("location unavailable, alert continues without it",
			zap.String("kind", string(req.Kind)), zap.Error(err))
	} else {
		out.Fix = &fix
		locationText = fix.MapsURL()
		a.metrics.RecordLocationFix("ok")
	}

	out.Payload = models.AlertPayload{
		SenderName:   profile.DisplayName(),
		LocationText: locationText,
		TimestampISO: a.now().UTC().Format(isoLayout),
		Kind:         req.Kind,
		Detail:       req.Detail,
	}
	return out, nil
}
