package alerting

import (
	"time"

	"SafeCircle/internal/models"
	"SafeCircle/pkg/i18n"
)

// 非告警类的分享消息
const (
	MsgShareWalk     = "ShareWalk"
	MsgShareJourney  = "ShareJourney"
	MsgShareLocation = "ShareLocation"
)

var kindMessages = map[models.AlertKind]string{
	models.KindSOS:            "AlertSOS",
	models.KindSilent:         "AlertSilent",
	models.KindGroup:          "AlertGroup",
	models.KindPanic:          "AlertPanic",
	models.KindTest:           "AlertTest",
	models.KindJourneyOverdue: "AlertJourneyOverdue",
	models.KindGeofence:       "AlertGeofence",
	models.KindCheckInMissed:  "AlertCheckInMissed",
	models.KindShare:          MsgShareLocation,
}

// MessageID 告警类型对应的模板，未知类型按 SOS 处理
func MessageID(kind models.AlertKind) string {
	if id, ok := kindMessages[kind]; ok {
		return id
	}
	return kindMessages[models.KindSOS]
}

// humanLayout 消息里给人看的时间
const humanLayout = "02 Jan 2006, 3:04 PM"

// Formatter 按语言渲染消息模板
type Formatter struct {
	msgs *i18n.I18nSupport
	lang string
	loc  *time.Location
}

func NewFormatter(msgs *i18n.I18nSupport, lang string, loc *time.Location) *Formatter {
	if msgs == nil {
		msgs, _ = i18n.NewI18nSupport("en")
	}
	if loc == nil {
		loc = time.Local
	}
	if lang == "" {
		lang = "en"
	}
	return &Formatter{msgs: msgs, lang: lang, loc: loc}
}

// Message 告警正文
func (f *Formatter) Message(p models.AlertPayload) string {
	return f.Render(MessageID(p.Kind), p, nil)
}

// Render extra 覆盖默认的模板变量
func (f *Formatter) Render(id string, p models.AlertPayload, extra map[string]interface{}) string {
	data := map[string]interface{}{
		"Name":     p.SenderName,
		"Location": p.LocationText,
		"Time":     f.HumanTime(p.TimestampISO),
		"Detail":   p.Detail,
	}
	for k, v := range extra {
		data[k] = v
	}
	return f.msgs.T(f.lang, id, data)
}

// ForContact 在正文前加上联系人称呼，联系人没有名字时原样返回
func (f *Formatter) ForContact(c models.Contact, body string) string {
	if c.Name == "" {
		return body
	}
	return f.msgs.T(f.lang, "Greeting", map[string]interface{}{"Contact": c.Name}) + "\n\n" + body
}

// Text 提示文本
func (f *Formatter) Text(id string, data map[string]interface{}) string {
	return f.msgs.T(f.lang, id, data)
}

// HumanTime 解析失败时原样返回
func (f *Formatter) HumanTime(iso string) string {
	t, err := time.Parse(isoLayout, iso)
	if err != nil {
		return iso
	}
	return f.FormatTime(t)
}

func (f *Formatter) FormatTime(t time.Time) string {
	return t.In(f.loc).Format(humanLayout)
}
