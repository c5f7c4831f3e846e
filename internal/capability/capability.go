// Package capability 探测当前客户端能用哪些功能，缺失的功能隐藏而不是报错。
package capability

import (
	"sort"
	"strings"

	"SafeCircle/pkg/errors"

	"github.com/mssola/user_agent"
)

type Feature string

const (
	FeatureShake       Feature = "shake"            // DeviceMotion
	FeatureButtons     Feature = "hardware_buttons" // 媒体键插件
	FeatureGeolocation Feature = "geolocation"
	FeatureIntents     Feature = "intents" // tel: / sms: / wa.me
	FeatureVibration   Feature = "vibration"
	FeatureRecording   Feature = "recording"
)

var allFeatures = []Feature{FeatureShake, FeatureButtons, FeatureGeolocation, FeatureIntents, FeatureVibration, FeatureRecording}

// Report 一次探测的结果
type Report struct {
	Platform        string           `json:"platform"`
	OS              string           `json:"os"`
	Browser         string           `json:"browser"`
	Mobile          bool             `json:"mobile"`
	DeviceConnected bool             `json:"deviceConnected"`
	Features        map[Feature]bool `json:"features"`
}

// FromUserAgent 只凭 UA 做粗略判断；移动端浏览器默认有运动传感器与震动
func FromUserAgent(ua string) Report {
	parsed := user_agent.New(ua)
	name, version := parsed.Browser()
	r := Report{
		Platform: parsed.Platform(),
		OS:       parsed.OS(),
		Browser:  strings.TrimSpace(name + " " + version),
		Mobile:   parsed.Mobile(),
		Features: make(map[Feature]bool, len(allFeatures)),
	}
	r.Features[FeatureGeolocation] = !parsed.Bot()
	r.Features[FeatureShake] = r.Mobile
	// iOS Safari 没有 Vibration API
	r.Features[FeatureVibration] = r.Mobile && !strings.Contains(strings.ToLower(r.OS), "iphone") && !strings.Contains(strings.ToLower(r.Platform), "iphone")
	r.Features[FeatureIntents] = r.Mobile
	r.Features[FeatureRecording] = !parsed.Bot()
	r.Features[FeatureButtons] = false
	return r
}

// Merge 用设备通道 hello 上报的能力覆盖 UA 推断
func (r Report) Merge(caps map[string]interface{}) Report {
	out := r
	out.Features = make(map[Feature]bool, len(allFeatures))
	for k, v := range r.Features {
		out.Features[k] = v
	}
	if caps == nil {
		return out
	}
	out.DeviceConnected = true
	for _, f := range allFeatures {
		if v, ok := caps[string(f)]; ok {
			if b, ok := v.(bool); ok {
				out.Features[f] = b
			}
		}
	}
	// 连着设备通道就能让设备代为打开意图
	if _, ok := caps[string(FeatureIntents)]; !ok {
		out.Features[FeatureIntents] = true
	}
	return out
}

func (r Report) Supports(f Feature) bool { return r.Features[f] }

// Require 不支持时返回 PlatformUnsupported
func (r Report) Require(f Feature) error {
	if r.Supports(f) {
		return nil
	}
	return errors.ErrPlatformUnsupported.WithContext("feature", string(f))
}

// Hidden UI 需要隐藏的功能，按名称排序
func (r Report) Hidden() []Feature {
	var out []Feature
	for _, f := range allFeatures {
		if !r.Features[f] {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DeviceCaps websocket.Hub 的子集
type DeviceCaps interface {
	Capabilities(deviceID string) (map[string]interface{}, bool)
}

// Prober 合并 UA 与在线设备的能力
type Prober struct {
	devices DeviceCaps
}

func NewProber(devices DeviceCaps) *Prober {
	return &Prober{devices: devices}
}

func (p *Prober) Probe(ua, deviceID string) Report {
	r := FromUserAgent(ua)
	if p == nil || p.devices == nil {
		return r.Merge(nil)
	}
	caps, ok := p.devices.Capabilities(deviceID)
	if !ok {
		return r.Merge(nil)
	}
	return r.Merge(caps)
}
