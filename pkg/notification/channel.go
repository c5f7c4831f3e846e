package notification

import (
	"fmt"
	"net/url"
	"strings"
)

// Channel 消息意图通道
type Channel string

const (
	ChannelTel      Channel = "tel"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

func ParseChannel(s string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(s))); c {
	case ChannelTel, ChannelSMS, ChannelWhatsApp:
		return c, nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

var phoneStripper = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "\t", "")

// NormalizePhone 去掉空格、横线和括号；没有 + 前缀时补默认国家码
//
//	NormalizePhone("98765 43210", "+91")     == "+919876543210"
//	NormalizePhone("+1-555-123-4567", "+91") == "+15551234567"
func NormalizePhone(raw, countryCode string) string {
	p := phoneStripper.Replace(raw)
	if p == "" || strings.HasPrefix(p, "+") {
		return p
	}
	cc := phoneStripper.Replace(countryCode)
	if cc != "" && !strings.HasPrefix(cc, "+") {
		cc = "+" + cc
	}
	return cc + p
}

// encodeComponent 与浏览器 encodeURIComponent 一致，空格编码为 %20
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// BuildURI 生成系统意图 URI。address 对 sms/whatsapp 应为已规范化的号码
func BuildURI(ch Channel, address, body string) (string, error) {
	if address == "" {
		return "", fmt.Errorf("empty address for %s", ch)
	}
	switch ch {
	case ChannelTel:
		return "tel:" + address, nil
	case ChannelSMS:
		uri := "sms:" + address
		if body != "" {
			uri += "?body=" + encodeComponent(body)
		}
		return uri, nil
	case ChannelWhatsApp:
		uri := "https://wa.me/" + strings.TrimPrefix(address, "+")
		if body != "" {
			uri += "?text=" + encodeComponent(body)
		}
		return uri, nil
	}
	return "", fmt.Errorf("unknown channel %q", ch)
}
