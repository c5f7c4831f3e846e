package i18n

import (
	"embed"
	"encoding/json"
	"path"

	"SafeCircle/pkg/logger"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var locales embed.FS

// I18nSupport 消息模板与语言协商
type I18nSupport struct {
	bundle      *i18n.Bundle
	defaultLang language.Tag
	matcher     language.Matcher
	tags        []language.Tag
}

// NewI18nSupport 加载内嵌的 locales/*.json
func NewI18nSupport(defaultLang string) (*I18nSupport, error) {
	def, err := language.Parse(defaultLang)
	if err != nil {
		def = language.English
	}
	bundle := i18n.NewBundle(def)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	files, err := locales.ReadDir("locales")
	if err != nil {
		return nil, err
	}
	tags := []language.Tag{def}
	for _, f := range files {
		buf, err := locales.ReadFile(path.Join("locales", f.Name()))
		if err != nil {
			return nil, err
		}
		mf, err := bundle.ParseMessageFileBytes(buf, f.Name())
		if err != nil {
			return nil, err
		}
		if mf.Tag != def {
			tags = append(tags, mf.Tag)
		}
	}

	return &I18nSupport{
		bundle:      bundle,
		defaultLang: def,
		matcher:     language.NewMatcher(tags),
		tags:        tags,
	}, nil
}

// T 翻译 key；目标语言缺少该条目时退回默认语言，都没有时返回 key
func (i *I18nSupport) T(languageTag, key string, templateData map[string]interface{}) string {
	localizer := i18n.NewLocalizer(i.bundle, languageTag, i.defaultLang.String())

	translation, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: templateData,
	})
	if err != nil {
		logger.Warn("translate failed", zap.String("key", key), zap.String("lang", languageTag), zap.Error(err))
		return key
	}
	return translation
}

// TWithDefaultLang 使用默认语言
func (i *I18nSupport) TWithDefaultLang(key string, templateData map[string]interface{}) string {
	return i.T(i.defaultLang.String(), key, templateData)
}

// Match 按 Accept-Language 或 ?lang= 选出支持的语言，无法匹配时返回默认语言
func (i *I18nSupport) Match(prefs ...string) string {
	var wanted []language.Tag
	for _, p := range prefs {
		if p == "" {
			continue
		}
		tags, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		wanted = append(wanted, tags...)
	}
	if len(wanted) == 0 {
		return i.defaultLang.String()
	}
	_, idx, conf := i.matcher.Match(wanted...)
	if conf == language.No {
		return i.defaultLang.String()
	}
	return i.tags[idx].String()
}

// Languages 支持的语言，默认语言在前
func (i *I18nSupport) Languages() []string {
	out := make([]string, len(i.tags))
	for k, t := range i.tags {
		out[k] = t.String()
	}
	return out
}
