package middleware

import (
	"SafeCircle/pkg/i18n"

	"github.com/gin-gonic/gin"
)

const LangKey = "lang"

// LanguageMiddleware ?lang= 优先，其次 Accept-Language，都无法匹配时使用默认语言
func LanguageMiddleware(i18nSupport *i18n.I18nSupport) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := i18nSupport.Match(c.Query("lang"), c.GetHeader("Accept-Language"))
		c.Set(LangKey, lang)
		c.Header("Content-Language", lang)
		c.Next()
	}
}

// Lang 读取协商结果
func Lang(c *gin.Context) string {
	if v, ok := c.Get(LangKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
