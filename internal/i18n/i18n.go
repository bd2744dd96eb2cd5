package i18n

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

const (
	LocaleZhCN = "zh-CN"
	LocaleEnUS = "en-US"
	// DefaultLocale 无法识别语言时的回退
	DefaultLocale = LocaleZhCN
)

var (
	supportedLocales = []string{LocaleZhCN, LocaleEnUS}
	matcher          = language.NewMatcher([]language.Tag{
		language.SimplifiedChinese,
		language.AmericanEnglish,
	})
)

// ResolveLocale 依次读取 lang 参数、X-Locale 头与 Accept-Language
func ResolveLocale(c *gin.Context) string {
	if c == nil || c.Request == nil {
		return DefaultLocale
	}
	if locale, ok := NormalizeLocale(c.Query("lang")); ok {
		return locale
	}
	if locale, ok := NormalizeLocale(c.GetHeader("X-Locale")); ok {
		return locale
	}
	accept := strings.TrimSpace(c.GetHeader("Accept-Language"))
	if accept == "" {
		return DefaultLocale
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return DefaultLocale
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return DefaultLocale
	}
	return supportedLocales[index]
}

// NormalizeLocale 把 zh、en_us 之类的写法归一到支持的语言
func NormalizeLocale(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	tag, err := language.Parse(strings.ReplaceAll(raw, "_", "-"))
	if err != nil {
		return "", false
	}
	_, index, confidence := matcher.Match(tag)
	if confidence == language.No {
		return "", false
	}
	return supportedLocales[index], true
}

// T 取翻译文本，缺失时回退默认语言，再回退 key 本身
func T(locale, key string) string {
	if msgs, ok := catalog[locale]; ok {
		if msg, ok := msgs[key]; ok {
			return msg
		}
	}
	if msg, ok := catalog[DefaultLocale][key]; ok {
		return msg
	}
	return key
}

// Sprintf 按翻译模板格式化
func Sprintf(locale, key string, args ...interface{}) string {
	return fmt.Sprintf(T(locale, key), args...)
}
