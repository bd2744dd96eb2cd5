package i18n

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestNormalizeLocale(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "zh", want: LocaleZhCN, ok: true},
		{in: "zh_CN", want: LocaleZhCN, ok: true},
		{in: "en", want: LocaleEnUS, ok: true},
		{in: "en-GB", want: LocaleEnUS, ok: true},
		{in: "", ok: false},
		{in: "!!", ok: false},
	}
	for _, item := range cases {
		got, ok := NormalizeLocale(item.in)
		if ok != item.ok || got != item.want {
			t.Fatalf("normalize %q want (%q,%v) got (%q,%v)", item.in, item.want, item.ok, got, ok)
		}
	}
}

func TestResolveLocalePriority(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?lang=en", nil)
	c.Request.Header.Set("X-Locale", "zh-CN")
	if got := ResolveLocale(c); got != LocaleEnUS {
		t.Fatalf("query lang must win, got %s", got)
	}

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	c.Request.Header.Set("Accept-Language", "en-US,en;q=0.9,zh;q=0.5")
	if got := ResolveLocale(c); got != LocaleEnUS {
		t.Fatalf("accept-language want en-US got %s", got)
	}

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	if got := ResolveLocale(c); got != DefaultLocale {
		t.Fatalf("default locale want %s got %s", DefaultLocale, got)
	}
}

func TestTranslateFallback(t *testing.T) {
	if got := T(LocaleEnUS, "error.package_not_found"); got != "Package not found" {
		t.Fatalf("unexpected translation %q", got)
	}
	if got := T("fr-FR", "error.package_not_found"); got != catalog[DefaultLocale]["error.package_not_found"] {
		t.Fatalf("unknown locale must fall back to default, got %q", got)
	}
	if got := T(LocaleEnUS, "error.no_such_key"); got != "error.no_such_key" {
		t.Fatalf("missing key must echo key, got %q", got)
	}
	if got := Sprintf(LocaleEnUS, "error.insufficient_balance", "500"); got != "Insufficient balance, 500 JPY short" {
		t.Fatalf("unexpected formatted message %q", got)
	}
}

func TestCatalogLocalesShareKeys(t *testing.T) {
	for key := range catalog[LocaleZhCN] {
		if _, ok := catalog[LocaleEnUS][key]; !ok {
			t.Fatalf("en-US missing key %s", key)
		}
	}
	for key := range catalog[LocaleEnUS] {
		if _, ok := catalog[LocaleZhCN][key]; !ok {
			t.Fatalf("zh-CN missing key %s", key)
		}
	}
}
