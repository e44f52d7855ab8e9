package theme

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/evermore-app/evermore/internal/config"
)

func TestGetThemeFromRequest(t *testing.T) {
	t.Run("cookie wins", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: config.CookieTheme, Value: config.DarkTheme})

		if got := GetThemeFromRequest(r); got != config.DarkTheme {
			t.Errorf("Expected dark theme from cookie, got %q", got)
		}
	})

	t.Run("falls back to configured default", func(t *testing.T) {
		original := config.AppConfig
		defer func() { config.AppConfig = original }()

		config.AppConfig = &config.Config{}
		config.ApplyDefaults(config.AppConfig)
		config.AppConfig.Theme.Default = "dark"

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if got := GetThemeFromRequest(r); got != config.DarkTheme {
			t.Errorf("Expected configured dark default, got %q", got)
		}
	})

	t.Run("light without config", func(t *testing.T) {
		original := config.AppConfig
		defer func() { config.AppConfig = original }()
		config.AppConfig = nil

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if got := GetThemeFromRequest(r); got != config.LightTheme {
			t.Errorf("Expected light theme fallback, got %q", got)
		}
	})
}

func TestOpposite(t *testing.T) {
	if Opposite(config.LightTheme) != config.DarkTheme {
		t.Error("Expected opposite of light to be dark")
	}
	if Opposite(config.DarkTheme) != config.LightTheme {
		t.Error("Expected opposite of dark to be light")
	}
}

func TestGetThemeIcon(t *testing.T) {
	if icon := GetThemeIcon(config.LightTheme); !strings.Contains(icon, "moon") {
		t.Errorf("Expected moon icon when on light theme, got %q", icon)
	}
	if icon := GetThemeIcon(config.DarkTheme); !strings.Contains(icon, "sun") {
		t.Errorf("Expected sun icon when on dark theme, got %q", icon)
	}
}

func TestSetThemeCookie(t *testing.T) {
	w := httptest.NewRecorder()
	SetThemeCookie(w, config.DarkTheme)

	res := w.Result()
	defer res.Body.Close()

	cookies := res.Cookies()
	if len(cookies) != 1 {
		t.Fatalf("Expected one cookie, got %d", len(cookies))
	}
	if cookies[0].Name != config.CookieTheme || cookies[0].Value != config.DarkTheme {
		t.Errorf("Unexpected cookie %s=%s", cookies[0].Name, cookies[0].Value)
	}
	if cookies[0].Path != "/" {
		t.Errorf("Expected cookie path '/', got %q", cookies[0].Path)
	}
}
