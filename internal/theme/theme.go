// Package theme handles light and dark theme selection via cookies.
package theme

import (
	"net/http"

	"github.com/evermore-app/evermore/internal/config"
)

func GetThemeFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(config.CookieTheme); err == nil {
		return cookie.Value
	}
	if config.AppConfig != nil && config.AppConfig.Theme.Default == "dark" {
		return config.DarkTheme
	}
	return config.LightTheme
}

// Opposite returns the other theme, used by the toggle endpoint.
func Opposite(theme string) string {
	if theme == config.LightTheme {
		return config.DarkTheme
	}
	return config.LightTheme
}

// GetThemeIcon returns the icon for switching away from the given theme.
func GetThemeIcon(theme string) string {
	if theme == config.LightTheme {
		return config.DarkThemeIcon
	}
	return config.LightThemeIcon
}

// SetThemeCookie persists the visitor's choice for a year.
func SetThemeCookie(w http.ResponseWriter, theme string) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieTheme,
		Value:    theme,
		Path:     "/",
		MaxAge:   60 * 60 * 24 * 365,
		SameSite: http.SameSiteLaxMode,
	})
}
