package config

const (
	HCType        = "Content-Type"
	HETag         = "ETag"
	HCacheControl = "Cache-Control"

	HHxRedirect = "Hx-Redirect"
	HHxTrigger  = "Hx-Trigger"
	HHxRequest  = "Hx-Request"

	CTypeCSS  = "text/css"
	CTypeHTML = "text/html"
	CTypeJSON = "application/json"
)

const (
	HTTPErrMethodNotAllowed = "Method not allowed"
)

const (
	CookieTheme     = "theme"
	CookieDraftID   = "draft-id"
	CookieSession   = "wizard-session"
	CookieAuthToken = "auth_token"
)
