// Package theme carries the light/dark preference of a visitor. The mode
// travels with each request in a cookie and is handed to templates
// explicitly.
package theme

import (
	"net/http"
)

// Mode is a colour scheme.
type Mode string

const (
	Dark  Mode = "dark"
	Light Mode = "light"

	// CookieName stores the visitor's choice.
	CookieName = "theme"

	cookieMaxAge = 365 * 24 * 60 * 60
)

// Default is used when the visitor never picked a mode.
const Default = Dark

// Parse returns the mode named by s, or Default.
func Parse(s string) Mode {
	switch Mode(s) {
	case Dark, Light:
		return Mode(s)
	default:
		return Default
	}
}

// FromRequest reads the visitor's mode.
func FromRequest(r *http.Request) Mode {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return Default
	}
	return Parse(c.Value)
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == Dark {
		return Light
	}
	return Dark
}

// IsDark is used by templates to pick classes and icons.
func (m Mode) IsDark() bool { return m == Dark }

// Cookie returns the cookie that persists m.
func (m Mode) Cookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    string(m),
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
