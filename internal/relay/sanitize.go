package relay

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// cleanText strips markup from text the remote relay controls.
func cleanText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	// the strict policy escapes entities; templates escape again on render
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(trimmed)))
}
