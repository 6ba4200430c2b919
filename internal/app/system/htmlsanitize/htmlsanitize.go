// internal/app/system/htmlsanitize/htmlsanitize.go

// Package htmlsanitize scrubs markup out of untrusted strings. Uploaded CSV
// cells flow into job payloads and the job-history view, so every cell is
// reduced to plain text before it is stored or echoed back.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Plain strips all HTML from s and decodes entities, returning plain text.
func Plain(s string) string {
	return html.UnescapeString(strict.Sanitize(s))
}

// Cell sanitizes one CSV cell value: markup removed, surrounding whitespace
// trimmed.
func Cell(s string) string {
	return strings.TrimSpace(Plain(s))
}
