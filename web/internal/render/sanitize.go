package render

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// PlainText reduces a backend-supplied message to plain text before it is
// shown on a page. Markup is dropped rather than escaped.
func PlainText(msg string) string {
	// bluemonday escapes what it keeps; html/template escapes again on output
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(msg)))
}
