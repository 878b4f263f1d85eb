// Package sanitize strips markup from model output so it can be posted to
// Telegram as plain text.
package sanitize

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict = bluemonday.StrictPolicy()

	blockTags = regexp.MustCompile(`(?i)<br\s*/?>|</?p>|</?div>|</?pre>|</?h[1-6]>|</?li>`)
	emphasis  = regexp.MustCompile(`\*\*|__|~~|` + "`")
	headings  = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	blankRuns = regexp.MustCompile(`\n\s*\n+`)
)

// Text removes HTML tags, markdown emphasis and heading markers, and
// collapses runs of blank lines. Hashtags survive: a heading marker needs a
// space after the #.
func Text(s string) string {
	if s == "" {
		return ""
	}

	s = blockTags.ReplaceAllString(s, "\n")
	s = strict.Sanitize(s)
	s = html.UnescapeString(s)

	s = emphasis.ReplaceAllString(s, "")
	s = headings.ReplaceAllString(s, "")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
