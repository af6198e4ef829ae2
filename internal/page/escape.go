package page

import (
	"fmt"
	"strings"
)

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// EscapeHTML escapes the five markup metacharacters so untrusted text can be
// placed in element content.
func EscapeHTML(s string) string {
	if s == "" {
		return ""
	}
	return htmlReplacer.Replace(s)
}

// RenderNode builds the HTML for a single message node. The timestamp is
// written as-is because it comes from the server.
func RenderNode(sender, body, ts string) string {
	return fmt.Sprintf(`<div class="mb-2"><strong>%s</strong> <small class="text-muted">%s</small><div>%s</div></div>`,
		EscapeHTML(sender), ts, EscapeHTML(body))
}
