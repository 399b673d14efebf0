package email

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// renderTrackedHTML wraps a plain-text message body into a minimal HTML
// document. Links are rewritten through the click redirect and the open
// pixel is appended at the end. The plain-text alternative part stays
// untracked so text-only clients see clean URLs.
func renderTrackedHTML(body, baseURL string, trackingID uuid.UUID) string {
	base := strings.TrimRight(baseURL, "/")

	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><body><div style="font-family:Arial,sans-serif;font-size:14px;line-height:1.5">`)

	last := 0
	for _, loc := range urlPattern.FindAllStringIndex(body, -1) {
		writeText(&b, body[last:loc[0]])
		target := body[loc[0]:loc[1]]
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, html.EscapeString(clickURL(base, trackingID, target)), html.EscapeString(target))
		last = loc[1]
	}
	writeText(&b, body[last:])

	fmt.Fprintf(&b, `<img src="%s/t/o/%s.gif" width="1" height="1" alt="" style="display:none">`, base, trackingID)
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func writeText(b *strings.Builder, text string) {
	escaped := html.EscapeString(text)
	b.WriteString(strings.ReplaceAll(escaped, "\n", "<br>"))
}

func clickURL(base string, trackingID uuid.UUID, target string) string {
	return base + "/t/c/" + trackingID.String() + "?url=" + url.QueryEscape(target)
}
