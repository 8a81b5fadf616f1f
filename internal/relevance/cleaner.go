package relevance

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	urlRe = regexp.MustCompile(`https?://\S+`)
	wsRe  = regexp.MustCompile(`\s+`)
)

// CleanText normalizes raw report text: markup stripped, entities decoded,
// URLs removed, whitespace collapsed.
func CleanText(s string) string {
	s = stripMarkup(s)
	s = urlRe.ReplaceAllString(s, "")
	s = wsRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// stripMarkup extracts the text content of s, dropping tags and decoding
// entities. Plain text passes through with entities decoded.
func stripMarkup(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			name, _ := z.TagName()
			if n := string(name); n == "script" || n == "style" {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if n := string(name); (n == "script" || n == "style") && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.WriteString(z.Token().Data)
				b.WriteByte(' ')
			}
		}
	}
}
