// internal/oracle/payload.go
package oracle

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// DefaultPayloadLimit caps the markup sent to the planner. Listing pages run
// to megabytes; the plan only needs structure.
const DefaultPayloadLimit = 60_000

// SimplifyHTML strips a page down to what a planner needs to write selectors:
// structure, text, and the selector-bearing attributes. Scripts, styles, and
// presentation attributes go.
func SimplifyHTML(markup string, limit int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, link, meta, noscript, iframe, svg, canvas, video, audio, picture > source").Remove()

	doc.Find("*").Each(func(i int, s *goquery.Selection) {
		if len(s.Nodes) == 0 {
			return
		}
		node := s.Nodes[0]
		var newAttrs []html.Attribute
		for _, attr := range node.Attr {
			if keepAttr(node.Data, attr.Key) {
				newAttrs = append(newAttrs, attr)
			}
		}
		node.Attr = newAttrs
	})

	htmlStr, err := doc.Html()
	if err != nil {
		return "", err
	}

	htmlStr = strings.TrimSpace(htmlStr)
	if limit <= 0 {
		limit = DefaultPayloadLimit
	}
	return Truncate(htmlStr, limit), nil
}

// keepAttr keeps the attributes selectors are written against. class, id, and
// data-* survive on everything; links and images keep their targets.
func keepAttr(tag, key string) bool {
	switch key {
	case "class", "id":
		return true
	}
	if strings.HasPrefix(key, "data-") {
		return true
	}
	switch tag {
	case "a":
		return key == "href" || key == "title"
	case "img":
		return key == "src" || key == "alt"
	case "input":
		return key == "type" || key == "name" || key == "placeholder"
	}
	return false
}

// ToMarkdown renders page markup as GitHub-flavored markdown, the form the
// parser reads detail pages in.
func ToMarkdown(markup string, limit int) (string, error) {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	out, err := converter.ConvertString(markup)
	if err != nil {
		return "", err
	}
	if limit <= 0 {
		limit = DefaultPayloadLimit
	}
	return Truncate(strings.TrimSpace(out), limit), nil
}

// Truncate cuts s at limit bytes on a rune boundary, marking the cut.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n<!-- truncated -->"
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
