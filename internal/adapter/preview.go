package adapter

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText flattens greeting HTML into one line per paragraph for logs
// and dry runs. Unparseable input is returned unchanged.
func PlainText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	var lines []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			lines = append(lines, text)
		}
	})
	return strings.Join(lines, "\n")
}
