package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxTitleLength = 80

// linkSelector covers anchors, image-map areas and <link rel="next|prev">
// pagination hints in the document head
const linkSelector = `a[href], area[href], link[rel~="next"][href], link[rel~="prev"][href]`

// Extraction is what a page contributes to the crawl
type Extraction struct {
	Links []string
	Title string
}

// Extractor turns an HTML body into in-scope, normalized links
type Extractor struct {
	scope *Scope
}

// NewExtractor creates an extractor bound to a crawl scope
func NewExtractor(scope *Scope) *Extractor {
	return &Extractor{scope: scope}
}

// Extract parses body and returns its in-scope links in document order,
// de-duplicated. pageURL resolves relative links unless the document
// declares a <base href>. Bodies that are not HTML yield no links.
func (x *Extractor) Extract(body []byte, contentType, pageURL string) (Extraction, error) {
	if !isHTML(contentType) {
		return Extraction{}, nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return Extraction{}, fmt.Errorf("parse page url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Extraction{}, fmt.Errorf("parse html: %w", err)
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if declared, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = declared
		}
	}

	result := Extraction{
		Title: truncate(strings.Join(strings.Fields(doc.Find("title").First().Text()), " "), maxTitleLength),
	}

	seen := make(map[string]bool)
	doc.Find(linkSelector).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		normalized, err := NormalizeURL(href, base)
		if err != nil {
			return
		}
		if seen[normalized] || !x.scope.Contains(normalized) {
			return
		}
		seen[normalized] = true
		result.Links = append(result.Links, normalized)
	})

	return result, nil
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
