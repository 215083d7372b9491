package parser

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ArticleLinks returns the hrefs on a listing page that contain prefix and
// match pattern, in document order. Duplicates are kept; callers dedupe.
func ArticleLinks(doc *goquery.Document, prefix string, pattern *regexp.Regexp) []string {
	var hrefs []string
	doc.Find(`a[href*="` + prefix + `"]`).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		if pattern.MatchString(href) {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs
}

// NextPageHref finds the first anchor whose text matches pattern and
// returns its href. It reports false when no such anchor exists or the
// anchor has no target.
func NextPageHref(doc *goquery.Document, pattern *regexp.Regexp) (string, bool) {
	next := doc.Find("a").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return pattern.MatchString(strings.TrimSpace(s.Text()))
	}).First()
	if next.Length() == 0 {
		return "", false
	}
	href, _ := next.Attr("href")
	href = strings.TrimSpace(href)
	return href, href != ""
}

// ResolveLink joins origin and a root-relative href. Hrefs that already
// carry a scheme and host are returned unchanged.
func ResolveLink(origin, href string) string {
	if u, err := url.Parse(href); err == nil && u.IsAbs() && u.Host != "" {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return strings.TrimRight(origin, "/") + href
}
