// Package parser turns fetched HTML documents into article records and
// listing links. Everything here is pure: no I/O beyond reading the
// document already in memory.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-articles/models"
	"golang.org/x/net/html"
)

// PublishedTimeProperty is the meta property consulted when a page has no
// <time> element.
const PublishedTimeProperty = "article:published_time"

// Strategy extracts a single value from a document. It reports false when
// the document does not carry the value in the shape it looks for.
type Strategy func(doc *goquery.Document) (string, bool)

// ContainerLocator finds the element holding an article body.
type ContainerLocator func(doc *goquery.Document) (*goquery.Selection, bool)

var contentClassPattern = regexp.MustCompile(`(article-content|learn-article|content-body)`)

// TitleStrategies are tried in order; models.UnknownTitle is used when all fail.
var TitleStrategies = []Strategy{
	firstHeading,
}

// DateStrategies are tried in order; the date is left empty when all fail.
var DateStrategies = []Strategy{
	firstTimeText,
	publishedTimeMeta,
}

// ContentContainers are tried in order. When none matches, every paragraph
// of the document is used.
var ContentContainers = []ContainerLocator{
	articleElement,
	contentClassDiv,
}

// ParseHTML builds a goquery document from a response body.
func ParseHTML(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ParseArticle extracts the article record for pageURL from doc.
func ParseArticle(doc *goquery.Document, pageURL string) *models.Article {
	title, ok := firstOf(doc, TitleStrategies)
	if !ok {
		title = models.UnknownTitle
	}
	date, _ := firstOf(doc, DateStrategies)

	return &models.Article{
		Title:   title,
		URL:     pageURL,
		Date:    date,
		Content: strings.Join(ContentBlocks(doc), "\n"),
	}
}

// ContentBlocks returns the trimmed, non-empty text of the paragraphs and
// list items inside the first matching content container, in document
// order. Without a container it falls back to every <p> in the document.
func ContentBlocks(doc *goquery.Document) []string {
	for _, locate := range ContentContainers {
		if container, ok := locate(doc); ok {
			return textBlocks(container.Find("p, li"))
		}
	}
	return textBlocks(doc.Find("p"))
}

func firstOf(doc *goquery.Document, strategies []Strategy) (string, bool) {
	for _, strategy := range strategies {
		if value, ok := strategy(doc); ok {
			return value, true
		}
	}
	return "", false
}

// firstHeading hits whenever an <h1> exists, even an empty one.
func firstHeading(doc *goquery.Document) (string, bool) {
	return elementText(doc.Find("h1").First())
}

// firstTimeText hits whenever a <time> exists; its text may be empty.
func firstTimeText(doc *goquery.Document) (string, bool) {
	return elementText(doc.Find("time").First())
}

func publishedTimeMeta(doc *goquery.Document) (string, bool) {
	content, exists := doc.Find(`meta[property="` + PublishedTimeProperty + `"]`).First().Attr("content")
	if !exists || content == "" {
		return "", false
	}
	return content, true
}

func articleElement(doc *goquery.Document) (*goquery.Selection, bool) {
	sel := doc.Find("article").First()
	return sel, sel.Length() > 0
}

func contentClassDiv(doc *goquery.Document) (*goquery.Selection, bool) {
	sel := doc.Find("div[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return contentClassPattern.MatchString(class)
	}).First()
	return sel, sel.Length() > 0
}

func elementText(sel *goquery.Selection) (string, bool) {
	if sel.Length() == 0 {
		return "", false
	}
	return StrippedText(sel), true
}

func textBlocks(sel *goquery.Selection) []string {
	blocks := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		if text := StrippedText(s); text != "" {
			blocks = append(blocks, text)
		}
	})
	return blocks
}

// StrippedText trims every text node under sel and concatenates the
// pieces with no separator, so source indentation and line breaks inside
// a block never reach the output.
func StrippedText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		appendStripped(&b, n)
	}
	return b.String()
}

func appendStripped(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(strings.TrimSpace(n.Data))
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendStripped(b, c)
	}
}
