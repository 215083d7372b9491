// Package models defines data structures for the scraper.
package models

import "time"

// UnknownTitle is recorded when an article page has no level-1 heading.
const UnknownTitle = "未知标题"

// Article is one extracted article page.
type Article struct {
	Title   string `csv:"title" json:"title"`
	URL     string `csv:"url" json:"url"`
	Date    string `csv:"date" json:"date"`
	Content string `csv:"content" json:"content"`
}

// CrawlResult holds the overall result of a crawl.
type CrawlResult struct {
	StartTime    time.Time
	EndTime      time.Time
	PageCount    int
	LinkCount    int
	ArticleCount int
	RequestCount int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
}
