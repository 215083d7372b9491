package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL          string
	StartURL         string
	LinkPrefix       string
	LinkSuffix       string
	NextPagePattern  string
	MaxPages         int // 0 follows pagination until it ends
	PageDelay        time.Duration
	ArticleDelay     time.Duration
	ListingTimeout   time.Duration // 0 waits indefinitely
	ArticleTimeout   time.Duration
	OutputFile       string
	OutputFormat     string // csv, json, or dual
	UserAgent        string
	Verbose          bool
	RespectRobotsTxt bool
	MetricsAddr      string

	PipelineBufferSize int
	BatchSize          int
}

// DefaultConfig returns the settings of the trading-ideas category crawl.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "https://www.ouchyi.support",
		StartURL:           "https://www.ouchyi.support/zh-hans/learn/category/trading-ideas",
		LinkPrefix:         "/zh-hans/learn/",
		LinkSuffix:         "-cn",
		NextPagePattern:    "下一页|Next",
		MaxPages:           0,
		PageDelay:          time.Second,
		ArticleDelay:       time.Second,
		ListingTimeout:     0,
		ArticleTimeout:     15 * time.Second,
		OutputFile:         "ouchyi_all_articles.json",
		OutputFormat:       "json",
		UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
		Verbose:            false,
		RespectRobotsTxt:   false,
		MetricsAddr:        "",
		PipelineBufferSize: 64,
		BatchSize:          16,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.StartURL == "" {
		return fmt.Errorf("start URL cannot be empty")
	}
	startURL, err := url.Parse(c.StartURL)
	if err != nil {
		return fmt.Errorf("invalid start URL: %w", err)
	}
	if startURL.Host == "" {
		return fmt.Errorf("start URL must include a host")
	}

	if c.LinkPrefix == "" {
		return fmt.Errorf("link prefix cannot be empty")
	}
	if _, err := c.LinkPattern(); err != nil {
		return err
	}
	if _, err := c.NextPageRegexp(); err != nil {
		return err
	}

	if c.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative")
	}
	if c.PageDelay < 0 {
		return fmt.Errorf("page delay cannot be negative")
	}
	if c.ArticleDelay < 0 {
		return fmt.Errorf("article delay cannot be negative")
	}
	if c.ListingTimeout < 0 {
		return fmt.Errorf("listing timeout cannot be negative")
	}
	if c.ArticleTimeout <= 0 {
		return fmt.Errorf("article timeout must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	return nil
}

// LinkPattern compiles the article link filter: the link prefix, a single
// non-slash slug, and the link suffix at the end of the path.
func (c *Config) LinkPattern() (*regexp.Regexp, error) {
	expr := regexp.QuoteMeta(c.LinkPrefix) + `[^/]+` + regexp.QuoteMeta(c.LinkSuffix) + `$`
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile link pattern: %w", err)
	}
	return re, nil
}

// NextPageRegexp compiles the pattern matched against pagination link text.
func (c *Config) NextPageRegexp() (*regexp.Regexp, error) {
	if strings.TrimSpace(c.NextPagePattern) == "" {
		return nil, fmt.Errorf("next page pattern cannot be empty")
	}
	re, err := regexp.Compile(c.NextPagePattern)
	if err != nil {
		return nil, fmt.Errorf("compile next page pattern: %w", err)
	}
	return re, nil
}

// Origin returns the base URL without a trailing slash, ready for
// concatenation with root-relative paths.
func (c *Config) Origin() string {
	return strings.TrimRight(c.BaseURL, "/")
}
