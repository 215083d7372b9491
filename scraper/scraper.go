package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-articles/config"
	"github.com/aluiziolira/go-scrape-articles/parser"
	"github.com/gocolly/colly/v2"
)

const (
	phaseListing = "listing"
	phaseArticle = "article"
)

// Scraper crawls a category listing and the articles it links to. It uses
// one synchronous colly collector per phase so listing and article fetches
// can carry different timeouts.
type Scraper struct {
	cfg      *config.Config
	listing  *colly.Collector
	articles *colly.Collector
	Metrics  *Metrics

	linkPattern *regexp.Regexp
	nextPattern *regexp.Regexp

	requestCount int64
	pageCount    int64
	errorCount   int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	domains, err := allowedDomains(cfg.BaseURL, cfg.StartURL)
	if err != nil {
		return nil, err
	}
	linkPattern, err := cfg.LinkPattern()
	if err != nil {
		return nil, err
	}
	nextPattern, err := cfg.NextPageRegexp()
	if err != nil {
		return nil, err
	}

	s := &Scraper{
		cfg:          cfg,
		Metrics:      NewMetrics(),
		linkPattern:  linkPattern,
		nextPattern:  nextPattern,
		errorsByType: make(map[string]int),
	}
	s.listing = s.newCollector(domains, cfg.ListingTimeout)
	s.articles = s.newCollector(domains, cfg.ArticleTimeout)
	return s, nil
}

// WithTransport replaces the HTTP transport of both collectors.
func (s *Scraper) WithTransport(rt http.RoundTripper) {
	s.listing.WithTransport(rt)
	s.articles.WithTransport(rt)
}

func allowedDomains(rawURLs ...string) ([]string, error) {
	var domains []string
	seen := make(map[string]struct{})
	for _, raw := range rawURLs {
		parsed, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse url %q: %w", raw, err)
		}
		host := parsed.Hostname()
		if host == "" {
			return nil, fmt.Errorf("url %q must include a host", raw)
		}
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		domains = append(domains, host)
	}
	return domains, nil
}

func (s *Scraper) newCollector(domains []string, timeout time.Duration) *colly.Collector {
	collector := colly.NewCollector(
		colly.AllowedDomains(domains...),
		colly.UserAgent(s.cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(timeout)
	collector.IgnoreRobotsTxt = !s.cfg.RespectRobotsTxt
	// Status checks happen in OnResponse: only 4xx and 5xx fail a fetch.
	collector.ParseHTTPErrorResponse = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		s.Metrics.IncRequest(r.Ctx.Get("phase"))
		slog.Debug("request", slog.String("url", r.URL.String()), slog.String("phase", r.Ctx.Get("phase")))
	})

	collector.OnResponse(func(r *colly.Response) {
		if start, ok := r.Ctx.GetAny("start").(time.Time); ok {
			s.Metrics.ObserveDuration(r.Ctx.Get("phase"), time.Since(start))
		}
		if r.StatusCode >= http.StatusBadRequest {
			r.Ctx.Put("status", r.StatusCode)
			return
		}
		r.Ctx.Put("body", r.Body)
	})

	collector.OnError(func(r *colly.Response, _ error) {
		if r != nil && r.Ctx != nil {
			r.Ctx.Put("status", r.StatusCode)
		}
	})

	return collector
}

// fetch issues a GET for pageURL and parses the response body. 4xx and
// 5xx responses and transport failures come back as classified errors.
func (s *Scraper) fetch(ctx context.Context, collector *colly.Collector, phase, pageURL string) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	atomic.AddInt64(&s.requestCount, 1)
	reqCtx := colly.NewContext()
	reqCtx.Put("phase", phase)

	if err := collector.Request(http.MethodGet, pageURL, nil, reqCtx, nil); err != nil {
		status, _ := reqCtx.GetAny("status").(int)
		return nil, fmt.Errorf("fetch %s: %w", pageURL, classifyError(err, status))
	}
	if status, _ := reqCtx.GetAny("status").(int); status != 0 {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, classifyError(nil, status))
	}

	body, _ := reqCtx.GetAny("body").([]byte)
	return parser.ParseHTML(body)
}

// recordFailure counts a failed request against phase.
func (s *Scraper) recordFailure(phase, pageURL string, err error) string {
	atomic.AddInt64(&s.errorCount, 1)
	category := errorTypeLabel(err)

	s.mu.Lock()
	s.errorsByType[category]++
	if pageURL != "" {
		s.failedURLs = append(s.failedURLs, pageURL)
	}
	s.mu.Unlock()

	s.Metrics.IncError(phase, category)
	return category
}

func (s *Scraper) snapshotFailedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	return out
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}

// wait sleeps for d unless ctx is cancelled first.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
