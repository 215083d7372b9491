package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-articles/models"
	"github.com/aluiziolira/go-scrape-articles/parser"
	"github.com/aluiziolira/go-scrape-articles/pipeline"
)

// ParseArticle fetches one article page and extracts its record.
func (s *Scraper) ParseArticle(ctx context.Context, articleURL string) (*models.Article, error) {
	slog.Debug("fetching article", slog.String("url", articleURL))
	doc, err := s.fetch(ctx, s.articles, phaseArticle, articleURL)
	if err != nil {
		return nil, err
	}
	return parser.ParseArticle(doc, articleURL), nil
}

// ScrapeArticles visits every URL in links, one at a time, and streams the
// extracted records through p. A failed article is logged and skipped.
// Cancelling ctx stops the loop early; the records already sent to p are
// kept and no error is returned.
func (s *Scraper) ScrapeArticles(ctx context.Context, links *LinkSet, p *pipeline.Pipeline) (*models.CrawlResult, error) {
	start := time.Now()
	urls := links.URLs()
	scraped := 0

	for i, articleURL := range urls {
		if ctx.Err() != nil {
			slog.Warn("crawl interrupted", slog.Int("remaining", len(urls)-i))
			break
		}

		article, err := s.ParseArticle(ctx, articleURL)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			category := s.recordFailure(phaseArticle, articleURL, err)
			slog.Error("article failed, skipping",
				slog.String("url", articleURL),
				slog.String("category", category),
				slog.Any("error", err),
			)
			continue
		}

		if err := p.Process(article); err != nil {
			if ctx.Err() != nil {
				slog.Warn("crawl interrupted", slog.Int("remaining", len(urls)-i))
				break
			}
			return nil, fmt.Errorf("process %s: %w", articleURL, err)
		}
		scraped++
		s.Metrics.IncArticles()
		slog.Info("article scraped",
			slog.Int("index", i+1),
			slog.Int("total", len(urls)),
			slog.String("title", article.Title),
		)

		if err := wait(ctx, s.cfg.ArticleDelay); err != nil {
			slog.Warn("crawl interrupted", slog.Int("remaining", len(urls)-i-1))
			break
		}
	}

	return &models.CrawlResult{
		StartTime:    start,
		EndTime:      time.Now(),
		PageCount:    int(atomic.LoadInt64(&s.pageCount)),
		LinkCount:    links.Len(),
		ArticleCount: scraped,
		RequestCount: int(atomic.LoadInt64(&s.requestCount)),
		ErrorCount:   int(atomic.LoadInt64(&s.errorCount)),
		FailedURLs:   s.snapshotFailedURLs(),
		ErrorsByType: s.snapshotErrors(),
	}, nil
}

// Run collects the listing links and then scrapes every article into p.
// A failure while collecting links aborts the run before any article is
// fetched.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline) (*models.CrawlResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	links, err := s.CollectLinks(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.ScrapeArticles(ctx, links, p)
	if err != nil {
		return nil, err
	}
	result.StartTime = start
	return result, nil
}
