package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-articles/config"
	"github.com/aluiziolira/go-scrape-articles/models"
	"github.com/aluiziolira/go-scrape-articles/pipeline"
	"github.com/aluiziolira/go-scrape-articles/scraper"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "load env files: %v\n", err)
		os.Exit(1)
	}

	defaultCfg := config.DefaultConfig()
	startDefault := defaultCfg.StartURL
	if value, ok := config.EnvString("SCRAPER_START_URL"); ok {
		startDefault = value
	}
	pagesDefault := defaultCfg.MaxPages
	if value, ok, err := config.EnvInt("SCRAPER_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_PAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		pagesDefault = value
	}
	pageDelayDefault := defaultCfg.PageDelay
	if value, ok, err := config.EnvDuration("SCRAPER_PAGE_DELAY"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_PAGE_DELAY: %v\n", err)
		os.Exit(1)
	} else if ok {
		pageDelayDefault = value
	}
	articleDelayDefault := defaultCfg.ArticleDelay
	if value, ok, err := config.EnvDuration("SCRAPER_ARTICLE_DELAY"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_ARTICLE_DELAY: %v\n", err)
		os.Exit(1)
	} else if ok {
		articleDelayDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	baseURL := flag.String("base-url", defaultCfg.BaseURL, "Site origin joined with relative article and pagination links")
	startURL := flag.String("start-url", startDefault, "Category listing page to start from")
	maxPages := flag.Int("pages", pagesDefault, "Maximum listing pages to fetch (0 = follow pagination to the end)")
	pageDelay := flag.Duration("page-delay", pageDelayDefault, "Pause between listing pages")
	articleDelay := flag.Duration("article-delay", articleDelayDefault, "Pause after each scraped article")
	articleTimeout := flag.Duration("article-timeout", defaultCfg.ArticleTimeout, "Timeout for each article request")
	listingTimeout := flag.Duration("listing-timeout", defaultCfg.ListingTimeout, "Timeout for each listing request (0 = none)")
	respectRobots := flag.Bool("respect-robots", false, "Respect robots.txt directives")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: json, csv, or dual")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := config.DefaultConfig()
	cfg.BaseURL = *baseURL
	cfg.StartURL = *startURL
	cfg.MaxPages = *maxPages
	cfg.PageDelay = *pageDelay
	cfg.ArticleDelay = *articleDelay
	cfg.ArticleTimeout = *articleTimeout
	cfg.ListingTimeout = *listingTimeout
	cfg.RespectRobotsTxt = *respectRobots
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.Verbose = *verbose
	cfg.MetricsAddr = *metricsAddr
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("scrape failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	slog.Info("starting scrape",
		slog.String("start_url", cfg.StartURL),
		slog.String("output", cfg.OutputFile),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	done := make(chan struct{})
	defer close(done)
	go watchInterrupt(ctx, done)

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	startTime := time.Now()

	// Links are collected before the output file exists, so a failed
	// listing crawl leaves nothing behind.
	links, err := s.CollectLinks(ctx)
	if err != nil {
		return err
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}

	p := pipeline.NewPipeline(context.Background(), writer, cfg)
	p.Start(1)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	result, scrapeErr := s.ScrapeArticles(ctx, links, p)

	if err := p.Close(); err != nil {
		writer.Close()
		return fmt.Errorf("pipeline shutdown: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	if scrapeErr != nil {
		return scrapeErr
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation: %w", err)
	}

	result.StartTime = startTime
	printSummary(result, p.GetMetrics(), cfg.OutputFile)
	return nil
}

// watchInterrupt logs once when ctx is cancelled by a signal. It returns
// silently when done closes first, which is the normal exit path.
func watchInterrupt(ctx context.Context, done <-chan struct{}) bool {
	select {
	case <-done:
		return false
	case <-ctx.Done():
		select {
		case <-done:
			return false
		default:
		}
		slog.Info("shutdown signal received, saving articles scraped so far")
		return true
	}
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		csvFilename, jsonFilename := pipeline.DualFilenames(filename)
		return pipeline.NewDualWriter(csvFilename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(result *models.CrawlResult, metrics map[string]interface{}, outputFile string) {
	saved := int64(0)
	if processed, ok := metrics["processed_articles"].(int64); ok {
		saved = processed
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Scrape complete")

	t.AppendRow(table.Row{"Listing pages", result.PageCount})
	t.AppendRow(table.Row{"Links found", result.LinkCount})
	t.AppendRow(table.Row{"Articles saved", saved})
	t.AppendRow(table.Row{"Failed articles", len(result.FailedURLs)})
	if len(result.ErrorsByType) > 0 {
		t.AppendRow(table.Row{"Error types", fmt.Sprint(result.ErrorsByType)})
	}
	t.AppendRow(table.Row{"Requests", result.RequestCount})
	t.AppendRow(table.Row{"Duration", result.EndTime.Sub(result.StartTime).Round(time.Millisecond)})
	t.AppendRow(table.Row{"Output file", outputFile})
	t.Render()

	for _, u := range result.FailedURLs {
		fmt.Printf("  failed: %s\n", u)
	}
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
