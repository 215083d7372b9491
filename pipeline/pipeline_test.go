package pipeline

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/aluiziolira/go-scrape-articles/config"
	"github.com/aluiziolira/go-scrape-articles/models"
)

type mockWriter struct {
	mu          sync.Mutex
	batches     [][]*models.Article
	closed      bool
	validateErr error
}

func (mw *mockWriter) Write(articles []*models.Article) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	copyBatch := make([]*models.Article, len(articles))
	copy(copyBatch, articles)
	mw.batches = append(mw.batches, copyBatch)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	mw.closed = true
	mw.mu.Unlock()
	return nil
}

func (mw *mockWriter) Validate() error {
	return mw.validateErr
}

func (mw *mockWriter) totalWritten() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	total := 0
	for _, batch := range mw.batches {
		total += len(batch)
	}
	return total
}

func (mw *mockWriter) batchSizes() []int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	sizes := make([]int, 0, len(mw.batches))
	for _, batch := range mw.batches {
		sizes = append(sizes, len(batch))
	}
	return sizes
}

func (mw *mockWriter) urls() []string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	var out []string
	for _, batch := range mw.batches {
		for _, article := range batch {
			out = append(out, article.URL)
		}
	}
	return out
}

type failingWriter struct{}

func (failingWriter) Write([]*models.Article) error { return errors.New("disk full") }
func (failingWriter) Close() error                  { return nil }
func (failingWriter) Validate() error               { return nil }

func article(i int) *models.Article {
	return &models.Article{
		Title:   "Article " + strconv.Itoa(i),
		URL:     "http://example.test/zh-hans/learn/a" + strconv.Itoa(i) + "-cn",
		Date:    "2024-01-01",
		Content: "body",
	}
}

func TestPipelineWritesRecordsUnchanged(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 2
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	untitled := &models.Article{URL: "http://example.test/zh-hans/learn/empty-cn"}
	spaced := &models.Article{Title: " 比特币减半 ", URL: "http://example.test/zh-hans/learn/halving-cn"}

	if err := p.Process(untitled, nil, spaced); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.totalWritten(); got != 2 {
		t.Fatalf("written articles = %d, want 2", got)
	}
	if spaced.Title != " 比特币减半 " {
		t.Fatalf("title rewritten to %q", spaced.Title)
	}

	metrics := p.GetMetrics()
	if processed := metrics["processed_articles"].(int64); processed != 2 {
		t.Fatalf("processed = %d, want 2", processed)
	}
	if batches := metrics["batches_written"].(int64); batches != 1 {
		t.Fatalf("batches = %d, want 1", batches)
	}
}

func TestPipelineBatchFlushThreshold(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 16
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	for i := 0; i < 17; i++ {
		if err := p.Process(article(i)); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	sizes := writer.batchSizes()
	if len(sizes) != 2 {
		t.Fatalf("batch writes = %d, want 2", len(sizes))
	}
	if sizes[0] != 16 || sizes[1] != 1 {
		t.Fatalf("batch sizes = %v, want [16 1]", sizes)
	}
}

func TestPipelineSingleWorkerPreservesOrder(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 3
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	var want []string
	for i := 0; i < 10; i++ {
		a := article(i)
		want = append(want, a.URL)
		if err := p.Process(a); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := writer.urls()
	if len(got) != len(want) {
		t.Fatalf("written = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch at %d: %s != %s", i, got[i], want[i])
		}
	}
}

func TestPipelineCloseDrainsPendingItems(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(2)

	for i := 0; i < 100; i++ {
		if err := p.Process(article(i + 200)); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.totalWritten(); got != 100 {
		t.Fatalf("written articles = %d, want 100", got)
	}
}

func TestPipelineProcessAfterClose(t *testing.T) {
	p := NewPipeline(context.Background(), &mockWriter{}, config.DefaultConfig())
	p.Start(1)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := p.Process(article(1)); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("expected ErrPipelineClosed, got %v", err)
	}
}

func TestPipelineWriteErrorSurfacesOnClose(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 1
	p := NewPipeline(context.Background(), failingWriter{}, cfg)
	p.Start(1)

	if err := p.Process(article(1)); err != nil {
		t.Fatalf("process: %v", err)
	}

	err := p.Close()
	if err == nil {
		t.Fatalf("expected write error on close")
	}
	if got := err.Error(); got != "write batch: disk full" {
		t.Fatalf("close error = %q", got)
	}
}

func TestPipelineCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(ctx, &mockWriter{}, config.DefaultConfig())
	p.Start(1)

	if err := p.Process(article(1)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPipelineFailedWriteIsNotCounted(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 1
	p := NewPipeline(context.Background(), failingWriter{}, cfg)
	p.Start(1)

	_ = p.Process(article(1))
	_ = p.Close()

	if processed := p.GetMetrics()["processed_articles"].(int64); processed != 0 {
		t.Fatalf("processed = %d, want 0", processed)
	}
}
