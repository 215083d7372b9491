package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "negative max pages",
			mutate: func(cfg *Config) {
				cfg.MaxPages = -1
			},
			wantErr: "max pages",
		},
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "start url without host",
			mutate: func(cfg *Config) {
				cfg.StartURL = "/zh-hans/learn/category/trading-ideas"
			},
			wantErr: "start URL",
		},
		{
			name: "bad next page pattern",
			mutate: func(cfg *Config) {
				cfg.NextPagePattern = "(Next"
			},
			wantErr: "next page pattern",
		},
		{
			name: "zero article timeout",
			mutate: func(cfg *Config) {
				cfg.ArticleTimeout = 0
			},
			wantErr: "article timeout",
		},
		{
			name: "negative listing timeout",
			mutate: func(cfg *Config) {
				cfg.ListingTimeout = -1 * time.Second
			},
			wantErr: "listing timeout",
		},
		{
			name: "negative page delay",
			mutate: func(cfg *Config) {
				cfg.PageDelay = -1 * time.Second
			},
			wantErr: "page delay",
		},
		{
			name: "unknown format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.ListingTimeout != 0 {
		t.Fatalf("listing fetches should not time out by default, got %v", cfg.ListingTimeout)
	}
	if cfg.ArticleTimeout != 15*time.Second {
		t.Fatalf("article timeout = %v, want 15s", cfg.ArticleTimeout)
	}
}

func TestLinkPattern(t *testing.T) {
	re, err := DefaultConfig().LinkPattern()
	if err != nil {
		t.Fatalf("link pattern: %v", err)
	}

	tests := []struct {
		href string
		want bool
	}{
		{href: "/zh-hans/learn/btc-halving-cn", want: true},
		{href: "https://www.ouchyi.support/zh-hans/learn/btc-halving-cn", want: true},
		{href: "/zh-hans/learn/category/trading-ideas", want: false},
		{href: "/zh-hans/learn/category/foo-cn", want: false},
		{href: "/zh-hans/learn/btc-halving-cn/", want: false},
		{href: "/zh-hans/learn/btc-halving-en", want: false},
		{href: "/zh-hans/learn/-cn", want: false},
	}
	for _, tt := range tests {
		if got := re.MatchString(tt.href); got != tt.want {
			t.Errorf("match %q = %v, want %v", tt.href, got, tt.want)
		}
	}
}

func TestOriginTrimsSlash(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "http://example.test/"
	if got := cfg.Origin(); got != "http://example.test" {
		t.Fatalf("origin = %q", got)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("SCRAPER_TEST_INT", " 7 ")
	t.Setenv("SCRAPER_TEST_BAD", "seven")
	t.Setenv("SCRAPER_TEST_DUR", "250ms")

	if n, ok, err := EnvInt("SCRAPER_TEST_INT"); err != nil || !ok || n != 7 {
		t.Fatalf("EnvInt = %d, %v, %v", n, ok, err)
	}
	if _, ok, err := EnvInt("SCRAPER_TEST_BAD"); err == nil || !ok {
		t.Fatalf("expected parse error for bad int, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := EnvInt("SCRAPER_TEST_UNSET"); err != nil || ok {
		t.Fatalf("unset key should report not ok, got ok=%v err=%v", ok, err)
	}
	if d, ok, err := EnvDuration("SCRAPER_TEST_DUR"); err != nil || !ok || d != 250*time.Millisecond {
		t.Fatalf("EnvDuration = %v, %v, %v", d, ok, err)
	}
}

func TestLoadEnvFilesFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraper.env")
	if err := os.WriteFile(path, []byte("SCRAPER_TEST_FROM_FILE=out.json\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("SCRAPER_TEST_FROM_FILE", "")
	os.Unsetenv("SCRAPER_TEST_FROM_FILE")

	if err := LoadEnvFiles(); err != nil {
		t.Fatalf("load env files: %v", err)
	}
	if got, ok := EnvString("SCRAPER_TEST_FROM_FILE"); !ok || got != "out.json" {
		t.Fatalf("EnvString = %q, %v", got, ok)
	}
}
