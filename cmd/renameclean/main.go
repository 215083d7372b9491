package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aluiziolira/go-scrape-articles/config"
	"github.com/aluiziolira/go-scrape-articles/renamer"
)

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "load env files: %v\n", err)
		os.Exit(1)
	}

	rootDefault := "."
	if value, ok := config.EnvString("RENAMECLEAN_ROOT"); ok {
		rootDefault = value
	}

	root := flag.String("root", rootDefault, "Directory tree to clean")
	dryRun := flag.Bool("dry-run", false, "Only log the renames that would happen")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := renamer.Run(ctx, *root, renamer.Options{DryRun: *dryRun})
	if err != nil {
		slog.Error("cleanup failed", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("cleanup complete",
		slog.Bool("dry_run", *dryRun),
		slog.Int("renamed", report.Renamed),
		slog.Int("previewed", report.Previewed),
		slog.Int("skipped", report.Skipped),
		slog.Int("unread", report.Unread),
	)
}
