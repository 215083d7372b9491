// Package renamer strips the malformed "format,webp-<digits>-<digits>"
// prefix that some image downloads end up with.
package renamer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var badPrefix = regexp.MustCompile(`(?i)^format,webp-\d+-\d+`)

// Extensions lists the file extensions considered, compared case-insensitively.
var Extensions = []string{".webpg", ".png", ".jpg", ".jpeg", ".webp"}

// Options controls a cleanup run.
type Options struct {
	DryRun bool
}

// Report summarises a cleanup run.
type Report struct {
	Renamed   int
	Previewed int
	Skipped   int
	Unread    int // directories or entries that could not be read
}

// CleanName returns the cleaned file name and true when name has a handled
// extension and carries the malformed prefix.
func CleanName(name string) (string, bool) {
	ext := filepath.Ext(name)
	if !handledExtension(ext) {
		return "", false
	}
	stem := strings.TrimSuffix(name, ext)
	cleaned := badPrefix.ReplaceAllString(stem, "")
	if cleaned == stem {
		return "", false
	}
	return cleaned + ext, true
}

func handledExtension(ext string) bool {
	for _, candidate := range Extensions {
		if strings.EqualFold(ext, candidate) {
			return true
		}
	}
	return false
}

// Run walks root and renames every file whose name CleanName changes.
// Targets that already exist are left alone and counted as skipped.
func Run(ctx context.Context, root string, opts Options) (*Report, error) {
	report := &Report{}

	if _, err := os.Stat(root); err != nil {
		return report, fmt.Errorf("walk %s: %w", root, err)
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return skipUnreadable(report, path, d, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		newName, ok := CleanName(d.Name())
		if !ok {
			return nil
		}
		target := filepath.Join(filepath.Dir(path), newName)

		if _, statErr := os.Lstat(target); statErr == nil {
			report.Skipped++
			slog.Warn("target exists, skipping", slog.String("path", path), slog.String("target", target))
			return nil
		} else if !errors.Is(statErr, fs.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", target, statErr)
		}

		if opts.DryRun {
			report.Previewed++
			slog.Info("preview rename", slog.String("from", d.Name()), slog.String("to", newName), slog.String("dir", filepath.Dir(path)))
			return nil
		}

		if err := os.Rename(path, target); err != nil {
			return fmt.Errorf("rename %s: %w", path, err)
		}
		report.Renamed++
		slog.Info("renamed", slog.String("from", d.Name()), slog.String("to", newName), slog.String("dir", filepath.Dir(path)))
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("walk %s: %w", root, err)
	}
	return report, nil
}

// skipUnreadable logs a walk error and tells WalkDir to carry on with the
// rest of the tree.
func skipUnreadable(report *Report, path string, d fs.DirEntry, err error) error {
	report.Unread++
	slog.Warn("cannot read, skipping", slog.String("path", path), slog.Any("error", err))
	if d != nil && d.IsDir() {
		return fs.SkipDir
	}
	return nil
}
