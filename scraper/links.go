package scraper

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"

	"github.com/aluiziolira/go-scrape-articles/parser"
)

// LinkSet is a deduplicated set of absolute article URLs. It remembers
// insertion order so repeated runs over the same listing visit articles in
// the same order.
type LinkSet struct {
	seen  map[string]struct{}
	order []string
}

// NewLinkSet returns an empty set.
func NewLinkSet() *LinkSet {
	return &LinkSet{seen: make(map[string]struct{})}
}

// Add inserts u and reports whether it was new.
func (ls *LinkSet) Add(u string) bool {
	if _, ok := ls.seen[u]; ok {
		return false
	}
	ls.seen[u] = struct{}{}
	ls.order = append(ls.order, u)
	return true
}

// Contains reports whether u is in the set.
func (ls *LinkSet) Contains(u string) bool {
	_, ok := ls.seen[u]
	return ok
}

// Len returns the number of unique URLs.
func (ls *LinkSet) Len() int {
	return len(ls.order)
}

// URLs returns a copy of the set's members.
func (ls *LinkSet) URLs() []string {
	out := make([]string, len(ls.order))
	copy(out, ls.order)
	return out
}

// ListingPage is one fetched page of the category listing.
type ListingPage struct {
	URL     string
	Links   []string // absolute, matching the link pattern, possibly repeated
	NextURL string   // empty on the last page
}

// Pages walks the category listing from the configured start URL, fetching
// one page per iteration and following the "next page" control until a
// page lacks one. The sequence is lazy and restartable: each range over it
// starts again from the start URL. A fetch error is yielded once and ends
// the sequence.
func (s *Scraper) Pages(ctx context.Context) iter.Seq2[*ListingPage, error] {
	return func(yield func(*ListingPage, error) bool) {
		visited := make(map[string]struct{})
		next := s.cfg.StartURL

		for next != "" {
			if s.cfg.MaxPages > 0 && len(visited) >= s.cfg.MaxPages {
				slog.Info("listing page limit reached", slog.Int("max_pages", s.cfg.MaxPages))
				return
			}
			if _, ok := visited[next]; ok {
				slog.Warn("pagination loops back, stopping", slog.String("url", next))
				return
			}
			if len(visited) > 0 {
				if err := wait(ctx, s.cfg.PageDelay); err != nil {
					yield(nil, err)
					return
				}
			}
			visited[next] = struct{}{}

			page, err := s.fetchListing(ctx, next)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(page, nil) {
				return
			}
			next = page.NextURL
		}
	}
}

func (s *Scraper) fetchListing(ctx context.Context, pageURL string) (*ListingPage, error) {
	doc, err := s.fetch(ctx, s.listing, phaseListing, pageURL)
	if err != nil {
		s.recordFailure(phaseListing, pageURL, err)
		return nil, err
	}
	atomic.AddInt64(&s.pageCount, 1)
	s.Metrics.IncListingPages()

	origin := s.cfg.Origin()
	page := &ListingPage{URL: pageURL}
	for _, href := range parser.ArticleLinks(doc, s.cfg.LinkPrefix, s.linkPattern) {
		page.Links = append(page.Links, parser.ResolveLink(origin, href))
	}
	if href, ok := parser.NextPageHref(doc, s.nextPattern); ok {
		page.NextURL = parser.ResolveLink(origin, href)
	}
	return page, nil
}

// CollectLinks gathers every qualifying article URL across all listing
// pages. Any fetch error aborts collection; no partial set is returned.
func (s *Scraper) CollectLinks(ctx context.Context) (*LinkSet, error) {
	links := NewLinkSet()
	pages := 0

	for page, err := range s.Pages(ctx) {
		if err != nil {
			return nil, fmt.Errorf("collect links: %w", err)
		}
		pages++

		added := 0
		for _, link := range page.Links {
			if links.Add(link) {
				added++
				s.Metrics.IncLinks()
			}
		}
		slog.Info("fetched listing page",
			slog.Int("page", pages),
			slog.String("url", page.URL),
			slog.Int("new_links", added),
			slog.Bool("has_next", page.NextURL != ""),
		)
	}

	slog.Info("link collection complete",
		slog.Int("pages", pages),
		slog.Int("articles", links.Len()),
	)
	return links, nil
}
