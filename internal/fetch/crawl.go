package fetch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
)

// CrawlReport summarizes one crawl.
type CrawlReport struct {
	// Fetched are the source ids saved this crawl, in fetch order.
	Fetched []string
	// Skipped counts pages already present in the docs directory.
	Skipped int
	// Failed counts pages that could not be fetched.
	Failed int
}

// Crawler fetches a page and follows its same-host links breadth-first
// up to a page budget. Crawl state lives entirely in the call, so a
// crawler is safe for concurrent use.
type Crawler struct {
	fetcher  *Fetcher
	maxPages int
	logger   *slog.Logger
}

// NewCrawler creates a crawler. A non-positive maxPages means 50.
func NewCrawler(fetcher *Fetcher, maxPages int, logger *slog.Logger) *Crawler {
	if maxPages <= 0 {
		maxPages = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{fetcher: fetcher, maxPages: maxPages, logger: logger}
}

// Crawl walks the site starting at startURL, saving pages into docsDir.
// Pages whose source id already exists in docsDir are skipped without a
// fetch. A failing page is logged and the crawl continues.
func (c *Crawler) Crawl(ctx context.Context, startURL, docsDir string) (*CrawlReport, error) {
	report := &CrawlReport{}

	frontier := []string{startURL}
	visited := make(map[string]struct{})
	budget := c.maxPages

	for len(frontier) > 0 && budget > 0 {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		current := frontier[0]
		frontier = frontier[1:]

		if _, done := visited[current]; done {
			continue
		}
		visited[current] = struct{}{}
		budget--

		page, err := c.fetcher.Fetch(ctx, current)
		if err != nil {
			report.Failed++
			c.logger.Warn("page fetch failed",
				slog.String("url", current),
				slog.String("error", err.Error()))
			continue
		}

		if _, err := os.Stat(filepath.Join(docsDir, page.SourceID)); err == nil {
			report.Skipped++
		} else {
			if err := page.Save(docsDir); err != nil {
				report.Failed++
				c.logger.Warn("page save failed",
					slog.String("url", current),
					slog.String("error", err.Error()))
				continue
			}
			report.Fetched = append(report.Fetched, page.SourceID)
		}

		for _, link := range page.Links {
			if _, done := visited[link]; !done {
				frontier = append(frontier, link)
			}
		}
	}

	c.logger.Info("crawl complete",
		slog.String("start", startURL),
		slog.Int("fetched", len(report.Fetched)),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed))

	return report, nil
}
