// Package fetch downloads web pages into namespace document
// directories and crawls same-host links under a page budget.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	qerr "github.com/docquery/docquery/internal/errors"
)

// DefaultTimeout bounds a single page fetch.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps a fetched response body at 32 MiB.
const maxBodySize = 32 << 20

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Config configures a Fetcher.
type Config struct {
	// UserAgent is sent on every request.
	UserAgent string
	// Timeout is the per-request timeout. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Fetcher downloads single pages.
type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// Page is one fetched document ready to be written to a docs directory.
type Page struct {
	// SourceID is the file name the page is saved under.
	SourceID string
	// Body is the raw response body for PDFs, or the extracted visible
	// text for HTML pages.
	Body []byte
	// Links are same-host links found on an HTML page, fragments
	// stripped. Empty for PDFs.
	Links []string
}

// NewFetcher creates a fetcher.
func NewFetcher(cfg Config, logger *slog.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "docquery/1.0"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// Fetch downloads one page. PDFs keep their raw bytes and get a .pdf
// source id; everything else is treated as HTML, reduced to visible
// text, and gets a .txt source id.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, qerr.New(qerr.ErrCodeFetchFailed,
			fmt.Sprintf("invalid url %q", rawURL), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, qerr.New(qerr.ErrCodeFetchFailed, "failed to build request", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, qerr.New(qerr.ErrCodeNetworkTimeout,
			fmt.Sprintf("failed to fetch %s", rawURL), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, qerr.New(qerr.ErrCodeFetchFailed,
			fmt.Sprintf("fetch of %s returned status %d", rawURL, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, qerr.New(qerr.ErrCodeFetchFailed, "failed to read response body", err)
	}

	if isPDF(u, resp.Header.Get("Content-Type")) {
		return &Page{SourceID: Slug(u) + ".pdf", Body: body}, nil
	}

	text, links := ExtractHTML(body, u)
	return &Page{SourceID: Slug(u) + ".txt", Body: []byte(text), Links: links}, nil
}

// Save writes the page into dir, creating it if needed.
func (p *Page) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return qerr.New(qerr.ErrCodeFetchFailed, "failed to create docs directory", err)
	}
	if err := os.WriteFile(filepath.Join(dir, p.SourceID), p.Body, 0o644); err != nil {
		return qerr.New(qerr.ErrCodeFetchFailed, "failed to save page", err)
	}
	return nil
}

// Slug derives a stable file base name from a URL's host and path:
// lowercased, every run of non-alphanumerics collapsed to one
// underscore, edges trimmed.
func Slug(u *url.URL) string {
	raw := strings.ToLower(u.Host + u.Path)
	slug := slugPattern.ReplaceAllString(raw, "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		slug = "page"
	}
	return slug
}

func isPDF(u *url.URL, contentType string) bool {
	if strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
		return true
	}
	return strings.Contains(strings.ToLower(contentType), "application/pdf")
}
