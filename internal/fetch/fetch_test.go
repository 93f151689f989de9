package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSlug(t *testing.T) {
	tests := []struct {
		rawURL string
		want   string
	}{
		{"https://example.com/docs/intro", "example_com_docs_intro"},
		{"https://Example.COM/Docs/Getting-Started.html", "example_com_docs_getting_started_html"},
		{"https://example.com/", "example_com"},
		{"https://example.com///a//b", "example_com_a_b"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.rawURL)
		require.NoError(t, err)
		assert.Equal(t, tt.want, Slug(u), tt.rawURL)
	}
}

func TestExtractHTML_VisibleTextAndLinks(t *testing.T) {
	body := `<html><head><title>ignored</title><style>p{}</style></head>
<body>
<script>var hidden = 1;</script>
<h1> Heading </h1>
<p>First paragraph.</p>
<noscript>also hidden</noscript>
<a href="/docs/next#section">next</a>
<a href="/docs/next#other">dup after fragment strip</a>
<a href="https://other.example.org/away">offsite</a>
<a href="mailto:someone@example.com">mail</a>
</body></html>`

	base, _ := url.Parse("https://example.com/docs/intro")
	text, links := ExtractHTML([]byte(body), base)

	assert.NotContains(t, text, "hidden")
	assert.NotContains(t, text, "p{}")
	assert.Contains(t, text, "Heading\n\nFirst paragraph.")
	assert.Equal(t, []string{"https://example.com/docs/next"}, links)
}

func TestFetch_HTMLPage(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><p>hello</p><a href="/more">more</a></body></html>`))
	}))
	defer srv.Close()

	f := NewFetcher(Config{UserAgent: "docquery/1.0"}, testLogger())
	page, err := f.Fetch(context.Background(), srv.URL+"/index")
	require.NoError(t, err)

	assert.Equal(t, "docquery/1.0", gotUA)
	assert.True(t, strings.HasSuffix(page.SourceID, "_index.txt"), page.SourceID)
	assert.Equal(t, "hello\n\nmore", string(page.Body))
	require.Len(t, page.Links, 1)
	assert.Equal(t, srv.URL+"/more", page.Links[0])
}

func TestFetch_PDFByContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7 raw bytes"))
	}))
	defer srv.Close()

	f := NewFetcher(Config{}, testLogger())
	page, err := f.Fetch(context.Background(), srv.URL+"/report")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(page.SourceID, ".pdf"), page.SourceID)
	assert.Equal(t, "%PDF-1.7 raw bytes", string(page.Body))
	assert.Empty(t, page.Links)
}

func TestFetch_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(Config{}, testLogger())
	_, err := f.Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_302")
}

func TestCrawl_BudgetAndVisited(t *testing.T) {
	mux := http.NewServeMux()
	// Every page links to the next and back to the first.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>page<a href="/p1">1</a></body></html>`))
	})
	mux.HandleFunc("/p1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>page<a href="/p2">2</a><a href="/">home</a></body></html>`))
	})
	mux.HandleFunc("/p2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>page<a href="/p3">3</a></body></html>`))
	})
	mux.HandleFunc("/p3", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>last page</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	crawler := NewCrawler(NewFetcher(Config{}, testLogger()), 3, testLogger())

	report, err := crawler.Crawl(context.Background(), srv.URL+"/", dir)
	require.NoError(t, err)

	// Budget of 3 stops before /p3 despite the cycle back to /.
	assert.Len(t, report.Fetched, 3)
	assert.Zero(t, report.Failed)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestCrawl_SkipsExistingAndSurvivesFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>root<a href="/broken">x</a><a href="/ok">y</a></body></html>`))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>fine</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	fetcher := NewFetcher(Config{}, testLogger())

	// Pre-seed the root page so the crawl skips re-saving it.
	rootURL, _ := url.Parse(srv.URL + "/")
	require.NoError(t, os.WriteFile(filepath.Join(dir, Slug(rootURL)+".txt"), []byte("old"), 0o644))

	crawler := NewCrawler(fetcher, 10, testLogger())
	report, err := crawler.Crawl(context.Background(), srv.URL+"/", dir)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Fetched, 1)
	assert.True(t, strings.HasSuffix(report.Fetched[0], "_ok.txt"))

	// The pre-seeded file was not overwritten.
	data, err := os.ReadFile(filepath.Join(dir, Slug(rootURL)+".txt"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}
