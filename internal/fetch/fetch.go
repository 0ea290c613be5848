// Package fetch downloads web pages and extracts their readable content
// as Markdown.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

// ErrEmptyContent is returned when a page yields no usable text after
// boilerplate removal.
var ErrEmptyContent = errors.New("fetch: page has no extractable content")

// maxBodyBytes caps response bodies to avoid unbounded reads.
const maxBodyBytes = 10 << 20 // 10 MiB

// Result is the extracted content of a fetched page.
type Result struct {
	URL         string
	Title       string
	Description string
	Markdown    string
	FetchedAt   time.Time
}

// Fetcher retrieves a page and extracts its content. Implementations must
// be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Result, error)
}

// Options configures an HTTPFetcher.
type Options struct {
	Timeout    time.Duration
	RatePerSec float64
	UserAgent  string
	Logger     *slog.Logger
}

// HTTPFetcher fetches pages over HTTP with a shared rate limit.
type HTTPFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	log       *slog.Logger
}

// NewHTTPFetcher creates a fetcher with the given options. Zero values
// fall back to defaults.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 2
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "sourceqa/1.0"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: opts.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		userAgent: opts.UserAgent,
		log:       opts.Logger,
	}
}

// Fetch downloads the page at url and extracts title, description and
// Markdown content.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (Result, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{}, fmt.Errorf("read body of %s: %w", url, err)
	}

	result, err := Extract(url, string(body))
	if err != nil {
		return Result{}, err
	}

	f.log.Debug("page fetched",
		"url", url,
		"title", result.Title,
		"markdown_bytes", len(result.Markdown),
		"duration", time.Since(start))

	return result, nil
}

// Extract parses HTML and returns the page content as Markdown. Script,
// style and navigation elements are stripped before conversion.
func Extract(url, html string) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{}, fmt.Errorf("parse HTML of %s: %w", url, err)
	}

	title := extractTitle(doc)
	description := extractDescription(doc)

	doc.Find("script, style, nav, footer, header, aside, noscript, iframe").Remove()

	content := doc.Find("main, article").First()
	if content.Length() == 0 {
		content = doc.Find("body").First()
	}

	converter := md.NewConverter(url, true, nil)
	markdown := strings.TrimSpace(converter.Convert(content))
	if markdown == "" {
		return Result{}, fmt.Errorf("%w: %s", ErrEmptyContent, url)
	}

	return Result{
		URL:         url,
		Title:       title,
		Description: description,
		Markdown:    markdown,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if og, ok := doc.Find("meta[property='og:title']").Attr("content"); ok && og != "" {
		return strings.TrimSpace(og)
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return ""
}

func extractDescription(doc *goquery.Document) string {
	if desc, ok := doc.Find("meta[name='description']").Attr("content"); ok {
		return strings.TrimSpace(desc)
	}
	if og, ok := doc.Find("meta[property='og:description']").Attr("content"); ok {
		return strings.TrimSpace(og)
	}
	return ""
}
