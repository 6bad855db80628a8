package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	cacheBusterParam = "_cb"

	DefaultMinBodyBytes = 64
	DefaultFetchTimeout = 15 * time.Second
	maxAssetBytes       = 10 << 20
)

var ErrFetchFailed = errors.New("asset fetch failed")

// AssetKind tells inline markup apart from images referenced by URL.
type AssetKind int

const (
	AssetSVG AssetKind = iota + 1
	AssetRaster
)

// Asset is a fetched brand asset.
type Asset struct {
	Kind AssetKind
	// Markup holds the SVG document for AssetSVG.
	Markup string
	// URL is the cache-busted address (or data URI) for AssetRaster.
	URL string
}

// BodyFetcher renders a URL in a browser and returns the document.
type BodyFetcher interface {
	FetchBody(ctx context.Context, url string) (string, error)
}

type FetcherOptions struct {
	Client       *http.Client
	Browser      BodyFetcher
	MinBodyBytes int
	Now          func() time.Time
}

// Fetcher downloads brand assets. Concurrent requests for the same URL,
// ignoring the cache buster, share one download; nothing is kept once it
// settles.
type Fetcher struct {
	client  *http.Client
	browser BodyFetcher
	minBody int
	now     func() time.Time
	group   singleflight.Group
}

func NewFetcher(opts FetcherOptions) *Fetcher {
	f := &Fetcher{
		client:  opts.Client,
		browser: opts.Browser,
		minBody: opts.MinBodyBytes,
		now:     opts.Now,
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	if f.minBody <= 0 {
		f.minBody = DefaultMinBodyBytes
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f
}

// Fetch resolves value, which may be inline SVG markup, a data URI or an
// http(s) URL.
func (f *Fetcher) Fetch(ctx context.Context, value string) (Asset, error) {
	trimmed := strings.TrimSpace(value)
	lower := strings.ToLower(trimmed)

	switch {
	case strings.HasPrefix(lower, "<svg") || strings.HasPrefix(lower, "<?xml"):
		markup, ok := ExtractSVG(trimmed)
		if !ok {
			return Asset{}, ErrNotSVG
		}
		return Asset{Kind: AssetSVG, Markup: markup}, nil
	case strings.HasPrefix(lower, "data:image/svg+xml"):
		markup, err := DecodeDataURI(trimmed)
		if err != nil {
			return Asset{}, err
		}
		return Asset{Kind: AssetSVG, Markup: markup}, nil
	case strings.HasPrefix(lower, "data:image/"):
		return Asset{Kind: AssetRaster, URL: trimmed}, nil
	case strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://"):
		key := stripCacheBuster(trimmed)
		v, err, shared := f.group.Do(key, func() (interface{}, error) {
			return f.fetchURL(ctx, trimmed)
		})
		if shared {
			log.Printf("assets: shared in-flight fetch for %s", key)
		}
		if err != nil {
			return Asset{}, err
		}
		return v.(Asset), nil
	default:
		return Asset{}, fmt.Errorf("%w: unsupported reference", ErrFetchFailed)
	}
}

func (f *Fetcher) fetchURL(ctx context.Context, rawURL string) (Asset, error) {
	busted := addCacheBuster(rawURL, f.now())

	asset, reason := f.direct(ctx, busted)
	if reason == "" {
		return asset, nil
	}
	if f.browser == nil {
		return Asset{}, fmt.Errorf("%w: %s: %s", ErrFetchFailed, rawURL, reason)
	}

	log.Printf("assets: browser fallback for %s (%s)", rawURL, reason)
	body, err := f.browser.FetchBody(ctx, busted)
	if err != nil {
		return Asset{}, fmt.Errorf("%w: %s: %s, browser: %v", ErrFetchFailed, rawURL, reason, err)
	}
	markup, ok := ExtractSVG(body)
	if !ok {
		return Asset{}, fmt.Errorf("%w: %s: browser page has no svg", ErrFetchFailed, rawURL)
	}
	return Asset{Kind: AssetSVG, Markup: markup}, nil
}

// direct performs the plain GET. A non-empty reason means the result is
// unusable and the browser should be tried.
// svgDocument matches a body whose first element is <svg>, after any XML
// declaration, doctype or comments.
var svgDocument = regexp.MustCompile(`(?is)^(?:\s*(?:<\?xml.*?\?>|<!doctype[^>\[]*(?:\[.*?\])?\s*>|<!--.*?-->))*\s*<svg\b`)

func (f *Fetcher) direct(ctx context.Context, busted string) (Asset, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, busted, nil)
	if err != nil {
		return Asset{}, err.Error()
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return Asset{}, err.Error()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Asset{}, "status " + strconv.Itoa(resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
	if err != nil {
		return Asset{}, "read body: " + err.Error()
	}

	text := strings.TrimSpace(string(body))
	lower := strings.ToLower(text)
	if svgDocument.MatchString(text) || strings.HasPrefix(lower, "data:image/svg+xml") {
		if strings.HasPrefix(lower, "data:") {
			markup, err := DecodeDataURI(text)
			if err != nil {
				return Asset{}, err.Error()
			}
			return Asset{Kind: AssetSVG, Markup: markup}, ""
		}
		if markup, ok := ExtractSVG(text); ok {
			return Asset{Kind: AssetSVG, Markup: markup}, ""
		}
	}

	if len(body) < f.minBody {
		return Asset{}, fmt.Sprintf("body too small (%d bytes)", len(body))
	}

	declared := mediaType(resp.Header.Get("Content-Type"))
	if declared == "image/svg+xml" {
		if markup, ok := ExtractSVG(text); ok {
			return Asset{Kind: AssetSVG, Markup: markup}, ""
		}
		return Asset{}, "svg content type without svg markup"
	}
	if ambiguous(declared) {
		sniffed := mediaType(http.DetectContentType(body))
		if strings.HasPrefix(sniffed, "image/") {
			return Asset{Kind: AssetRaster, URL: busted}, ""
		}
		return Asset{}, "ambiguous content type " + strconv.Quote(declared)
	}
	if strings.HasPrefix(declared, "image/") {
		return Asset{Kind: AssetRaster, URL: busted}, ""
	}
	return Asset{}, "unexpected content type " + strconv.Quote(declared)
}

func mediaType(header string) string {
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return mt
}

func ambiguous(mediaType string) bool {
	switch mediaType {
	case "", "application/octet-stream", "binary/octet-stream", "text/plain", "text/html", "application/xml", "text/xml":
		return true
	}
	return false
}

func addCacheBuster(rawURL string, now time.Time) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(cacheBusterParam, strconv.FormatInt(now.UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}

func stripCacheBuster(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if !q.Has(cacheBusterParam) {
		return rawURL
	}
	q.Del(cacheBusterParam)
	u.RawQuery = q.Encode()
	return u.String()
}
