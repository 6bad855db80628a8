package smartdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultRatesURL = "https://www.mortgagenewsdaily.com/mortgage-rates"
	// RateGraphURL is the embeddable 30 year fixed chart.
	RateGraphURL = "https://www.mortgagenewsdaily.com/charts/embed/mnd-mtg-rates-30"
)

var ErrRatesUnavailable = errors.New("mortgage rates unavailable")

// rateTitles maps rate keys to the product names shown on the rates page.
var rateTitles = map[string]string{
	"rate_30":  "30 Yr. Fixed",
	"rate_15":  "15 Yr. Fixed",
	"rate_fha": "30 Yr. FHA",
	"rate_arm": "5/1 ARM",
}

// RateKeys lists the supported rate keys, most specific first.
var RateKeys = []string{"rate_fha", "rate_arm", "rate_30", "rate_15"}

// Snapshot is everything read from one load of the rates page.
type Snapshot struct {
	Rates     map[string]string `json:"rates"`
	Low       string            `json:"low"`
	High      string            `json:"high"`
	Percent   float64           `json:"percent"`
	ChartPath string            `json:"chart_path"`
}

// RatesClient scrapes the mortgage rates page.
type RatesClient struct {
	pageURL string
	http    *http.Client
}

func NewRatesClient(pageURL string, client *http.Client) *RatesClient {
	if pageURL == "" {
		pageURL = DefaultRatesURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &RatesClient{pageURL: pageURL, http: client}
}

func (c *RatesClient) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; pretty-smart-editor)")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRatesUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %d", ErrRatesUnavailable, url, resp.StatusCode)
	}
	return resp, nil
}

// Fetch loads and parses the rates page.
func (c *RatesClient) Fetch(ctx context.Context) (Snapshot, error) {
	resp, err := c.get(ctx, c.pageURL)
	if err != nil {
		return Snapshot{}, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse rates page: %w", err)
	}
	snap := ParseSnapshot(doc)
	if len(snap.Rates) == 0 {
		return Snapshot{}, fmt.Errorf("%w: no rate products on page", ErrRatesUnavailable)
	}
	return snap, nil
}

// ParseSnapshot reads the rate table, the range of the first product and
// the header chart link.
func ParseSnapshot(doc *goquery.Document) Snapshot {
	snap := Snapshot{Rates: make(map[string]string)}

	products := doc.Find(".body-content .rate-options").Find(".rate-product")
	products.Each(func(_ int, s *goquery.Selection) {
		title := firstLine(s.Find(".rate-product-name a").Text())
		rate := firstLine(s.Find(".clearfix .rate").Text())
		for key, want := range rateTitles {
			if title == want && rate != "" {
				snap.Rates[key] = rate
			}
		}
	})

	first := products.First()
	snap.Low = strings.TrimSpace(first.Find(".low").Text())
	snap.High = strings.TrimSpace(first.Find(".high").Text())
	if style, ok := first.Find(".rate-range .current").Attr("style"); ok {
		snap.Percent = cssLeftPercent(style)
	}

	if src, ok := doc.Find(".header-chart .chart img").Attr("src"); ok {
		snap.ChartPath = src
	}
	return snap
}

// FetchChartSVG downloads the header chart and returns its markup from the
// opening <svg tag on.
func (c *RatesClient) FetchChartSVG(ctx context.Context, path string) (string, error) {
	resp, err := c.get(ctx, c.resolve(path))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chart: %w", err)
	}
	markup := string(body)
	idx := strings.Index(markup, "<svg")
	if idx < 0 {
		return "", fmt.Errorf("%w: chart is not svg", ErrRatesUnavailable)
	}
	return markup[idx:], nil
}

func (c *RatesClient) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	scheme, rest, ok := strings.Cut(c.pageURL, "://")
	if !ok {
		return path
	}
	host, _, _ := strings.Cut(rest, "/")
	return scheme + "://" + host + "/" + strings.TrimPrefix(path, "/")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}

// cssLeftPercent extracts N from a "left: N%" declaration.
func cssLeftPercent(style string) float64 {
	for _, decl := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok || strings.TrimSpace(strings.ToLower(name)) != "left" {
			continue
		}
		value = strings.TrimSuffix(strings.TrimSpace(value), "%")
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return 0
}
