// Package smartdata serves live values for "ai_" placeholders: mortgage
// rates, rate charts and daily candle-lighting times.
package smartdata

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/design"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/textfit"
)

const (
	prefix = "ai_"

	DefaultTTL = 30 * time.Minute
	geoTTL     = 30 * 24 * time.Hour

	graphWidth  = 1000
	graphHeight = 600
)

var ErrNoScreenshotter = errors.New("rate graph needs a browser")

// Screenshotter captures a web page as PNG.
type Screenshotter interface {
	Screenshot(ctx context.Context, url string, width, height int64, scale float64) ([]byte, error)
}

type Config struct {
	Rates    *RatesClient
	Geocoder *Geocoder
	Cache    Cache
	Browser  Screenshotter
	Fonts    *textfit.Fonts
	TTL      time.Duration
	// GraphURL overrides the page captured for rate_graph.
	GraphURL string
	Now      func() time.Time
}

// Service resolves live data tokens.
type Service struct {
	rates    *RatesClient
	geo      *Geocoder
	cache    Cache
	browser  Screenshotter
	fonts    *textfit.Fonts
	ttl      time.Duration
	graphURL string
	now      func() time.Time
}

func NewService(cfg Config) *Service {
	s := &Service{
		rates:    cfg.Rates,
		geo:      cfg.Geocoder,
		cache:    cfg.Cache,
		browser:  cfg.Browser,
		fonts:    cfg.Fonts,
		ttl:      cfg.TTL,
		graphURL: cfg.GraphURL,
		now:      cfg.Now,
	}
	if s.rates == nil {
		s.rates = NewRatesClient("", nil)
	}
	if s.geo == nil {
		s.geo = NewGeocoder("", "", nil)
	}
	if s.cache == nil {
		s.cache = nopCache{}
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.graphURL == "" {
		s.graphURL = RateGraphURL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Key strips everything up to and including the "ai_" marker.
func Key(token string) string {
	if i := strings.Index(token, prefix); i >= 0 {
		return token[i+len(prefix):]
	}
	return token
}

// Lookup resolves token. Unknown keys report false without an error.
func (s *Service) Lookup(ctx context.Context, token string, brand *design.Brand) (string, bool, error) {
	key := Key(token)

	switch {
	case strings.Contains(key, "candlelighting_"):
		return s.timeValue(ctx, CandleLighting, after(key, "candlelighting_"))
	case strings.Contains(key, "tzeit_"):
		return s.timeValue(ctx, Tzeit, after(key, "tzeit_"))
	case strings.Contains(key, "rate_chart"):
		return s.rateChart(ctx)
	case strings.Contains(key, "rate_graph"):
		return s.rateGraph(ctx)
	case strings.Contains(key, "rate_range"):
		return s.rateRange(ctx, brand)
	}

	for _, rateKey := range RateKeys {
		if !strings.Contains(key, rateKey) {
			continue
		}
		snap, err := s.snapshot(ctx)
		if err != nil {
			return "", false, err
		}
		value, ok := snap.Rates[rateKey]
		return value, ok, nil
	}
	return "", false, nil
}

func after(key, marker string) string {
	place := key[strings.Index(key, marker)+len(marker):]
	return strings.TrimSpace(strings.ReplaceAll(place, "_", " "))
}

// cached serves key from the cache or computes and stores it. Cache errors
// are logged and otherwise ignored.
func cached[T any](ctx context.Context, c Cache, key string, ttl time.Duration, compute func() (T, error)) (T, error) {
	var value T
	hit, err := c.Get(ctx, key, &value)
	if err != nil {
		log.Printf("smartdata: %v", err)
	}
	if hit {
		return value, nil
	}
	value, err = compute()
	if err != nil {
		return value, err
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		log.Printf("smartdata: %v", err)
	}
	return value, nil
}

func (s *Service) snapshot(ctx context.Context) (Snapshot, error) {
	return cached(ctx, s.cache, "rates", s.ttl, func() (Snapshot, error) {
		return s.rates.Fetch(ctx)
	})
}

func (s *Service) rateChart(ctx context.Context) (string, bool, error) {
	svg, err := cached(ctx, s.cache, "rate_chart", s.ttl, func() (string, error) {
		snap, err := s.snapshot(ctx)
		if err != nil {
			return "", err
		}
		if snap.ChartPath == "" {
			return "", nil
		}
		return s.rates.FetchChartSVG(ctx, snap.ChartPath)
	})
	if err != nil {
		return "", false, err
	}
	if svg == "" {
		return "", false, nil
	}
	return "data:image/svg+xml;utf8," + svg, true, nil
}

func (s *Service) rateGraph(ctx context.Context) (string, bool, error) {
	if s.browser == nil {
		return "", false, ErrNoScreenshotter
	}
	encoded, err := cached(ctx, s.cache, "rate_graph", s.ttl, func() (string, error) {
		png, err := s.browser.Screenshot(ctx, s.graphURL, graphWidth, graphHeight, 1)
		if err != nil {
			return "", err
		}
		return base64.StdEncoding.EncodeToString(png), nil
	})
	if err != nil {
		return "", false, err
	}
	return "data:image/png;base64," + encoded, true, nil
}

func (s *Service) rateRange(ctx context.Context, brand *design.Brand) (string, bool, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return "", false, err
	}
	if snap.Low == "" && snap.High == "" {
		return "", false, nil
	}
	if s.fonts == nil {
		return "", false, fmt.Errorf("rate range: no fonts configured")
	}
	png, err := DrawRange(s.fonts, brand, snap.Low, snap.High, snap.Percent)
	if err != nil {
		return "", false, err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), true, nil
}

func (s *Service) timeValue(ctx context.Context, kind TimeType, place string) (string, bool, error) {
	if place == "" {
		return "", false, nil
	}
	now := s.now()
	loc, err := cached(ctx, s.cache, "geo:"+strings.ToLower(place), geoTTL, func() (Location, error) {
		return s.geo.Locate(ctx, place, now)
	})
	if err != nil {
		return "", false, err
	}
	t, err := ComputeTime(loc, place, kind, now)
	if err != nil {
		return "", false, err
	}
	return FormatClock(t), true, nil
}
