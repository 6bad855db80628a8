package smartdata

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/alicebob/miniredis/v2"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/design"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/textfit"
)

const ratesPage = `<html><body>
<div class="header-chart"><div class="chart"><img src="/charts/small-30.svg"></div></div>
<div class="body-content">
  <div class="rate-options">
    <div class="rate-product">
      <div class="rate-product-name"><a href="/30">30 Yr. Fixed
        <span>details</span></a></div>
      <div class="clearfix"><div class="rate">6.87%
        <span>+0.02</span></div></div>
      <div class="rate-range"><span class="low">6.12%</span><div class="current" style="left: 64%;"></div><span class="high">7.79%</span></div>
    </div>
    <div class="rate-product">
      <div class="rate-product-name"><a>15 Yr. Fixed</a></div>
      <div class="clearfix"><div class="rate">6.21%</div></div>
    </div>
    <div class="rate-product">
      <div class="rate-product-name"><a>30 Yr. FHA</a></div>
      <div class="clearfix"><div class="rate">6.30%</div></div>
    </div>
    <div class="rate-product">
      <div class="rate-product-name"><a>Jumbo</a></div>
      <div class="clearfix"><div class="rate">7.01%</div></div>
    </div>
  </div>
</div>
</body></html>`

type ratesServer struct {
	*httptest.Server
	pageHits  atomic.Int32
	chartHits atomic.Int32
}

func newRatesServer(t *testing.T) *ratesServer {
	t.Helper()
	rs := &ratesServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/mortgage-rates", func(w http.ResponseWriter, r *http.Request) {
		rs.pageHits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(ratesPage))
	})
	mux.HandleFunc("/charts/small-30.svg", func(w http.ResponseWriter, r *http.Request) {
		rs.chartHits.Add(1)
		w.Write([]byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"><path d="M0 0L10 10"/></svg>`))
	})
	rs.Server = httptest.NewServer(mux)
	t.Cleanup(rs.Close)
	return rs
}

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache, err := NewRedisCache("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache, mr
}

func testFonts(t *testing.T) *textfit.Fonts {
	t.Helper()
	fonts, err := textfit.NewFonts()
	if err != nil {
		t.Fatal(err)
	}
	return fonts
}

func TestParseSnapshot(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(ratesPage))
	if err != nil {
		t.Fatal(err)
	}
	snap := ParseSnapshot(doc)

	want := map[string]string{"rate_30": "6.87%", "rate_15": "6.21%", "rate_fha": "6.30%"}
	if len(snap.Rates) != len(want) {
		t.Fatalf("rates = %v", snap.Rates)
	}
	for k, v := range want {
		if snap.Rates[k] != v {
			t.Errorf("%s = %q, want %q", k, snap.Rates[k], v)
		}
	}
	if snap.Low != "6.12%" || snap.High != "7.79%" || snap.Percent != 64 {
		t.Errorf("range = %q %q %v", snap.Low, snap.High, snap.Percent)
	}
	if snap.ChartPath != "/charts/small-30.svg" {
		t.Errorf("chart path = %q", snap.ChartPath)
	}
}

func TestLookupRatesUsesCache(t *testing.T) {
	srv := newRatesServer(t)
	cache, _ := newRedisCache(t)
	svc := NewService(Config{
		Rates: NewRatesClient(srv.URL+"/mortgage-rates", srv.Client()),
		Cache: cache,
	})
	ctx := context.Background()

	for _, tt := range []struct {
		token string
		want  string
		ok    bool
	}{
		{"ai_interest_rate_30", "6.87%", true},
		{"ai_rate_15", "6.21%", true},
		{"ai_rate_fha", "6.30%", true},
		{"ai_rate_arm", "", false},
		{"ai_weather", "", false},
	} {
		got, ok, err := svc.Lookup(ctx, tt.token, nil)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", tt.token, err)
		}
		if got != tt.want || ok != tt.ok {
			t.Errorf("Lookup(%s) = %q %v, want %q %v", tt.token, got, ok, tt.want, tt.ok)
		}
	}
	if hits := srv.pageHits.Load(); hits != 1 {
		t.Errorf("rates page fetched %d times, want 1", hits)
	}
}

func TestLookupRatesUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := NewService(Config{Rates: NewRatesClient(srv.URL, srv.Client())})
	_, _, err := svc.Lookup(context.Background(), "ai_rate_30", nil)
	if !errors.Is(err, ErrRatesUnavailable) {
		t.Fatalf("expected ErrRatesUnavailable, got %v", err)
	}
}

func TestLookupRateChart(t *testing.T) {
	srv := newRatesServer(t)
	svc := NewService(Config{Rates: NewRatesClient(srv.URL+"/mortgage-rates", srv.Client())})

	got, ok, err := svc.Lookup(context.Background(), "ai_rate_chart", nil)
	if err != nil || !ok {
		t.Fatalf("Lookup: %v %v", ok, err)
	}
	if !strings.HasPrefix(got, "data:image/svg+xml;utf8,<svg") {
		t.Errorf("unexpected chart value %q", got)
	}
	if srv.chartHits.Load() != 1 {
		t.Errorf("chart fetched %d times", srv.chartHits.Load())
	}
}

func TestLookupRateRange(t *testing.T) {
	srv := newRatesServer(t)
	svc := NewService(Config{
		Rates: NewRatesClient(srv.URL+"/mortgage-rates", srv.Client()),
		Fonts: testFonts(t),
	})
	brand := &design.Brand{Colors: []design.Color{{Value: "#1A428A", Primary: true}, {Value: "#D5BA8C"}}}

	got, ok, err := svc.Lookup(context.Background(), "ai_rate_range", brand)
	if err != nil || !ok {
		t.Fatalf("Lookup: %v %v", ok, err)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(got, "data:image/png;base64,"))
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dx() > rangeWidth || b.Dy() == 0 || b.Dy() > rangeHeight {
		t.Errorf("unexpected bounds %v", b)
	}
}

type fakeShots struct {
	screenshotFn func(url string) ([]byte, error)
	calls        atomic.Int32
}

func (f *fakeShots) Screenshot(_ context.Context, url string, _, _ int64, _ float64) ([]byte, error) {
	f.calls.Add(1)
	return f.screenshotFn(url)
}

func TestLookupRateGraph(t *testing.T) {
	cache, _ := newRedisCache(t)
	shots := &fakeShots{screenshotFn: func(url string) ([]byte, error) {
		if url != RateGraphURL {
			t.Errorf("captured %s", url)
		}
		return []byte("png-bytes"), nil
	}}
	svc := NewService(Config{Browser: shots, Cache: cache})

	for i := 0; i < 2; i++ {
		got, ok, err := svc.Lookup(context.Background(), "ai_rate_graph", nil)
		if err != nil || !ok {
			t.Fatalf("Lookup: %v %v", ok, err)
		}
		if got != "data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("png-bytes")) {
			t.Errorf("got %q", got)
		}
	}
	if shots.calls.Load() != 1 {
		t.Errorf("screenshots taken = %d, want 1", shots.calls.Load())
	}

	noBrowser := NewService(Config{})
	if _, _, err := noBrowser.Lookup(context.Background(), "ai_rate_graph", nil); !errors.Is(err, ErrNoScreenshotter) {
		t.Errorf("expected ErrNoScreenshotter, got %v", err)
	}
}

func newMapsServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/geocode/json", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key")
		}
		if r.URL.Query().Get("address") == "Atlantis" {
			w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
			return
		}
		w.Write([]byte(`{"status":"OK","results":[{"geometry":{"location":{"lat":40.7128,"lng":-74.006}}}]}`))
	})
	mux.HandleFunc("/timezone/json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","timeZoneId":"America/New_York"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLookupTimes(t *testing.T) {
	var hits atomic.Int32
	srv := newMapsServer(t, &hits)
	cache, _ := newRedisCache(t)
	svc := NewService(Config{
		Geocoder: NewGeocoder(srv.URL, "test-key", srv.Client()),
		Cache:    cache,
		Now:      func() time.Time { return time.Date(2024, time.June, 21, 15, 0, 0, 0, time.UTC) },
	})
	ctx := context.Background()
	clock := regexp.MustCompile(`^\d{1,2}:\d{2} (AM|PM)$`)

	candles, ok, err := svc.Lookup(ctx, "ai_candlelighting_New_York", nil)
	if err != nil || !ok {
		t.Fatalf("candlelighting: %v %v", ok, err)
	}
	tzeit, ok, err := svc.Lookup(ctx, "ai_tzeit_New_York", nil)
	if err != nil || !ok {
		t.Fatalf("tzeit: %v %v", ok, err)
	}
	for _, v := range []string{candles, tzeit} {
		if !clock.MatchString(v) {
			t.Errorf("%q is not a 12-hour clock time", v)
		}
	}
	// Sunset in New York on the solstice is around 8:31 PM.
	if !strings.HasPrefix(candles, "8:1") || !strings.HasSuffix(candles, "PM") {
		t.Errorf("candle lighting = %s, want about 8:13 PM", candles)
	}
	if !strings.HasSuffix(tzeit, "PM") || tzeit <= candles {
		t.Errorf("tzeit %s should follow candle lighting %s", tzeit, candles)
	}
	if hits.Load() != 1 {
		t.Errorf("geocoded %d times, want 1", hits.Load())
	}

	if _, _, err := svc.Lookup(ctx, "ai_tzeit_Atlantis", nil); !errors.Is(err, ErrLocationNotFound) {
		t.Errorf("expected ErrLocationNotFound, got %v", err)
	}
}

func TestComputeTimeJerusalemOffset(t *testing.T) {
	loc := Location{Latitude: 31.7683, Longitude: 35.2137, TimeZone: "Asia/Jerusalem"}
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	jerusalem, err := ComputeTime(loc, "Jerusalem", CandleLighting, now)
	if err != nil {
		t.Fatal(err)
	}
	elsewhere, err := ComputeTime(loc, "Beit Shemesh", CandleLighting, now)
	if err != nil {
		t.Fatal(err)
	}
	if diff := elsewhere.Sub(jerusalem); diff != 22*time.Minute {
		t.Errorf("Jerusalem offset diff = %s, want 22m", diff)
	}
	if _, err := ComputeTime(loc, "Jerusalem", TimeType("alos"), now); !errors.Is(err, ErrUnsupportedTimeType) {
		t.Errorf("expected ErrUnsupportedTimeType, got %v", err)
	}
}

func TestLocateWithoutKey(t *testing.T) {
	g := NewGeocoder("", "", nil)
	if _, err := g.Locate(context.Background(), "Boston", time.Now()); !errors.Is(err, ErrNoMapsKey) {
		t.Errorf("expected ErrNoMapsKey, got %v", err)
	}
}

func TestRedisCacheExpiry(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "k", Snapshot{Low: "1%"}, time.Minute); err != nil {
		t.Fatal(err)
	}
	var got Snapshot
	hit, err := cache.Get(ctx, "k", &got)
	if err != nil || !hit || got.Low != "1%" {
		t.Fatalf("get = %v %v %+v", hit, err, got)
	}
	if !mr.Exists("smartdata:k") {
		t.Error("expected prefixed key")
	}

	mr.FastForward(2 * time.Minute)
	hit, err = cache.Get(ctx, "k", &got)
	if err != nil || hit {
		t.Errorf("expected miss after ttl, got %v %v", hit, err)
	}
}

func TestKey(t *testing.T) {
	tests := map[string]string{
		"ai_interest_rate_30": "interest_rate_30",
		"home_ai_rate_15":     "rate_15",
		"rate_30":             "rate_30",
	}
	for in, want := range tests {
		if got := Key(in); got != want {
			t.Errorf("Key(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCSSLeftPercent(t *testing.T) {
	tests := map[string]float64{
		"left: 64%;":            64,
		"top:0; LEFT:12.5%":     12.5,
		"width: 10px":           0,
		"left: calc(50% - 2px)": 0,
	}
	for in, want := range tests {
		if got := cssLeftPercent(in); got != want {
			t.Errorf("cssLeftPercent(%q) = %v, want %v", in, got, want)
		}
	}
}
