package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chromedp/chromedp"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/browser"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/design"
)

func strPtr(s string) *string { return &s }

func sampleDesign() *design.Design {
	return &design.Design{
		Name:   "Flyer",
		Width:  200,
		Height: 100,
		Pages: []*design.Page{
			{
				ID:         "p1",
				Background: "#F2C94C",
				Children: []*design.Element{
					{Type: "text", Name: "title", X: 10, Y: 5, Width: 180, Height: 40,
						Text: "Hello <World>", FontFamily: "Roboto", FontSize: 24, FontWeight: "700", Fill: strPtr("#1A428A")},
					{Type: "group", Children: []*design.Element{
						{Type: "figure", X: 0, Y: 50, Width: 20, Height: 20, Fill: strPtr("red;background:url(x)")},
						{Type: "image", X: 30, Y: 50, Width: 20, Height: 20, Src: "data:image/png;base64,AAAA"},
					}},
					{Type: "image", Src: "javascript:alert(1)"},
				},
			},
			{ID: "p2", Background: "https://cdn.example.com/bg.png"},
		},
	}
}

func TestBuildHTML(t *testing.T) {
	d := sampleDesign()
	html, err := BuildHTML(d, d.Pages[:1], false)
	if err != nil {
		t.Fatalf("BuildHTML failed: %v", err)
	}

	for _, want := range []string{
		"Hello &lt;World&gt;",
		"font-family:&#34;Roboto&#34;",
		"font-weight:bold",
		"color:#1a428a",
		"background-color:#f2c94c",
		`src="data:image/png;base64,AAAA"`,
		"fonts.googleapis.com/css2?display=swap&amp;family=Roboto",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in html:\n%s", want, html)
		}
	}
	for _, banned := range []string{"javascript:", "background:url(x)"} {
		if strings.Contains(html, banned) {
			t.Errorf("unsafe value %q leaked into html", banned)
		}
	}
	if strings.Count(html, `class="page"`) != 1 {
		t.Errorf("expected a single page")
	}
}

func TestBuildHTMLIgnoresBackground(t *testing.T) {
	d := sampleDesign()
	html, err := BuildHTML(d, d.Pages, true)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "#f2c94c") || strings.Contains(html, "bg.png") {
		t.Errorf("backgrounds should be skipped")
	}
	if strings.Count(html, `class="page"`) != 2 {
		t.Errorf("expected two pages")
	}
}

func TestSelectPages(t *testing.T) {
	d := sampleDesign()
	if got := selectPages(d, nil); len(got) != 2 {
		t.Errorf("expected all pages, got %d", len(got))
	}
	got := selectPages(d, []string{"p2", "missing"})
	if len(got) != 1 || got[0].ID != "p2" {
		t.Errorf("unexpected selection %+v", got)
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	got := percentEncodeForDataURL(`<p class="a">x y</p>`)
	want := "%3Cp%20class%3D%22a%22%3Ex%20y%3C%2Fp%3E"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestToJPEG(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(1, 1, color.NRGBA{R: 10, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	out, err := toJPEG(buf.Bytes(), 0.8)
	if err != nil {
		t.Fatalf("toJPEG failed: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a jpeg: %v", err)
	}
	if decoded.Bounds().Dx() != 8 {
		t.Errorf("unexpected width %d", decoded.Bounds().Dx())
	}

	if _, err := toJPEG([]byte("nope"), 0.8); err == nil {
		t.Error("expected decode error")
	}
}

type fakeBrowser struct {
	runFn func(ctx context.Context, actions ...chromedp.Action) error
}

func (f *fakeBrowser) Run(ctx context.Context, actions ...chromedp.Action) error {
	return f.runFn(ctx, actions...)
}

func (f *fakeBrowser) NavigateIdle(url string) chromedp.Action {
	return chromedp.Navigate(url)
}

func TestChromeRendererValidation(t *testing.T) {
	calls := 0
	r := NewChromeRenderer(&fakeBrowser{runFn: func(ctx context.Context, actions ...chromedp.Action) error {
		calls++
		return errors.New("boom")
	}})
	ctx := context.Background()

	if _, err := r.Render(ctx, sampleDesign(), Options{MimeType: "image/gif"}); !errors.Is(err, ErrUnsupportedMime) {
		t.Errorf("expected ErrUnsupportedMime, got %v", err)
	}
	if _, err := r.Render(ctx, sampleDesign(), Options{PageIDs: []string{"nope"}}); !errors.Is(err, ErrNoPages) {
		t.Errorf("expected ErrNoPages, got %v", err)
	}
	if calls != 0 {
		t.Errorf("browser used before validation passed")
	}
	if _, err := r.Render(ctx, sampleDesign(), Options{}); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected browser error, got %v", err)
	}
}

func TestChromeRendererWithChrome(t *testing.T) {
	if !browser.Available() {
		t.Skip("chromium not installed")
	}
	pool := browser.NewPool(browser.Options{})
	defer pool.Close()

	out, err := NewChromeRenderer(pool).Render(context.Background(), sampleDesign(), Options{PixelRatio: 2})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(out)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("not a png: %v", err)
	}
	if img.Bounds().Dx() != 400 || img.Bounds().Dy() != 200 {
		t.Errorf("unexpected size %v", img.Bounds())
	}
}

func TestRemoteRenderer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Design  design.Design `json:"design"`
			Options Options       `json:"options"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Options.MimeType != MimeJPEG || req.Design.Name != "Flyer" {
			t.Errorf("unexpected request %+v", req.Options)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"data": "data:image/jpeg;base64,QUJD"})
	}))
	defer srv.Close()

	out, err := NewRemoteRenderer(srv.URL, nil).Render(context.Background(), sampleDesign(), Options{MimeType: MimeJPEG})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out != "QUJD" {
		t.Errorf("expected bare base64, got %s", out)
	}
}

func TestRemoteRendererError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "out of memory"})
	}))
	defer srv.Close()

	_, err := NewRemoteRenderer(srv.URL, nil).Render(context.Background(), sampleDesign(), Options{})
	if !errors.Is(err, ErrRemoteRender) || !strings.Contains(err.Error(), "out of memory") {
		t.Errorf("expected remote error, got %v", err)
	}
}

func TestDataURI(t *testing.T) {
	if got := DataURI("", "QUJD"); got != "data:image/png;base64,QUJD" {
		t.Errorf("unexpected %s", got)
	}
}
