package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/disintegration/imaging"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/design"
)

// Browser runs chromedp actions in a pooled tab.
type Browser interface {
	Run(ctx context.Context, actions ...chromedp.Action) error
	NavigateIdle(url string) chromedp.Action
}

// ChromeRenderer renders designs in the shared headless browser.
type ChromeRenderer struct {
	browser Browser
}

func NewChromeRenderer(browser Browser) *ChromeRenderer {
	return &ChromeRenderer{browser: browser}
}

func (r *ChromeRenderer) Render(ctx context.Context, d *design.Design, opts Options) (string, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return "", err
	}
	pages := selectPages(d, opts.PageIDs)
	if len(pages) == 0 {
		return "", ErrNoPages
	}
	if opts.MimeType != MimePDF {
		pages = pages[:1]
	}

	html, err := BuildHTML(d, pages, opts.IgnoreBackground)
	if err != nil {
		return "", err
	}
	dataURL := "data:text/html;charset=utf-8," + percentEncodeForDataURL(html)

	var out []byte
	switch opts.MimeType {
	case MimePDF:
		out, err = r.pdf(ctx, d, dataURL, opts)
	default:
		out, err = r.screenshot(ctx, d, dataURL, opts)
	}
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

func (r *ChromeRenderer) screenshot(ctx context.Context, d *design.Design, dataURL string, opts Options) ([]byte, error) {
	width, height := pixelSize(d)
	var png []byte
	err := r.browser.Run(ctx,
		chromedp.EmulateViewport(width, height, chromedp.EmulateScale(opts.PixelRatio)),
		r.browser.NavigateIdle(dataURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			png, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithCaptureBeyondViewport(false).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("render screenshot: %w", err)
	}
	if opts.MimeType == MimeJPEG {
		return toJPEG(png, opts.Quality)
	}
	return png, nil
}

func (r *ChromeRenderer) pdf(ctx context.Context, d *design.Design, dataURL string, opts Options) ([]byte, error) {
	width, height := pixelSize(d)
	var data []byte
	err := r.browser.Run(ctx,
		r.browser.NavigateIdle(dataURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			data, _, err = page.PrintToPDF().
				WithPrintBackground(!opts.IgnoreBackground).
				WithPaperWidth(float64(width) / opts.DPI).
				WithPaperHeight(float64(height) / opts.DPI).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return data, nil
}

func pixelSize(d *design.Design) (int64, int64) {
	w := int64(math.Ceil(d.Width))
	h := int64(math.Ceil(d.Height))
	if w <= 0 {
		w = 1080
	}
	if h <= 0 {
		h = 1080
	}
	return w, h
}

// toJPEG re-encodes a PNG screenshot; quality is between 0 and 1.
func toJPEG(png []byte, quality float64) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(png))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	var buf bytes.Buffer
	q := int(math.Round(quality * 100))
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// percentEncodeForDataURL escapes everything outside the RFC 3986 unreserved
// set. Spaces become %20, not "+".
func percentEncodeForDataURL(s string) string {
	const hex = "0123456789ABCDEF"
	var b bytes.Buffer
	b.Grow(len(s) * 2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
	return b.String()
}
