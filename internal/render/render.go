// Package render turns a merged design into a preview image or PDF.
package render

import (
	"context"
	"errors"
	"fmt"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/design"
)

const (
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimePDF  = "application/pdf"

	defaultQuality = 0.9
	defaultDPI     = 72
)

var (
	ErrUnsupportedMime = errors.New("unsupported render mime type")
	ErrNoPages         = errors.New("design has no pages to render")
)

// Options mirrors the editor's export settings.
type Options struct {
	MimeType   string  `json:"mimeType,omitempty"`
	PixelRatio float64 `json:"pixelRatio,omitempty"`
	// Quality is the JPEG quality between 0 and 1.
	Quality float64 `json:"quality,omitempty"`
	DPI     float64 `json:"dpi,omitempty"`
	// PageIDs limits output to these pages. Images use the first one.
	PageIDs          []string `json:"pageIds,omitempty"`
	IgnoreBackground bool     `json:"ignoreBackground,omitempty"`
}

func (o Options) withDefaults() Options {
	if o.MimeType == "" {
		o.MimeType = MimePNG
	}
	if o.PixelRatio <= 0 {
		o.PixelRatio = 1
	}
	if o.Quality <= 0 || o.Quality > 1 {
		o.Quality = defaultQuality
	}
	if o.DPI <= 0 {
		o.DPI = defaultDPI
	}
	return o
}

func (o Options) validate() error {
	switch o.MimeType {
	case MimePNG, MimeJPEG, MimePDF:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedMime, o.MimeType)
}

// Renderer produces the base64 encoded output for a design.
type Renderer interface {
	Render(ctx context.Context, d *design.Design, opts Options) (string, error)
}

// DataURI wraps base64 output of a render in a data URI.
func DataURI(mimeType, encoded string) string {
	if mimeType == "" {
		mimeType = MimePNG
	}
	return "data:" + mimeType + ";base64," + encoded
}

// selectPages returns the pages named by ids, or all pages when ids is empty.
func selectPages(d *design.Design, ids []string) []*design.Page {
	if len(ids) == 0 {
		return d.Pages
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []*design.Page
	for _, p := range d.Pages {
		if p == nil {
			continue
		}
		if _, ok := want[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}
