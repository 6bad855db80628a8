// Package textfit computes the largest font size at which a text block
// wraps inside a box.
package textfit

import (
	"math"
	"strings"

	"golang.org/x/image/font"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/design"
)

const (
	DefaultMaxWidth   = 770
	DefaultMaxHeight  = 548
	DefaultFontSize   = 120
	DefaultLineHeight = 1.22
	DefaultFontName   = "Arial"

	MinFontSize = 1
)

// Request describes one text block to fit.
type Request struct {
	Text         string
	MaxWidth     float64
	MaxHeight    float64
	FontName     string
	FontVariants string
	FontSize     float64
	LineHeight   float64
}

// Layout is the fitted result.
type Layout struct {
	FontSize float64
	Lines    []string
	Height   float64
	// Fits is false when the block still overflows at MinFontSize.
	Fits bool
}

// Fitter shrinks font sizes until text fits its box.
type Fitter struct {
	fonts *Fonts
}

func NewFitter(fonts *Fonts) *Fitter {
	return &Fitter{fonts: fonts}
}

func (r Request) withDefaults() Request {
	if r.MaxWidth == 0 {
		r.MaxWidth = DefaultMaxWidth
	}
	if r.MaxHeight == 0 {
		r.MaxHeight = DefaultMaxHeight
	}
	if r.FontSize == 0 {
		r.FontSize = DefaultFontSize
	}
	if r.LineHeight == 0 {
		r.LineHeight = DefaultLineHeight
	}
	if r.FontName == "" {
		r.FontName = DefaultFontName
	}
	return r
}

// Fit decrements the font size one pixel at a time, starting from the
// requested size, until the wrapped block satisfies both the height and
// the per-line width limits. The result never exceeds the requested size.
func (f *Fitter) Fit(req Request) (Layout, error) {
	req = req.withDefaults()
	style := ParseStyle(req.FontVariants)

	size := math.Floor(req.FontSize)
	if size < MinFontSize {
		return Layout{FontSize: req.FontSize, Lines: splitParagraphs(req.Text), Fits: false}, nil
	}

	var layout Layout
	for ; size >= MinFontSize; size-- {
		face, err := f.fonts.Face(req.FontName, style, size)
		if err != nil {
			return Layout{}, err
		}
		lines := wrap(face, req.Text, req.MaxWidth)
		height := linePixels(size, req.LineHeight) * float64(len(lines))
		fits := height <= req.MaxHeight && widest(face, lines) <= req.MaxWidth
		face.Close()

		layout = Layout{FontSize: size, Lines: lines, Height: height, Fits: fits}
		if fits {
			return layout, nil
		}
	}
	return layout, nil
}

func linePixels(size, lineHeight float64) float64 {
	if lineHeight == 0 {
		return size
	}
	return math.Floor(size * lineHeight)
}

func splitParagraphs(text string) []string {
	return strings.Split(text, "\n")
}

// wrap greedily packs space-separated words onto lines while the measured
// width stays under maxWidth. Hard line breaks always start a new line.
func wrap(face font.Face, text string, maxWidth float64) []string {
	var lines []string
	for _, paragraph := range splitParagraphs(text) {
		words := strings.Split(paragraph, " ")
		current := words[0]
		for _, word := range words[1:] {
			candidate := current + " " + word
			if measure(face, candidate) < maxWidth {
				current = candidate
				continue
			}
			lines = append(lines, current)
			current = word
		}
		lines = append(lines, current)
	}
	return lines
}

func widest(face font.Face, lines []string) float64 {
	var most float64
	for _, line := range lines {
		if w := measure(face, line); w > most {
			most = w
		}
	}
	return most
}

func measure(face font.Face, s string) float64 {
	return float64(font.MeasureString(face, s)) / 64
}

// Variants builds the canvas-style variants string for a text element.
func Variants(fontStyle string, fontWeight design.FontWeight) string {
	italic := fontStyle == "italic"
	bold := fontWeight.Bold()
	switch {
	case italic && bold:
		return "italic bold"
	case italic:
		return "italic"
	case bold:
		return "bold"
	default:
		return ""
	}
}

// BrandFont returns the first brand font whose bold and italic flags both
// match the element's style.
func BrandFont(brand *design.Brand, bold, italic bool) (design.Font, bool) {
	if brand == nil {
		return design.Font{}, false
	}
	for _, f := range brand.Fonts {
		if f.Bold == bold && f.Italic == italic {
			return f, true
		}
	}
	return design.Font{}, false
}
