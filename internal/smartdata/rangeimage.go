package smartdata

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/design"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/textfit"
)

const (
	rangeWidth      = 300
	rangeHeight     = 33
	rangeBarEnd     = 195
	rangeBarY       = 15
	rangeTextY      = 8.125
	rangeTextMargin = 10
	rangeFontSize   = 12

	defaultRangePrimary   = "#1A428A"
	defaultRangeSecondary = "#D5BA8C"
)

// DrawRange renders the low/high rate bar with a marker at percent of the
// bar, in the brand's first font and colors. Transparent margins are
// trimmed and the result is PNG encoded.
func DrawRange(fonts *textfit.Fonts, brand *design.Brand, low, high string, percent float64) ([]byte, error) {
	primary, secondary := defaultRangePrimary, defaultRangeSecondary
	family := textfit.DefaultFontName
	if brand != nil {
		for _, c := range brand.Colors {
			if c.Primary && c.Value != "" {
				primary = c.Value
				break
			}
		}
		for _, c := range brand.Colors {
			if !c.Primary && c.Value != "" {
				secondary = c.Value
				break
			}
		}
		if len(brand.Fonts) > 0 && brand.Fonts[0].Name != "" {
			family = brand.Fonts[0].Name
		}
	}

	face, err := fonts.Face(family, textfit.Style{}, rangeFontSize)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	dc := gg.NewContext(rangeWidth, rangeHeight)
	dc.SetFontFace(face)

	dc.SetHexColor("#000000")
	dc.DrawStringAnchored(low, 0, rangeTextY, 0, 1)
	lowWidth, _ := dc.MeasureString(low)

	dc.SetHexColor(primary)
	dc.SetLineWidth(12)
	dc.MoveTo(lowWidth+rangeTextMargin, rangeBarY)
	dc.LineTo(rangeBarEnd, rangeBarY)
	dc.Stroke()

	marker := rangeBarEnd / 100.0 * percent
	dc.SetHexColor(secondary)
	dc.SetLineWidth(3)
	dc.MoveTo(marker, 0)
	dc.LineTo(marker, rangeHeight)
	dc.Stroke()

	dc.SetHexColor("#000000")
	dc.DrawStringAnchored(high, rangeBarEnd+rangeTextMargin, rangeTextY, 0, 1)

	trimmed := trimTransparent(dc.Image())

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, trimmed, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode range image: %w", err)
	}
	return buf.Bytes(), nil
}

// trimTransparent crops img to the bounding box of its non transparent
// pixels. Fully transparent images are returned unchanged.
func trimTransparent(img image.Image) image.Image {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a == 0 {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < minX || maxY < minY {
		return img
	}
	return imaging.Crop(img, image.Rect(minX, minY, maxX+1, maxY+1))
}
