// Package colors resolves symbolic brand color roles to concrete values.
package colors

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/design"
)

const (
	Black = "#000000"
	White = "#ffffff"

	// passRatio is the (darker+0.05)/(lighter+0.05) ratio below which two
	// colors are considered readable on each other. Equivalent to 4.5:1.
	passRatio = 0.22222

	hspThreshold = 127.5
)

var ErrInvalidColor = errors.New("invalid color")

// RGB is an 8-bit sRGB triple.
type RGB struct {
	R, G, B uint8
}

var (
	hexShort = regexp.MustCompile(`^#?([a-fA-F\d])([a-fA-F\d])([a-fA-F\d])$`)
	hexLong  = regexp.MustCompile(`^#?([a-fA-F\d]{2})([a-fA-F\d]{2})([a-fA-F\d]{2})$`)
	rgbFunc  = regexp.MustCompile(`^rgba?\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*(?:,\s*(\d+(?:\.\d+)?)\s*)?\)$`)
)

// Parse accepts #rgb, #rrggbb, rgb(r, g, b) and rgba(r, g, b, a).
func Parse(s string) (RGB, error) {
	s = strings.TrimSpace(s)
	if m := hexShort.FindStringSubmatch(s); m != nil {
		s = m[1] + m[1] + m[2] + m[2] + m[3] + m[3]
	}
	if m := hexLong.FindStringSubmatch(s); m != nil {
		var out [3]uint8
		for i := range out {
			v, _ := strconv.ParseUint(m[i+1], 16, 8)
			out[i] = uint8(v)
		}
		return RGB{out[0], out[1], out[2]}, nil
	}
	if m := rgbFunc.FindStringSubmatch(s); m != nil {
		var out [3]uint8
		for i := range out {
			v, err := strconv.Atoi(m[i+1])
			if err != nil || v > 255 {
				return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
			}
			out[i] = uint8(v)
		}
		return RGB{out[0], out[1], out[2]}, nil
	}
	return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
}

// Hex formats the color as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Luminance is the WCAG relative luminance of c.
func (c RGB) Luminance() float64 {
	channel := func(v uint8) float64 {
		f := float64(v) / 255
		if f <= 0.03928 {
			return f / 12.92
		}
		return math.Pow((f+0.055)/1.055, 2.4)
	}
	return channel(c.R)*0.2126 + channel(c.G)*0.7152 + channel(c.B)*0.0722
}

// Light reports whether c is perceived as light (HSP brightness).
func (c RGB) Light() bool {
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	return math.Sqrt(0.299*r*r+0.587*g*g+0.114*b*b) > hspThreshold
}

// Contrast returns (min(La,Lb)+0.05)/(max(La,Lb)+0.05). Lower is more
// contrast; 1 means identical luminance.
func Contrast(a, b string) (float64, error) {
	ca, err := Parse(a)
	if err != nil {
		return 0, err
	}
	cb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	la, lb := ca.Luminance(), cb.Luminance()
	return (math.Min(la, lb) + 0.05) / (math.Max(la, lb) + 0.05), nil
}

// Pass reports whether a and b contrast enough to be used together.
// Unparsable colors never pass.
func Pass(a, b string) bool {
	ratio, err := Contrast(a, b)
	if err != nil {
		return false
	}
	return ratio < passRatio
}

// IsLight reports whether color is light. Unparsable colors are dark.
func IsLight(color string) bool {
	c, err := Parse(color)
	if err != nil {
		return false
	}
	return c.Light()
}

// FindPrimary returns the first brand color whose primary flag equals
// isPrimary. When none matches, the highest ranked color is used, ties
// going to the earlier entry.
func FindPrimary(brand *design.Brand, isPrimary bool) (string, bool) {
	if brand == nil || len(brand.Colors) == 0 {
		return "", false
	}
	for _, c := range brand.Colors {
		if c.Primary == isPrimary {
			return c.Value, c.Value != ""
		}
	}
	best := brand.Colors[0]
	for _, c := range brand.Colors[1:] {
		if c.Rank > best.Rank {
			best = c
		}
	}
	return best.Value, best.Value != ""
}

// role maps the two symbolic roles to a brand color and passes anything
// else through as a literal color.
func role(brand *design.Brand, value string) (string, bool) {
	switch value {
	case "":
		return "", false
	case "primary":
		return FindPrimary(brand, true)
	case "secondary":
		return FindPrimary(brand, false)
	default:
		return value, true
	}
}

// Resolve picks the brand color for top ("primary" selects the primary
// color, anything else the secondary). When bottom is given and the pair
// does not pass the contrast check, black or white is returned depending
// on the brightness of bottom. Without a bottom, fallback is checked the
// same way.
func Resolve(brand *design.Brand, top, bottom, fallback string) (string, bool) {
	hex, ok := FindPrimary(brand, top == "primary")
	if !ok {
		return "", false
	}

	against := bottom
	if against == "" {
		against = fallback
	}
	counterpart, ok := role(brand, against)
	if !ok {
		return hex, true
	}
	if _, err := Parse(counterpart); err != nil {
		return hex, true
	}
	if Pass(hex, counterpart) {
		return hex, true
	}
	if IsLight(counterpart) {
		return Black, true
	}
	return White, true
}

// Darker returns whichever of the two roles resolves to the lower luminance.
func Darker(brand *design.Brand, top, bottom string) (string, bool) {
	return compareRoles(brand, top, bottom, func(a, b float64) bool { return a < b })
}

// Lighter returns whichever of the two roles resolves to the higher luminance.
func Lighter(brand *design.Brand, top, bottom string) (string, bool) {
	return compareRoles(brand, top, bottom, func(a, b float64) bool { return a > b })
}

func compareRoles(brand *design.Brand, top, bottom string, pickTop func(a, b float64) bool) (string, bool) {
	a, ok := FindPrimary(brand, top == "primary")
	if !ok {
		return "", false
	}
	b, ok := FindPrimary(brand, bottom == "primary")
	if !ok {
		return "", false
	}
	ca, errA := Parse(a)
	cb, errB := Parse(b)
	if errA != nil || errB != nil {
		return "", false
	}
	if pickTop(ca.Luminance(), cb.Luminance()) {
		return a, true
	}
	return b, true
}

// RankedValues lists the brand colors with the primary first and the rest
// in ascending rank order.
func RankedValues(brand *design.Brand) []string {
	if brand == nil {
		return nil
	}
	sorted := make([]design.Color, len(brand.Colors))
	copy(sorted, brand.Colors)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Primary != sorted[j].Primary {
			return sorted[i].Primary
		}
		return sorted[i].Rank < sorted[j].Rank
	})
	out := make([]string, 0, len(sorted))
	for _, c := range sorted {
		out = append(out, c.Value)
	}
	return out
}
