package assets

import (
	"strings"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/colors"
)

// namedColors covers the keywords the minifier substitutes for hex values
// plus the basic SVG palette.
var namedColors = map[string]string{
	"black":   "#000000",
	"white":   "#ffffff",
	"red":     "#ff0000",
	"lime":    "#00ff00",
	"blue":    "#0000ff",
	"yellow":  "#ffff00",
	"cyan":    "#00ffff",
	"aqua":    "#00ffff",
	"magenta": "#ff00ff",
	"fuchsia": "#ff00ff",
	"green":   "#008000",
	"gray":    "#808080",
	"grey":    "#808080",
	"silver":  "#c0c0c0",
	"maroon":  "#800000",
	"olive":   "#808000",
	"navy":    "#000080",
	"purple":  "#800080",
	"teal":    "#008080",
	"orange":  "#ffa500",
	"azure":   "#f0ffff",
	"beige":   "#f5f5dc",
	"bisque":  "#ffe4c4",
	"brown":   "#a52a2a",
	"coral":   "#ff7f50",
	"gold":    "#ffd700",
	"indigo":  "#4b0082",
	"ivory":   "#fffff0",
	"khaki":   "#f0e68c",
	"linen":   "#faf0e6",
	"orchid":  "#da70d6",
	"peru":    "#cd853f",
	"pink":    "#ffc0cb",
	"plum":    "#dda0dd",
	"salmon":  "#fa8072",
	"sienna":  "#a0522d",
	"snow":    "#fffafa",
	"tan":     "#d2b48c",
	"tomato":  "#ff6347",
	"violet":  "#ee82ee",
	"wheat":   "#f5deb3",
}

// parsePaint parses a fill or stroke value, accepting color keywords.
func parsePaint(value string) (colors.RGB, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if hex, ok := namedColors[v]; ok {
		v = hex
	}
	c, err := colors.Parse(v)
	return c, err == nil
}
