package assets

import (
	"strings"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/design"
)

var allowedDataPrefixes = []string{
	"data:image/svg+xml;base64,",
	"data:image/png;base64,",
	"data:image/jpeg;base64,",
}

// AllowedValue reports whether value may be used as an asset source.
// Inline markup is only trusted when it comes from the brand itself.
func AllowedValue(value string, fromBrand bool) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
		return true
	}
	for _, prefix := range allowedDataPrefixes {
		if strings.HasPrefix(v, prefix) {
			return true
		}
	}
	return fromBrand && strings.HasPrefix(v, "<svg")
}

// Source is an asset reference and where it came from.
type Source struct {
	Value string
	Brand bool
}

// FindSource looks key up in the allow-listed brand fields overlaid with
// the caller's additional fields. Additional values win.
func FindSource(brand *design.Brand, additional design.Fields, key string) (Source, bool) {
	if v, ok := additional.Get(key); ok && AllowedValue(v, false) {
		return Source{Value: v}, true
	}
	if v, ok := brand.Fields().Get(key); ok && AllowedValue(v, true) {
		return Source{Value: v, Brand: true}, true
	}
	return Source{}, false
}
