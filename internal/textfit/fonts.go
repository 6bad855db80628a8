package textfit

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Style is a font variant: regular, bold, italic or both.
type Style struct {
	Bold   bool
	Italic bool
}

func (s Style) String() string {
	switch {
	case s.Bold && s.Italic:
		return "bold italic"
	case s.Bold:
		return "bold"
	case s.Italic:
		return "italic"
	default:
		return "regular"
	}
}

// ParseStyle reads a CSS-like variants string such as "italic bold".
func ParseStyle(variants string) Style {
	var s Style
	for _, part := range strings.Fields(strings.ToLower(variants)) {
		switch part {
		case "bold", "bolder", "700", "800", "900":
			s.Bold = true
		case "italic", "oblique":
			s.Italic = true
		}
	}
	return s
}

// Fonts is a registry of parsed OpenType fonts keyed by family and style.
// Lookups for unknown families fall back to the Go font family.
type Fonts struct {
	mu       sync.RWMutex
	families map[string]map[Style]*opentype.Font
	fallback map[Style]*opentype.Font
}

var (
	goFontsOnce sync.Once
	goFonts     map[Style]*opentype.Font
	goFontsErr  error
)

func loadGoFonts() (map[Style]*opentype.Font, error) {
	goFontsOnce.Do(func() {
		sources := map[Style][]byte{
			{}:                         goregular.TTF,
			{Bold: true}:               gobold.TTF,
			{Italic: true}:             goitalic.TTF,
			{Bold: true, Italic: true}: gobolditalic.TTF,
		}
		goFonts = make(map[Style]*opentype.Font, len(sources))
		for style, data := range sources {
			f, err := opentype.Parse(data)
			if err != nil {
				goFontsErr = fmt.Errorf("parse go font %s: %w", style, err)
				return
			}
			goFonts[style] = f
		}
	})
	return goFonts, goFontsErr
}

// NewFonts returns a registry holding only the fallback fonts.
func NewFonts() (*Fonts, error) {
	fallback, err := loadGoFonts()
	if err != nil {
		return nil, err
	}
	return &Fonts{
		families: make(map[string]map[Style]*opentype.Font),
		fallback: fallback,
	}, nil
}

// LoadFonts registers every .ttf and .otf file in dir. Family and style are
// taken from the file name, e.g. "OpenSans-BoldItalic.ttf". An empty dir
// yields the fallback-only registry.
func LoadFonts(dir string) (*Fonts, error) {
	fonts, err := NewFonts()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return fonts, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read fonts dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".ttf" && ext != ".otf" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read font %s: %w", entry.Name(), err)
		}
		family, style := parseFontFileName(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))
		if err := fonts.Register(family, style, data); err != nil {
			log.Printf("textfit: skip font %s: %v", entry.Name(), err)
		}
	}
	return fonts, nil
}

// Register parses data and stores it under family/style.
func (f *Fonts) Register(family string, style Style, data []byte) error {
	parsed, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font: %w", err)
	}
	key := normalizeFamily(family)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.families[key] == nil {
		f.families[key] = make(map[Style]*opentype.Font)
	}
	f.families[key][style] = parsed
	return nil
}

// Lookup returns the font registered for family and style, then the
// family's regular face. The second result is false when neither exists.
func (f *Fonts) Lookup(family string, style Style) (*opentype.Font, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	styles := f.families[normalizeFamily(family)]
	if parsed, ok := styles[style]; ok {
		return parsed, true
	}
	if parsed, ok := styles[Style{}]; ok {
		return parsed, true
	}
	return nil, false
}

// Face builds a face for family/style at size pixels, falling back to the
// Go fonts. Faces are not safe for concurrent use; callers own and close them.
func (f *Fonts) Face(family string, style Style, size float64) (font.Face, error) {
	parsed, ok := f.Lookup(family, style)
	if !ok {
		parsed = f.fallback[style]
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("font face %s %s %.0fpx: %w", family, style, size, err)
	}
	return face, nil
}

func normalizeFamily(family string) string {
	r := strings.NewReplacer(" ", "", "-", "", "_", "", "'", "", `"`, "")
	return strings.ToLower(r.Replace(strings.TrimSpace(family)))
}

func parseFontFileName(name string) (string, Style) {
	family, variant, found := strings.Cut(name, "-")
	if !found {
		return name, Style{}
	}
	lower := strings.ToLower(variant)
	style := Style{
		Bold:   strings.Contains(lower, "bold") || strings.Contains(lower, "black") || strings.Contains(lower, "heavy"),
		Italic: strings.Contains(lower, "italic") || strings.Contains(lower, "oblique"),
	}
	return family, style
}
