package assets

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/colors"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/design"
)

const svgDataPrefix = "data:image/svg+xml;base64,"

var ErrNotSVG = errors.New("asset is not svg markup")

var (
	styleBlock    = regexp.MustCompile(`(?is)<style[^>]*>(.*?)</style>`)
	cssRule       = regexp.MustCompile(`([^{}]+)\{([^}]*)\}`)
	cssComment    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	classSelector = regexp.MustCompile(`^[\w-]*\.([\w-]+)$`)
	classAttr     = regexp.MustCompile(`\sclass="([^"]*)"`)
	styleAttr     = regexp.MustCompile(`\sstyle="([^"]*)"`)
	openGroup     = regexp.MustCompile(`(?is)<g(\s[^>]*)?/?>`)
	closeGroup    = regexp.MustCompile(`(?i)</g\s*>`)
	defsBlock     = regexp.MustCompile(`(?is)<defs[^>]*/>|<defs[^>]*>.*?</defs\s*>`)
	clipMaskBlock = regexp.MustCompile(`(?is)<(clipPath|mask)[^>]*>.*?</(clipPath|mask)\s*>`)
	clipMaskAttr  = regexp.MustCompile(`(?i)\s(clip-path|mask)="[^"]*"`)
	paintAttr     = regexp.MustCompile(`(?i)\b(fill|stroke)="([^"]*)"`)
	pathData      = regexp.MustCompile(`\sd="([^"]*)"`)
	fillAttr      = regexp.MustCompile(`(?i)\bfill="([^"]*)"`)
	shapeTag      = regexp.MustCompile(`(?i)<(path|rect|circle|ellipse|polygon|polyline|line|text|tspan|use)\b([^>]*?)(/?)>`)
	rootTag       = regexp.MustCompile(`(?is)<svg\b[^>]*>`)
	svgMarkup     = regexp.MustCompile(`(?is)<svg\b.*</svg\s*>`)
	numAttr       = func(name string) *regexp.Regexp {
		return regexp.MustCompile(`(?i)\s` + name + `="([^"]*)"`)
	}
	widthAttr   = numAttr("width")
	heightAttr  = numAttr("height")
	viewBoxAttr = numAttr("viewBox")
)

// ExtractSVG returns the <svg>…</svg> portion of body, or false if there is
// none. HTML pages wrapping a single inline SVG are accepted.
func ExtractSVG(body string) (string, bool) {
	m := svgMarkup.FindString(body)
	if m == "" {
		return "", false
	}
	return m, true
}

// EncodeDataURI wraps markup in a base64 SVG data URI.
func EncodeDataURI(markup string) string {
	return svgDataPrefix + base64.StdEncoding.EncodeToString([]byte(markup))
}

// DecodeDataURI returns the markup of an SVG data URI in base64, utf8 or
// percent-encoded form.
func DecodeDataURI(uri string) (string, error) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(strings.ToLower(header), "data:image/svg+xml") {
		return "", ErrNotSVG
	}
	if strings.HasSuffix(strings.ToLower(header), ";base64") {
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", fmt.Errorf("decode svg data uri: %w", err)
		}
		return string(raw), nil
	}
	if decoded, err := url.PathUnescape(payload); err == nil {
		return decoded, nil
	}
	return payload, nil
}

// Recolor describes how a transform repaints markup.
type Recolor struct {
	Brand *design.Brand
	// Role recolors every fill and stroke with the role color when there is
	// no explicit mapping, or picks the mapping targets otherwise.
	Role colors.Role
	// Replace maps source colors found in the markup to target slots.
	Replace design.Fields
}

// Transform is the full rewrite applied to an SVG asset before it is
// inlined: styles become attributes, wrappers are removed, the markup is
// minified, colors are applied and, when width and height are given, the
// root size is restamped. Colors go in after minification so they appear
// exactly as resolved.
func Transform(markup string, rc Recolor, width, height float64) (string, error) {
	out, ok := ExtractSVG(markup)
	if !ok {
		return "", ErrNotSVG
	}
	out = InlineStyles(out)
	out = StripWrappers(out)

	out, err := Minify(out)
	if err != nil {
		return "", err
	}
	out = applyColors(out, rc)
	if width > 0 && height > 0 {
		out = Restamp(out, width, height)
	}
	return out, nil
}

func applyColors(markup string, rc Recolor) string {
	switch {
	case rc.Role != "" && len(rc.Replace) > 0:
		targets := colors.Scheme(rc.Brand, rc.Role)
		if len(targets) == 0 {
			targets = colors.RankedValues(rc.Brand)
		}
		return ReplaceColors(markup, mapping(rc.Replace, targets))
	case rc.Role != "":
		if c, ok := colors.ForRole(rc.Brand, rc.Role); ok {
			return Repaint(markup, c)
		}
		return markup
	case len(rc.Replace) > 0:
		return ReplaceColors(markup, mapping(rc.Replace, colors.RankedValues(rc.Brand)))
	default:
		return whiteToPrimary(markup, rc.Brand)
	}
}

// mapping pairs the source keys of replace with targets by position.
// Sources beyond the available targets keep their own color.
func mapping(replace design.Fields, targets []string) design.Fields {
	var out design.Fields
	for i, field := range replace {
		if i < len(targets) && targets[i] != "" {
			out = append(out, design.Field{Key: field.Key, Value: targets[i]})
		}
	}
	return out
}

// InlineStyles turns class rules from <style> blocks and style attributes
// into fill and stroke attributes.
func InlineStyles(markup string) string {
	rules := make(map[string]map[string]string)
	for _, block := range styleBlock.FindAllStringSubmatch(markup, -1) {
		for _, rule := range cssRule.FindAllStringSubmatch(cssComment.ReplaceAllString(block[1], ""), -1) {
			decls := paintDecls(rule[2])
			if len(decls) == 0 {
				continue
			}
			for _, class := range selectorClasses(rule[1]) {
				if rules[class] == nil {
					rules[class] = make(map[string]string)
				}
				for k, v := range decls {
					rules[class][k] = v
				}
			}
		}
	}

	if len(rules) > 0 {
		markup = classAttr.ReplaceAllStringFunc(markup, func(attr string) string {
			names := strings.Fields(classAttr.FindStringSubmatch(attr)[1])
			merged := make(map[string]string)
			for _, name := range names {
				for k, v := range rules[name] {
					merged[k] = v
				}
			}
			if len(merged) == 0 {
				return attr
			}
			return formatPaint(merged)
		})
	}

	return styleAttr.ReplaceAllStringFunc(markup, func(attr string) string {
		decls := paintDecls(styleAttr.FindStringSubmatch(attr)[1])
		if len(decls) == 0 {
			return attr
		}
		return formatPaint(decls)
	})
}

// selectorClasses lists the class names of a selector group such as
// ".a, path.b". Selectors that are not a plain class are skipped.
func selectorClasses(group string) []string {
	var out []string
	for _, sel := range strings.Split(group, ",") {
		if m := classSelector.FindStringSubmatch(strings.TrimSpace(sel)); m != nil {
			out = append(out, m[1])
		}
	}
	return out
}

func paintDecls(css string) map[string]string {
	out := make(map[string]string)
	for _, decl := range strings.Split(css, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "fill" || name == "stroke" {
			out[name] = strings.TrimSpace(value)
		}
	}
	return out
}

func formatPaint(decls map[string]string) string {
	var b strings.Builder
	for _, name := range []string{"fill", "stroke"} {
		if v, ok := decls[name]; ok {
			fmt.Fprintf(&b, ` %s="%s"`, name, v)
		}
	}
	return b.String()
}

// StripWrappers removes group and definition wrappers along with the clip
// and mask references that pointed into them.
func StripWrappers(markup string) string {
	markup = styleBlock.ReplaceAllString(markup, "")
	markup = defsBlock.ReplaceAllString(markup, "")
	markup = clipMaskBlock.ReplaceAllString(markup, "")
	markup = clipMaskAttr.ReplaceAllString(markup, "")
	markup = openGroup.ReplaceAllString(markup, "")
	return closeGroup.ReplaceAllString(markup, "")
}

func paintable(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return v != "none" && v != "transparent" && !strings.HasPrefix(v, "url(")
}

// Repaint sets every fill and stroke to color and gives shapes without a
// fill attribute an explicit one.
func Repaint(markup, color string) string {
	markup = paintAttr.ReplaceAllStringFunc(markup, func(attr string) string {
		m := paintAttr.FindStringSubmatch(attr)
		if !paintable(m[2]) {
			return attr
		}
		return fmt.Sprintf(`%s="%s"`, m[1], color)
	})
	return fillShapes(markup, color)
}

func fillShapes(markup, color string) string {
	return shapeTag.ReplaceAllStringFunc(markup, func(tag string) string {
		m := shapeTag.FindStringSubmatch(tag)
		if fillAttr.MatchString(m[2]) {
			return tag
		}
		return fmt.Sprintf(`<%s%s fill="%s"%s>`, m[1], m[2], color, m[3])
	})
}

// ReplaceColors rewrites fill and stroke values that match a source key of
// mapping to its value. Colors are compared after parsing, so "#000" and
// "rgb(0, 0, 0)" are the same source.
// Shapes without a fill paint black, so a black source also claims them.
func ReplaceColors(markup string, mapping design.Fields) string {
	if len(mapping) == 0 {
		return markup
	}
	markup = paintAttr.ReplaceAllStringFunc(markup, func(attr string) string {
		m := paintAttr.FindStringSubmatch(attr)
		for _, field := range mapping {
			if sameColor(m[2], field.Key) {
				return fmt.Sprintf(`%s="%s"`, m[1], field.Value)
			}
		}
		return attr
	})
	for _, field := range mapping {
		if sameColor(field.Key, colors.Black) {
			return fillShapes(markup, field.Value)
		}
	}
	return markup
}

func sameColor(a, b string) bool {
	ca, okA := parsePaint(a)
	cb, okB := parsePaint(b)
	if !okA || !okB {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	return ca == cb
}

func isWhite(value string) bool {
	c, ok := parsePaint(value)
	return ok && c == colors.RGB{R: 255, G: 255, B: 255}
}

// whiteToPrimary repaints markup whose every fill is white with the brand
// primary, so white logos stay visible on light templates.
func whiteToPrimary(markup string, brand *design.Brand) string {
	fills := fillAttr.FindAllStringSubmatch(markup, -1)
	if len(fills) == 0 {
		return markup
	}
	for _, f := range fills {
		if !isWhite(f[1]) {
			return markup
		}
	}
	primary, ok := colors.FindPrimary(brand, true)
	if !ok {
		primary = colors.Black
	}
	return fillAttr.ReplaceAllString(markup, fmt.Sprintf(`fill="%s"`, primary))
}

var minifier = func() *minify.M {
	m := minify.New()
	m.Add("image/svg+xml", &svg.Minifier{Precision: 0})
	return m
}()

// Minify compacts markup without reducing numeric precision. Path data is
// written back as authored so the artwork stays editable.
func Minify(markup string) (string, error) {
	original := pathData.FindAllStringSubmatch(markup, -1)
	out, err := minifier.String("image/svg+xml", markup)
	if err != nil {
		return "", fmt.Errorf("minify svg: %w", err)
	}
	return restorePathData(out, original), nil
}

// restorePathData puts the authored d values back in document order. When
// the minifier dropped a path the pairing is unknown and out is kept as is.
func restorePathData(out string, original [][]string) string {
	if len(original) == 0 || len(pathData.FindAllStringIndex(out, -1)) != len(original) {
		return out
	}
	i := 0
	return pathData.ReplaceAllStringFunc(out, func(attr string) string {
		value := strings.Join(strings.Fields(original[i][1]), " ")
		i++
		return attr[:1] + `d="` + value + `"`
	})
}

// Restamp sets the root width and height to the element box. When the root
// has no viewBox, one is derived from its original numeric size first so
// the artwork scales instead of being cropped.
func Restamp(markup string, width, height float64) string {
	loc := rootTag.FindStringIndex(markup)
	if loc == nil {
		return markup
	}
	root := markup[loc[0]:loc[1]]
	body := strings.TrimSuffix(strings.TrimSuffix(root, ">"), "/")
	selfClosing := strings.HasSuffix(strings.TrimSuffix(root, ">"), "/")

	if !viewBoxAttr.MatchString(body) {
		ow, okW := attrNumber(body, widthAttr)
		oh, okH := attrNumber(body, heightAttr)
		if okW && okH && ow > 0 && oh > 0 {
			body += fmt.Sprintf(` viewBox="0 0 %s %s"`, formatNumber(ow), formatNumber(oh))
		}
	}
	body = widthAttr.ReplaceAllString(body, "")
	body = heightAttr.ReplaceAllString(body, "")
	body += fmt.Sprintf(` width="%s" height="%s"`, formatNumber(width), formatNumber(height))
	if selfClosing {
		body += "/"
	}
	return markup[:loc[0]] + body + ">" + markup[loc[1]:]
}

func attrNumber(tag string, re *regexp.Regexp) (float64, bool) {
	m := re.FindStringSubmatch(tag)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(m[1]), "px"), 64)
	return v, err == nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
