package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/colors"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/design"
)

//go:embed templates/design.html
var templateFS embed.FS

var designTemplate = template.Must(template.ParseFS(templateFS, "templates/design.html"))

const googleFontsURL = "https://fonts.googleapis.com/css2"

// Families the browser already has; no stylesheet is requested for them.
var systemFonts = map[string]struct{}{
	"arial": {}, "helvetica": {}, "times new roman": {}, "times": {}, "courier new": {},
	"courier": {}, "georgia": {}, "verdana": {}, "sans-serif": {}, "serif": {}, "monospace": {},
}

type documentView struct {
	Title     string
	Width     float64
	Height    float64
	FontLinks []template.URL
	Pages     []pageView
}

type pageView struct {
	Style    template.CSS
	Elements []elementView
}

type elementView struct {
	Class string
	Style template.CSS
	Src   template.URL
	Text  string
}

// BuildHTML lays out pages as absolutely positioned boxes. Values taken from
// the document are validated before they reach CSS or URLs.
func BuildHTML(d *design.Design, pages []*design.Page, ignoreBackground bool) (string, error) {
	view := documentView{Title: d.Name, Width: d.Width, Height: d.Height}
	families := make(map[string]struct{})

	for _, p := range pages {
		if p == nil {
			continue
		}
		pv := pageView{}
		if !ignoreBackground {
			pv.Style = backgroundCSS(p.Background)
		}
		appendElements(&pv, p.Children, families)
		view.Pages = append(view.Pages, pv)
	}
	view.FontLinks = fontLinks(families)

	var buf bytes.Buffer
	if err := designTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

// appendElements flattens groups; their children carry page coordinates.
func appendElements(pv *pageView, elements []*design.Element, families map[string]struct{}) {
	for _, el := range elements {
		if el == nil {
			continue
		}
		switch el.Kind() {
		case design.KindGroup:
			appendElements(pv, el.Children, families)
			continue
		case design.KindText:
			if el.FontFamily != "" {
				families[el.FontFamily] = struct{}{}
			}
		}
		if ev, ok := elementFor(el); ok {
			pv.Elements = append(pv.Elements, ev)
		}
	}
}

func elementFor(el *design.Element) (elementView, bool) {
	var css strings.Builder
	fmt.Fprintf(&css, "left:%spx;top:%spx;width:%spx;height:%spx;",
		px(el.X), px(el.Y), px(el.Width), px(el.Height))
	if el.Rotation != 0 {
		fmt.Fprintf(&css, "transform:rotate(%sdeg);", px(el.Rotation))
	}
	if opacity, ok := extraNumber(el, "opacity"); ok && opacity >= 0 && opacity < 1 {
		fmt.Fprintf(&css, "opacity:%s;", px(opacity))
	}

	ev := elementView{}
	switch el.Kind() {
	case design.KindText:
		ev.Class = "text"
		ev.Text = el.Text
		if family := cssFamily(el.FontFamily); family != "" {
			fmt.Fprintf(&css, "font-family:%s;", family)
		}
		if el.FontSize > 0 {
			fmt.Fprintf(&css, "font-size:%spx;", px(el.FontSize))
		}
		if el.FontWeight.Bold() {
			css.WriteString("font-weight:bold;")
		}
		if el.FontStyle == "italic" {
			css.WriteString("font-style:italic;")
		}
		if el.LineHeight > 0 {
			fmt.Fprintf(&css, "line-height:%s;", px(el.LineHeight))
		}
		if align, ok := extraString(el, "align"); ok && (align == "left" || align == "center" || align == "right" || align == "justify") {
			fmt.Fprintf(&css, "text-align:%s;", align)
		}
		if c := cssColor(deref(el.Fill)); c != "" {
			fmt.Fprintf(&css, "color:%s;", c)
		}
	case design.KindImage, design.KindSVG:
		ev.Class = "image"
		src, ok := safeSrc(el.Src)
		if !ok {
			return elementView{}, false
		}
		ev.Src = src
	case design.KindFigure:
		ev.Class = "figure"
		if c := cssColor(deref(el.Fill)); c != "" {
			fmt.Fprintf(&css, "background-color:%s;", c)
		}
		if c := cssColor(deref(el.Stroke)); c != "" {
			width, ok := extraNumber(el, "strokeWidth")
			if !ok || width <= 0 {
				width = 1
			}
			fmt.Fprintf(&css, "border:%spx solid %s;", px(width), c)
		}
		if sub, _ := extraString(el, "subType"); sub == "circle" || sub == "ellipse" {
			css.WriteString("border-radius:50%;")
		}
	case design.KindLine:
		ev.Class = "line"
		c := cssColor(firstNonEmpty(deref(el.Color), deref(el.Stroke), deref(el.Fill)))
		if c == "" {
			c = colors.Black
		}
		fmt.Fprintf(&css, "background-color:%s;", c)
	default:
		return elementView{}, false
	}
	ev.Style = template.CSS(css.String())
	return ev, true
}

func backgroundCSS(background string) template.CSS {
	if c := cssColor(background); c != "" {
		return template.CSS("background-color:" + c + ";")
	}
	if src, ok := safeSrc(background); ok && !strings.ContainsAny(string(src), `"'()\`) {
		return template.CSS(`background-image:url("` + string(src) + `");background-size:cover;`)
	}
	return template.CSS("background-color:" + colors.White + ";")
}

func fontLinks(families map[string]struct{}) []template.URL {
	var names []string
	for family := range families {
		if _, ok := systemFonts[strings.ToLower(family)]; ok {
			continue
		}
		if cssFamily(family) == "" {
			continue
		}
		names = append(names, family)
	}
	sort.Strings(names)

	links := make([]template.URL, 0, len(names))
	for _, name := range names {
		q := url.Values{}
		q.Set("family", name+":ital,wght@0,400;0,700;1,400;1,700")
		q.Set("display", "swap")
		links = append(links, template.URL(googleFontsURL+"?"+q.Encode()))
	}
	return links
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// cssColor returns value normalized to #rrggbb, or "" if it is not a color.
func cssColor(value string) string {
	if strings.EqualFold(strings.TrimSpace(value), "transparent") {
		return "transparent"
	}
	c, err := colors.Parse(value)
	if err != nil {
		return ""
	}
	return c.Hex()
}

func cssFamily(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `"'\;{}<>`) {
		return ""
	}
	return `"` + name + `"`
}

func safeSrc(src string) (template.URL, bool) {
	lower := strings.ToLower(strings.TrimSpace(src))
	if strings.HasPrefix(lower, "data:image/") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://") {
		return template.URL(strings.TrimSpace(src)), true
	}
	return "", false
}

func extraNumber(el *design.Element, key string) (float64, bool) {
	raw, ok := el.Extra[key]
	if !ok {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

func extraString(el *design.Element, key string) (string, bool) {
	raw, ok := el.Extra[key]
	if !ok {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}
