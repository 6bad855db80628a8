// Package design holds the document, brand and user types the branding
// merge operates on.
package design

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Design is an editor document: an ordered list of pages. Properties the
// merge does not model are kept in Extra and written back unchanged.
type Design struct {
	ID      string  `json:"id,omitempty"`
	Name    string  `json:"name,omitempty"`
	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`
	Unit    string  `json:"unit,omitempty"`
	DPI     float64 `json:"dpi,omitempty"`
	Pages   []*Page `json:"pages"`
	Preview string  `json:"preview,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Page is a single page of a design.
type Page struct {
	ID         string     `json:"id,omitempty"`
	Background string     `json:"background,omitempty"`
	Children   []*Element `json:"children"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Element is a node of the page tree. Type selects the variant; the
// variant-specific fields are simply left empty on other kinds.
type Element struct {
	ID       string  `json:"id,omitempty"`
	Type     string  `json:"type"`
	Name     string  `json:"name"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation,omitempty"`

	Text       string     `json:"text,omitempty"`
	FontFamily string     `json:"fontFamily,omitempty"`
	FontSize   float64    `json:"fontSize,omitempty"`
	FontWeight FontWeight `json:"fontWeight,omitempty"`
	FontStyle  string     `json:"fontStyle,omitempty"`
	LineHeight float64    `json:"lineHeight,omitempty"`

	Src           string  `json:"src,omitempty"`
	ColorsReplace *Fields `json:"colorsReplace,omitempty"`

	// Color properties are only ever written when already present.
	Fill   *string `json:"fill,omitempty"`
	Stroke *string `json:"stroke,omitempty"`
	Color  *string `json:"color,omitempty"`

	Children []*Element `json:"children,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Kind returns the parsed element variant.
func (e *Element) Kind() Kind {
	return ParseKind(e.Type)
}

// ClearColorsReplace empties a consumed colorsReplace mapping.
func (e *Element) ClearColorsReplace() {
	if e.ColorsReplace != nil {
		*e.ColorsReplace = Fields{}
	}
}

// SetColors writes value into fill, stroke and color, skipping the ones the
// element does not carry. It reports whether anything was written.
func (e *Element) SetColors(value string) bool {
	wrote := false
	for _, prop := range []*string{e.Fill, e.Stroke, e.Color} {
		if prop != nil {
			*prop = value
			wrote = true
		}
	}
	return wrote
}

// FontWeight accepts both "bold" style keywords and numeric weights.
type FontWeight string

func (w *FontWeight) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*w = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*w = FontWeight(v)
		return nil
	}
	*w = FontWeight(s)
	return nil
}

// Bold reports whether the weight renders as bold.
func (w FontWeight) Bold() bool {
	if w == "bold" || w == "bolder" {
		return true
	}
	n, err := strconv.Atoi(string(w))
	return err == nil && n >= 700
}

// Brand is a brand profile: palette, typography, logos and scalar fields.
type Brand struct {
	ID         string  `json:"id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Email      string  `json:"email,omitempty"`
	Phone      string  `json:"phone,omitempty"`
	Tagline    string  `json:"tagline,omitempty"`
	Industry   string  `json:"industry,omitempty"`
	Logo       string  `json:"logo,omitempty"`
	Wordmark   string  `json:"wordmark,omitempty"`
	Icon       string  `json:"icon,omitempty"`
	Colors     []Color `json:"colors"`
	Fonts      []Font  `json:"fonts"`
	Attributes Fields  `json:"attributes,omitempty"`
}

// Color is one entry of a brand palette.
type Color struct {
	Value   string `json:"value"`
	Primary bool   `json:"primary"`
	Rank    int    `json:"rank"`
}

// Font is one brand typeface variant.
type Font struct {
	Name   string `json:"name"`
	Value  string `json:"value,omitempty"`
	URL    string `json:"url,omitempty"`
	Bold   bool   `json:"bold"`
	Italic bool   `json:"italic"`
	Google bool   `json:"google,omitempty"`
}

// Fields returns the brand's scalar values usable as substitutions, in a
// fixed order: name, email, phone, tagline, industry, logo, wordmark, icon,
// then Attributes in their own order. Empty values are skipped.
func (b *Brand) Fields() Fields {
	if b == nil {
		return nil
	}
	var out Fields
	for _, field := range []Field{
		{"name", b.Name},
		{"email", b.Email},
		{"phone", b.Phone},
		{"tagline", b.Tagline},
		{"industry", b.Industry},
		{"logo", b.Logo},
		{"wordmark", b.Wordmark},
		{"icon", b.Icon},
	} {
		if field.Value != "" {
			out = append(out, field)
		}
	}
	for _, field := range b.Attributes {
		if field.Value != "" {
			out.Set(field.Key, field.Value)
		}
	}
	return out
}

// User is the optional requesting user.
type User struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Walk visits every element of the design depth-first, parents before
// children. Returning false from fn skips the element's children.
func (d *Design) Walk(fn func(page *Page, el *Element) bool) {
	if d == nil {
		return
	}
	for _, page := range d.Pages {
		if page == nil {
			continue
		}
		walkElements(page, page.Children, fn)
	}
}

func walkElements(page *Page, elements []*Element, fn func(*Page, *Element) bool) {
	for _, el := range elements {
		if el == nil {
			continue
		}
		if fn(page, el) {
			walkElements(page, el.Children, fn)
		}
	}
}
