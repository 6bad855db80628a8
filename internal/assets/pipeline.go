// Package assets resolves image and svg elements to brand assets: it
// fetches logos, recolors SVG markup and inlines the result as data URIs.
package assets

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/colors"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/design"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/placeholder"
)

var assetName = regexp.MustCompile(`^\{(\w+)\}$`)

// Context carries the per-merge inputs an asset needs.
type Context struct {
	Brand      *design.Brand
	User       *design.User
	Additional design.Fields
}

type Pipeline struct {
	fetcher *Fetcher
	smart   placeholder.SmartSource
}

// NewPipeline returns a pipeline. smart may be nil.
func NewPipeline(fetcher *Fetcher, smart placeholder.SmartSource) *Pipeline {
	if fetcher == nil {
		fetcher = NewFetcher(FetcherOptions{})
	}
	return &Pipeline{fetcher: fetcher, smart: smart}
}

// Resolve brands a single image or svg element named "{type}" or
// "{type_role}". Other elements and names are left alone. The element is
// only written once every step has succeeded.
func (p *Pipeline) Resolve(ctx context.Context, el *design.Element, c Context) error {
	if el == nil {
		return nil
	}
	if kind := el.Kind(); kind != design.KindImage && kind != design.KindSVG {
		return nil
	}
	m := assetName.FindStringSubmatch(el.Name)
	if m == nil {
		return nil
	}
	token := m[1]

	if strings.Contains(token, placeholder.SmartPrefix) {
		return p.smartSource(ctx, el, token, c.Brand)
	}

	base, role, _ := colors.ParseRoleSuffix(token)

	if base == "avatar" && c.User != nil && c.User.Avatar != "" {
		el.Src = c.User.Avatar
		return nil
	}

	if base != "" {
		if src, ok := FindSource(c.Brand, c.Additional, base); ok {
			return p.brandAsset(ctx, el, src, role, c.Brand)
		}
	}
	return p.recolorInPlace(el, role, c.Brand)
}

func (p *Pipeline) smartSource(ctx context.Context, el *design.Element, token string, brand *design.Brand) error {
	if p.smart == nil {
		return nil
	}
	value, ok, err := p.smart.Lookup(ctx, token, brand)
	if err != nil {
		return fmt.Errorf("smart asset %s: %w", token, err)
	}
	if ok {
		el.Src = value
	}
	return nil
}

func (p *Pipeline) brandAsset(ctx context.Context, el *design.Element, src Source, role colors.Role, brand *design.Brand) error {
	asset, err := p.fetcher.Fetch(ctx, src.Value)
	if err != nil {
		return err
	}
	if asset.Kind == AssetRaster {
		el.Src = asset.URL
		return nil
	}

	var width, height float64
	if src.Brand {
		width, height = el.Width, el.Height
	}
	out, err := Transform(asset.Markup, recolorFor(el, role, brand), width, height)
	if err != nil {
		return fmt.Errorf("transform %s: %w", el.Name, err)
	}
	el.Src = EncodeDataURI(out)
	el.ClearColorsReplace()
	return nil
}

// recolorInPlace applies a role or colorsReplace to an element that
// already carries SVG markup.
func (p *Pipeline) recolorInPlace(el *design.Element, role colors.Role, brand *design.Brand) error {
	rc := recolorFor(el, role, brand)
	if rc.Role == "" && len(rc.Replace) == 0 {
		return nil
	}
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(el.Src)), "data:image/svg+xml") {
		return nil
	}
	markup, err := DecodeDataURI(el.Src)
	if err != nil {
		return err
	}
	out, err := Transform(markup, rc, 0, 0)
	if err != nil {
		return fmt.Errorf("recolor %s: %w", el.Name, err)
	}
	el.Src = EncodeDataURI(out)
	el.ClearColorsReplace()
	return nil
}

func recolorFor(el *design.Element, role colors.Role, brand *design.Brand) Recolor {
	rc := Recolor{Brand: brand, Role: role}
	if el.ColorsReplace != nil {
		rc.Replace = *el.ColorsReplace
	}
	return rc
}
