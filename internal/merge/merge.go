// Package merge walks a design and applies a brand to every element.
package merge

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/assets"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/colors"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/design"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/placeholder"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/render"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/textfit"
)

var (
	ErrMissingDesign = errors.New("design is required")
	ErrMissingBrand  = errors.New("brand is required")
	ErrNoRenderer    = errors.New("preview requested but no renderer is configured")
)

// Stage names the step an element failed in.
type Stage string

const (
	StagePlaceholder Stage = "placeholder"
	StageColor       Stage = "color"
	StageFit         Stage = "fit"
	StageAsset       Stage = "asset"
)

// Warning records a per-element failure. The element keeps its prior state
// for the failed step and the walk carries on.
type Warning struct {
	PageID      string `json:"pageId,omitempty"`
	ElementID   string `json:"elementId,omitempty"`
	ElementName string `json:"elementName,omitempty"`
	Stage       Stage  `json:"stage"`
	Message     string `json:"message"`
}

type Request struct {
	Design     *design.Design
	Brand      *design.Brand
	User       *design.User
	Additional design.Fields

	WithPreview    bool
	PreviewOptions render.Options
}

type Result struct {
	Design   *design.Design `json:"design"`
	Warnings []Warning      `json:"warnings"`
}

// PreviewStore persists rendered previews and returns their public URL.
type PreviewStore interface {
	PutPreview(ctx context.Context, designID, mimeType string, data []byte) (string, error)
}

type Config struct {
	Placeholders *placeholder.Resolver
	Assets       *assets.Pipeline
	Fitter       *textfit.Fitter
	Renderer     render.Renderer
	Previews     PreviewStore
}

// Merger applies brands to designs. It is safe for concurrent use.
type Merger struct {
	placeholders *placeholder.Resolver
	assets       *assets.Pipeline
	fitter       *textfit.Fitter
	renderer     render.Renderer
	previews     PreviewStore
}

func New(cfg Config) (*Merger, error) {
	m := &Merger{
		placeholders: cfg.Placeholders,
		assets:       cfg.Assets,
		fitter:       cfg.Fitter,
		renderer:     cfg.Renderer,
		previews:     cfg.Previews,
	}
	if m.placeholders == nil {
		m.placeholders = placeholder.New(nil)
	}
	if m.assets == nil {
		m.assets = assets.NewPipeline(nil, nil)
	}
	if m.fitter == nil {
		fonts, err := textfit.NewFonts()
		if err != nil {
			return nil, err
		}
		m.fitter = textfit.NewFitter(fonts)
	}
	return m, nil
}

// walk is the state of a single Merge call.
type walk struct {
	req    Request
	fields design.Fields

	mu       sync.Mutex
	warnings []Warning
}

func (w *walk) warn(page *design.Page, el *design.Element, stage Stage, err error) {
	pageID := ""
	if page != nil {
		pageID = page.ID
	}
	log.Printf("merge: %s failed for element %q (%s): %v", stage, el.Name, el.ID, err)
	w.mu.Lock()
	w.warnings = append(w.warnings, Warning{
		PageID:      pageID,
		ElementID:   el.ID,
		ElementName: el.Name,
		Stage:       stage,
		Message:     err.Error(),
	})
	w.mu.Unlock()
}

// Merge mutates req.Design in place. Pages are processed one after another;
// the elements of a page run concurrently and each element finishes, nested
// children included, before its page is done.
func (m *Merger) Merge(ctx context.Context, req Request) (*Result, error) {
	if req.Design == nil {
		return nil, ErrMissingDesign
	}
	if req.Brand == nil {
		return nil, ErrMissingBrand
	}

	w := &walk{
		req:    req,
		fields: req.Brand.Fields().Merge(req.Additional),
	}
	for _, page := range req.Design.Pages {
		if page == nil {
			continue
		}
		if err := m.processAll(ctx, w, page, page.Children); err != nil {
			return nil, err
		}
	}

	if req.WithPreview {
		if err := m.preview(ctx, req.Design, req.PreviewOptions); err != nil {
			return nil, err
		}
	}

	return &Result{Design: req.Design, Warnings: w.warnings}, nil
}

func (m *Merger) processAll(ctx context.Context, w *walk, page *design.Page, elements []*design.Element) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, el := range elements {
		if el == nil {
			continue
		}
		g.Go(func() error {
			return m.process(ctx, w, page, el)
		})
	}
	return g.Wait()
}

// process brands el and then its children. Only cancellation is returned as
// an error; element failures become warnings.
func (m *Merger) process(ctx context.Context, w *walk, page *design.Page, el *design.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch el.Kind() {
	case design.KindText:
		m.text(ctx, w, page, el)
	case design.KindImage, design.KindSVG:
		err := m.assets.Resolve(ctx, el, assets.Context{
			Brand:      w.req.Brand,
			User:       w.req.User,
			Additional: w.req.Additional,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			w.warn(page, el, StageAsset, err)
		}
	case design.KindFigure, design.KindLine:
		if role, ok := shapeRole(el.Name); ok {
			m.applyRole(w, page, el, role)
		}
	case design.KindGroup, design.KindUnknown:
	}

	if len(el.Children) == 0 {
		return nil
	}
	return m.processAll(ctx, w, page, el.Children)
}

func (m *Merger) text(ctx context.Context, w *walk, page *design.Page, el *design.Element) {
	name, role, hasRole := placeholder.StripRoleSuffix(el.Name)

	out := m.placeholders.Resolve(ctx, placeholder.Input{
		Name:   name,
		User:   w.req.User,
		Brand:  w.req.Brand,
		Fields: w.fields,
	})
	for _, err := range out.Errors {
		w.warn(page, el, StagePlaceholder, err)
	}
	if out.Replaced {
		el.Text = out.Text
	}

	if f, ok := textfit.BrandFont(w.req.Brand, el.FontWeight.Bold(), el.FontStyle == "italic"); ok && f.Name != "" {
		el.FontFamily = f.Name
	}

	if hasRole {
		m.applyRole(w, page, el, role)
	}

	layout, err := m.fitter.Fit(textfit.Request{
		Text:         el.Text,
		MaxWidth:     el.Width,
		MaxHeight:    el.Height,
		FontName:     el.FontFamily,
		FontVariants: textfit.Variants(el.FontStyle, el.FontWeight),
		FontSize:     el.FontSize,
		LineHeight:   el.LineHeight,
	})
	if err != nil {
		w.warn(page, el, StageFit, err)
		return
	}
	// An unset size renders at the editor default, so it stays unset
	// unless fitting had to shrink it.
	if el.FontSize != 0 || layout.FontSize < textfit.DefaultFontSize {
		el.FontSize = layout.FontSize
	}
}

func (m *Merger) applyRole(w *walk, page *design.Page, el *design.Element, role colors.Role) {
	c, ok := colors.ForRole(w.req.Brand, role)
	if !ok {
		w.warn(page, el, StageColor, fmt.Errorf("brand has no color for role %s", role))
		return
	}
	el.SetColors(c)
}

// shapeRole finds the color role of a figure or line: a trailing "{role}"
// or a single "{name_role}" token.
func shapeRole(name string) (colors.Role, bool) {
	if _, role, ok := placeholder.StripRoleSuffix(name); ok {
		return role, true
	}
	tokens := placeholder.Tokens(name)
	if len(tokens) != 1 || name != "{"+tokens[0]+"}" {
		return "", false
	}
	_, role, ok := colors.ParseRoleSuffix(tokens[0])
	return role, ok
}

func (m *Merger) preview(ctx context.Context, d *design.Design, opts render.Options) error {
	if m.renderer == nil {
		return ErrNoRenderer
	}
	mimeType := opts.MimeType
	if mimeType == "" {
		mimeType = render.MimePNG
	}

	encoded, err := m.renderer.Render(ctx, d, opts)
	if err != nil {
		return fmt.Errorf("render preview: %w", err)
	}
	if m.previews == nil {
		d.Preview = render.DataURI(mimeType, encoded)
		return nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode preview: %w", err)
	}
	url, err := m.previews.PutPreview(ctx, d.ID, mimeType, data)
	if err != nil {
		return fmt.Errorf("store preview: %w", err)
	}
	d.Preview = url
	return nil
}
