package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/design"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/merge"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/render"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/store"
)

const (
	maxBatchDesigns = 25
	batchWorkers    = 4
)

type dataStore interface {
	Ping(context.Context) error
	GetDesign(context.Context, string) (*design.Design, error)
	SaveDesign(context.Context, *design.Design) error
	ListDesigns(context.Context, int) ([]store.DesignSummary, error)
	GetBrand(context.Context, string) (*design.Brand, error)
	GetBrandForUser(context.Context, string, string) (*design.Brand, error)
	GetUserByEmail(context.Context, string) (*design.User, error)
}

type merger interface {
	Merge(context.Context, merge.Request) (*merge.Result, error)
}

type pinger interface {
	Ping(context.Context) error
}

// MergeInput brands a stored design. The brand comes from BrandID, or from
// the brands of the user with UserEmail when one is given.
type MergeInput struct {
	DesignID       string         `json:"designId"`
	BrandID        string         `json:"brandId"`
	UserEmail      string         `json:"userEmail"`
	Additional     design.Fields  `json:"additional"`
	WithPreview    bool           `json:"withPreview"`
	PreviewOptions render.Options `json:"previewOptions"`
	Save           bool           `json:"save"`
}

// InlineInput carries a design and brand supplied by the caller.
type InlineInput struct {
	Design         *design.Design `json:"design"`
	Brand          *design.Brand  `json:"brand"`
	User           *design.User   `json:"user"`
	Additional     design.Fields  `json:"additional"`
	WithPreview    bool           `json:"withPreview"`
	PreviewOptions render.Options `json:"previewOptions"`
}

type BatchInput struct {
	MergeInput
	DesignIDs []string `json:"designIds"`
}

type BatchItem struct {
	DesignID string          `json:"designId"`
	Design   *design.Design  `json:"design,omitempty"`
	Warnings []merge.Warning `json:"warnings,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type Service struct {
	store  dataStore
	merger merger
	cache  pinger
}

func New(store dataStore, merger merger) *Service {
	return &Service{store: store, merger: merger}
}

// WithCache adds the smart data cache to readiness checks.
func (s *Service) WithCache(cache pinger) *Service {
	s.cache = cache
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PingCache(ctx context.Context) (bool, error) {
	if s.cache == nil {
		return false, nil
	}
	return true, s.cache.Ping(ctx)
}

func (s *Service) ListDesigns(ctx context.Context, limit int) ([]store.DesignSummary, error) {
	return s.store.ListDesigns(ctx, limit)
}

func (s *Service) GetDesign(ctx context.Context, id string) (*design.Design, error) {
	return s.store.GetDesign(ctx, strings.TrimSpace(id))
}

// MergeDesign loads a design and its brand, brands it and saves the result
// when asked to.
func (s *Service) MergeDesign(ctx context.Context, input MergeInput) (*merge.Result, error) {
	designID := strings.TrimSpace(input.DesignID)
	if designID == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "designId is required", nil)
	}
	d, err := s.store.GetDesign(ctx, designID)
	if err != nil {
		return nil, err
	}
	brand, user, err := s.loadBrand(ctx, input.UserEmail, input.BrandID)
	if err != nil {
		return nil, err
	}

	result, err := s.merger.Merge(ctx, merge.Request{
		Design:         d,
		Brand:          brand,
		User:           user,
		Additional:     input.Additional,
		WithPreview:    input.WithPreview,
		PreviewOptions: input.PreviewOptions,
	})
	if err != nil {
		return nil, err
	}
	if len(result.Warnings) > 0 {
		log.Printf("app: design %s merged with %d warnings", designID, len(result.Warnings))
	}

	if input.Save {
		if err := s.store.SaveDesign(ctx, result.Design); err != nil {
			return nil, fmt.Errorf("save merged design: %w", err)
		}
	}
	return result, nil
}

// MergeMany brands several stored designs with one brand. Failures are
// reported per design.
func (s *Service) MergeMany(ctx context.Context, input BatchInput) ([]BatchItem, error) {
	if len(input.DesignIDs) == 0 {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "designIds is required", nil)
	}
	if len(input.DesignIDs) > maxBatchDesigns {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "too many designs", map[string]any{"max": maxBatchDesigns})
	}

	items := make([]BatchItem, len(input.DesignIDs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchWorkers)
	for i, id := range input.DesignIDs {
		g.Go(func() error {
			single := input.MergeInput
			single.DesignID = id
			items[i].DesignID = id

			result, err := s.MergeDesign(ctx, single)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				_, _, message, _ := mapError(err)
				log.Printf("app: merge of design %s failed: %v", id, err)
				items[i].Error = message
				return nil
			}
			items[i].Design = result.Design
			items[i].Warnings = result.Warnings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) MergeInline(ctx context.Context, input InlineInput) (*merge.Result, error) {
	if input.Design == nil {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "design is required", nil)
	}
	if input.Brand == nil {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "brand is required", nil)
	}
	return s.merger.Merge(ctx, merge.Request{
		Design:         input.Design,
		Brand:          input.Brand,
		User:           input.User,
		Additional:     input.Additional,
		WithPreview:    input.WithPreview,
		PreviewOptions: input.PreviewOptions,
	})
}

func (s *Service) loadBrand(ctx context.Context, email, brandID string) (*design.Brand, *design.User, error) {
	email = strings.TrimSpace(email)
	brandID = strings.TrimSpace(brandID)

	if email != "" {
		user, err := s.store.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, nil, err
		}
		brand, err := s.store.GetBrandForUser(ctx, user.ID, brandID)
		if err != nil {
			return nil, nil, err
		}
		return brand, user, nil
	}
	if brandID == "" {
		return nil, nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "brandId or userEmail is required", nil)
	}
	brand, err := s.store.GetBrand(ctx, brandID)
	if err != nil {
		return nil, nil, err
	}
	return brand, nil, nil
}
