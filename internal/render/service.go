package render

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/baechuer/cityevents/services/crop-service/internal/cache"
	"github.com/baechuer/cityevents/services/crop-service/internal/cropping"
	"github.com/baechuer/cityevents/services/crop-service/internal/domain"
	"github.com/baechuer/cityevents/services/crop-service/internal/metrics"
)

// ReferenceGetter loads file references.
type ReferenceGetter interface {
	GetByID(ctx context.Context, id int64) (*domain.Reference, error)
}

// DimensionSource resolves the native size of a referenced image.
type DimensionSource interface {
	Dimensions(ctx context.Context, ref *domain.Reference) (cropping.SourceSize, error)
}

// PlanStore caches render plans.
type PlanStore interface {
	Get(ctx context.Context, key string) (*cropping.RenderPlan, error)
	Set(ctx context.Context, key string, plan *cropping.RenderPlan) error
}

// Request selects the variant of a file reference to render.
type Request struct {
	ReferenceID  int64
	Variant      string
	FallbackSize string
	Absolute     bool
	// UseCroppingFrom takes the crop configuration from another reference.
	UseCroppingFrom int64
}

// Result is a resolved reference. Plan is nil when the variant has not been
// cropped.
type Result struct {
	Reference *domain.Reference
	Plan      *cropping.RenderPlan
}

// Service resolves render plans of file references.
type Service struct {
	refs      ReferenceGetter
	dims      DimensionSource
	processor cropping.ImageProcessor
	resolver  *cropping.Resolver
	tree      *cropping.Tree
	plans     PlanStore
	log       zerolog.Logger

	configDigest string
}

// NewService creates a new Service. plans may be nil to disable caching.
func NewService(refs ReferenceGetter, dims DimensionSource, processor cropping.ImageProcessor, settings cropping.RenderSettings, tree *cropping.Tree, plans PlanStore, log zerolog.Logger) *Service {
	return &Service{
		refs:      refs,
		dims:      dims,
		processor: processor,
		resolver:  cropping.NewResolver(processor, settings),
		tree:      tree,
		plans:     plans,
		log:       log,

		configDigest: cache.ConfigDigest(settings, tree),
	}
}

// Resolve loads the reference and resolves the render plan of the requested
// variant.
func (s *Service) Resolve(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	ref, err := s.load(ctx, req.ReferenceID)
	if err != nil {
		return nil, err
	}
	cropRef := ref
	if req.UseCroppingFrom > 0 && req.UseCroppingFrom != ref.ID {
		if cropRef, err = s.load(ctx, req.UseCroppingFrom); err != nil {
			return nil, err
		}
	}
	blob := cropRef.CropBlob()
	log := s.log.With().Int64("reference_id", ref.ID).Str("variant", req.Variant).Logger()

	key := cache.PlanKey(s.configDigest, ref.ID, req.Variant, req.FallbackSize, req.Absolute, blob)
	if s.plans != nil {
		plan, err := s.plans.Get(ctx, key)
		if err == nil {
			metrics.RecordRenderPlan("hit", time.Since(start))
			return &Result{Reference: ref, Plan: plan}, nil
		}
		if !errors.Is(err, domain.ErrCacheMiss) {
			log.Warn().Err(err).Msg("failed to read render plan cache")
		}
	}

	img := s.imageRef(ctx, ref)
	plan, err := s.resolver.Resolve(ctx, img, cropping.DecodeConfiguration(blob), req.Variant,
		cropping.NewTreeLookup(s.tree), req.FallbackSize, req.Absolute)
	if err != nil {
		return nil, err
	}

	if s.plans != nil {
		if err := s.plans.Set(ctx, key, plan); err != nil {
			log.Warn().Err(err).Msg("failed to write render plan cache")
		}
	}
	metrics.RecordRenderPlan("miss", time.Since(start))
	return &Result{Reference: ref, Plan: plan}, nil
}

// OriginalURI addresses the uncropped image of ref. Documents are converted
// to an image first.
func (s *Service) OriginalURI(ctx context.Context, ref *domain.Reference, absolute bool) (string, error) {
	img := s.imageRef(ctx, ref)
	in := cropping.Instructions{Width: img.Width, Height: img.Height, Format: cropping.DefaultFormat}
	if strings.HasPrefix(img.MimeType, "application/") {
		in.Format = "png"
	}
	processed, err := s.processor.CropAndResize(ctx, img, in)
	if err != nil {
		return "", err
	}
	return s.processor.URI(processed, absolute), nil
}

func (s *Service) load(ctx context.Context, id int64) (*domain.Reference, error) {
	ref, err := s.refs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, domain.ErrReferenceNotFound
	}
	return ref, nil
}

// imageRef fills in missing dimensions where they can be resolved.
func (s *Service) imageRef(ctx context.Context, ref *domain.Reference) cropping.ImageRef {
	img := ref.ImageRef()
	if (img.Width > 0 && img.Height > 0) || s.dims == nil {
		return img
	}
	size, err := s.dims.Dimensions(ctx, ref)
	if err != nil {
		s.log.Debug().Err(err).Int64("reference_id", ref.ID).Msg("rendering without dimensions")
		return img
	}
	img.Width, img.Height = size.Width, size.Height
	return img
}
