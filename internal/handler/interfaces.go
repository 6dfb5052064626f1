package handler

import (
	"context"

	"github.com/baechuer/cityevents/services/crop-service/internal/batch"
	"github.com/baechuer/cityevents/services/crop-service/internal/domain"
	"github.com/baechuer/cityevents/services/crop-service/internal/render"
	"github.com/baechuer/cityevents/services/crop-service/internal/schema"
)

// PlanResolver resolves render plans of file references.
type PlanResolver interface {
	Resolve(ctx context.Context, req render.Request) (*render.Result, error)
	OriginalURI(ctx context.Context, ref *domain.Reference, absolute bool) (string, error)
}

// VariantSchema looks up the crop variants registered for a field.
type VariantSchema interface {
	CropVariants(table, typ, field string) (schema.CropVariants, bool)
}

// BatchRunner runs create-needed-croppings.
type BatchRunner interface {
	Run(ctx context.Context, trigger string) (batch.Summary, error)
	ProcessReference(ctx context.Context, referenceID int64, path []string) (int, error)
}
