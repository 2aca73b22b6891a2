package adapter

import (
	"context"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
)

// CourseCatalog exposes the narrow pricing contract the engine consumes.
// Course structure and authoring live elsewhere.
type CourseCatalog interface {
	GetPricing(ctx context.Context, courseID string) (*model.CoursePricing, error)
}
