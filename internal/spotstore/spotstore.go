// Package spotstore implements C1: the boundary between the orchestrator
// and persistence. Store is the interface the orchestrator depends on;
// PostgresStore is the production implementation backed by internal/db, and
// Fake is an in-memory implementation used by tests.
package spotstore

import (
	"context"

	"github.com/patrickwarner/spotlang/internal/models"
)

// Store is everything the orchestrator needs from the spot store: reading
// spots by processing state and persisting the two outputs the core
// produces, keyed by SpotID.
type Store interface {
	GetSpot(ctx context.Context, spotID int) (models.Spot, bool, error)
	ListUncategorized(ctx context.Context, limit int) ([]models.Spot, error)
	ListByCategory(ctx context.Context, category models.SpotCategory, limit int) ([]models.Spot, error)

	// ListReviewRequired returns spots whose raw language_code is "L" or not
	// a recognized code, excluding Trade spots and COM/BB spot types
	// (resolved by the auto_default_com_bb override regardless of raw code).
	// It reads raw spot data, independent of processing state: a spot with
	// no language/block assignment yet must still be reachable here.
	ListReviewRequired(ctx context.Context, pageSize, offset int) ([]models.Spot, error)

	SetCategory(ctx context.Context, spotID int, category models.SpotCategory) error
	ClearCategories(ctx context.Context, spotIDs []int) error

	UpsertLanguageAssignment(ctx context.Context, a models.LanguageAssignment) error
	UpsertBlockAssignment(ctx context.Context, a models.BlockAssignment) error
}
