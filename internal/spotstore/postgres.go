package spotstore

import (
	"context"

	"github.com/patrickwarner/spotlang/internal/db"
	"github.com/patrickwarner/spotlang/internal/models"
)

// PostgresStore adapts db.Postgres to the Store interface. It carries no
// state of its own beyond the connection: every method is a thin pass-
// through, kept separate from internal/db so callers depend on the narrow
// Store interface rather than the full Postgres type.
type PostgresStore struct {
	pg *db.Postgres
}

// NewPostgresStore wraps an already-connected db.Postgres.
func NewPostgresStore(pg *db.Postgres) *PostgresStore {
	return &PostgresStore{pg: pg}
}

func (s *PostgresStore) GetSpot(ctx context.Context, spotID int) (models.Spot, bool, error) {
	return s.pg.GetSpot(ctx, spotID)
}

func (s *PostgresStore) ListUncategorized(ctx context.Context, limit int) ([]models.Spot, error) {
	return s.pg.ListUncategorized(ctx, limit)
}

func (s *PostgresStore) ListByCategory(ctx context.Context, category models.SpotCategory, limit int) ([]models.Spot, error) {
	return s.pg.ListByCategory(ctx, category, limit)
}

func (s *PostgresStore) ListReviewRequired(ctx context.Context, pageSize, offset int) ([]models.Spot, error) {
	return s.pg.ListReviewRequired(ctx, pageSize, offset)
}

func (s *PostgresStore) SetCategory(ctx context.Context, spotID int, category models.SpotCategory) error {
	return s.pg.SetCategory(ctx, spotID, category)
}

func (s *PostgresStore) ClearCategories(ctx context.Context, spotIDs []int) error {
	return s.pg.ClearCategories(ctx, spotIDs)
}

func (s *PostgresStore) UpsertLanguageAssignment(ctx context.Context, a models.LanguageAssignment) error {
	return s.pg.UpsertLanguageAssignment(ctx, a)
}

func (s *PostgresStore) UpsertBlockAssignment(ctx context.Context, a models.BlockAssignment) error {
	return s.pg.UpsertBlockAssignment(ctx, a)
}
