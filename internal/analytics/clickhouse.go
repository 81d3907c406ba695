// Package analytics holds the optional ClickHouse sink that records a row
// per processed spot for downstream reporting. It is never consulted by the
// categorization or block-assignment engines themselves: Postgres via
// internal/db remains the system of record.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/patrickwarner/spotlang/internal/models"
)

// ErrUnavailable is returned by RecordProcessedSpot when ClickHouse was
// never configured; callers treat it as a soft failure, not a processing
// error.
var ErrUnavailable = fmt.Errorf("analytics unavailable")

// Analytics wraps a ClickHouse DB connection.
type Analytics struct {
	DB *sql.DB
}

// ProcessedSpotRecord mirrors a row in the processed_spots table.
type ProcessedSpotRecord struct {
	Timestamp           time.Time `json:"timestamp"`
	SpotID              int64     `json:"spot_id"`
	Category            string    `json:"category"`
	BusinessRuleApplied string    `json:"business_rule_applied"`
	CampaignType         string    `json:"campaign_type"`
	RequiresReview       bool      `json:"requires_review"`
}

// InitClickHouse connects to ClickHouse and ensures the processed_spots
// table exists.
func InitClickHouse(dsn string, maxOpenConns int) (*Analytics, error) {
	chDB, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	chDB.SetMaxOpenConns(maxOpenConns)
	if err := chDB.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	create := `CREATE TABLE IF NOT EXISTS processed_spots (
       timestamp              DateTime,
       spot_id                Int64,
       category               String,
       business_rule_applied  String,
       campaign_type          String,
       requires_review        UInt8
   ) ENGINE=MergeTree() ORDER BY (category, timestamp)`
	if _, err := chDB.ExecContext(context.Background(), create); err != nil {
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	zap.L().Info("connected to clickhouse")
	return &Analytics{DB: chDB}, nil
}

// RecordProcessedSpot inserts one row per spot the orchestrator finished
// processing, regardless of outcome. It is a sink, not a gate: a failure
// here is logged by the caller but never blocks persistence of the spot's
// own assignments in Postgres.
func (a *Analytics) RecordProcessedSpot(ctx context.Context, category models.SpotCategory, la models.LanguageAssignment, ba models.BlockAssignment) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}
	stmt := `INSERT INTO processed_spots (timestamp, spot_id, category, business_rule_applied, campaign_type, requires_review) VALUES (?, ?, ?, ?, ?, ?)`
	requiresReview := la.RequiresReview || ba.RequiresAttention
	if _, err := a.DB.ExecContext(ctx, stmt, time.Now(), int64(la.SpotID), string(category), ba.BusinessRuleApplied, ba.CampaignType, requiresReview); err != nil {
		zap.L().Error("clickhouse insert failed", zap.Error(err), zap.Int("spot_id", la.SpotID))
		return fmt.Errorf("insert processed spot: %w", err)
	}
	return nil
}

// Close terminates the ClickHouse connection.
func (a *Analytics) Close() {
	if a != nil && a.DB != nil {
		if err := a.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}
