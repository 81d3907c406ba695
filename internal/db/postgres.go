package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/patrickwarner/spotlang/internal/models"
)

// Postgres wraps the spot store's Postgres connection.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL creates the core tables if they don't already exist: the spot
// store itself (spots), the reference grid (languages, language_blocks,
// programming_schedules, schedule_market_assignments), and the two outputs
// the core persists (spot_language_assignments, spot_language_blocks).
const schemaSQL = `CREATE TABLE IF NOT EXISTS spots (
    spot_id BIGINT PRIMARY KEY,
    bill_code TEXT NOT NULL DEFAULT '',
    agency TEXT NOT NULL DEFAULT '',
    customer TEXT NOT NULL DEFAULT '',
    revenue_type TEXT NOT NULL DEFAULT '',
    spot_type TEXT NOT NULL DEFAULT '',
    market_id INT,
    air_date DATE,
    day_of_week TEXT NOT NULL DEFAULT '',
    time_in TEXT NOT NULL DEFAULT '',
    time_out TEXT NOT NULL DEFAULT '',
    language_code TEXT NOT NULL DEFAULT '',
    gross_rate DOUBLE PRECISION,
    broadcast_month TEXT NOT NULL DEFAULT '',
    import_batch_id TEXT NOT NULL DEFAULT '',
    spot_category TEXT,
    processed_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS languages (
    id INT PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS programming_schedules (
    schedule_id INT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS language_blocks (
    block_id SERIAL PRIMARY KEY,
    schedule_id INT NOT NULL REFERENCES programming_schedules(schedule_id),
    day_of_week TEXT NOT NULL,
    time_start TEXT NOT NULL,
    time_end TEXT NOT NULL,
    language_id INT NOT NULL REFERENCES languages(id),
    block_name TEXT NOT NULL DEFAULT '',
    day_part TEXT NOT NULL DEFAULT '',
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS schedule_market_assignments (
    schedule_id INT NOT NULL REFERENCES programming_schedules(schedule_id),
    market_id INT NOT NULL,
    effective_start DATE NOT NULL,
    effective_end DATE,
    priority INT NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    PRIMARY KEY (schedule_id, market_id, effective_start)
);

CREATE TABLE IF NOT EXISTS spot_language_assignments (
    spot_id BIGINT PRIMARY KEY REFERENCES spots(spot_id),
    language_code TEXT NOT NULL,
    status TEXT NOT NULL,
    confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
    method TEXT NOT NULL,
    requires_review BOOLEAN NOT NULL DEFAULT FALSE,
    notes TEXT NOT NULL DEFAULT '',
    assigned_date TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS spot_language_blocks (
    spot_id BIGINT PRIMARY KEY REFERENCES spots(spot_id),
    schedule_id INT,
    block_id INT,
    spans_multiple_blocks BOOLEAN NOT NULL DEFAULT FALSE,
    blocks_spanned INT[],
    primary_block_id INT,
    customer_intent TEXT NOT NULL DEFAULT '',
    campaign_type TEXT NOT NULL DEFAULT '',
    requires_attention BOOLEAN NOT NULL DEFAULT FALSE,
    alert_reason TEXT NOT NULL DEFAULT '',
    business_rule_applied TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    assigned_date TIMESTAMP NOT NULL,
    assigned_by TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_spots_category ON spots (spot_category);
CREATE INDEX IF NOT EXISTS idx_spots_market_air_date ON spots (market_id, air_date);
CREATE INDEX IF NOT EXISTS idx_language_blocks_schedule_day ON language_blocks (schedule_id, day_of_week);
CREATE INDEX IF NOT EXISTS idx_schedule_market_assignments_market ON schedule_market_assignments (market_id);
CREATE INDEX IF NOT EXISTS idx_spot_language_blocks_requires_attention ON spot_language_blocks (requires_attention) WHERE requires_attention;
`

// InitPostgres connects to Postgres with connection pooling configuration,
// retrying the initial ping with exponential backoff: spot import batches
// run as scheduled jobs, and a cold database during a rolling deploy
// shouldn't fail the whole run.
func InitPostgres(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.connection_string", dsn),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	pingWithRetry := func() error {
		return db.PingContext(context.Background())
	}
	boff := backoff.NewExponentialBackOff()
	boff.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(pingWithRetry, boff); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	p := &Postgres{DB: db}
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	zap.L().Info("connected to postgres with connection pooling",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns),
		zap.Duration("conn_max_lifetime", connMaxLifetime))
	return p, nil
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

func (p *Postgres) ensureSchema() error {
	if _, err := p.DB.ExecContext(context.Background(), schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// LoadLanguages fetches the full language reference table.
func (p *Postgres) LoadLanguages(ctx context.Context) ([]models.Language, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT id, code, name FROM languages`)
	if err != nil {
		return nil, fmt.Errorf("query languages: %w", err)
	}
	defer rows.Close()

	var out []models.Language
	for rows.Next() {
		var l models.Language
		if err := rows.Scan(&l.ID, &l.Code, &l.Name); err != nil {
			return nil, fmt.Errorf("scan language: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LoadLanguageBlocks fetches the full weekly programming grid.
func (p *Postgres) LoadLanguageBlocks(ctx context.Context) ([]models.LanguageBlock, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT block_id, schedule_id, day_of_week, time_start, time_end, language_id, block_name, day_part, is_active FROM language_blocks`)
	if err != nil {
		return nil, fmt.Errorf("query language_blocks: %w", err)
	}
	defer rows.Close()

	var out []models.LanguageBlock
	for rows.Next() {
		var b models.LanguageBlock
		if err := rows.Scan(&b.BlockID, &b.ScheduleID, &b.DayOfWeek, &b.TimeStart, &b.TimeEnd, &b.LanguageID, &b.BlockName, &b.DayPart, &b.IsActive); err != nil {
			return nil, fmt.Errorf("scan language_block: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// LoadScheduleAssignments fetches every (schedule, market, date range,
// priority) row driving refdata.Store.ActiveScheduleFor.
func (p *Postgres) LoadScheduleAssignments(ctx context.Context) ([]models.ProgrammingScheduleAssignment, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT schedule_id, market_id, effective_start::text, effective_end::text, priority, is_active FROM schedule_market_assignments`)
	if err != nil {
		return nil, fmt.Errorf("query schedule_market_assignments: %w", err)
	}
	defer rows.Close()

	var out []models.ProgrammingScheduleAssignment
	for rows.Next() {
		var a models.ProgrammingScheduleAssignment
		var end sql.NullString
		if err := rows.Scan(&a.ScheduleID, &a.MarketID, &a.EffectiveStart, &end, &a.Priority, &a.IsActive); err != nil {
			return nil, fmt.Errorf("scan schedule_market_assignment: %w", err)
		}
		if end.Valid {
			e := end.String
			a.EffectiveEnd = &e
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// spotRowColumns is the shared SELECT list for every spot-listing query.
const spotRowColumns = `spot_id, bill_code, agency, customer, revenue_type, spot_type, market_id, air_date, day_of_week, time_in, time_out, language_code, gross_rate, broadcast_month, import_batch_id, spot_category`

func scanSpot(row interface{ Scan(...interface{}) error }) (models.Spot, string, error) {
	var s models.Spot
	var marketID sql.NullInt64
	var airDate sql.NullTime
	var grossRate sql.NullFloat64
	var category sql.NullString

	err := row.Scan(&s.SpotID, &s.BillCode, &s.Agency, &s.Customer, &s.RevenueType, &s.SpotType,
		&marketID, &airDate, &s.DayOfWeek, &s.TimeIn, &s.TimeOut, &s.LanguageCode,
		&grossRate, &s.BroadcastMonth, &s.ImportBatchID, &category)
	if err != nil {
		return s, "", err
	}
	if marketID.Valid {
		id := int(marketID.Int64)
		s.MarketID = &id
	}
	if airDate.Valid {
		s.AirDate = airDate.Time
	}
	if grossRate.Valid {
		s.GrossRate = &grossRate.Float64
	}
	cat := ""
	if category.Valid {
		cat = category.String
	}
	return s, cat, nil
}

// ListUncategorized returns spots that have never run through the
// categorizer, excluding Trade spots (invariant I5). limit <= 0 means
// unbounded.
func (p *Postgres) ListUncategorized(ctx context.Context, limit int) ([]models.Spot, error) {
	query := `SELECT ` + spotRowColumns + ` FROM spots WHERE spot_category IS NULL AND revenue_type <> $1 ORDER BY spot_id`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = p.DB.QueryContext(ctx, query+` LIMIT $2`, models.RevenueTypeTrade, limit)
	} else {
		rows, err = p.DB.QueryContext(ctx, query, models.RevenueTypeTrade)
	}
	if err != nil {
		return nil, fmt.Errorf("query uncategorized spots: %w", err)
	}
	defer rows.Close()
	return scanSpots(rows)
}

// ListByCategory returns spots already tagged with a given category. limit
// <= 0 means unbounded, used by the status command to count a whole
// category.
func (p *Postgres) ListByCategory(ctx context.Context, category models.SpotCategory, limit int) ([]models.Spot, error) {
	query := `SELECT ` + spotRowColumns + ` FROM spots WHERE spot_category = $1 ORDER BY spot_id`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = p.DB.QueryContext(ctx, query+` LIMIT $2`, string(category), limit)
	} else {
		rows, err = p.DB.QueryContext(ctx, query, string(category))
	}
	if err != nil {
		return nil, fmt.Errorf("query spots by category: %w", err)
	}
	defer rows.Close()
	return scanSpots(rows)
}

// ListReviewRequired returns spots whose raw language_code is "L" or not a
// recognized code, excluding Trade spots and excluding COM/BB spot types
// (those are resolved by the auto_default_com_bb override regardless of raw
// code, so they never need review). This mirrors the raw-data query the spot
// store runs off, not the downstream assignment tables: an unprocessed spot
// must still be reachable here.
func (p *Postgres) ListReviewRequired(ctx context.Context, pageSize, offset int) ([]models.Spot, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT `+spotRowColumns+` FROM spots s
        LEFT JOIN languages l ON UPPER(s.language_code) = UPPER(l.code)
        WHERE (s.language_code = 'L' OR (s.language_code <> '' AND l.id IS NULL))
          AND s.revenue_type <> $1
          AND s.spot_type NOT IN ($2, $3)
        ORDER BY spot_id LIMIT $4 OFFSET $5`,
		models.RevenueTypeTrade, models.SpotTypeCommercial, models.SpotTypeBillboard, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("query review required spots: %w", err)
	}
	defer rows.Close()
	return scanSpots(rows)
}

// GetSpot fetches a single spot by ID.
func (p *Postgres) GetSpot(ctx context.Context, spotID int) (models.Spot, bool, error) {
	row := p.DB.QueryRowContext(ctx, `SELECT `+spotRowColumns+` FROM spots WHERE spot_id = $1`, spotID)
	spot, _, err := scanSpot(row)
	if err == sql.ErrNoRows {
		return models.Spot{}, false, nil
	}
	if err != nil {
		return models.Spot{}, false, fmt.Errorf("scan spot: %w", err)
	}
	return spot, true, nil
}

func scanSpots(rows *sql.Rows) ([]models.Spot, error) {
	var out []models.Spot
	for rows.Next() {
		spot, _, err := scanSpot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan spot: %w", err)
		}
		out = append(out, spot)
	}
	return out, rows.Err()
}

// SetCategory persists the categorizer's output for a spot.
func (p *Postgres) SetCategory(ctx context.Context, spotID int, category models.SpotCategory) error {
	_, err := p.DB.ExecContext(ctx, `UPDATE spots SET spot_category = $1, processed_at = NOW() WHERE spot_id = $2`, string(category), spotID)
	if err != nil {
		return fmt.Errorf("set category: %w", err)
	}
	return nil
}

// ClearCategories resets the category of the given spots and removes both
// of their assignments,
// the core of force-recategorize semantics (spec.md §6).
func (p *Postgres) ClearCategories(ctx context.Context, spotIDs []int) error {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear categories: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM spot_language_assignments WHERE spot_id = ANY($1)`, pq.Array(spotIDs)); err != nil {
		return fmt.Errorf("clear language assignments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM spot_language_blocks WHERE spot_id = ANY($1)`, pq.Array(spotIDs)); err != nil {
		return fmt.Errorf("clear block assignments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE spots SET spot_category = NULL, processed_at = NULL WHERE spot_id = ANY($1)`, pq.Array(spotIDs)); err != nil {
		return fmt.Errorf("clear spot category: %w", err)
	}
	return tx.Commit()
}

// UpsertLanguageAssignment idempotently persists a LanguageAssignment, keyed
// by spot_id.
func (p *Postgres) UpsertLanguageAssignment(ctx context.Context, a models.LanguageAssignment) error {
	_, err := p.DB.ExecContext(ctx, `INSERT INTO spot_language_assignments
        (spot_id, language_code, status, confidence, method, requires_review, notes, assigned_date)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (spot_id) DO UPDATE SET
            language_code = EXCLUDED.language_code,
            status = EXCLUDED.status,
            confidence = EXCLUDED.confidence,
            method = EXCLUDED.method,
            requires_review = EXCLUDED.requires_review,
            notes = EXCLUDED.notes,
            assigned_date = EXCLUDED.assigned_date`,
		a.SpotID, a.LanguageCode, a.Status, a.Confidence, a.Method, a.RequiresReview, a.Notes, a.AssignedDate)
	if err != nil {
		return fmt.Errorf("upsert language assignment: %w", err)
	}
	return nil
}

// UpsertBlockAssignment idempotently persists a BlockAssignment, keyed by
// spot_id.
func (p *Postgres) UpsertBlockAssignment(ctx context.Context, a models.BlockAssignment) error {
	_, err := p.DB.ExecContext(ctx, `INSERT INTO spot_language_blocks
        (spot_id, schedule_id, block_id, spans_multiple_blocks, blocks_spanned, primary_block_id,
         customer_intent, campaign_type, requires_attention, alert_reason, business_rule_applied,
         error_message, assigned_date, assigned_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        ON CONFLICT (spot_id) DO UPDATE SET
            schedule_id = EXCLUDED.schedule_id,
            block_id = EXCLUDED.block_id,
            spans_multiple_blocks = EXCLUDED.spans_multiple_blocks,
            blocks_spanned = EXCLUDED.blocks_spanned,
            primary_block_id = EXCLUDED.primary_block_id,
            customer_intent = EXCLUDED.customer_intent,
            campaign_type = EXCLUDED.campaign_type,
            requires_attention = EXCLUDED.requires_attention,
            alert_reason = EXCLUDED.alert_reason,
            business_rule_applied = EXCLUDED.business_rule_applied,
            error_message = EXCLUDED.error_message,
            assigned_date = EXCLUDED.assigned_date,
            assigned_by = EXCLUDED.assigned_by`,
		a.SpotID, a.ScheduleID, a.BlockID, a.SpansMultipleBlocks, pq.Array(a.BlocksSpanned), a.PrimaryBlockID,
		a.CustomerIntent, a.CampaignType, a.RequiresAttention, a.AlertReason, a.BusinessRuleApplied,
		a.ErrorMessage, a.AssignedDate, a.AssignedBy)
	if err != nil {
		return fmt.Errorf("upsert block assignment: %w", err)
	}
	return nil
}
