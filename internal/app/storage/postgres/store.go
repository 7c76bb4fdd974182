// Package postgres provides the market-history sink backed by PostgreSQL.
// Every committed valuation is appended to the market_history table so
// downstream reporting can aggregate ticks outside the KV store.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/memestreet/market_layer/internal/app/domain/asset"
	"github.com/memestreet/market_layer/internal/app/storage"
)

// Schema is the DDL for the history table. Applied by Open when the table is
// missing; deployments with managed migrations can apply it themselves.
const Schema = `
CREATE TABLE IF NOT EXISTS market_history (
    id               BIGSERIAL PRIMARY KEY,
    asset_id         TEXT             NOT NULL,
    previous_price   DOUBLE PRECISION NOT NULL,
    new_price        DOUBLE PRECISION NOT NULL,
    change_percent   DOUBLE PRECISION NOT NULL,
    market_cap       DOUBLE PRECISION NOT NULL,
    engagement_score DOUBLE PRECISION NOT NULL,
    recorded_at      TIMESTAMPTZ      NOT NULL
);
CREATE INDEX IF NOT EXISTS market_history_asset_idx ON market_history (asset_id, recorded_at);
`

// HistoryStore implements storage.HistorySink on PostgreSQL.
type HistoryStore struct {
	db *sqlx.DB
}

var _ storage.HistorySink = (*HistoryStore)(nil)

// New creates a HistoryStore using the provided database handle.
func New(db *sqlx.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Open connects to the database and ensures the history table exists.
func Open(ctx context.Context, dsn string) (*HistoryStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure market_history schema: %w", err)
	}
	return New(db), nil
}

// Close releases the database handle.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

type historyRow struct {
	AssetID         string    `db:"asset_id"`
	PreviousPrice   float64   `db:"previous_price"`
	NewPrice        float64   `db:"new_price"`
	ChangePercent   float64   `db:"change_percent"`
	MarketCap       float64   `db:"market_cap"`
	EngagementScore float64   `db:"engagement_score"`
	RecordedAt      time.Time `db:"recorded_at"`
}

// Record appends one valuation row.
func (s *HistoryStore) Record(ctx context.Context, v asset.Valuation) error {
	recordedAt := v.Timestamp.UTC()
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	row := historyRow{
		AssetID:         v.AssetID,
		PreviousPrice:   v.PreviousPrice,
		NewPrice:        v.NewPrice,
		ChangePercent:   v.ChangePercent,
		MarketCap:       v.MarketCap,
		EngagementScore: v.EngagementScore,
		RecordedAt:      recordedAt,
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO market_history
			(asset_id, previous_price, new_price, change_percent, market_cap, engagement_score, recorded_at)
		VALUES
			(:asset_id, :previous_price, :new_price, :change_percent, :market_cap, :engagement_score, :recorded_at)
	`, row)
	if err != nil {
		return fmt.Errorf("insert market history: %w", err)
	}
	return nil
}
