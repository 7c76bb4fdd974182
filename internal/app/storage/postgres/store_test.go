package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/memestreet/market_layer/internal/app/domain/asset"
)

func mockStore(t *testing.T) (*HistoryStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestRecord(t *testing.T) {
	store, mock := mockStore(t)

	recordedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO market_history`).
		WithArgs("meme-1", 10.0, 13.0, 30.0, 13000.0, 20.0, recordedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Record(context.Background(), asset.Valuation{
		AssetID:         "meme-1",
		PreviousPrice:   10,
		NewPrice:        13,
		ChangePercent:   30,
		MarketCap:       13000,
		EngagementScore: 20,
		Timestamp:       recordedAt,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecord_ZeroTimestampGetsFilled(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectExec(`INSERT INTO market_history`).
		WithArgs("meme-1", 0.0, 0.1, 0.0, 100.0, 10.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Record(context.Background(), asset.Valuation{
		AssetID:         "meme-1",
		NewPrice:        0.1,
		MarketCap:       100,
		EngagementScore: 10,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecord_WrapsInsertError(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectExec(`INSERT INTO market_history`).
		WillReturnError(errors.New("connection refused"))

	err := store.Record(context.Background(), asset.Valuation{AssetID: "meme-1"})
	if err == nil {
		t.Fatalf("expected insert error")
	}
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	ctx := context.Background()
	store, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	err = store.Record(ctx, asset.Valuation{
		AssetID:         "integration-meme",
		PreviousPrice:   1,
		NewPrice:        1.3,
		ChangePercent:   30,
		MarketCap:       1300,
		EngagementScore: 15,
		Timestamp:       time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
}
