package storage

import (
	"context"
	"errors"

	"github.com/memestreet/market_layer/internal/app/domain/asset"
	"github.com/memestreet/market_layer/internal/app/domain/portfolio"
	"github.com/memestreet/market_layer/internal/app/domain/schedule"
)

// ErrNotFound reports that a key has no stored record. Implementations wrap
// it so callers can test with errors.Is regardless of backend.
var ErrNotFound = errors.New("record not found")

// GlobalIndex is the index holding every issued asset id.
const GlobalIndex = "asset_index"

// CategoryIndex returns the index name for a category tag.
func CategoryIndex(category string) string {
	return "category:" + category
}

// AssetStore persists asset records.
type AssetStore interface {
	CreateAsset(ctx context.Context, a asset.Asset) (asset.Asset, error)
	UpdateAsset(ctx context.Context, a asset.Asset) (asset.Asset, error)
	GetAsset(ctx context.Context, id string) (asset.Asset, error)
}

// IndexStore maintains ordered membership lists of asset ids. AddToIndex must
// behave as an atomic set-add: concurrent appends to the same index may not
// lose entries, and repeated adds of one id keep a single entry.
type IndexStore interface {
	AddToIndex(ctx context.Context, index, id string) error
	ListIndex(ctx context.Context, index string) ([]string, error)
}

// PortfolioStore persists per-user portfolios. Grant must apply the share
// allocation atomically with respect to other grants for the same user.
type PortfolioStore interface {
	GetPortfolio(ctx context.Context, userID string) (portfolio.Portfolio, error)
	Grant(ctx context.Context, userID, assetID string, shares int64, pricePerShare float64) (portfolio.Portfolio, error)
}

// ScheduleStore persists per-asset revaluation schedule records.
type ScheduleStore interface {
	PutSchedule(ctx context.Context, rec schedule.Record) error
	GetSchedule(ctx context.Context, assetID string) (schedule.Record, error)
	ListSchedules(ctx context.Context) ([]schedule.Record, error)
}

// HistorySink receives valuation records for downstream aggregate reporting.
// Writes are best-effort: a failure must not roll back the asset commit.
type HistorySink interface {
	Record(ctx context.Context, v asset.Valuation) error
}
