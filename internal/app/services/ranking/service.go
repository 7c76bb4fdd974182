// Package ranking serves the trending query: assets ordered by their most
// recent single-tick percent price change.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/memestreet/market_layer/internal/app/domain/asset"
	"github.com/memestreet/market_layer/internal/app/metrics"
	"github.com/memestreet/market_layer/internal/app/storage"
	"github.com/memestreet/market_layer/pkg/logger"
)

// Service answers trending queries. Read-only.
type Service struct {
	assets  storage.AssetStore
	indexes storage.IndexStore
	log     *logger.Logger
}

// New constructs a ranking service.
func New(assets storage.AssetStore, indexes storage.IndexStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("ranking")
	}
	return &Service{assets: assets, indexes: indexes, log: log}
}

// GetTrending returns at most limit assets, ordered by descending percent
// change across their last two price samples. Assets with fewer than two
// samples rank neutral at 0%. Ties keep their emission order; no secondary
// key is applied. A non-positive limit yields an empty result.
func (s *Service) GetTrending(ctx context.Context, limit int, category string) ([]asset.Asset, error) {
	start := time.Now()
	defer func() { metrics.RecordTrendingQuery(time.Since(start)) }()

	if limit <= 0 {
		return []asset.Asset{}, nil
	}

	index := storage.GlobalIndex
	if category = strings.ToLower(strings.TrimSpace(category)); category != "" {
		index = storage.CategoryIndex(category)
	}

	ids, err := s.indexes.ListIndex(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", index, err)
	}

	assets := make([]asset.Asset, 0, len(ids))
	for _, id := range ids {
		a, err := s.assets.GetAsset(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			// Dangling index pointer; skip silently.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load asset %s: %w", id, err)
		}
		assets = append(assets, a)
	}

	sort.SliceStable(assets, func(i, j int) bool {
		return assets[i].LatestChangePercent() > assets[j].LatestChangePercent()
	})

	if len(assets) > limit {
		assets = assets[:limit]
	}
	return assets, nil
}
