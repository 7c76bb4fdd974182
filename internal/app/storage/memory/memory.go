package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/memestreet/market_layer/internal/app/domain/asset"
	"github.com/memestreet/market_layer/internal/app/domain/portfolio"
	"github.com/memestreet/market_layer/internal/app/domain/schedule"
	"github.com/memestreet/market_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu         sync.RWMutex
	assets     map[string]asset.Asset
	indexes    map[string][]string
	indexSeen  map[string]map[string]bool
	portfolios map[string]portfolio.Portfolio
	schedules  map[string]schedule.Record
	history    []asset.Valuation
}

var _ storage.AssetStore = (*Store)(nil)
var _ storage.IndexStore = (*Store)(nil)
var _ storage.PortfolioStore = (*Store)(nil)
var _ storage.ScheduleStore = (*Store)(nil)
var _ storage.HistorySink = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		assets:     make(map[string]asset.Asset),
		indexes:    make(map[string][]string),
		indexSeen:  make(map[string]map[string]bool),
		portfolios: make(map[string]portfolio.Portfolio),
		schedules:  make(map[string]schedule.Record),
	}
}

// AssetStore implementation -------------------------------------------------

func (s *Store) CreateAsset(_ context.Context, a asset.Asset) (asset.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		return asset.Asset{}, fmt.Errorf("asset id is required")
	}
	if existing, ok := s.assets[a.ID]; ok {
		// Idempotent re-create during an issuance retry.
		return cloneAsset(existing), nil
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	s.assets[a.ID] = cloneAsset(a)
	return cloneAsset(a), nil
}

func (s *Store) UpdateAsset(_ context.Context, a asset.Asset) (asset.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.assets[a.ID]
	if !ok {
		return asset.Asset{}, fmt.Errorf("asset %s: %w", a.ID, storage.ErrNotFound)
	}

	a.CreatedAt = original.CreatedAt
	s.assets[a.ID] = cloneAsset(a)
	return cloneAsset(a), nil
}

func (s *Store) GetAsset(_ context.Context, id string) (asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok {
		return asset.Asset{}, fmt.Errorf("asset %s: %w", id, storage.ErrNotFound)
	}
	return cloneAsset(a), nil
}

// IndexStore implementation -------------------------------------------------

func (s *Store) AddToIndex(_ context.Context, index, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := s.indexSeen[index]
	if seen == nil {
		seen = make(map[string]bool)
		s.indexSeen[index] = seen
	}
	if seen[id] {
		return nil
	}
	seen[id] = true
	s.indexes[index] = append(s.indexes[index], id)
	return nil
}

func (s *Store) ListIndex(_ context.Context, index string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.indexes[index]...), nil
}

// PortfolioStore implementation ---------------------------------------------

func (s *Store) GetPortfolio(_ context.Context, userID string) (portfolio.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.portfolios[userID]
	if !ok {
		return portfolio.Portfolio{}, fmt.Errorf("portfolio %s: %w", userID, storage.ErrNotFound)
	}
	return clonePortfolio(p), nil
}

func (s *Store) Grant(_ context.Context, userID, assetID string, shares int64, pricePerShare float64) (portfolio.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.portfolios[userID]
	if !ok {
		p = portfolio.Portfolio{UserID: userID}
	}
	p.Grant(assetID, shares, pricePerShare)
	p.UpdatedAt = time.Now().UTC()
	s.portfolios[userID] = clonePortfolio(p)
	return clonePortfolio(p), nil
}

// ScheduleStore implementation ----------------------------------------------

func (s *Store) PutSchedule(_ context.Context, rec schedule.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.UpdatedAt = time.Now().UTC()
	s.schedules[rec.AssetID] = rec
	return nil
}

func (s *Store) GetSchedule(_ context.Context, assetID string) (schedule.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.schedules[assetID]
	if !ok {
		return schedule.Record{}, fmt.Errorf("schedule %s: %w", assetID, storage.ErrNotFound)
	}
	return rec, nil
}

func (s *Store) ListSchedules(_ context.Context) ([]schedule.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]schedule.Record, 0, len(s.schedules))
	for _, rec := range s.schedules {
		result = append(result, rec)
	}
	return result, nil
}

// HistorySink implementation ------------------------------------------------

func (s *Store) Record(_ context.Context, v asset.Valuation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, v)
	return nil
}

// History returns recorded valuations, newest last. Test helper.
func (s *Store) History() []asset.Valuation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]asset.Valuation(nil), s.history...)
}

// Helpers --------------------------------------------------------------------

func cloneAsset(a asset.Asset) asset.Asset {
	a.Categories = append([]string(nil), a.Categories...)
	a.PriceHistory = append([]asset.PricePoint(nil), a.PriceHistory...)
	return a
}

func clonePortfolio(p portfolio.Portfolio) portfolio.Portfolio {
	holdings := make(map[string]portfolio.Holding, len(p.Holdings))
	for k, v := range p.Holdings {
		holdings[k] = v
	}
	p.Holdings = holdings
	return p
}
