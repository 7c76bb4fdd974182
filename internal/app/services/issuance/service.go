// Package issuance creates new assets: share pool allocation, founder grant,
// index registration, and arming of the first revaluation tick.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/memestreet/market_layer/internal/app/domain/asset"
	"github.com/memestreet/market_layer/internal/app/domain/schedule"
	"github.com/memestreet/market_layer/internal/app/metrics"
	"github.com/memestreet/market_layer/internal/app/scheduler"
	"github.com/memestreet/market_layer/internal/app/storage"
	"github.com/memestreet/market_layer/pkg/logger"
)

// ErrInvalidPrice reports a non-positive initial share price.
var ErrInvalidPrice = errors.New("initial share price must be positive")

const (
	// TotalShares is the fixed share pool of every asset.
	TotalShares int64 = 1000
	// FounderShares is the zero-cost creator allocation (10% of the pool).
	FounderShares int64 = TotalShares / 10
	// InitialEngagementScore seeds new assets at the score floor.
	InitialEngagementScore = 10.0
)

// Request is the content payload for a new asset. Content fields are assumed
// pre-validated by the caller; only the price is checked here.
type Request struct {
	CreatorID         string
	CreatorName       string
	TemplateID        string
	Title             string
	Text              string
	Categories        []string
	InitialSharePrice float64
}

// Service issues assets.
type Service struct {
	assets     storage.AssetStore
	indexes    storage.IndexStore
	portfolios storage.PortfolioStore
	schedules  storage.ScheduleStore
	sched      scheduler.Scheduler
	log        *logger.Logger

	initialDelay time.Duration
	tickInterval time.Duration
}

// New constructs an issuance service. initialDelay is how long after creation
// the first revaluation fires; tickInterval is the recurring period recorded
// on the schedule.
func New(assets storage.AssetStore, indexes storage.IndexStore, portfolios storage.PortfolioStore, schedules storage.ScheduleStore, sched scheduler.Scheduler, initialDelay, tickInterval time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("issuance")
	}
	if initialDelay <= 0 {
		initialDelay = time.Hour
	}
	if tickInterval <= 0 {
		tickInterval = time.Hour
	}
	return &Service{
		assets:       assets,
		indexes:      indexes,
		portfolios:   portfolios,
		schedules:    schedules,
		sched:        sched,
		log:          log,
		initialDelay: initialDelay,
		tickInterval: tickInterval,
	}
}

// CreateAsset issues a new asset and commits it. The writes are ordered and
// individually idempotent (create tolerates replays, grants and index adds
// are set-like), so a failed issuance can be retried without double-granting
// or losing index entries.
func (s *Service) CreateAsset(ctx context.Context, req Request) (asset.Asset, error) {
	if req.InitialSharePrice <= 0 {
		return asset.Asset{}, ErrInvalidPrice
	}

	now := time.Now().UTC()
	a := asset.Asset{
		ID:          uuid.NewString(),
		CreatorID:   strings.TrimSpace(req.CreatorID),
		CreatorName: strings.TrimSpace(req.CreatorName),
		CreatedAt:   now,

		TemplateID: req.TemplateID,
		Title:      req.Title,
		Text:       req.Text,
		Categories: normalizeCategories(req.Categories),

		TotalShares:     TotalShares,
		AvailableShares: TotalShares - FounderShares,
		CurrentPrice:    req.InitialSharePrice,
		TradeVolume:     0,
		EngagementScore: InitialEngagementScore,
		PriceHistory: []asset.PricePoint{
			{Timestamp: now, Price: req.InitialSharePrice},
		},
		LastUpdated: now,
	}

	created, err := s.assets.CreateAsset(ctx, a)
	if err != nil {
		return asset.Asset{}, fmt.Errorf("create asset: %w", err)
	}

	// Founder grant: 10% of the pool at zero cost.
	if _, err := s.portfolios.Grant(ctx, created.CreatorID, created.ID, FounderShares, 0); err != nil {
		return asset.Asset{}, fmt.Errorf("founder grant: %w", err)
	}

	if err := s.indexes.AddToIndex(ctx, storage.GlobalIndex, created.ID); err != nil {
		return asset.Asset{}, fmt.Errorf("register asset index: %w", err)
	}
	for _, category := range created.Categories {
		if err := s.indexes.AddToIndex(ctx, storage.CategoryIndex(category), created.ID); err != nil {
			return asset.Asset{}, fmt.Errorf("register category %s: %w", category, err)
		}
	}

	rec := schedule.Record{
		AssetID:         created.ID,
		Status:          schedule.StatusActive,
		IntervalSeconds: int64(s.tickInterval / time.Second),
		NextRun:         now.Add(s.initialDelay),
	}
	if err := s.schedules.PutSchedule(ctx, rec); err != nil {
		return asset.Asset{}, fmt.Errorf("persist schedule: %w", err)
	}

	if s.sched != nil {
		payload := map[string]string{scheduler.PayloadAssetID: created.ID}
		if err := s.sched.Schedule(ctx, scheduler.JobRevalue, s.initialDelay, payload); err != nil {
			// The sweeper arms the chain from the schedule record.
			s.log.WithError(err).
				WithField("asset_id", created.ID).
				Warn("arm first revaluation failed")
		}
	}

	metrics.RecordIssuance()
	s.log.WithField("asset_id", created.ID).
		WithField("creator_id", created.CreatorID).
		WithField("initial_price", created.CurrentPrice).
		Info("asset issued")
	return created, nil
}

// Retire flips the asset's schedule to retired so the revaluation chain stops
// at its next tick.
func (s *Service) Retire(ctx context.Context, assetID string) error {
	rec, err := s.schedules.GetSchedule(ctx, assetID)
	if err != nil {
		return err
	}
	if !rec.Active() {
		return nil
	}
	rec.Status = schedule.StatusRetired
	if err := s.schedules.PutSchedule(ctx, rec); err != nil {
		return fmt.Errorf("retire schedule: %w", err)
	}
	s.log.WithField("asset_id", assetID).Info("revaluation schedule retired")
	return nil
}

func normalizeCategories(categories []string) []string {
	result := make([]string, 0, len(categories))
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		result = append(result, c)
	}
	return result
}
