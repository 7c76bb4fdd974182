package valuation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/memestreet/market_layer/internal/app/domain/asset"
	"github.com/memestreet/market_layer/internal/app/domain/schedule"
	"github.com/memestreet/market_layer/internal/app/metrics"
	"github.com/memestreet/market_layer/internal/app/scheduler"
	"github.com/memestreet/market_layer/internal/app/services/engagement"
	"github.com/memestreet/market_layer/internal/app/storage"
	"github.com/memestreet/market_layer/pkg/logger"
)

// State classifies the outcome of one revaluation tick.
type State string

const (
	StateCommitted State = "committed"
	StateSkipped   State = "skipped"
	StateFailed    State = "failed"
)

// Outcome is the tagged result of a tick. No state stops the schedule except
// a retired record; failures are absorbed so the chain keeps running.
type Outcome struct {
	State     State
	Reason    string
	Valuation *asset.Valuation
}

// Engine runs the recurring revaluation loop. Every invocation recomputes one
// asset's price, commits it, and re-arms the next invocation, forming an
// unbounded chain of single-shot jobs. Ticks for the same asset are
// serialized by a per-id lock; ticks for different assets run in parallel.
type Engine struct {
	assets    storage.AssetStore
	schedules storage.ScheduleStore
	history   storage.HistorySink
	source    engagement.Source
	sched     scheduler.Scheduler
	log       *logger.Logger
	locks     *keyedMutex
	interval  time.Duration
}

var _ scheduler.Handler = (*Engine)(nil)

// NewEngine constructs the revaluation engine. History sink and engagement
// source may be nil: the engine then commits on the stored score alone and
// skips the sink.
func NewEngine(assets storage.AssetStore, schedules storage.ScheduleStore, history storage.HistorySink, source engagement.Source, sched scheduler.Scheduler, interval time.Duration, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewDefault("valuation-engine")
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Engine{
		assets:    assets,
		schedules: schedules,
		history:   history,
		source:    source,
		sched:     sched,
		log:       log,
		locks:     newKeyedMutex(),
		interval:  interval,
	}
}

// HandleJob consumes one scheduled revaluation job.
func (e *Engine) HandleJob(ctx context.Context, payload map[string]string) {
	assetID := payload[scheduler.PayloadAssetID]
	if assetID == "" {
		e.log.Warn("revaluation job without asset id")
		metrics.RecordTick(string(StateSkipped), 0)
		return
	}

	start := time.Now()
	outcome := e.Tick(ctx, assetID)
	metrics.RecordTick(string(outcome.State), time.Since(start))

	entry := e.log.WithField("asset_id", assetID).WithField("outcome", string(outcome.State))
	if outcome.Reason != "" {
		entry = entry.WithField("reason", outcome.Reason)
	}
	switch outcome.State {
	case StateCommitted:
		entry.WithField("price", outcome.Valuation.NewPrice).
			WithField("change_pct", outcome.Valuation.ChangePercent).
			Info("revaluation committed")
	default:
		entry.Warn("revaluation tick did not commit")
	}
}

// Tick executes one revaluation pass and re-arms the chain. Errors never
// propagate: loop availability outranks any single tick's result.
func (e *Engine) Tick(ctx context.Context, assetID string) Outcome {
	unlock := e.locks.Lock(assetID)
	defer unlock()

	rec, recErr := e.schedules.GetSchedule(ctx, assetID)
	if recErr == nil && !rec.Active() {
		// The one outcome that ends the chain: no re-arm for retired assets.
		return Outcome{State: StateSkipped, Reason: "schedule retired"}
	}
	if recErr != nil {
		rec = schedule.Record{
			AssetID:         assetID,
			Status:          schedule.StatusActive,
			IntervalSeconds: int64(e.interval / time.Second),
		}
	}

	var outcome Outcome
	v, err := e.revalue(ctx, assetID)
	switch {
	case err == nil:
		outcome = Outcome{State: StateCommitted, Valuation: &v}
	case errors.Is(err, storage.ErrNotFound):
		// Possibly a transient read failure; keep the chain alive and waste
		// one future tick rather than terminating.
		outcome = Outcome{State: StateSkipped, Reason: "asset not found"}
	default:
		outcome = Outcome{State: StateFailed, Reason: err.Error()}
	}

	e.rearm(ctx, rec)
	return outcome
}

// Valuate recomputes one asset on demand, committing the result. Unlike Tick
// it surfaces NotFound to the caller and never touches scheduling.
func (e *Engine) Valuate(ctx context.Context, assetID string) (asset.Valuation, error) {
	unlock := e.locks.Lock(assetID)
	defer unlock()

	return e.revalue(ctx, assetID)
}

// revalue loads, recomputes, and commits one asset. Callers hold the per-id
// lock.
func (e *Engine) revalue(ctx context.Context, assetID string) (asset.Valuation, error) {
	a, err := e.assets.GetAsset(ctx, assetID)
	if err != nil {
		return asset.Valuation{}, fmt.Errorf("load asset: %w", err)
	}

	now := time.Now().UTC()

	// Degrade gracefully: an unreachable engagement source reuses the stored
	// score, so the tick still commits a (flat) price sample.
	newScore := a.EngagementScore
	if e.source != nil {
		sig, err := e.source.Fetch(ctx, assetID)
		if err != nil {
			e.log.WithError(err).
				WithField("asset_id", assetID).
				Warn("engagement fetch failed, reusing stored score")
		} else {
			newScore = engagement.Blend(sig, a.TradeVolume)
		}
	}

	v := Compute(Inputs{
		CurrentPrice: a.CurrentPrice,
		TotalShares:  a.TotalShares,
		PrevScore:    a.EngagementScore,
		NewScore:     newScore,
		Age:          a.AgeAt(now),
		TradeVolume:  a.TradeVolume,
	}, now)
	v.AssetID = a.ID

	a.CurrentPrice = v.NewPrice
	a.EngagementScore = v.EngagementScore
	a.LastUpdated = v.Timestamp
	a.AppendHistory(asset.PricePoint{Timestamp: v.Timestamp, Price: v.NewPrice})

	if _, err := e.assets.UpdateAsset(ctx, a); err != nil {
		return asset.Valuation{}, fmt.Errorf("commit asset: %w", err)
	}

	// Best effort. Sink failure must not roll back the commit above.
	if e.history != nil {
		if err := e.history.Record(ctx, v); err != nil {
			e.log.WithError(err).
				WithField("asset_id", assetID).
				Warn("market history record failed")
		}
	}

	return v, nil
}

// rearm schedules the next tick and persists the updated schedule record.
func (e *Engine) rearm(ctx context.Context, rec schedule.Record) {
	interval := rec.Interval()
	if interval <= 0 {
		interval = e.interval
		rec.IntervalSeconds = int64(interval / time.Second)
	}

	if e.sched != nil {
		payload := map[string]string{scheduler.PayloadAssetID: rec.AssetID}
		if err := e.sched.Schedule(ctx, scheduler.JobRevalue, interval, payload); err != nil {
			// The sweeper restores the chain from the persisted record.
			e.log.WithError(err).
				WithField("asset_id", rec.AssetID).
				Warn("re-arm revaluation failed")
		}
	}

	now := time.Now().UTC()
	rec.LastRun = now
	rec.NextRun = now.Add(interval)
	if err := e.schedules.PutSchedule(ctx, rec); err != nil {
		e.log.WithError(err).
			WithField("asset_id", rec.AssetID).
			Warn("persist schedule record failed")
	}
}
