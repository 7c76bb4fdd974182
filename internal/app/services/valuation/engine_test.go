package valuation

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/memestreet/market_layer/internal/app/domain/asset"
	"github.com/memestreet/market_layer/internal/app/domain/schedule"
	"github.com/memestreet/market_layer/internal/app/scheduler"
	"github.com/memestreet/market_layer/internal/app/services/engagement"
	"github.com/memestreet/market_layer/internal/app/storage/memory"
	"github.com/memestreet/market_layer/pkg/logger"
)

type fakeScheduler struct {
	mu    sync.Mutex
	calls []fakeCall
}

type fakeCall struct {
	job     string
	delay   time.Duration
	payload map[string]string
}

func (f *fakeScheduler) Schedule(_ context.Context, job string, delay time.Duration, payload map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{job: job, delay: delay, payload: payload})
	return nil
}

func (f *fakeScheduler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func quietLogger() *logger.Logger {
	log := logger.NewDefault("test")
	log.SetOutput(io.Discard)
	return log
}

func seedAsset(t *testing.T, store *memory.Store) asset.Asset {
	t.Helper()
	now := time.Now().UTC()
	a, err := store.CreateAsset(context.Background(), asset.Asset{
		ID:              "meme-1",
		CreatorID:       "user-1",
		CreatedAt:       now,
		TotalShares:     1000,
		AvailableShares: 900,
		CurrentPrice:    10,
		EngagementScore: 10,
		PriceHistory:    []asset.PricePoint{{Timestamp: now, Price: 10}},
	})
	if err != nil {
		t.Fatalf("seed asset: %v", err)
	}
	return a
}

func TestEngine_TickCommitsAndRearms(t *testing.T) {
	store := memory.New()
	a := seedAsset(t, store)
	sched := &fakeScheduler{}
	source := engagement.SourceFunc(func(ctx context.Context, assetID string) (engagement.Signal, error) {
		return engagement.Signal{Score: 20}, nil
	})

	engine := NewEngine(store, store, store, source, sched, time.Hour, quietLogger())
	outcome := engine.Tick(context.Background(), a.ID)

	if outcome.State != StateCommitted {
		t.Fatalf("expected committed, got %s (%s)", outcome.State, outcome.Reason)
	}
	if outcome.Valuation == nil || outcome.Valuation.NewPrice != 13.0 {
		t.Fatalf("unexpected valuation: %+v", outcome.Valuation)
	}

	updated, err := store.GetAsset(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("reload asset: %v", err)
	}
	if updated.CurrentPrice != 13.0 {
		t.Fatalf("price not committed: %v", updated.CurrentPrice)
	}
	if len(updated.PriceHistory) != 2 {
		t.Fatalf("expected 2 history samples, got %d", len(updated.PriceHistory))
	}
	if updated.EngagementScore != 20 {
		t.Fatalf("engagement score not committed: %v", updated.EngagementScore)
	}

	if sched.count() != 1 {
		t.Fatalf("expected one re-arm, got %d", sched.count())
	}
	if got := sched.calls[0]; got.job != scheduler.JobRevalue || got.payload[scheduler.PayloadAssetID] != a.ID {
		t.Fatalf("unexpected re-arm call: %+v", got)
	}

	if recs := store.History(); len(recs) != 1 || recs[0].AssetID != a.ID {
		t.Fatalf("expected one history sink record, got %+v", recs)
	}

	rec, err := store.GetSchedule(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("schedule record: %v", err)
	}
	if rec.NextRun.Before(time.Now().Add(50 * time.Minute)) {
		t.Fatalf("next run not advanced: %v", rec.NextRun)
	}
}

func TestEngine_HistoryCappedFIFO(t *testing.T) {
	store := memory.New()
	a := seedAsset(t, store)
	engine := NewEngine(store, store, nil, nil, &fakeScheduler{}, time.Hour, quietLogger())

	for i := 0; i < 40; i++ {
		if outcome := engine.Tick(context.Background(), a.ID); outcome.State != StateCommitted {
			t.Fatalf("tick %d: %s (%s)", i, outcome.State, outcome.Reason)
		}
	}

	updated, err := store.GetAsset(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("reload asset: %v", err)
	}
	if len(updated.PriceHistory) != asset.MaxHistorySamples {
		t.Fatalf("expected %d samples, got %d", asset.MaxHistorySamples, len(updated.PriceHistory))
	}
	for i := 1; i < len(updated.PriceHistory); i++ {
		if updated.PriceHistory[i].Timestamp.Before(updated.PriceHistory[i-1].Timestamp) {
			t.Fatalf("history timestamps not monotonic at %d", i)
		}
	}
}

func TestEngine_EngagementFailureDegradesGracefully(t *testing.T) {
	store := memory.New()
	a := seedAsset(t, store)
	source := engagement.SourceFunc(func(ctx context.Context, assetID string) (engagement.Signal, error) {
		return engagement.Signal{}, errors.New("upstream down")
	})
	engine := NewEngine(store, store, nil, source, &fakeScheduler{}, time.Hour, quietLogger())

	outcome := engine.Tick(context.Background(), a.ID)
	if outcome.State != StateCommitted {
		t.Fatalf("expected committed despite upstream failure, got %s", outcome.State)
	}
	// Stored score reused: no score change, flat price.
	if outcome.Valuation.NewPrice != a.CurrentPrice {
		t.Fatalf("expected flat price, got %v", outcome.Valuation.NewPrice)
	}
}

func TestEngine_MissingAssetSkipsButRearms(t *testing.T) {
	store := memory.New()
	sched := &fakeScheduler{}
	engine := NewEngine(store, store, nil, nil, sched, time.Hour, quietLogger())

	outcome := engine.Tick(context.Background(), "ghost")
	if outcome.State != StateSkipped {
		t.Fatalf("expected skipped, got %s", outcome.State)
	}
	if sched.count() != 1 {
		t.Fatalf("missing asset must still re-arm, got %d calls", sched.count())
	}
}

func TestEngine_RetiredScheduleStopsChain(t *testing.T) {
	store := memory.New()
	a := seedAsset(t, store)
	if err := store.PutSchedule(context.Background(), schedule.Record{
		AssetID: a.ID,
		Status:  schedule.StatusRetired,
	}); err != nil {
		t.Fatalf("put schedule: %v", err)
	}
	sched := &fakeScheduler{}
	engine := NewEngine(store, store, nil, nil, sched, time.Hour, quietLogger())

	outcome := engine.Tick(context.Background(), a.ID)
	if outcome.State != StateSkipped || outcome.Reason != "schedule retired" {
		t.Fatalf("expected retired skip, got %s (%s)", outcome.State, outcome.Reason)
	}
	if sched.count() != 0 {
		t.Fatalf("retired chain must not re-arm, got %d calls", sched.count())
	}
}

func TestEngine_ValuateSurfacesNotFound(t *testing.T) {
	store := memory.New()
	engine := NewEngine(store, store, nil, nil, nil, time.Hour, quietLogger())

	if _, err := engine.Valuate(context.Background(), "ghost"); err == nil {
		t.Fatalf("expected not found error")
	}
}

func TestEngine_ConcurrentTicksDoNotLoseUpdates(t *testing.T) {
	store := memory.New()
	a := seedAsset(t, store)
	engine := NewEngine(store, store, store, nil, &fakeScheduler{}, time.Hour, quietLogger())

	const workers = 16
	const ticksPerWorker = 5

	var wg sync.WaitGroup
	committed := make([]int, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < ticksPerWorker; i++ {
				if outcome := engine.Tick(context.Background(), a.ID); outcome.State == StateCommitted {
					committed[w]++
				}
			}
		}(w)
	}
	wg.Wait()

	total := 0
	for _, c := range committed {
		total += c
	}
	if total != workers*ticksPerWorker {
		t.Fatalf("expected %d commits, got %d", workers*ticksPerWorker, total)
	}
	// Every commit lands exactly one record in the sink; lost read-modify-write
	// interleavings would drop history sink entries or samples.
	if recs := store.History(); len(recs) != total {
		t.Fatalf("expected %d sink records, got %d", total, len(recs))
	}

	updated, err := store.GetAsset(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("reload asset: %v", err)
	}
	if len(updated.PriceHistory) != asset.MaxHistorySamples {
		t.Fatalf("expected full history ring, got %d", len(updated.PriceHistory))
	}
}
