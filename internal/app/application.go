package app

import (
	"context"
	"fmt"
	"time"

	"github.com/memestreet/market_layer/internal/app/scheduler"
	"github.com/memestreet/market_layer/internal/app/services/engagement"
	"github.com/memestreet/market_layer/internal/app/services/issuance"
	"github.com/memestreet/market_layer/internal/app/services/ranking"
	"github.com/memestreet/market_layer/internal/app/services/valuation"
	"github.com/memestreet/market_layer/internal/app/storage"
	"github.com/memestreet/market_layer/internal/app/storage/memory"
	"github.com/memestreet/market_layer/internal/app/system"
	"github.com/memestreet/market_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to a
// shared in-memory implementation.
type Stores struct {
	Assets     storage.AssetStore
	Indexes    storage.IndexStore
	Portfolios storage.PortfolioStore
	Schedules  storage.ScheduleStore
	History    storage.HistorySink
}

// Options tunes the revaluation machinery.
type Options struct {
	// InitialDelay is the delay before a new asset's first tick.
	InitialDelay time.Duration
	// TickInterval is the recurring revaluation period.
	TickInterval time.Duration
	// SweepSpec is the cron spec for the schedule sweeper.
	SweepSpec string
	// SweepGrace is how far past due a schedule may drift before the
	// sweeper re-arms it.
	SweepGrace time.Duration
	// Engagement supplies external popularity signals. Optional: when nil,
	// ticks reuse each asset's stored score.
	Engagement engagement.Source
}

// Application ties the market services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Issuance  *issuance.Service
	Ranking   *ranking.Service
	Engine    *valuation.Engine
	Scheduler *scheduler.Timer
	Sweeper   *scheduler.Sweeper
	Assets    storage.AssetStore
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Assets == nil {
		stores.Assets = mem
	}
	if stores.Indexes == nil {
		stores.Indexes = mem
	}
	if stores.Portfolios == nil {
		stores.Portfolios = mem
	}
	if stores.Schedules == nil {
		stores.Schedules = mem
	}
	if stores.History == nil {
		stores.History = mem
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = time.Hour
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Hour
	}

	timer := scheduler.NewTimer(log)
	engine := valuation.NewEngine(stores.Assets, stores.Schedules, stores.History, opts.Engagement, timer, opts.TickInterval, log)
	timer.Register(scheduler.JobRevalue, engine)

	issuanceService := issuance.New(stores.Assets, stores.Indexes, stores.Portfolios, stores.Schedules, timer, opts.InitialDelay, opts.TickInterval, log)
	rankingService := ranking.New(stores.Assets, stores.Indexes, log)
	sweeper := scheduler.NewSweeper(stores.Schedules, timer, opts.SweepSpec, opts.SweepGrace, log)

	manager := system.NewManager()
	for _, svc := range []system.Service{timer, sweeper} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:   manager,
		log:       log,
		Issuance:  issuanceService,
		Ranking:   rankingService,
		Engine:    engine,
		Scheduler: timer,
		Sweeper:   sweeper,
		Assets:    stores.Assets,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services and restores any revaluation chains
// whose pending jobs were lost to a restart.
func (a *Application) Start(ctx context.Context) error {
	if err := a.manager.Start(ctx); err != nil {
		return err
	}
	a.Sweeper.Sweep(ctx)
	return nil
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
