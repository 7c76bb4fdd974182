package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/memestreet/market_layer/internal/app/storage"
	"github.com/memestreet/market_layer/internal/app/system"
	"github.com/memestreet/market_layer/pkg/logger"
)

var _ system.Service = (*Sweeper)(nil)

// Sweeper periodically scans persisted schedule records and re-arms any
// active chain whose next run is overdue. Single-shot jobs are lost on
// process restart; the sweeper restores them, keeping every asset's
// revaluation chain alive.
type Sweeper struct {
	schedules storage.ScheduleStore
	sched     Scheduler
	log       *logger.Logger

	spec  string
	grace time.Duration
	cron  *cron.Cron
}

// NewSweeper creates a sweeper running on the given cron spec
// (e.g. "@every 5m"). Grace is how far past NextRun a record may drift
// before it is considered lost.
func NewSweeper(schedules storage.ScheduleStore, sched Scheduler, spec string, grace time.Duration, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.NewDefault("schedule-sweeper")
	}
	if spec == "" {
		spec = "@every 5m"
	}
	if grace <= 0 {
		grace = time.Minute
	}
	return &Sweeper{
		schedules: schedules,
		sched:     sched,
		log:       log,
		spec:      spec,
		grace:     grace,
	}
}

func (s *Sweeper) Name() string { return "schedule-sweeper" }

func (s *Sweeper) Start(ctx context.Context) error {
	if s.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(s.spec, func() { s.Sweep(context.Background()) }); err != nil {
		return fmt.Errorf("register sweep schedule %q: %w", s.spec, err)
	}
	c.Start()
	s.cron = c
	s.log.WithField("spec", s.spec).Info("schedule sweeper started")
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	stopped := s.cron.Stop()
	s.cron = nil

	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.log.Info("schedule sweeper stopped")
	return nil
}

// Sweep re-arms all overdue active schedules. Exposed so startup can run one
// pass immediately instead of waiting for the first cron fire.
func (s *Sweeper) Sweep(ctx context.Context) {
	records, err := s.schedules.ListSchedules(ctx)
	if err != nil {
		s.log.WithError(err).Warn("schedule sweep failed")
		return
	}

	now := time.Now().UTC()
	rearmed := 0
	for _, rec := range records {
		if !rec.Active() {
			continue
		}
		if rec.NextRun.IsZero() || now.Sub(rec.NextRun) < s.grace {
			continue
		}
		payload := map[string]string{PayloadAssetID: rec.AssetID}
		if err := s.sched.Schedule(ctx, JobRevalue, 0, payload); err != nil {
			s.log.WithError(err).
				WithField("asset_id", rec.AssetID).
				Warn("re-arm overdue schedule failed")
			continue
		}
		rec.NextRun = now.Add(rec.Interval())
		if err := s.schedules.PutSchedule(ctx, rec); err != nil {
			s.log.WithError(err).
				WithField("asset_id", rec.AssetID).
				Warn("persist swept schedule failed")
		}
		rearmed++
	}
	if rearmed > 0 {
		s.log.WithField("count", rearmed).Info("re-armed overdue revaluation chains")
	}
}
