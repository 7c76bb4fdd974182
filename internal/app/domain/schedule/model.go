package schedule

import "time"

// Status of a per-asset revaluation schedule.
type Status string

const (
	// StatusActive marks a schedule whose recompute chain should keep running.
	StatusActive Status = "active"
	// StatusRetired marks a schedule whose chain stops at the next tick.
	StatusRetired Status = "retired"
)

// Record is the persistent schedule state for one asset. The recompute loop
// consults Status before re-arming, and the sweeper uses NextRun to detect
// chains that lost their pending job.
type Record struct {
	AssetID         string    `json:"asset_id"`
	Status          Status    `json:"status"`
	IntervalSeconds int64     `json:"interval_seconds"`
	NextRun         time.Time `json:"next_run"`
	LastRun         time.Time `json:"last_run"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Interval returns the re-arm delay for the record.
func (r Record) Interval() time.Duration {
	return time.Duration(r.IntervalSeconds) * time.Second
}

// Active reports whether the chain should continue.
func (r Record) Active() bool {
	return r.Status == StatusActive
}
