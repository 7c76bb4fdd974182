// Package scheduler provides the single-shot delayed job facility used by the
// revaluation engine. Jobs are fire-and-forget with at-least-once delivery;
// handlers must tolerate duplicate invocations.
package scheduler

import (
	"context"
	"time"
)

// JobRevalue is the job name carried by every revaluation tick.
const JobRevalue = "asset.revalue"

// PayloadAssetID is the payload key holding the target asset id.
const PayloadAssetID = "asset_id"

// Scheduler arms a named job to run once after the given delay.
type Scheduler interface {
	Schedule(ctx context.Context, job string, delay time.Duration, payload map[string]string) error
}

// Handler consumes a scheduled job invocation.
type Handler interface {
	HandleJob(ctx context.Context, payload map[string]string)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, payload map[string]string)

func (f HandlerFunc) HandleJob(ctx context.Context, payload map[string]string) {
	if f == nil {
		return
	}
	f(ctx, payload)
}
