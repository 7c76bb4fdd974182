package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/memestreet/market_layer/internal/app/system"
	"github.com/memestreet/market_layer/pkg/logger"
)

var _ system.Service = (*Timer)(nil)
var _ Scheduler = (*Timer)(nil)

// Timer is the in-process Scheduler implementation. Each Schedule call arms
// one timer; the handler registered for the job name runs in its own
// goroutine when the timer fires. Pending timers are discarded on Stop, which
// is why schedule records are persisted and swept separately.
type Timer struct {
	log *logger.Logger

	mu       sync.Mutex
	handlers map[string]Handler
	pending  map[int64]*time.Timer
	nextID   int64
	running  bool
	runCtx   context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewTimer creates a stopped timer scheduler.
func NewTimer(log *logger.Logger) *Timer {
	if log == nil {
		log = logger.NewDefault("scheduler")
	}
	return &Timer{
		log:      log,
		handlers: make(map[string]Handler),
		pending:  make(map[int64]*time.Timer),
	}
}

// Register binds a handler to a job name. Jobs scheduled for an unregistered
// name are dropped with a warning when they fire.
func (t *Timer) Register(job string, h Handler) {
	t.mu.Lock()
	t.handlers[job] = h
	t.mu.Unlock()
}

func (t *Timer) Name() string { return "timer-scheduler" }

func (t *Timer) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return nil
	}
	t.runCtx, t.cancel = context.WithCancel(context.WithoutCancel(ctx))
	t.running = true
	t.log.Info("timer scheduler started")
	return nil
}

func (t *Timer) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	cancel := t.cancel
	t.cancel = nil
	for id, timer := range t.pending {
		timer.Stop()
		delete(t.pending, id)
	}
	t.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.log.Info("timer scheduler stopped")
	return nil
}

// Schedule arms a single-shot job. The call never blocks on the handler.
func (t *Timer) Schedule(_ context.Context, job string, delay time.Duration, payload map[string]string) error {
	if delay < 0 {
		delay = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return fmt.Errorf("scheduler is not running")
	}

	id := t.nextID
	t.nextID++
	t.pending[id] = time.AfterFunc(delay, func() {
		t.fire(id, job, payload)
	})
	return nil
}

func (t *Timer) fire(id int64, job string, payload map[string]string) {
	t.mu.Lock()
	delete(t.pending, id)
	if !t.running {
		t.mu.Unlock()
		return
	}
	handler := t.handlers[job]
	ctx := t.runCtx
	t.wg.Add(1)
	t.mu.Unlock()

	defer t.wg.Done()
	if handler == nil {
		t.log.WithField("job", job).Warn("no handler registered for scheduled job")
		return
	}
	handler.HandleJob(ctx, payload)
}
