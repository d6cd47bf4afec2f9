// Package worker runs the periodic escalation sweep on a gocron scheduler.
package worker

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/service"
)

// EscalationWorker drives the automatic escalation sweep at a fixed
// interval. Runs never overlap; a tick that outlasts the interval causes
// the next one to be rescheduled instead of stacking.
type EscalationWorker struct {
	scheduler gocron.Scheduler
	engine    *service.EscalationService
	logger    *zap.Logger
	interval  time.Duration
	timeout   time.Duration
}

// NewEscalationWorker builds the worker with its own scheduler instance.
func NewEscalationWorker(engine *service.EscalationService, loc *time.Location, interval, timeout time.Duration, logger *zap.Logger) (*EscalationWorker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, err
	}
	return &EscalationWorker{
		scheduler: scheduler,
		engine:    engine,
		logger:    logger,
		interval:  interval,
		timeout:   timeout,
	}, nil
}

// Start registers the sweep job and starts the scheduler. The first sweep
// fires immediately.
func (w *EscalationWorker) Start() error {
	_, err := w.scheduler.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(w.runTick),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("escalation-sweep"),
	)
	if err != nil {
		return err
	}
	w.scheduler.Start()
	w.logger.Info("escalation worker started", zap.Duration("interval", w.interval))
	return nil
}

// Stop shuts the scheduler down, waiting for a running sweep to finish.
func (w *EscalationWorker) Stop() error {
	return w.scheduler.Shutdown()
}

func (w *EscalationWorker) runTick() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	start := time.Now()
	result, err := w.engine.RunAutoEscalationTick(ctx, start)
	if err != nil {
		w.logger.Error("escalation sweep failed",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return
	}
	if result.Escalated() > 0 || result.Failed > 0 {
		w.logger.Info("escalation sweep finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("escalated", result.Escalated()),
			zap.Int("failed", result.Failed),
			zap.Duration("duration", time.Since(start)))
	} else {
		w.logger.Debug("escalation sweep finished",
			zap.Int("scanned", result.Scanned),
			zap.Duration("duration", time.Since(start)))
	}
}
