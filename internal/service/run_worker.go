package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-master-scheduler/internal/engine"
	"github.com/noah-isme/sma-master-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-master-scheduler/pkg/errors"
	"github.com/noah-isme/sma-master-scheduler/pkg/jobs"
	"github.com/noah-isme/sma-master-scheduler/pkg/logger"
)

// progressStep is the minimum progress change, in percent, persisted while a run executes.
const progressStep = 10

// RunWorker bridges queue jobs to the engine.
type RunWorker struct {
	store      scheduleRunStore
	engine     *engine.Engine
	cache      *CacheService
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
}

// NewRunWorker constructs a worker. maxRetries must match the queue's retry budget.
func NewRunWorker(store scheduleRunStore, eng *engine.Engine, cache *CacheService, metrics *MetricsService, maxRetries int, log *zap.Logger) *RunWorker {
	if log == nil {
		log = zap.NewNop()
	}
	if eng == nil {
		eng = engine.New(log)
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RunWorker{
		store:      store,
		engine:     eng,
		cache:      cache,
		metrics:    metrics,
		logger:     log,
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job.
func (w *RunWorker) Handle(ctx context.Context, job jobs.Job) error {
	run, err := w.store.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return nil
	}
	log := logger.ForRun(w.logger, run.ID, run.Seed)

	processing := models.RunStatusProcessing
	progress := 0
	if err := w.store.Update(ctx, run.ID, models.ScheduleRunUpdate{Status: &processing, Progress: &progress}); err != nil {
		return err
	}

	var cfg engine.Config
	if err := json.Unmarshal(run.Config, &cfg); err != nil {
		w.fail(ctx, run.ID, "stored run configuration is unreadable", log)
		return nil
	}
	cfg.Seed = run.Seed
	cfg.Progress = w.progressReporter(ctx, run.ID, log)

	start := time.Now()
	result, err := w.engine.Run(ctx, cfg)
	w.metrics.ObserveEngineRun(cfg.ScheduleType, result, err, time.Since(start))
	if err != nil {
		msg := appErrors.FromError(err).Message
		if isPermanent(err) || job.Attempt >= w.maxRetries {
			w.fail(ctx, run.ID, msg, log)
			if isPermanent(err) {
				return nil
			}
			return err
		}
		queued := models.RunStatusQueued
		reset := 0
		if updateErr := w.store.Update(ctx, run.ID, models.ScheduleRunUpdate{
			Status:       &queued,
			Progress:     &reset,
			ErrorMessage: &msg,
		}); updateErr != nil {
			log.Warn("failed to mark run queued", zap.Error(updateErr))
		}
		return err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		w.fail(ctx, run.ID, "failed to encode run result", log)
		return nil
	}
	finished := models.RunStatusFinished
	progress = 100
	now := time.Now().UTC()
	noError := ""
	if err := w.store.Update(ctx, run.ID, models.ScheduleRunUpdate{
		Status:       &finished,
		Progress:     &progress,
		Result:       types.JSONText(raw),
		ErrorMessage: &noError,
		FinishedAt:   &now,
	}); err != nil {
		log.Warn("failed to mark run finished", zap.Error(err))
		return err
	}
	w.cache.SetRunResult(ctx, run.ID, result)
	log.Info("schedule run finished",
		zap.Int("scheduled", result.Stats.ScheduledSections),
		zap.Int("conflicts", result.Stats.Conflicts),
	)
	return nil
}

func (w *RunWorker) fail(ctx context.Context, id, msg string, log *zap.Logger) {
	failed := models.RunStatusFailed
	progress := 100
	now := time.Now().UTC()
	// The job context may already be done; the final status must still land.
	updateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.store.Update(updateCtx, id, models.ScheduleRunUpdate{
		Status:       &failed,
		Progress:     &progress,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		log.Warn("failed to mark run failed", zap.Error(err))
		return
	}
	log.Warn("schedule run failed", zap.String("error", msg))
}

func (w *RunWorker) progressReporter(ctx context.Context, id string, log *zap.Logger) engine.ProgressFunc {
	last := 0
	return func(done, total int) {
		if total <= 0 {
			return
		}
		pct := done * 100 / total
		// 100 is reserved for the finished state.
		if pct >= 100 {
			pct = 99
		}
		if pct-last < progressStep {
			return
		}
		last = pct
		if err := w.store.Update(ctx, id, models.ScheduleRunUpdate{Progress: &pct}); err != nil {
			log.Debug("progress update failed", zap.Error(err))
		}
	}
}

// isPermanent reports errors a retry cannot fix.
func isPermanent(err error) bool {
	var appErr *appErrors.Error
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == appErrors.ErrConfiguration.Code || appErr.Code == appErrors.ErrValidation.Code
}
