package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-master-scheduler/internal/dto"
	"github.com/noah-isme/sma-master-scheduler/internal/engine"
	"github.com/noah-isme/sma-master-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-master-scheduler/pkg/errors"
	"github.com/noah-isme/sma-master-scheduler/pkg/jobs"
)

// JobTypeMasterSchedule tags queue jobs that execute a stored run.
const JobTypeMasterSchedule = "master_schedule"

// LockAllPlaced in RegenerateRequest.LockPlaced locks every placed section of the parent run.
const LockAllPlaced = "*"

type scheduleRunStore interface {
	Create(ctx context.Context, run *models.ScheduleRun) error
	GetByID(ctx context.Context, id string) (*models.ScheduleRun, error)
	List(ctx context.Context, filter models.ScheduleRunFilter) ([]models.ScheduleRun, int, error)
	Update(ctx context.Context, id string, params models.ScheduleRunUpdate) error
	Delete(ctx context.Context, id string) (bool, error)
	ListQueued(ctx context.Context, limit int) ([]models.ScheduleRun, error)
}

type runDispatcher interface {
	Enqueue(job jobs.Job) error
}

// MasterScheduleServiceConfig bounds engine usage from the API.
type MasterScheduleServiceConfig struct {
	DefaultSeed  int64
	RunTimeout   time.Duration
	MaxSections  int
	VariantLimit int
}

// MasterScheduleService runs the engine synchronously, queues stored runs,
// regenerates runs with locked sections and compares variants.
type MasterScheduleService struct {
	engine   *engine.Engine
	store    scheduleRunStore
	queue    runDispatcher
	cache    *CacheService
	metrics  *MetricsService
	validate *validator.Validate
	logger   *zap.Logger
	cfg      MasterScheduleServiceConfig
}

// NewMasterScheduleService constructs the service. store and queue may be
// nil, in which case only synchronous endpoints are available.
func NewMasterScheduleService(eng *engine.Engine, store scheduleRunStore, queue runDispatcher, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg MasterScheduleServiceConfig) *MasterScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if eng == nil {
		eng = engine.New(logger)
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Minute
	}
	if cfg.VariantLimit <= 0 {
		cfg.VariantLimit = 8
	}
	return &MasterScheduleService{
		engine:   eng,
		store:    store,
		queue:    queue,
		cache:    cache,
		metrics:  metrics,
		validate: validate,
		logger:   logger,
		cfg:      cfg,
	}
}

// RunStoreEnabled reports whether stored runs are available.
func (s *MasterScheduleService) RunStoreEnabled() bool {
	return s.store != nil
}

// Generate runs the engine inline. When the run store is enabled the run is
// persisted so it can be regenerated later.
func (s *MasterScheduleService) Generate(ctx context.Context, req dto.MasterScheduleRequest, actorID string) (*dto.MasterScheduleResponse, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	cfg := req.ToEngine(s.cfg.DefaultSeed)

	result, err := s.execute(ctx, cfg)
	if err != nil {
		return nil, err
	}

	resp := &dto.MasterScheduleResponse{Result: result}
	if s.store == nil {
		return resp, nil
	}
	run, err := s.persistFinished(ctx, cfg, result, nil, actorID)
	if err != nil {
		return nil, err
	}
	resp.RunID = run.ID
	return resp, nil
}

// Submit stores a queued run and hands it to the worker pool.
func (s *MasterScheduleService) Submit(ctx context.Context, req dto.MasterScheduleRequest, actorID string) (*dto.RunSubmitResponse, error) {
	if err := s.requireAsync(); err != nil {
		return nil, err
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	run, err := s.enqueue(ctx, req.ToEngine(s.cfg.DefaultSeed), nil, actorID)
	if err != nil {
		return nil, err
	}
	return &dto.RunSubmitResponse{ID: run.ID, Status: run.Status, Seed: run.Seed}, nil
}

// GetRun returns a stored run, decoding its result when finished and requested.
func (s *MasterScheduleService) GetRun(ctx context.Context, id string, includeResult bool) (*dto.RunResponse, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	run, err := s.loadRun(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toRunResponse(run)
	if includeResult && run.Status == models.RunStatusFinished {
		result, err := s.decodeResult(ctx, run)
		if err != nil {
			return nil, err
		}
		resp.Result = result
	}
	return &resp, nil
}

// LoadResult returns the engine result of a finished run.
func (s *MasterScheduleService) LoadResult(ctx context.Context, id string) (*engine.Result, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	if result, ok := s.cache.GetRunResult(ctx, id); ok {
		return result, nil
	}
	run, err := s.loadRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Status != models.RunStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("run %s is %s", id, run.Status))
	}
	return s.decodeResult(ctx, run)
}

// ListRuns returns run summaries without results.
func (s *MasterScheduleService) ListRuns(ctx context.Context, query dto.RunListQuery) ([]dto.RunResponse, *models.Pagination, error) {
	if err := s.requireStore(); err != nil {
		return nil, nil, err
	}
	if err := s.validate.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run filter")
	}
	filter := models.ScheduleRunFilter{
		ScheduleType: query.ScheduleType,
		Page:         query.Page,
		PageSize:     query.PageSize,
	}
	if query.Status != "" {
		status := models.RunStatus(query.Status)
		filter.Status = &status
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	start := time.Now()
	runs, total, err := s.store.List(ctx, filter)
	s.metrics.ObserveDBQuery("schedule_runs.list", time.Since(start))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list runs")
	}
	out := make([]dto.RunResponse, 0, len(runs))
	for i := range runs {
		out = append(out, toRunResponse(&runs[i]))
	}
	return out, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// DeleteRun removes a stored run and its cached result.
func (s *MasterScheduleService) DeleteRun(ctx context.Context, id string) error {
	if err := s.requireStore(); err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete run")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "run not found")
	}
	s.cache.InvalidateRun(ctx, id)
	s.logger.Info("schedule run deleted", zap.String("run_id", id))
	return nil
}

// Regenerate reruns a stored configuration with locked sections. The parent
// seed is reused unless the request overrides it.
func (s *MasterScheduleService) Regenerate(ctx context.Context, parentID string, req dto.RegenerateRequest, actorID string) (*dto.RunResponse, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid regenerate payload")
	}
	parent, err := s.loadRun(ctx, parentID)
	if err != nil {
		return nil, err
	}

	var cfg engine.Config
	if err := json.Unmarshal(parent.Config, &cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored run configuration is unreadable")
	}
	cfg.Seed = parent.Seed
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if len(req.SizeOverrides) > 0 {
		merged := make(map[string]int, len(cfg.SizeOverrides)+len(req.SizeOverrides))
		for k, v := range cfg.SizeOverrides {
			merged[k] = v
		}
		for k, v := range req.SizeOverrides {
			merged[k] = v
		}
		cfg.SizeOverrides = merged
	}

	locks := dto.LockedSectionsToEngine(req.LockedSections)
	if len(req.LockPlaced) > 0 {
		if parent.Status != models.RunStatusFinished {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "placed sections can only be locked from a finished run")
		}
		result, err := s.decodeResult(ctx, parent)
		if err != nil {
			return nil, err
		}
		locks = mergeLocks(locks, locksFromResult(result, req.LockPlaced))
	}
	cfg.LockedSections = locks

	if req.Async {
		if err := s.requireAsync(); err != nil {
			return nil, err
		}
		run, err := s.enqueue(ctx, cfg, &parent.ID, actorID)
		if err != nil {
			return nil, err
		}
		resp := toRunResponse(run)
		return &resp, nil
	}

	result, err := s.execute(ctx, cfg)
	if err != nil {
		return nil, err
	}
	run, err := s.persistFinished(ctx, cfg, result, &parent.ID, actorID)
	if err != nil {
		return nil, err
	}
	resp := toRunResponse(run)
	resp.Result = result
	return &resp, nil
}

// RunVariants executes several configurations concurrently.
func (s *MasterScheduleService) RunVariants(ctx context.Context, req dto.VariantsRequest) (*dto.VariantsResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid variants payload")
	}
	if len(req.Variants) > s.cfg.VariantLimit {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d variants may be compared", s.cfg.VariantLimit))
	}

	configs := make(map[string]engine.Config, len(req.Variants))
	for name, variant := range req.Variants {
		if err := s.checkSize(variant); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("variant %s: %s", name, appErrors.FromError(err).Message))
		}
		configs[name] = variant.ToEngine(s.cfg.DefaultSeed)
	}

	start := time.Now()
	results := s.engine.RunVariants(ctx, configs, s.cfg.RunTimeout)
	elapsed := time.Since(start)

	resp := &dto.VariantsResponse{Variants: make([]dto.VariantResponse, 0, len(results))}
	for _, r := range results {
		s.metrics.ObserveEngineRun(configs[r.Name].ScheduleType, r.Result, r.Err, elapsed)
		item := dto.VariantResponse{Name: r.Name, Result: r.Result}
		if r.Err != nil {
			appErr := appErrors.FromError(r.Err)
			item.Error = &dto.VariantError{Code: appErr.Code, Message: appErr.Message}
		}
		resp.Variants = append(resp.Variants, item)
	}
	s.logger.Info("variants compared", zap.Int("count", len(results)), zap.Duration("duration", elapsed))
	return resp, nil
}

// RecoverPendingRuns re-enqueues runs left queued or processing by a previous process.
func (s *MasterScheduleService) RecoverPendingRuns(ctx context.Context) {
	if s.store == nil || s.queue == nil {
		return
	}
	runs, err := s.store.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to list pending runs", zap.Error(err))
		return
	}
	for _, run := range runs {
		if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: JobTypeMasterSchedule}); err != nil {
			s.logger.Warn("failed to requeue run", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
	if len(runs) > 0 {
		s.logger.Info("pending runs recovered", zap.Int("count", len(runs)))
	}
}

func (s *MasterScheduleService) validateRequest(req dto.MasterScheduleRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid master schedule payload")
	}
	return s.checkSize(req)
}

func (s *MasterScheduleService) checkSize(req dto.MasterScheduleRequest) error {
	if s.cfg.MaxSections <= 0 {
		return nil
	}
	if n := req.EstimatedSections(); n > s.cfg.MaxSections {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("request expands to %d sections (limit %d)", n, s.cfg.MaxSections))
	}
	return nil
}

func (s *MasterScheduleService) requireStore() error {
	if s.store == nil {
		return appErrors.Clone(appErrors.ErrServiceDisabled, "run store is disabled")
	}
	return nil
}

func (s *MasterScheduleService) requireAsync() error {
	if err := s.requireStore(); err != nil {
		return err
	}
	if s.queue == nil {
		return appErrors.Clone(appErrors.ErrServiceDisabled, "run queue is disabled")
	}
	return nil
}

func (s *MasterScheduleService) execute(ctx context.Context, cfg engine.Config) (*engine.Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.engine.Run(runCtx, cfg)
	s.metrics.ObserveEngineRun(cfg.ScheduleType, result, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *MasterScheduleService) persistFinished(ctx context.Context, cfg engine.Config, result *engine.Result, parentID *string, actorID string) (*models.ScheduleRun, error) {
	rawCfg, err := json.Marshal(cfg)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode run configuration")
	}
	rawResult, err := json.Marshal(result)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode run result")
	}
	now := time.Now().UTC()
	run := &models.ScheduleRun{
		ParentRunID:  parentID,
		Status:       models.RunStatusFinished,
		ScheduleType: string(result.ScheduleType),
		Seed:         result.Seed,
		Progress:     100,
		Config:       types.JSONText(rawCfg),
		Result:       types.NullJSONText{JSONText: types.JSONText(rawResult), Valid: true},
		CreatedBy:    actorID,
		CreatedAt:    now,
		FinishedAt:   &now,
	}
	start := time.Now()
	err = s.store.Create(ctx, run)
	s.metrics.ObserveDBQuery("schedule_runs.create", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store run")
	}
	s.cache.SetRunResult(ctx, run.ID, result)
	return run, nil
}

func (s *MasterScheduleService) enqueue(ctx context.Context, cfg engine.Config, parentID *string, actorID string) (*models.ScheduleRun, error) {
	rawCfg, err := json.Marshal(cfg)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode run configuration")
	}
	scheduleType := cfg.ScheduleType
	if scheduleType == "" {
		scheduleType = engine.ScheduleStandard
	}
	run := &models.ScheduleRun{
		ParentRunID:  parentID,
		Status:       models.RunStatusQueued,
		ScheduleType: string(scheduleType),
		Seed:         cfg.Seed,
		Config:       types.JSONText(rawCfg),
		CreatedBy:    actorID,
	}
	if err := s.store.Create(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create run")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: JobTypeMasterSchedule}); err != nil {
		failed := models.RunStatusFailed
		msg := "failed to enqueue run"
		now := time.Now().UTC()
		_ = s.store.Update(ctx, run.ID, models.ScheduleRunUpdate{
			Status:       &failed,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue run")
	}
	s.logger.Info("schedule run queued", zap.String("run_id", run.ID), zap.Int64("seed", run.Seed))
	return run, nil
}

func (s *MasterScheduleService) loadRun(ctx context.Context, id string) (*models.ScheduleRun, error) {
	start := time.Now()
	run, err := s.store.GetByID(ctx, id)
	s.metrics.ObserveDBQuery("schedule_runs.get", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load run")
	}
	return run, nil
}

func (s *MasterScheduleService) decodeResult(ctx context.Context, run *models.ScheduleRun) (*engine.Result, error) {
	if cached, ok := s.cache.GetRunResult(ctx, run.ID); ok {
		return cached, nil
	}
	if !run.Result.Valid {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "run has no result")
	}
	var result engine.Result
	if err := json.Unmarshal(run.Result.JSONText, &result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored run result is unreadable")
	}
	s.cache.SetRunResult(ctx, run.ID, &result)
	return &result, nil
}

func toRunResponse(run *models.ScheduleRun) dto.RunResponse {
	return dto.RunResponse{
		ID:           run.ID,
		ParentRunID:  run.ParentRunID,
		Status:       run.Status,
		ScheduleType: run.ScheduleType,
		Seed:         run.Seed,
		Progress:     run.Progress,
		Error:        run.ErrorMessage,
		CreatedBy:    run.CreatedBy,
		CreatedAt:    run.CreatedAt,
		FinishedAt:   run.FinishedAt,
	}
}

// locksFromResult pins placed, conflict-free sections of a finished run.
func locksFromResult(result *engine.Result, ids []string) []engine.LockedSection {
	all := false
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == LockAllPlaced {
			all = true
			continue
		}
		wanted[id] = struct{}{}
	}
	var locks []engine.LockedSection
	for _, sec := range result.Sections {
		if !sec.Placed() || sec.HasConflict {
			continue
		}
		if _, ok := wanted[sec.ID]; !ok && !all {
			continue
		}
		locks = append(locks, engine.LockedSection{
			SectionID:   sec.ID,
			Period:      sec.PeriodKey(),
			TeacherID:   sec.TeacherID,
			CoTeacherID: sec.CoTeacherID,
			RoomID:      sec.RoomID,
		})
	}
	return locks
}

// mergeLocks combines explicit locks with locks derived from a result.
// Explicit locks win for the same section.
func mergeLocks(explicit, derived []engine.LockedSection) []engine.LockedSection {
	seen := make(map[string]struct{}, len(explicit))
	out := make([]engine.LockedSection, 0, len(explicit)+len(derived))
	for _, l := range explicit {
		seen[l.SectionID] = struct{}{}
		out = append(out, l)
	}
	for _, l := range derived {
		if _, dup := seen[l.SectionID]; dup {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SectionID < out[j].SectionID })
	return out
}
