package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/google/uuid"

	"github.com/consolidex/consolidex/internal/consolidation"
	jobmetrics "github.com/consolidex/consolidex/internal/jobs"
	"github.com/consolidex/consolidex/internal/observability"
	"github.com/consolidex/consolidex/internal/shared"
)

// ConsolidationRunner describes the behaviour required to execute a consolidation run.
type ConsolidationRunner interface {
	RunConsolidation(ctx context.Context, tenantID, periodID, userID string) (consolidation.RunResult, error)
	MatchIntercompanyTransactions(ctx context.Context, tenantID, periodID string) (consolidation.MatchResult, error)
}

// ConsolidationRunJob executes queued consolidation runs and matching sweeps.
// When Lock is set, runs for the same (tenant, period) pair are fenced across
// worker processes.
type ConsolidationRunJob struct {
	Service    ConsolidationRunner
	Lock       *shared.DistributedPeriodLock
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	AppMetrics *observability.Metrics
	clock      func() time.Time
}

// NewConsolidationRunJob constructs the job handler.
func NewConsolidationRunJob(service ConsolidationRunner, lock *shared.DistributedPeriodLock, logger *slog.Logger, metrics *jobmetrics.Metrics, appMetrics *observability.Metrics) *ConsolidationRunJob {
	return &ConsolidationRunJob{
		Service:    service,
		Lock:       lock,
		Logger:     logger,
		Metrics:    metrics,
		AppMetrics: appMetrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// HandleRun executes a queued consolidation run.
func (j *ConsolidationRunJob) HandleRun(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("consolidation run: dependencies not configured")
	}
	var payload ConsolidationRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.PeriodID == "" {
		return asynq.SkipRetry
	}
	if payload.TenantID == "" {
		payload.TenantID = "default"
	}
	if payload.UserID == "" {
		payload.UserID = "system"
	}

	tracker := j.metrics().Track(TaskConsolidationRun)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if j.Lock != nil {
		release, err := j.Lock.Acquire(ctx, payload.TenantID, payload.PeriodID, uuid.NewString())
		if err != nil {
			if errors.Is(err, shared.ErrLockHeld) {
				j.log().Warn("consolidation run already in flight",
					slog.String("tenant", payload.TenantID),
					slog.String("period_id", payload.PeriodID))
				return asynq.SkipRetry
			}
			resultErr = err
			return resultErr
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				j.log().Warn("release period lock", slog.Any("error", err))
			}
		}()
	}

	start := j.now()
	result, err := j.Service.RunConsolidation(ctx, payload.TenantID, payload.PeriodID, payload.UserID)
	j.AppMetrics.ObserveConsolidationRun(string(result.Status), time.Since(start))
	if err != nil {
		resultErr = err
		j.log().Error("consolidation run failed",
			slog.String("tenant", payload.TenantID),
			slog.String("period_id", payload.PeriodID),
			slog.Any("error", err))
		return resultErr
	}

	j.log().Info("consolidation run completed",
		slog.String("tenant", payload.TenantID),
		slog.String("period_id", payload.PeriodID),
		slog.Int("steps", len(result.Steps)),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

// HandleSweep re-runs intercompany matching for a period.
func (j *ConsolidationRunJob) HandleSweep(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("intercompany sweep: dependencies not configured")
	}
	var payload IntercompanySweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.PeriodID == "" {
		return asynq.SkipRetry
	}
	if payload.TenantID == "" {
		payload.TenantID = "default"
	}

	tracker := j.metrics().Track(TaskIntercompanySweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	result, err := j.Service.MatchIntercompanyTransactions(ctx, payload.TenantID, payload.PeriodID)
	if err != nil {
		resultErr = err
		j.log().Error("intercompany sweep failed",
			slog.String("tenant", payload.TenantID),
			slog.String("period_id", payload.PeriodID),
			slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddMatchingExceptions(payload.TenantID, result.Exceptions)

	j.log().Info("intercompany sweep completed",
		slog.String("tenant", payload.TenantID),
		slog.String("period_id", payload.PeriodID),
		slog.Int("matched", result.Matched),
		slog.Int("exceptions", result.Exceptions))
	return resultErr
}

func (j *ConsolidationRunJob) metrics() *jobmetrics.Metrics {
	if j == nil {
		return nil
	}
	return j.Metrics
}

func (j *ConsolidationRunJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *ConsolidationRunJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
