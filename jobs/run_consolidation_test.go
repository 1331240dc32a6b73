package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/consolidex/consolidex/internal/consolidation"
	"github.com/consolidex/consolidex/internal/shared"
)

type stubRunner struct {
	runTenant   string
	runPeriod   string
	runUser     string
	runErr      error
	sweepCalls  int
	sweepResult consolidation.MatchResult
}

func (s *stubRunner) RunConsolidation(_ context.Context, tenantID, periodID, userID string) (consolidation.RunResult, error) {
	s.runTenant, s.runPeriod, s.runUser = tenantID, periodID, userID
	return consolidation.RunResult{PeriodID: periodID, Status: consolidation.RunSuccess}, s.runErr
}

func (s *stubRunner) MatchIntercompanyTransactions(_ context.Context, tenantID, periodID string) (consolidation.MatchResult, error) {
	s.sweepCalls++
	return s.sweepResult, nil
}

func runTask(t *testing.T, payload ConsolidationRunPayload) *asynq.Task {
	t.Helper()
	task, err := NewConsolidationRunTask(payload)
	require.NoError(t, err)
	return task
}

func TestHandleRun(t *testing.T) {
	runner := &stubRunner{}
	job := NewConsolidationRunJob(runner, nil, nil, nil, nil)

	err := job.HandleRun(context.Background(), runTask(t, ConsolidationRunPayload{PeriodID: "p1"}))
	require.NoError(t, err)
	require.Equal(t, "default", runner.runTenant, "tenant defaults when queued without one")
	require.Equal(t, "p1", runner.runPeriod)
	require.Equal(t, "system", runner.runUser)
}

func TestHandleRunBadPayload(t *testing.T) {
	job := NewConsolidationRunJob(&stubRunner{}, nil, nil, nil, nil)

	err := job.HandleRun(context.Background(), asynq.NewTask(TaskConsolidationRun, []byte("{broken")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.HandleRun(context.Background(), runTask(t, ConsolidationRunPayload{TenantID: "acme"}))
	require.ErrorIs(t, err, asynq.SkipRetry, "missing period id never retries")
}

func TestHandleRunHeldLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	lock := shared.NewDistributedPeriodLock(client, time.Minute)
	ctx := context.Background()

	_, err := lock.Acquire(ctx, "default", "p1", "other-worker")
	require.NoError(t, err)

	runner := &stubRunner{}
	job := NewConsolidationRunJob(runner, lock, nil, nil, nil)
	err = job.HandleRun(ctx, runTask(t, ConsolidationRunPayload{PeriodID: "p1"}))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, runner.runPeriod, "held lock must short-circuit the run")
}

func TestHandleRunReleasesLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	lock := shared.NewDistributedPeriodLock(client, time.Minute)
	ctx := context.Background()

	job := NewConsolidationRunJob(&stubRunner{}, lock, nil, nil, nil)
	require.NoError(t, job.HandleRun(ctx, runTask(t, ConsolidationRunPayload{PeriodID: "p1"})))
	require.False(t, mr.Exists(shared.PeriodLockKey("default", "p1")),
		"lease must be released after the run")
}

func TestHandleSweep(t *testing.T) {
	runner := &stubRunner{sweepResult: consolidation.MatchResult{Matched: 2, Exceptions: 1}}
	job := NewConsolidationRunJob(runner, nil, nil, nil, nil)

	task, err := NewIntercompanySweepTask(IntercompanySweepPayload{PeriodID: "p1"})
	require.NoError(t, err)
	require.NoError(t, job.HandleSweep(context.Background(), task))
	require.Equal(t, 1, runner.sweepCalls)

	err = job.HandleSweep(context.Background(), asynq.NewTask(TaskIntercompanySweep, nil))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestTaskPayloadRoundTrip(t *testing.T) {
	task := runTask(t, ConsolidationRunPayload{TenantID: "acme", PeriodID: "p1", UserID: "controller"})
	require.Equal(t, TaskConsolidationRun, task.Type())

	var payload ConsolidationRunPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, "acme", payload.TenantID)
	require.Equal(t, "p1", payload.PeriodID)
	require.Equal(t, "controller", payload.UserID)
}
