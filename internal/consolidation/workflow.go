package consolidation

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RunStatus is the outcome of a consolidation run or one of its steps.
type RunStatus string

const (
	RunSuccess RunStatus = "SUCCESS"
	RunFailed  RunStatus = "FAILED"
)

// RunStep records one named stage of a consolidation run.
type RunStep struct {
	Name       string    `json:"name"`
	Status     RunStatus `json:"status"`
	Detail     string    `json:"detail"`
	Error      string    `json:"error"`
	FinishedAt time.Time `json:"finishedAt"`
}

// RunResult is the full outcome of an orchestrated consolidation.
type RunResult struct {
	PeriodID         string                  `json:"periodId"`
	Status           RunStatus               `json:"status"`
	Steps            []RunStep               `json:"steps"`
	Statements       []ConsolidatedStatement `json:"statements"`
	MinorityInterest MinorityInterestResult  `json:"minorityInterest"`
	StartedAt        time.Time               `json:"startedAt"`
	FinishedAt       time.Time               `json:"finishedAt"`
}

func (r *RunResult) step(s *Service, name, detail string, err error) error {
	st := RunStep{Name: name, Detail: detail, Status: RunSuccess, FinishedAt: s.now()}
	if err != nil {
		st.Status = RunFailed
		st.Error = err.Error()
	}
	r.Steps = append(r.Steps, st)
	return err
}

// RunConsolidation executes the full sequence for a period: validate,
// advance the workflow, match intercompany legs, generate and post
// eliminations, build the three statements and compute minority interest.
// The period is held under its lock for the whole run. Steps are
// idempotent, so a failed run is retried by running again; nothing is
// rolled back.
//
// A period in DRAFT is advanced to IN_PROGRESS first; a period already in
// REVIEW skips that advance. On success the period lands in APPROVED.
func (s *Service) RunConsolidation(ctx context.Context, tenantID, periodID, userID string) (result RunResult, err error) {
	unlock := s.locks.Acquire(tenantID, periodID)
	defer unlock()

	result = RunResult{PeriodID: periodID, Status: RunFailed, StartedAt: s.now()}
	defer func() {
		result.FinishedAt = s.now()
	}()

	period, err := s.GetPeriod(ctx, tenantID, periodID)
	if result.step(s, "Validate Period", string(period.Status), err) != nil {
		return result, err
	}
	switch period.Status {
	case PeriodDraft, PeriodInProgress, PeriodReview:
	default:
		err = fmt.Errorf("%w: cannot run consolidation from %s", ErrInvalidTransition, period.Status)
		result.step(s, "Update Status", "", err)
		return result, err
	}
	if period.Status == PeriodDraft {
		period, err = s.updatePeriodStatusLocked(ctx, tenantID, periodID, PeriodInProgress, userID)
		if result.step(s, "Update Status", string(PeriodInProgress), err) != nil {
			return result, err
		}
	} else {
		result.step(s, "Update Status", string(period.Status), nil)
	}

	match, err := s.matchPeriodLocked(ctx, tenantID, periodID)
	detail := fmt.Sprintf("matched=%d exceptions=%d", match.Matched, match.Exceptions)
	if result.step(s, "Match Intercompany Transactions", detail, err) != nil {
		return result, err
	}

	entries, err := s.generateEliminationsLocked(ctx, tenantID, periodID)
	if result.step(s, "Generate Automatic Eliminations", fmt.Sprintf("entries=%d", len(entries)), err) != nil {
		return result, err
	}

	posted, err := s.postDraftEliminationsLocked(ctx, tenantID, periodID, userID)
	if result.step(s, "Post Eliminations", fmt.Sprintf("posted=%d", posted), err) != nil {
		return result, err
	}

	statements, err := s.GenerateAllStatements(ctx, tenantID, periodID)
	if result.step(s, "Generate Statements", fmt.Sprintf("statements=%d", len(statements)), err) != nil {
		return result, err
	}
	result.Statements = statements

	mi, err := s.CalculateMinorityInterest(ctx, tenantID, periodID)
	if result.step(s, "Calculate Minority Interest", fmt.Sprintf("entities=%d", len(mi.Rows)), err) != nil {
		return result, err
	}
	result.MinorityInterest = mi

	if period.Status != PeriodReview {
		if period, err = s.updatePeriodStatusLocked(ctx, tenantID, periodID, PeriodReview, userID); err != nil {
			result.step(s, "Finalize Period", "", err)
			return result, err
		}
	}
	if _, err = s.updatePeriodStatusLocked(ctx, tenantID, periodID, PeriodApproved, userID); err != nil {
		result.step(s, "Finalize Period", "", err)
		return result, err
	}
	result.step(s, "Finalize Period", string(PeriodApproved), nil)

	result.Status = RunSuccess
	s.log().Info("consolidation run complete",
		slog.String("period_id", periodID),
		slog.String("status", string(result.Status)),
		slog.Int("steps", len(result.Steps)))
	s.recordAudit(ctx, tenantID, userID, "consolidation_run", "consolidation_periods", periodID, map[string]any{
		"status": string(result.Status),
		"steps":  len(result.Steps),
	})
	return result, nil
}
