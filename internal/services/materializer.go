// Package services – Materializer
//
// This file implements progressive schedule materialization for long goals.
// A goal spanning more than the batch threshold is persisted without
// schedules at creation time; the client then drives generation one
// date-bounded batch at a time through GenerateBatch until HasMore turns
// false.
//
// Each call covers at most BatchSpanDays days, persists its rows atomically,
// and reports the next start date plus an overall progress percentage. The
// batch cursor is derived server-side from the already-persisted schedules,
// so a replayed or stale client request cannot duplicate a window: it either
// matches the cursor or fails the monotonicity guard.
//
// A failed batch aborts the call; batches persisted by earlier calls remain.

package services

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/tbourn/go-planner-backend/internal/domain"
	"github.com/tbourn/go-planner-backend/internal/planner"
	"github.com/tbourn/go-planner-backend/internal/repo"
	"github.com/tbourn/go-planner-backend/internal/sanitize"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// defaultBatchSpanDays is the maximum number of days covered per batch.
	defaultBatchSpanDays = 30

	// defaultBatchDelay is the courtesy pause before every batch after the
	// first, so a fast client loop does not hammer the generative service.
	defaultBatchDelay = 500 * time.Millisecond
)

// batchRuns counts materializer batches by outcome.
var batchRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "materializer_batches_total",
		Help: "Total schedule materialization batches.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(batchRuns)
}

// BatchResult reports one materialization batch back to the client.
type BatchResult struct {
	// Created is the number of schedules persisted by this batch.
	Created int
	// HasMore reports whether any part of the goal span is still uncovered.
	HasMore bool
	// NextStartDate is the first day of the next batch; zero when done.
	NextStartDate time.Time
	// Progress is the overall generation percentage after this batch.
	Progress int
}

// Materializer generates schedules for long goals in progressive batches.
type Materializer struct {
	DB      *gorm.DB
	Planner PlanClient

	// BatchSpanDays caps the days covered by one batch.
	BatchSpanDays int
	// Delay is the inter-batch courtesy pause (skipped for the first batch).
	Delay time.Duration

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

// NewMaterializer constructs a Materializer with production defaults.
func NewMaterializer(db *gorm.DB, client PlanClient) *Materializer {
	return &Materializer{
		DB:            db,
		Planner:       client,
		BatchSpanDays: defaultBatchSpanDays,
		Delay:         defaultBatchDelay,
		Now:           time.Now,
	}
}

// GenerateBatch materializes the next date window of schedules for a goal.
//
// The window start is derived from the latest persisted schedule, not from
// the request: startDate only has to be consistent with that cursor. A
// startDate behind the cursor returns ErrNonMonotonicBatch so a looping
// client aborts instead of re-generating the same window forever.
func (m *Materializer) GenerateBatch(ctx context.Context, userID, goalID string, startDate time.Time) (*BatchResult, error) {
	tr := otel.Tracer("services/Materializer")
	ctx, span := tr.Start(ctx, "GenerateBatch",
		trace.WithAttributes(
			attribute.String("goal.id", goalID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	goal, err := repo.GetGoal(ctx, m.DB, goalID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, err
	}
	if goal.Status != domain.GoalStatusActive {
		return nil, ErrGoalNotActive
	}

	cursor, err := repo.MaxScheduleEndTime(ctx, m.DB, goal.ID)
	if err != nil {
		return nil, err
	}
	batchStart := midnight(goal.StartDate)
	if cursor != nil {
		batchStart = midnight(*cursor).AddDate(0, 0, 1)
	}

	// Whole span already covered: nothing to generate.
	if batchStart.After(midnight(goal.EndDate)) {
		return &BatchResult{Created: 0, HasMore: false, Progress: 100}, nil
	}

	if !startDate.IsZero() && midnight(startDate).Before(batchStart) {
		batchRuns.WithLabelValues("non_monotonic").Inc()
		return nil, ErrNonMonotonicBatch
	}

	// Courtesy pause before every batch after the first.
	if cursor != nil && m.Delay > 0 {
		t := time.NewTimer(m.Delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	spanCap := m.BatchSpanDays
	if spanCap <= 0 {
		spanCap = defaultBatchSpanDays
	}
	windowEnd := batchStart.AddDate(0, 0, spanCap-1)
	if windowEnd.After(midnight(goal.EndDate)) {
		windowEnd = midnight(goal.EndDate)
	}

	totalDays := spanDays(goal.StartDate, goal.EndDate)
	processedDays := spanDays(goal.StartDate, batchStart) - 1
	percentFrom := roundPercent(processedDays, totalDays)
	progress := roundPercent(minInt(processedDays+spanDays(batchStart, windowEnd), totalDays), totalDays)
	span.SetAttributes(
		attribute.Int("batch.window_days", spanDays(batchStart, windowEnd)),
		attribute.Int("batch.progress", progress),
	)

	csvText, err := m.Planner.GenerateStepsCSV(ctx, planner.StepsRequest{
		GoalTitle:       goal.Title,
		GoalDescription: goal.Description,
		WindowStart:     batchStart,
		WindowEnd:       windowEnd,
		PercentFrom:     percentFrom,
		PercentTo:       progress,
	})
	if err != nil {
		batchRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	rows, err := planner.ParseStepsCSV(csvText)
	if err != nil {
		batchRuns.WithLabelValues("invalid").Inc()
		return nil, &StepValidationError{Violations: []string{err.Error()}}
	}
	violations := planner.ValidateStepRowsTo(rows, progress)
	violations = append(violations, containmentViolations(rows, batchStart, windowEnd)...)
	if len(violations) > 0 {
		batchRuns.WithLabelValues("invalid").Inc()
		return nil, &StepValidationError{Violations: violations}
	}

	existing, err := repo.CountSchedules(ctx, m.DB, userID, &goal.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	finalBatch := windowEnd.Equal(midnight(goal.EndDate))
	schedules := buildBatchSchedules(userID, goal.ID, rows, int(existing), finalBatch, now())

	err = m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range schedules {
			if err := repo.CreateSchedule(ctx, tx, &schedules[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		batchRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	batchRuns.WithLabelValues("ok").Inc()

	res := &BatchResult{
		Created:  len(schedules),
		HasMore:  !finalBatch,
		Progress: progress,
	}
	if res.HasMore {
		res.NextStartDate = windowEnd.AddDate(0, 0, 1)
	}
	return res, nil
}

// buildBatchSchedules converts one validated batch of rows into schedule
// models. Unlike the inline creation path, the cumulative percent comes from
// the rows themselves (the validator has already checked the ladder); only
// the very last row of the final batch is forced to exactly 100.
func buildBatchSchedules(userID, goalID string, rows []planner.StepRow, orderBase int, finalBatch bool, now time.Time) []domain.Schedule {
	out := make([]domain.Schedule, 0, len(rows))
	for i, row := range rows {
		started := sanitize.TimeOrDefault(row.Date+" "+row.StartTime, now)
		ended := sanitize.EndTimeOrDefault(row.Date+" "+row.EndTime, started)

		pct := row.Percent
		if finalBatch && i == len(rows)-1 {
			pct = 100
		}

		gid := goalID
		out = append(out, domain.Schedule{
			UserID:          userID,
			GoalID:          &gid,
			Title:           sanitize.Title(row.Title),
			Description:     sanitize.Description(row.Description),
			Emoji:           sanitize.Emoji(row.Emoji),
			StartedTime:     started,
			EndTime:         ended,
			Status:          domain.ScheduleStatusNone,
			PercentComplete: sanitize.Percent(strconv.Itoa(pct)),
			Order:           strconv.Itoa(orderBase + i + 1),
		})
	}
	return out
}

// roundPercent is round(part/total*100) with a zero-total guard.
func roundPercent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
