// Package services – GoalService
//
// This file implements GoalService, the application-level component that owns
// the goal decomposition pipeline: it extracts date hints from the user's
// free-form text, asks the generative planner for a structured plan, validates
// the resulting date range, normalizes every field, and persists the goal
// together with its schedules in one transaction.
//
// Two creation shapes exist. Short goals (span at or under the batch
// threshold) get their full schedule list in the same request. Long goals are
// persisted bare and flagged so the client can drive progressive generation
// through the Materializer.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include goal/user identifiers where applicable.

package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-planner-backend/internal/dateparse"
	"github.com/tbourn/go-planner-backend/internal/domain"
	"github.com/tbourn/go-planner-backend/internal/planner"
	"github.com/tbourn/go-planner-backend/internal/repo"
	"github.com/tbourn/go-planner-backend/internal/sanitize"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// defaultDuplicateWindow is how long an identical (owner, title)
	// resubmission is answered with the already-created goal.
	defaultDuplicateWindow = 5 * time.Second

	// defaultThresholdDays is the goal span above which schedules are not
	// generated inline but through progressive batches.
	defaultThresholdDays = 60

	// defaultSpanMonths is the assumed goal length when neither the text nor
	// the plan yields an end date.
	defaultSpanMonths = 1
)

// PlanClient is the generative-planner contract required by GoalService and
// Materializer. *planner.Client satisfies it; tests substitute fakes.
type PlanClient interface {
	// GeneratePlan decomposes goal text into a structured plan.
	GeneratePlan(ctx context.Context, req planner.PlanRequest) (*planner.GoalPlan, error)

	// GenerateStepsCSV returns CSV step rows covering a date window.
	GenerateStepsCSV(ctx context.Context, req planner.StepsRequest) (string, error)
}

// CreateGoalInput is a goal creation request. Text is required; the other
// fields, when present, override whatever the text or the plan yields.
type CreateGoalInput struct {
	Text      string
	Title     string
	StartDate *time.Time
	EndDate   *time.Time
}

// CreateGoalResult is the outcome of a goal creation request.
type CreateGoalResult struct {
	Goal      *domain.Goal
	Schedules []domain.Schedule

	// Duplicate marks a resubmission answered from the idempotency window
	// instead of a fresh insert.
	Duplicate bool

	// RequiresScheduleGeneration is set for long goals persisted without
	// schedules; the client follows up with batch generation calls.
	RequiresScheduleGeneration bool

	// DurationDays is the inclusive day count of the goal span.
	DurationDays int
}

// GoalService coordinates goal creation, retrieval, and abandonment.
type GoalService struct {
	DB      *gorm.DB
	Planner PlanClient

	// DuplicateWindow bounds the (owner, title) resubmission window.
	DuplicateWindow time.Duration
	// ThresholdDays is the span above which schedule generation is deferred.
	ThresholdDays int
	// TitleLocale drives title casing for derived titles.
	TitleLocale language.Tag

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

// NewGoalService constructs a GoalService with production defaults.
func NewGoalService(db *gorm.DB, client PlanClient) *GoalService {
	return &GoalService{
		DB:              db,
		Planner:         client,
		DuplicateWindow: defaultDuplicateWindow,
		ThresholdDays:   defaultThresholdDays,
		TitleLocale:     language.Indonesian,
		Now:             time.Now,
	}
}

// Create runs the full decomposition pipeline for one free-text submission.
//
// Pipeline order: extract date hints, request the plan, resolve and validate
// the date range, normalize fields, check the duplicate window, then persist.
// Validation failures surface before any row is written; planner failures
// surface as planner.ErrRequestFailed.
func (s *GoalService) Create(ctx context.Context, userID string, in CreateGoalInput) (*CreateGoalResult, error) {
	tr := otel.Tracer("services/GoalService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrEmptyText
	}
	now := s.now()

	info := dateparse.Extract(text, now)

	plan, err := s.Planner.GeneratePlan(ctx, planner.PlanRequest{
		Text:      text,
		Title:     in.Title,
		StartDate: firstDate(in.StartDate, info.StartDate),
		EndDate:   firstDate(in.EndDate, info.EndDate),
	})
	if err != nil {
		return nil, err
	}

	start := s.resolveStart(in, info, plan, now)
	end := s.resolveEnd(in, info, plan, start)
	if err := dateparse.ValidateRange(start, end, now); err != nil {
		return nil, err
	}

	title := sanitize.Title(in.Title)
	if title == "" {
		title = sanitize.Title(cases.Title(s.TitleLocale).String(plan.Title))
	}
	if title == "" {
		title = sanitize.Title(text)
	}
	desc := sanitize.Description(plan.Description)
	if desc == "" {
		desc = sanitize.Description(text)
	}

	totalDays := spanDays(start, end)
	span.SetAttributes(attribute.Int("goal.span_days", totalDays))

	// Idempotency window: a second identical submission inside the window is
	// answered with the first goal instead of a new row.
	if dup, err := repo.FindRecentGoalByTitle(ctx, s.DB, userID, title, now.Add(-s.duplicateWindow())); err == nil {
		schedules, err := repo.ListSchedulesByGoal(ctx, s.DB, dup.ID)
		if err != nil {
			return nil, err
		}
		return &CreateGoalResult{
			Goal:                       dup,
			Schedules:                  schedules,
			Duplicate:                  true,
			RequiresScheduleGeneration: len(schedules) == 0 && spanDays(dup.StartDate, dup.EndDate) > s.thresholdDays(),
			DurationDays:               spanDays(dup.StartDate, dup.EndDate),
		}, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	goal := &domain.Goal{
		UserID:      userID,
		Title:       title,
		Description: desc,
		Emoji:       sanitize.Emoji(plan.Emoji),
		StartDate:   start,
		EndDate:     end,
		Status:      domain.GoalStatusActive,
		CreatedAt:   now.UTC(),
	}

	// Long goals are persisted bare; schedules arrive through batches.
	if totalDays > s.thresholdDays() {
		if err := repo.CreateGoal(ctx, s.DB, goal); err != nil {
			return nil, err
		}
		return &CreateGoalResult{
			Goal:                       goal,
			Schedules:                  []domain.Schedule{},
			RequiresScheduleGeneration: true,
			DurationDays:               totalDays,
		}, nil
	}

	rows, err := s.requestSteps(ctx, title, desc, start, end)
	if err != nil {
		return nil, err
	}
	schedules := buildSchedules(userID, rows, now)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateGoal(ctx, tx, goal); err != nil {
			return err
		}
		for i := range schedules {
			schedules[i].GoalID = &goal.ID
			if err := repo.CreateSchedule(ctx, tx, &schedules[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &CreateGoalResult{
		Goal:         goal,
		Schedules:    schedules,
		DurationDays: totalDays,
	}, nil
}

// Get returns a goal and its schedules, enforcing ownership.
func (s *GoalService) Get(ctx context.Context, userID, goalID string) (*domain.Goal, []domain.Schedule, error) {
	tr := otel.Tracer("services/GoalService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(
			attribute.String("goal.id", goalID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	goal, err := repo.GetGoal(ctx, s.DB, goalID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrGoalNotFound
		}
		return nil, nil, err
	}
	schedules, err := repo.ListSchedulesByGoal(ctx, s.DB, goal.ID)
	if err != nil {
		return nil, nil, err
	}
	return goal, schedules, nil
}

// ListPage returns a page of the user's goals plus the total count.
// It applies defaults for invalid page/pageSize.
func (s *GoalService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Goal, int64, error) {
	tr := otel.Tracer("services/GoalService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountGoals(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Goal{}, 0, nil
	}

	items, err := repo.ListGoalsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Abandon marks an ACTIVE goal as ABANDONED. Goals in a terminal state are
// rejected; abandonment is the only user-driven goal transition.
func (s *GoalService) Abandon(ctx context.Context, userID, goalID string) error {
	tr := otel.Tracer("services/GoalService")
	ctx, span := tr.Start(ctx, "Abandon",
		trace.WithAttributes(
			attribute.String("goal.id", goalID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	goal, err := repo.GetGoal(ctx, s.DB, goalID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrGoalNotFound
		}
		return err
	}
	if goal.Status != domain.GoalStatusActive {
		return ErrGoalNotActive
	}
	return repo.UpdateGoalStatus(ctx, s.DB, goalID, userID, domain.GoalStatusAbandoned)
}

// requestSteps asks the planner for the step rows of one date window and
// validates them, including containment inside the window. All violations are
// returned together in a StepValidationError.
func (s *GoalService) requestSteps(ctx context.Context, title, desc string, start, end time.Time) ([]planner.StepRow, error) {
	csvText, err := s.Planner.GenerateStepsCSV(ctx, planner.StepsRequest{
		GoalTitle:       title,
		GoalDescription: desc,
		WindowStart:     start,
		WindowEnd:       end,
		PercentFrom:     0,
		PercentTo:       100,
	})
	if err != nil {
		return nil, err
	}
	rows, err := planner.ParseStepsCSV(csvText)
	if err != nil {
		return nil, &StepValidationError{Violations: []string{err.Error()}}
	}
	violations := planner.ValidateStepRows(rows)
	violations = append(violations, containmentViolations(rows, start, end)...)
	if len(violations) > 0 {
		return nil, &StepValidationError{Violations: violations}
	}
	return rows, nil
}

// buildSchedules converts validated step rows into schedule models, running
// every field through the sanitize layer and assigning the percent ladder.
//
// The stored percent is round(i/N*100) with the final step forced to 100 —
// the ladder is derived from position at commit time, not trusted from the
// rows, so a short plan always lands on [.., 100] regardless of what the
// generator reported.
func buildSchedules(userID string, rows []planner.StepRow, now time.Time) []domain.Schedule {
	n := len(rows)
	out := make([]domain.Schedule, 0, n)
	for i, row := range rows {
		started := sanitize.TimeOrDefault(row.Date+" "+row.StartTime, now)
		ended := sanitize.EndTimeOrDefault(row.Date+" "+row.EndTime, started)

		pct := int(math.Round(float64(i+1) / float64(n) * 100))
		if i == n-1 {
			pct = 100
		}

		out = append(out, domain.Schedule{
			UserID:          userID,
			Title:           sanitize.Title(row.Title),
			Description:     sanitize.Description(row.Description),
			Emoji:           sanitize.Emoji(row.Emoji),
			StartedTime:     started,
			EndTime:         ended,
			Status:          domain.ScheduleStatusNone,
			PercentComplete: sanitize.Percent(strconv.Itoa(pct)),
			Order:           strconv.Itoa(i + 1),
		})
	}
	return out
}

// containmentViolations reports rows whose date falls outside [start, end].
func containmentViolations(rows []planner.StepRow, start, end time.Time) []string {
	var errs []string
	for i, row := range rows {
		d, err := time.ParseInLocation("2006-01-02", row.Date, start.Location())
		if err != nil {
			continue // already reported by ValidateStepRows
		}
		if d.Before(midnight(start)) || d.After(midnight(end)) {
			errs = append(errs, fmt.Sprintf("baris %d: tanggal di luar rentang goal", i+1))
		}
	}
	return errs
}

// resolveStart picks the goal start date: explicit input, then extraction,
// then the plan's date, then tomorrow.
func (s *GoalService) resolveStart(in CreateGoalInput, info dateparse.Info, plan *planner.GoalPlan, now time.Time) time.Time {
	if in.StartDate != nil {
		return midnight(*in.StartDate)
	}
	if info.StartDate != nil {
		return *info.StartDate
	}
	if d, ok := parseDate(plan.StartDate, now.Location()); ok {
		return d
	}
	return midnight(now).AddDate(0, 0, 1)
}

// resolveEnd picks the goal end date: explicit input, then extraction, then
// the plan's date, then the extracted duration, then a one-month default.
func (s *GoalService) resolveEnd(in CreateGoalInput, info dateparse.Info, plan *planner.GoalPlan, start time.Time) time.Time {
	if in.EndDate != nil {
		return midnight(*in.EndDate)
	}
	if info.EndDate != nil {
		return *info.EndDate
	}
	if d, ok := parseDate(plan.EndDate, start.Location()); ok {
		return d
	}
	if info.Duration != nil {
		return dateparse.CalculateEndDate(start, *info.Duration)
	}
	return dateparse.CalculateEndDate(start, dateparse.Duration{Value: defaultSpanMonths, Unit: dateparse.UnitMonths})
}

func (s *GoalService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *GoalService) duplicateWindow() time.Duration {
	if s.DuplicateWindow > 0 {
		return s.DuplicateWindow
	}
	return defaultDuplicateWindow
}

func (s *GoalService) thresholdDays() int {
	if s.ThresholdDays > 0 {
		return s.ThresholdDays
	}
	return defaultThresholdDays
}

// firstDate returns the first non-nil date.
func firstDate(ds ...*time.Time) *time.Time {
	for _, d := range ds {
		if d != nil {
			return d
		}
	}
	return nil
}

// parseDate parses a YYYY-MM-DD string in loc.
func parseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// midnight truncates t to its calendar date.
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// spanDays is the inclusive day count between two dates.
func spanDays(start, end time.Time) int {
	return int(midnight(end).Sub(midnight(start)).Hours()/24) + 1
}
