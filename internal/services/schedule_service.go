// Package services – ScheduleService
//
// This file implements ScheduleService, which owns standalone schedule
// creation (one-off calendar entries without a goal), schedule listing, and
// partial updates. A status update to COMPLETED on a goal-owned schedule
// hands off to the completion reconciler, which may flip the parent goal.

package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-planner-backend/internal/domain"
	"github.com/tbourn/go-planner-backend/internal/repo"
	"github.com/tbourn/go-planner-backend/internal/sanitize"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// validStatuses is the allowed set for schedule status updates.
var validStatuses = map[string]bool{
	domain.ScheduleStatusNone:       true,
	domain.ScheduleStatusInProgress: true,
	domain.ScheduleStatusCompleted:  true,
	domain.ScheduleStatusMissed:     true,
	domain.ScheduleStatusAbandoned:  true,
}

// CreateScheduleInput is a standalone schedule creation request. Timestamps
// arrive as raw strings and go through the sanitize layer, so a malformed
// time degrades to a default instead of failing the request.
type CreateScheduleInput struct {
	Title       string
	Description string
	Notes       string
	Emoji       string
	StartedTime string
	EndTime     string
}

// UpdateScheduleInput is a partial schedule update; nil fields are untouched.
type UpdateScheduleInput struct {
	Status *string
	Notes  *string
}

// ScheduleService coordinates schedule persistence and the goal completion
// reconciliation that schedule updates can trigger.
type ScheduleService struct {
	DB *gorm.DB

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(db *gorm.DB) *ScheduleService {
	return &ScheduleService{DB: db, Now: time.Now}
}

// Create persists a standalone schedule owned by userID. The title is
// required; every other field is normalized with fallbacks.
func (s *ScheduleService) Create(ctx context.Context, userID string, in CreateScheduleInput) (*domain.Schedule, error) {
	tr := otel.Tracer("services/ScheduleService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	title := sanitize.Title(in.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	now := s.Now()
	started := sanitize.TimeOrDefault(in.StartedTime, now)

	sched := &domain.Schedule{
		UserID:          userID,
		Title:           title,
		Description:     sanitize.Description(in.Description),
		Notes:           sanitize.Notes(in.Notes),
		Emoji:           sanitize.Emoji(in.Emoji),
		StartedTime:     started,
		EndTime:         sanitize.EndTimeOrDefault(in.EndTime, started),
		Status:          domain.ScheduleStatusNone,
		PercentComplete: sanitize.PercentDefault,
		CreatedAt:       now.UTC(),
	}
	if err := repo.CreateSchedule(ctx, s.DB, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// Get returns one schedule, enforcing ownership.
func (s *ScheduleService) Get(ctx context.Context, userID, id string) (*domain.Schedule, error) {
	sched, err := repo.GetSchedule(ctx, s.DB, id, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}
	return sched, nil
}

// ListPage returns a page of the user's schedules plus the total count,
// optionally scoped to one goal. It applies defaults for invalid
// page/pageSize.
func (s *ScheduleService) ListPage(ctx context.Context, userID string, goalID *string, page, pageSize int) ([]domain.Schedule, int64, error) {
	tr := otel.Tracer("services/ScheduleService")
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

	total, err := repo.CountSchedules(ctx, s.DB, userID, goalID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Schedule{}, 0, nil
	}

	items, err := repo.ListSchedulesPage(ctx, s.DB, userID, goalID, offset, pageSize)
	return items, total, err
}

// Update applies a partial update (status and/or notes) to a schedule owned
// by userID and returns the refreshed row.
//
// A transition to COMPLETED on a goal-owned schedule runs the completion
// reconciler afterwards; no other update touches the parent goal.
func (s *ScheduleService) Update(ctx context.Context, userID, id string, in UpdateScheduleInput) (*domain.Schedule, error) {
	tr := otel.Tracer("services/ScheduleService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(
			attribute.String("schedule.id", id),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	fields := map[string]any{}
	completing := false
	if in.Status != nil {
		status := strings.ToUpper(strings.TrimSpace(*in.Status))
		if !validStatuses[status] {
			return nil, ErrInvalidStatus
		}
		fields["status"] = status
		completing = status == domain.ScheduleStatusCompleted
	}
	if in.Notes != nil {
		fields["notes"] = sanitize.Notes(*in.Notes)
	}

	current, err := repo.GetSchedule(ctx, s.DB, id, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}

	// Only a transition counts: re-completing an already-completed schedule
	// must not re-run reconciliation.
	completing = completing && current.Status != domain.ScheduleStatusCompleted

	if len(fields) > 0 {
		if err := repo.UpdateScheduleFields(ctx, s.DB, id, userID, fields); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrScheduleNotFound
			}
			return nil, err
		}
	}

	updated, err := repo.GetSchedule(ctx, s.DB, id, userID)
	if err != nil {
		return nil, err
	}

	if completing && updated.HasGoal() {
		if _, err := reconcileGoalCompletion(ctx, s.DB, *updated.GoalID, userID); err != nil {
			return nil, err
		}
	}
	return updated, nil
}
