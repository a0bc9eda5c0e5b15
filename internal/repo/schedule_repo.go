// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Schedule
// model, including the sibling-status query backing the goal completion
// reconciler and the cursor query backing progressive materialization.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-planner-backend/internal/domain"
)

// CreateSchedule inserts a schedule row. A missing ID gets a fresh UUID and
// a missing Status defaults to NONE.
func CreateSchedule(ctx context.Context, db *gorm.DB, s *domain.Schedule) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.Status == "" {
		s.Status = domain.ScheduleStatusNone
	}
	return db.WithContext(ctx).Create(s).Error
}

// GetSchedule fetches a schedule by ID and owner, or ErrNotFound.
func GetSchedule(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Schedule, error) {
	var s domain.Schedule
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSchedulesByGoal returns all schedules under a goal ordered
// deterministically by start time (then ID as a tiebreaker).
func ListSchedulesByGoal(ctx context.Context, db *gorm.DB, goalID string) ([]domain.Schedule, error) {
	var out []domain.Schedule
	err := db.WithContext(ctx).
		Where("goal_id = ?", goalID).
		Order("started_time ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CountSchedules returns the number of schedules owned by userID, optionally
// filtered to one goal when goalID is non-nil.
func CountSchedules(ctx context.Context, db *gorm.DB, userID string, goalID *string) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.Schedule{}).Where("user_id = ?", userID)
	if goalID != nil {
		q = q.Where("goal_id = ?", *goalID)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// ListSchedulesPage returns a paginated slice of schedules for userID,
// ordered by start time ascending, optionally filtered to one goal.
func ListSchedulesPage(ctx context.Context, db *gorm.DB, userID string, goalID *string, offset, limit int) ([]domain.Schedule, error) {
	q := db.WithContext(ctx).Where("user_id = ?", userID)
	if goalID != nil {
		q = q.Where("goal_id = ?", *goalID)
	}
	var out []domain.Schedule
	err := q.
		Order("started_time ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateScheduleFields applies a partial update (status, notes, ...) to a
// schedule owned by userID, stamping UpdatedAt. Returns ErrNotFound when no
// row matches.
func UpdateScheduleFields(ctx context.Context, db *gorm.DB, id, userID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Schedule{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListScheduleStatuses returns the status column of every schedule under a
// goal. The completion reconciler uses this instead of loading full rows.
func ListScheduleStatuses(ctx context.Context, db *gorm.DB, goalID string) ([]string, error) {
	var statuses []string
	err := db.WithContext(ctx).
		Model(&domain.Schedule{}).
		Where("goal_id = ?", goalID).
		Pluck("status", &statuses).Error
	return statuses, err
}

// MaxScheduleEndTime returns the latest EndTime among a goal's schedules, or
// nil when the goal has none. Progressive materialization derives its batch
// cursor from this instead of trusting client-supplied state.
func MaxScheduleEndTime(ctx context.Context, db *gorm.DB, goalID string) (*time.Time, error) {
	var count int64
	q := db.WithContext(ctx).Model(&domain.Schedule{}).Where("goal_id = ?", goalID)
	if err := q.Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	// Get latest end_time (avoid MAX() -> TEXT in SQLite)
	var row struct {
		EndTime time.Time
	}
	if err := q.Select("end_time").Order("end_time DESC").Limit(1).Scan(&row).Error; err != nil {
		return nil, err
	}
	return &row.EndTime, nil
}
