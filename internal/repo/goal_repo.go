// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Goal model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a goal is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// This repository is designed to be wrapped by a higher-level service
// (see services.GoalService) which enforces the creation pipeline, the
// duplicate-submission window, and cross-aggregate behavior.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-planner-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across the service
// layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateGoal inserts a goal row. A missing ID gets a fresh UUID and a
// missing CreatedAt is set to UTC now. Used both directly and inside the
// goal+schedules creation transaction.
func CreateGoal(ctx context.Context, db *gorm.DB, g *domain.Goal) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	if g.Status == "" {
		g.Status = domain.GoalStatusActive
	}
	return db.WithContext(ctx).Create(g).Error
}

// GetGoal fetches a single goal by its ID and owner (userID). If the record
// does not exist, it returns ErrNotFound. On other DB errors, the raw error
// is returned.
func GetGoal(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Goal, error) {
	var g domain.Goal
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&g).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// FindRecentGoalByTitle returns the newest goal with the same owner and
// title created at or after since, or ErrNotFound. This backs the
// duplicate-submission window: a second identical submission inside the
// window is answered with the first goal instead of a new row.
func FindRecentGoalByTitle(ctx context.Context, db *gorm.DB, userID, title string, since time.Time) (*domain.Goal, error) {
	var g domain.Goal
	err := db.WithContext(ctx).
		Where("user_id = ? AND title = ? AND created_at >= ?", userID, title, since).
		Order("created_at desc").
		First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// CountGoals returns the total number of goals owned by userID.
func CountGoals(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Goal{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListGoalsPage returns a paginated slice of goals for userID, ordered by
// creation time descending. Use CountGoals to obtain the total for
// pagination metadata.
func ListGoalsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Goal, error) {
	var out []domain.Goal
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateGoalStatus sets the status of a goal identified by id and owned by
// userID, stamping UpdatedAt. If no rows are affected (goal missing or not
// owned by userID), it returns ErrNotFound.
func UpdateGoalStatus(ctx context.Context, db *gorm.DB, id, userID, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.Goal{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
