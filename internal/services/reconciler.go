// Package services – goal completion reconciliation.
//
// The reconciler is the only automatic goal state transition in the system.
// It runs exactly when one of a goal's schedules transitions to COMPLETED:
// if at that moment every sibling is COMPLETED (and the goal has at least
// one schedule), the goal itself is marked COMPLETED. It never runs
// periodically and never produces any other transition; MISSED or ABANDONED
// schedules leave the goal untouched.

package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-planner-backend/internal/domain"
	"github.com/tbourn/go-planner-backend/internal/repo"
)

// reconcileGoalCompletion marks the goal COMPLETED when all of its schedules
// are COMPLETED. It reports whether the goal was flipped.
func reconcileGoalCompletion(ctx context.Context, db *gorm.DB, goalID, userID string) (bool, error) {
	statuses, err := repo.ListScheduleStatuses(ctx, db, goalID)
	if err != nil {
		return false, err
	}
	if len(statuses) == 0 {
		return false, nil
	}
	for _, st := range statuses {
		if st != domain.ScheduleStatusCompleted {
			return false, nil
		}
	}
	if err := repo.UpdateGoalStatus(ctx, db, goalID, userID, domain.GoalStatusCompleted); err != nil {
		return false, err
	}
	return true, nil
}
