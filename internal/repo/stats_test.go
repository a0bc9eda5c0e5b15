package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-planner-backend/internal/domain"
)

func TestGoalsStats(t *testing.T) {
	db := newTestDB(t, &domain.Goal{})

	count, maxUpdated, err := GoalsStats(context.Background(), db, "u1")
	if err != nil || count != 0 || maxUpdated != nil {
		t.Fatalf("empty stats = %d, %v, %v; want 0, nil, nil", count, maxUpdated, err)
	}

	for i := 0; i < 2; i++ {
		g := newGoal("u1", "Goal", time.Now().UTC())
		if err := CreateGoal(context.Background(), db, g); err != nil {
			t.Fatalf("CreateGoal: %v", err)
		}
	}

	count, maxUpdated, err = GoalsStats(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("GoalsStats: %v", err)
	}
	if count != 2 || maxUpdated == nil {
		t.Fatalf("stats = %d, %v; want 2 and a timestamp", count, maxUpdated)
	}
}

func TestSchedulesStats_GoalScoped(t *testing.T) {
	db := newTestDB(t, &domain.Goal{}, &domain.Schedule{})

	g := newGoal("u1", "Goal", time.Now().UTC())
	if err := CreateGoal(context.Background(), db, g); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	base := time.Date(2025, 8, 12, 9, 0, 0, 0, time.UTC)
	if err := CreateSchedule(context.Background(), db, newSchedule("u1", &g.ID, base)); err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	if err := CreateSchedule(context.Background(), db, newSchedule("u1", nil, base.AddDate(0, 0, 1))); err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}

	count, maxUpdated, err := SchedulesStats(context.Background(), db, "u1", nil)
	if err != nil || count != 2 || maxUpdated == nil {
		t.Fatalf("unscoped stats = %d, %v, %v; want 2 and a timestamp", count, maxUpdated, err)
	}

	count, _, err = SchedulesStats(context.Background(), db, "u1", &g.ID)
	if err != nil || count != 1 {
		t.Fatalf("scoped stats = %d, %v; want 1", count, err)
	}

	count, maxUpdated, err = SchedulesStats(context.Background(), db, "nobody", nil)
	if err != nil || count != 0 || maxUpdated != nil {
		t.Fatalf("foreign stats = %d, %v, %v; want 0, nil, nil", count, maxUpdated, err)
	}
}
