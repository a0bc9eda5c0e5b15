package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-planner-backend/internal/domain"
	"github.com/tbourn/go-planner-backend/internal/repo"
	"gorm.io/gorm"
)

// seedLongGoal inserts a 70-day goal (2025-09-01 .. 2025-11-09) without
// schedules, the shape left behind by deferred creation.
func seedLongGoal(t *testing.T, db *gorm.DB, userID string) *domain.Goal {
	t.Helper()
	g := &domain.Goal{
		UserID:      userID,
		Title:       "Maraton Pertama",
		Description: "program latihan lari",
		Emoji:       "🏃",
		StartDate:   time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 11, 9, 0, 0, 0, 0, time.UTC),
		Status:      domain.GoalStatusActive,
	}
	if err := repo.CreateGoal(context.Background(), db, g); err != nil {
		t.Fatalf("seed goal: %v", err)
	}
	return g
}

func newTestMaterializer(db *gorm.DB, f *fakePlanner) *Materializer {
	m := NewMaterializer(db, f)
	m.Delay = time.Millisecond
	m.Now = fixedNow
	return m
}

func TestMaterializer_GenerateBatch_ProgressesToCompletion(t *testing.T) {
	db := newSvcDB(t)
	f := &fakePlanner{}
	m := newTestMaterializer(db, f)
	g := seedLongGoal(t, db, "u1")

	// Batch 1: first 30 days.
	res, err := m.GenerateBatch(context.Background(), "u1", g.ID, time.Time{})
	if err != nil {
		t.Fatalf("batch 1: %v", err)
	}
	if res.Created == 0 || !res.HasMore {
		t.Fatalf("batch 1 result: %+v", res)
	}
	if res.Progress != 43 { // round(30/70*100)
		t.Fatalf("batch 1 progress = %d; want 43", res.Progress)
	}
	wantNext := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	if !res.NextStartDate.Equal(wantNext) {
		t.Fatalf("batch 1 next = %v; want %v", res.NextStartDate, wantNext)
	}
	if f.lastSteps.PercentFrom != 0 || f.lastSteps.PercentTo != 43 {
		t.Fatalf("batch 1 percent window = %d..%d; want 0..43", f.lastSteps.PercentFrom, f.lastSteps.PercentTo)
	}

	// Batch 2: next 30 days.
	res, err = m.GenerateBatch(context.Background(), "u1", g.ID, res.NextStartDate)
	if err != nil {
		t.Fatalf("batch 2: %v", err)
	}
	if res.Progress != 86 || !res.HasMore { // round(60/70*100)
		t.Fatalf("batch 2 result: %+v", res)
	}

	// Batch 3: final 10 days.
	res, err = m.GenerateBatch(context.Background(), "u1", g.ID, res.NextStartDate)
	if err != nil {
		t.Fatalf("batch 3: %v", err)
	}
	if res.HasMore || res.Progress != 100 {
		t.Fatalf("batch 3 result: %+v", res)
	}
	if !res.NextStartDate.IsZero() {
		t.Fatalf("batch 3 next = %v; want zero", res.NextStartDate)
	}

	all, err := repo.ListSchedulesByGoal(context.Background(), db, g.ID)
	if err != nil {
		t.Fatalf("list schedules: %v", err)
	}
	if len(all) != 15 { // 3 batches x 5 synthesized rows
		t.Fatalf("schedules = %d; want 15", len(all))
	}
	if last := all[len(all)-1]; last.PercentComplete != "100" {
		t.Fatalf("final percent = %q; want 100", last.PercentComplete)
	}
	// Orders continue across batches.
	if all[len(all)-1].Order != "15" {
		t.Fatalf("final order = %q; want 15", all[len(all)-1].Order)
	}

	// Everything covered: one more call is a no-op, not an error.
	res, err = m.GenerateBatch(context.Background(), "u1", g.ID, time.Time{})
	if err != nil || res.Created != 0 || res.HasMore {
		t.Fatalf("post-completion batch = %+v, %v; want empty no-op", res, err)
	}
}

func TestMaterializer_GenerateBatch_NonMonotonicCursor(t *testing.T) {
	db := newSvcDB(t)
	m := newTestMaterializer(db, &fakePlanner{})
	g := seedLongGoal(t, db, "u1")

	if _, err := m.GenerateBatch(context.Background(), "u1", g.ID, time.Time{}); err != nil {
		t.Fatalf("batch 1: %v", err)
	}

	// Replaying a start date behind the server cursor must abort.
	stale := time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)
	if _, err := m.GenerateBatch(context.Background(), "u1", g.ID, stale); !errors.Is(err, ErrNonMonotonicBatch) {
		t.Fatalf("err = %v; want ErrNonMonotonicBatch", err)
	}
}

func TestMaterializer_GenerateBatch_Guards(t *testing.T) {
	db := newSvcDB(t)
	m := newTestMaterializer(db, &fakePlanner{})

	if _, err := m.GenerateBatch(context.Background(), "u1", "missing", time.Time{}); !errors.Is(err, ErrGoalNotFound) {
		t.Fatalf("missing goal err = %v; want ErrGoalNotFound", err)
	}

	g := seedLongGoal(t, db, "u1")
	if err := repo.UpdateGoalStatus(context.Background(), db, g.ID, "u1", domain.GoalStatusAbandoned); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if _, err := m.GenerateBatch(context.Background(), "u1", g.ID, time.Time{}); !errors.Is(err, ErrGoalNotActive) {
		t.Fatalf("abandoned goal err = %v; want ErrGoalNotActive", err)
	}

	// Ownership: someone else's goal is not found.
	g2 := seedLongGoal(t, db, "u2")
	if _, err := m.GenerateBatch(context.Background(), "u1", g2.ID, time.Time{}); !errors.Is(err, ErrGoalNotFound) {
		t.Fatalf("foreign goal err = %v; want ErrGoalNotFound", err)
	}
}

func TestMaterializer_GenerateBatch_InvalidStepsKeepPriorBatches(t *testing.T) {
	db := newSvcDB(t)
	f := &fakePlanner{}
	m := newTestMaterializer(db, f)
	g := seedLongGoal(t, db, "u1")

	res, err := m.GenerateBatch(context.Background(), "u1", g.ID, time.Time{})
	if err != nil {
		t.Fatalf("batch 1: %v", err)
	}
	created := res.Created

	// Second batch returns garbage.
	f.csv = "not,a,valid,row\n"
	_, err = m.GenerateBatch(context.Background(), "u1", g.ID, res.NextStartDate)
	var vErr *StepValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v; want StepValidationError", err)
	}

	// The failed batch persisted nothing; batch 1 survives.
	total, err := repo.CountSchedules(context.Background(), db, "u1", &g.ID)
	if err != nil || int(total) != created {
		t.Fatalf("schedules = %d, %v; want %d from batch 1", total, err, created)
	}
}
