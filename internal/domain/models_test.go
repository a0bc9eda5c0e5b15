package domain

import "testing"

func TestTableNames(t *testing.T) {
	if got := (Goal{}).TableName(); got != "goals" {
		t.Fatalf("Goal table = %q; want goals", got)
	}
	if got := (Schedule{}).TableName(); got != "schedules" {
		t.Fatalf("Schedule table = %q; want schedules", got)
	}
}

func TestHasGoal(t *testing.T) {
	var s Schedule
	if s.HasGoal() {
		t.Fatal("nil GoalID should not count as having a goal")
	}
	empty := ""
	s.GoalID = &empty
	if s.HasGoal() {
		t.Fatal("empty GoalID should not count as having a goal")
	}
	id := "141add05-4415-4938-b5a1-17e0d3171aff"
	s.GoalID = &id
	if !s.HasGoal() {
		t.Fatal("expected HasGoal true")
	}
}
