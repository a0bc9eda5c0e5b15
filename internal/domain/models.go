// Package domain defines the persistence models for goals and schedules.
// These types are mapped with GORM and form the core data layer of the
// planner application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Goal status values. A goal is created ACTIVE, may be flipped to COMPLETED
// by the completion reconciler once every child schedule is completed, or
// set to ABANDONED by an explicit user action. No other transitions exist.
const (
	GoalStatusActive    = "ACTIVE"
	GoalStatusCompleted = "COMPLETED"
	GoalStatusAbandoned = "ABANDONED"
)

// Schedule status values. NONE is the initial state; COMPLETED is the only
// transition that triggers goal reconciliation.
const (
	ScheduleStatusNone       = "NONE"
	ScheduleStatusInProgress = "IN_PROGRESS"
	ScheduleStatusCompleted  = "COMPLETED"
	ScheduleStatusMissed     = "MISSED"
	ScheduleStatusAbandoned  = "ABANDONED"
)

// Goal represents a user-defined objective with a date range, decomposed
// into ordered schedules by the plan requester.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the goal owner; indexed for efficient retrieval.
//   - Title: goal title, at most 100 characters after normalization.
//   - Description: goal description, at most 500 characters.
//   - Emoji: short glyph tag (≤ 20 characters, fallback applied upstream).
//   - StartDate / EndDate: calendar dates bounding the goal (end > start).
//   - Status: ACTIVE, COMPLETED, or ABANDONED (enforced by DB constraint).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type Goal struct {
	ID          string         `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID      string         `json:"user_id"     gorm:"type:varchar(64);not null;index:idx_user_goals"`
	Title       string         `json:"title"       gorm:"type:varchar(100);not null"`
	Description string         `json:"description" gorm:"type:varchar(500);not null;default:''"`
	Emoji       string         `json:"emoji"       gorm:"type:varchar(20);not null;default:'📌'"`
	StartDate   time.Time      `json:"start_date"  gorm:"not null"`
	EndDate     time.Time      `json:"end_date"    gorm:"not null"`
	Status      string         `json:"status"      gorm:"type:varchar(16);not null;default:'ACTIVE';check:status IN ('ACTIVE','COMPLETED','ABANDONED')"`
	CreatedAt   time.Time      `json:"created_at"  gorm:"index"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for Goal.
func (Goal) TableName() string { return "goals" }

// Schedule represents a single dated task/event. A schedule may belong to a
// goal (GoalID set) or stand alone as a one-off calendar entry (GoalID nil).
// Schedules under a goal carry a monotonically non-decreasing percent ladder
// ending at exactly 100 on the last ordered step.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: identifier of the schedule owner; indexed.
//   - GoalID: optional foreign key to the owning goal (cascade on delete).
//   - Title / Description / Notes: length-bounded strings (100/500/500).
//   - StartedTime / EndTime: timestamps bounding the task (end > start).
//   - Emoji: short glyph tag (≤ 20 characters).
//   - Status: NONE, IN_PROGRESS, COMPLETED, MISSED, or ABANDONED.
//   - PercentComplete: string-encoded integer 0–100 (cumulative goal share).
//   - Order: string-encoded sequence position within the goal; stored in
//     column step_order because "order" is an SQL keyword.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
//   - Goal: FK association, ensures cascade delete/update.
type Schedule struct {
	ID              string         `json:"id"                gorm:"type:char(36);primaryKey"`
	UserID          string         `json:"user_id"           gorm:"type:varchar(64);not null;index:idx_user_schedules"`
	GoalID          *string        `json:"goal_id,omitempty" gorm:"type:char(36);index:idx_goal_schedules"`
	Title           string         `json:"title"             gorm:"type:varchar(100);not null"`
	Description     string         `json:"description"       gorm:"type:varchar(500);not null;default:''"`
	Notes           string         `json:"notes"             gorm:"type:varchar(500);not null;default:''"`
	StartedTime     time.Time      `json:"started_time"      gorm:"not null;index"`
	EndTime         time.Time      `json:"end_time"          gorm:"not null"`
	Emoji           string         `json:"emoji"             gorm:"type:varchar(20);not null;default:'📌'"`
	Status          string         `json:"status"            gorm:"type:varchar(16);not null;default:'NONE';check:status IN ('NONE','IN_PROGRESS','COMPLETED','MISSED','ABANDONED')"`
	PercentComplete string         `json:"percent_complete"  gorm:"type:varchar(3);not null;default:'0'"`
	Order           string         `json:"order"             gorm:"column:step_order;type:varchar(8);not null;default:''"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-"                 gorm:"index"`

	// Goal is the parent objective. Schedules are cascade-deleted if their
	// goal is removed.
	Goal *Goal `json:"-" gorm:"foreignKey:GoalID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Schedule.
func (Schedule) TableName() string { return "schedules" }

// HasGoal reports whether the schedule belongs to a goal.
func (s *Schedule) HasGoal() bool { return s.GoalID != nil && *s.GoalID != "" }
