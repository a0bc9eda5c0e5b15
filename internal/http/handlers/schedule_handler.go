// Schedule HTTP handlers.
//
// This file exposes REST endpoints for schedule resources:
//   - GET    /schedules        (list, paginated, optional goal filter, ETag)
//   - POST   /schedules        (create standalone one-off entry)
//   - PATCH  /schedules/{id}   (status/notes update; completion may flip the goal)
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-planner-backend/internal/domain"
	"github.com/tbourn/go-planner-backend/internal/repo"
	"github.com/tbourn/go-planner-backend/internal/services"
)

// ScheduleService defines schedule operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ScheduleService interface {
	// Create persists a standalone schedule.
	Create(ctx context.Context, userID string, in services.CreateScheduleInput) (*domain.Schedule, error)
	// ListPage returns a page of schedules, optionally scoped to one goal.
	ListPage(ctx context.Context, userID string, goalID *string, page, pageSize int) ([]domain.Schedule, int64, error)
	// Update applies a partial status/notes update.
	Update(ctx context.Context, userID, id string, in services.UpdateScheduleInput) (*domain.Schedule, error)
}

//
// DTOs
//

// CreateScheduleRequest is the JSON payload for a standalone schedule.
type CreateScheduleRequest struct {
	Title       string `json:"title" binding:"required" example:"Rapat tim"`
	Description string `json:"description" example:"sinkronisasi mingguan"`
	Notes       string `json:"notes"`
	Emoji       string `json:"emoji" example:"📅"`
	// StartedTime/EndTime accept several layouts; unparseable values degrade
	// to defaults (today 09:00, start + 3h).
	StartedTime string `json:"started_time" example:"2025-08-12 14:00"`
	EndTime     string `json:"end_time" example:"2025-08-12 15:00"`
}

// UpdateScheduleRequest is the JSON payload for a partial schedule update.
// Absent fields are untouched.
type UpdateScheduleRequest struct {
	Status *string `json:"status" example:"COMPLETED"`
	Notes  *string `json:"notes" example:"selesai lebih cepat"`
}

// ListSchedulesResponse wraps a page of schedules and pagination information.
type ListSchedulesResponse struct {
	Schedules  []domain.Schedule `json:"schedules"`
	Pagination Pagination        `json:"pagination"`
}

//
// Handlers
//

// ListSchedules godoc
// @ID          listSchedules
// @Summary     List schedules (paginated)
// @Description Returns a page of the user's schedules, optionally filtered by goal_id. Supports weak ETag via If-None-Match.
// @Tags        Schedules
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       goal_id        query   string  false "Scope to one goal"           format(uuid)
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListSchedulesResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /schedules [get]
func (h *Handlers) ListSchedules(c *gin.Context) {
	ctx := c.Request.Context()
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	page, pageSize := clampPagination(c)

	var goalID *string
	if q := strings.TrimSpace(c.Query("goal_id")); q != "" {
		if _, err := uuid.Parse(q); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "goal_id must be a UUID")
			return
		}
		goalID = &q
	}

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, okSvc := h.schedSvc.(*services.ScheduleService); okSvc {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.SchedulesStats(ctx, db, uid, goalID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			scope := "all"
			if goalID != nil {
				scope = *goalID
			}
			etag := fmt.Sprintf(`W/"schedules:%s:%s:%d:%d"`, uid, scope, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.schedSvc.ListPage(ctx, uid, goalID, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListSchedulesResponse{
		Schedules: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// CreateSchedule godoc
// @ID          createSchedule
// @Summary     Create a standalone schedule
// @Description Creates a one-off calendar entry without a parent goal.
// @Tags        Schedules
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateScheduleRequest  true  "Create schedule payload"
//
// @Success     201  {object} domain.Schedule
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /schedules [post]
func (h *Handlers) CreateSchedule(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	var req CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	sched, err := h.schedSvc.Create(c.Request.Context(), uid, services.CreateScheduleInput{
		Title:       req.Title,
		Description: req.Description,
		Notes:       req.Notes,
		Emoji:       req.Emoji,
		StartedTime: req.StartedTime,
		EndTime:     req.EndTime,
	})
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusCreated, sched)
}

// UpdateSchedule godoc
// @ID          updateSchedule
// @Summary     Update a schedule's status or notes
// @Description Applies a partial update. Marking the last schedule of a goal COMPLETED also completes the goal.
// @Tags        Schedules
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Schedule ID (UUID)"     format(uuid)
// @Param       body       body    handlers.UpdateScheduleRequest  true  "Partial update payload"
//
// @Success     200  {object} domain.Schedule
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Schedule not found"
// @Router      /schedules/{id} [patch]
func (h *Handlers) UpdateSchedule(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	schedID := c.Param("id")
	if _, err := uuid.Parse(schedID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "schedule id must be a UUID")
		return
	}
	var req UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	sched, err := h.schedSvc.Update(c.Request.Context(), uid, schedID, services.UpdateScheduleInput{
		Status: req.Status,
		Notes:  req.Notes,
	})
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, sched)
}
