// Goal HTTP handlers.
//
// This file exposes REST endpoints for goal resources:
//   - POST   /goals                     (create from free text)
//   - POST   /goals/generate-schedules  (progressive batch generation)
//   - GET    /goals                     (list, paginated, ETag support)
//   - GET    /goals/{id}                (detail with schedules)
//   - POST   /goals/{id}/abandon        (user abandonment)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-planner-backend/internal/dateparse"
	"github.com/tbourn/go-planner-backend/internal/domain"
	"github.com/tbourn/go-planner-backend/internal/planner"
	"github.com/tbourn/go-planner-backend/internal/repo"
	"github.com/tbourn/go-planner-backend/internal/services"
	"github.com/tbourn/go-planner-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// GoalService defines goal lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type GoalService interface {
	// Create runs the decomposition pipeline for one free-text submission.
	Create(ctx context.Context, userID string, in services.CreateGoalInput) (*services.CreateGoalResult, error)
	// Get returns a goal and its schedules.
	Get(ctx context.Context, userID, goalID string) (*domain.Goal, []domain.Schedule, error)
	// ListPage returns a page of the user's goals and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Goal, int64, error)
	// Abandon marks an ACTIVE goal as ABANDONED.
	Abandon(ctx context.Context, userID, goalID string) error
}

// MaterializerService defines progressive schedule generation for long goals.
type MaterializerService interface {
	// GenerateBatch materializes the next date window of schedules.
	GenerateBatch(ctx context.Context, userID, goalID string, startDate time.Time) (*services.BatchResult, error)
}

//
// DTOs
//

// CreateGoalRequest is the JSON payload for creating a goal from free text.
type CreateGoalRequest struct {
	// Text is the user's goal description; dates and durations inside it are
	// recognized ("mulai besok", "3 minggu").
	Text string `json:"text" binding:"required" example:"belajar gitar mulai besok selama 2 minggu"`
	// Title optionally overrides the generated title.
	Title string `json:"title" example:"Belajar Gitar"`
	// StartDate optionally pins the start date (YYYY-MM-DD).
	StartDate string `json:"start_date" example:"2025-08-11"`
	// EndDate optionally pins the end date (YYYY-MM-DD).
	EndDate string `json:"end_date" example:"2025-08-24"`
}

// CreateGoalResponse wraps a created (or deduplicated) goal.
type CreateGoalResponse struct {
	Goal      *domain.Goal      `json:"goal"`
	Schedules []domain.Schedule `json:"schedules"`
	// Duplicate marks a resubmission answered from the idempotency window.
	Duplicate bool `json:"duplicate,omitempty"`
	// RequiresScheduleGeneration is set for long goals persisted without
	// schedules; call /goals/generate-schedules to materialize them.
	RequiresScheduleGeneration bool `json:"requires_schedule_generation,omitempty"`
	// Duration is the inclusive day count of the goal span.
	Duration int `json:"duration"`
}

// GenerateSchedulesRequest asks for the next schedule batch of a long goal.
type GenerateSchedulesRequest struct {
	GoalID string `json:"goal_id" binding:"required" format:"uuid"`
	// StartDate is the client's batch cursor (YYYY-MM-DD); the server verifies
	// it against the already-persisted schedules.
	StartDate string `json:"start_date" example:"2025-10-01"`
}

// GenerateSchedulesResponse reports one materialization batch.
type GenerateSchedulesResponse struct {
	Created       int    `json:"created"`
	HasMore       bool   `json:"has_more"`
	NextStartDate string `json:"next_start_date,omitempty" example:"2025-10-31"`
	Progress      int    `json:"progress"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListGoalsResponse wraps a page of goals and pagination information.
type ListGoalsResponse struct {
	Goals      []domain.Goal `json:"goals"`
	Pagination Pagination    `json:"pagination"`
}

// GoalDetailResponse is a goal with its full schedule list.
type GoalDetailResponse struct {
	Goal      *domain.Goal      `json:"goal"`
	Schedules []domain.Schedule `json:"schedules"`
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for goals and schedules.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	goalSvc  GoalService
	matSvc   MaterializerService
	schedSvc ScheduleService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(goalSvc GoalService, matSvc MaterializerService, schedSvc ScheduleService) *Handlers {
	return &Handlers{goalSvc: goalSvc, matSvc: matSvc, schedSvc: schedSvc}
}

// userID extracts the authenticated user id from Gin context (set by the auth
// middleware). If absent, it falls back to "X-User-ID" header (tests use it).
// An empty result means the request is unauthenticated.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return ""
}

// requireUser returns the user id or aborts with 401.
func requireUser(c *gin.Context) (string, bool) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return "", false
	}
	return uid, true
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// parseDateParam parses an optional YYYY-MM-DD field; empty input yields nil.
func parseDateParam(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// failFromError maps service-layer errors to HTTP responses with the most
// specific matching code. Validation messages surface verbatim; upstream
// planner failures deliberately keep a generic message.
func failFromError(c *gin.Context, err error) {
	var vErr *services.StepValidationError
	switch {
	case errors.Is(err, services.ErrEmptyText),
		errors.Is(err, services.ErrEmptyTitle),
		errors.Is(err, services.ErrInvalidStatus):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, dateparse.ErrStartTooEarly),
		errors.Is(err, dateparse.ErrEndBeforeStart),
		errors.Is(err, dateparse.ErrSpanTooLong):
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidationFailed, err.Error())
	case errors.As(err, &vErr):
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidationFailed, vErr.Error())
	case errors.Is(err, planner.ErrRequestFailed):
		fail(c, http.StatusBadGateway, ErrCodePlanRequestFailed, "plan generation is temporarily unavailable")
	case errors.Is(err, services.ErrGoalNotFound),
		errors.Is(err, services.ErrScheduleNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrGoalNotActive),
		errors.Is(err, services.ErrNonMonotonicBatch):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

//
// Handlers
//

// CreateGoal godoc
// @ID          createGoal
// @Summary     Create a goal from free text
// @Description Decomposes the submitted text into a goal and, for short spans, its full schedule list. Long goals are flagged requires_schedule_generation.
// @Tags        Goals
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateGoalRequest  true  "Create goal payload"
//
// @Success     201  {object}  handlers.CreateGoalResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     422  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     502  {object}  handlers.ErrorResponse  "Plan request failed"
// @Router      /goals [post]
func (h *Handlers) CreateGoal(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	var req CreateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	start, err := parseDateParam(req.StartDate)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	end, err := parseDateParam(req.EndDate)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "end_date must be YYYY-MM-DD")
		return
	}

	res, err := h.goalSvc.Create(c.Request.Context(), uid, services.CreateGoalInput{
		Text:      req.Text,
		Title:     req.Title,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		failFromError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	ok(c, status, CreateGoalResponse{
		Goal:                       res.Goal,
		Schedules:                  res.Schedules,
		Duplicate:                  res.Duplicate,
		RequiresScheduleGeneration: res.RequiresScheduleGeneration,
		Duration:                   res.DurationDays,
	})
}

// GenerateSchedules godoc
// @ID          generateSchedules
// @Summary     Generate the next schedule batch for a long goal
// @Description Materializes up to one batch window of schedules and reports progress; repeat until has_more is false.
// @Tags        Goals
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.GenerateSchedulesRequest  true  "Batch request"
//
// @Success     200  {object}  handlers.GenerateSchedulesResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Goal not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Conflict"
// @Failure     422  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     502  {object}  handlers.ErrorResponse  "Plan request failed"
// @Router      /goals/generate-schedules [post]
func (h *Handlers) GenerateSchedules(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	var req GenerateSchedulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if _, err := uuid.Parse(req.GoalID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "goal_id must be a UUID")
		return
	}
	start, err := parseDateParam(req.StartDate)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	var startDate time.Time
	if start != nil {
		startDate = *start
	}

	res, err := h.matSvc.GenerateBatch(c.Request.Context(), uid, req.GoalID, startDate)
	if err != nil {
		failFromError(c, err)
		return
	}
	resp := GenerateSchedulesResponse{
		Created:  res.Created,
		HasMore:  res.HasMore,
		Progress: res.Progress,
	}
	if !res.NextStartDate.IsZero() {
		resp.NextStartDate = res.NextStartDate.Format("2006-01-02")
	}
	ok(c, http.StatusOK, resp)
}

// ListGoals godoc
// @ID          listGoals
// @Summary     List goals (paginated)
// @Description Returns a page of the user's goals. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Goals
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListGoalsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /goals [get]
func (h *Handlers) ListGoals(c *gin.Context) {
	ctx := c.Request.Context()
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, okSvc := h.goalSvc.(*services.GoalService); okSvc {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.GoalsStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"goals:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.goalSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListGoalsResponse{
		Goals: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetGoal godoc
// @ID          getGoal
// @Summary     Get a goal with its schedules
// @Tags        Goals
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Goal ID (UUID)"         format(uuid)
//
// @Success     200  {object} handlers.GoalDetailResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Goal not found"
// @Router      /goals/{id} [get]
func (h *Handlers) GetGoal(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	goalID := c.Param("id")
	if _, err := uuid.Parse(goalID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "goal id must be a UUID")
		return
	}

	goal, schedules, err := h.goalSvc.Get(c.Request.Context(), uid, goalID)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, GoalDetailResponse{Goal: goal, Schedules: schedules})
}

// AbandonGoal godoc
// @ID          abandonGoal
// @Summary     Abandon an active goal
// @Tags        Goals
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Goal ID (UUID)"         format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Goal not found"
// @Failure     409  {object} handlers.ErrorResponse "Goal not active"
// @Router      /goals/{id}/abandon [post]
func (h *Handlers) AbandonGoal(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	goalID := c.Param("id")
	if _, err := uuid.Parse(goalID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "goal id must be a UUID")
		return
	}

	if err := h.goalSvc.Abandon(c.Request.Context(), uid, goalID); err != nil {
		failFromError(c, err)
		return
	}
	noContent(c)
}
