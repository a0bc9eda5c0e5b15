package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-planner-backend/internal/dateparse"
	"github.com/tbourn/go-planner-backend/internal/domain"
	"github.com/tbourn/go-planner-backend/internal/planner"
	"github.com/tbourn/go-planner-backend/internal/services"
)

const testGoalID = "123e4567-e89b-12d3-a456-426614174000"

// --- fakes ---

type fakeGoalSvc struct {
	createRes  *services.CreateGoalResult
	createErr  error
	getGoal    *domain.Goal
	getScheds  []domain.Schedule
	getErr     error
	listItems  []domain.Goal
	listTotal  int64
	listErr    error
	abandonErr error

	lastInput services.CreateGoalInput
	lastPage  int
	lastSize  int
}

func (f *fakeGoalSvc) Create(_ context.Context, _ string, in services.CreateGoalInput) (*services.CreateGoalResult, error) {
	f.lastInput = in
	return f.createRes, f.createErr
}

func (f *fakeGoalSvc) Get(context.Context, string, string) (*domain.Goal, []domain.Schedule, error) {
	return f.getGoal, f.getScheds, f.getErr
}

func (f *fakeGoalSvc) ListPage(_ context.Context, _ string, page, pageSize int) ([]domain.Goal, int64, error) {
	f.lastPage, f.lastSize = page, pageSize
	return f.listItems, f.listTotal, f.listErr
}

func (f *fakeGoalSvc) Abandon(context.Context, string, string) error { return f.abandonErr }

type fakeMatSvc struct {
	res       *services.BatchResult
	err       error
	lastStart time.Time
}

func (f *fakeMatSvc) GenerateBatch(_ context.Context, _, _ string, startDate time.Time) (*services.BatchResult, error) {
	f.lastStart = startDate
	return f.res, f.err
}

type fakeSchedSvc struct {
	created   *domain.Schedule
	createErr error
	listItems []domain.Schedule
	listTotal int64
	listErr   error
	updated   *domain.Schedule
	updateErr error
}

func (f *fakeSchedSvc) Create(context.Context, string, services.CreateScheduleInput) (*domain.Schedule, error) {
	return f.created, f.createErr
}

func (f *fakeSchedSvc) ListPage(context.Context, string, *string, int, int) ([]domain.Schedule, int64, error) {
	return f.listItems, f.listTotal, f.listErr
}

func (f *fakeSchedSvc) Update(context.Context, string, string, services.UpdateScheduleInput) (*domain.Schedule, error) {
	return f.updated, f.updateErr
}

// --- helpers ---

func newGoalRouter(goal *fakeGoalSvc, mat *fakeMatSvc, sched *fakeSchedSvc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if goal == nil {
		goal = &fakeGoalSvc{}
	}
	if mat == nil {
		mat = &fakeMatSvc{}
	}
	if sched == nil {
		sched = &fakeSchedSvc{}
	}
	h := New(goal, mat, sched)
	r := gin.New()
	r.POST("/goals", h.CreateGoal)
	r.POST("/goals/generate-schedules", h.GenerateSchedules)
	r.GET("/goals", h.ListGoals)
	r.GET("/goals/:id", h.GetGoal)
	r.POST("/goals/:id/abandon", h.AbandonGoal)
	return r
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var rdr *bytes.Buffer
	if body == "" {
		rdr = bytes.NewBufferString("")
	} else {
		rdr = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// --- CreateGoal ---

func TestCreateGoal_Unauthenticated(t *testing.T) {
	r := newGoalRouter(nil, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/goals", bytes.NewBufferString(`{"text":"x"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d; want 401", w.Code)
	}
}

func TestCreateGoal_BadBody(t *testing.T) {
	r := newGoalRouter(nil, nil, nil)

	if w := doJSON(r, http.MethodPost, "/goals", `{`); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed JSON: status = %d; want 400", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/goals", `{"title":"no text"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing text: status = %d; want 400", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/goals", `{"text":"x","start_date":"11-08-2025"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad start_date: status = %d; want 400", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/goals", `{"text":"x","end_date":"soon"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad end_date: status = %d; want 400", w.Code)
	}
}

func TestCreateGoal_Success(t *testing.T) {
	start := time.Date(2025, 8, 11, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 8, 24, 0, 0, 0, 0, time.UTC)
	svc := &fakeGoalSvc{
		createRes: &services.CreateGoalResult{
			Goal:         &domain.Goal{ID: testGoalID, Title: "Belajar Gitar", StartDate: start, EndDate: end},
			Schedules:    []domain.Schedule{{ID: "s1"}, {ID: "s2"}},
			DurationDays: 14,
		},
	}
	r := newGoalRouter(svc, nil, nil)

	w := doJSON(r, http.MethodPost, "/goals", `{"text":"belajar gitar","start_date":"2025-08-11","end_date":"2025-08-24"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s; want 201", w.Code, w.Body.String())
	}

	var resp CreateGoalResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Goal == nil || resp.Goal.ID != testGoalID || len(resp.Schedules) != 2 || resp.Duration != 14 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Duplicate || resp.RequiresScheduleGeneration {
		t.Fatalf("flags should be unset: %+v", resp)
	}

	// Pinned dates must reach the service.
	if svc.lastInput.StartDate == nil || !svc.lastInput.StartDate.Equal(start) {
		t.Fatalf("start date not forwarded: %+v", svc.lastInput)
	}
	if svc.lastInput.EndDate == nil || !svc.lastInput.EndDate.Equal(end) {
		t.Fatalf("end date not forwarded: %+v", svc.lastInput)
	}
}

func TestCreateGoal_DuplicateReturns200(t *testing.T) {
	svc := &fakeGoalSvc{
		createRes: &services.CreateGoalResult{
			Goal:      &domain.Goal{ID: testGoalID},
			Duplicate: true,
		},
	}
	r := newGoalRouter(svc, nil, nil)

	w := doJSON(r, http.MethodPost, "/goals", `{"text":"belajar gitar"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200 for duplicate", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"duplicate":true`) {
		t.Fatalf("duplicate flag missing: %s", w.Body.String())
	}
}

func TestCreateGoal_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"empty text", services.ErrEmptyText, http.StatusBadRequest, ErrCodeBadRequest},
		{"start too early", dateparse.ErrStartTooEarly, http.StatusUnprocessableEntity, ErrCodeValidationFailed},
		{"span too long", dateparse.ErrSpanTooLong, http.StatusUnprocessableEntity, ErrCodeValidationFailed},
		{"step violations", &services.StepValidationError{Violations: []string{"baris 2: tanggal di luar rentang"}}, http.StatusUnprocessableEntity, ErrCodeValidationFailed},
		{"planner down", planner.ErrRequestFailed, http.StatusBadGateway, ErrCodePlanRequestFailed},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newGoalRouter(&fakeGoalSvc{createErr: tc.err}, nil, nil)
			w := doJSON(r, http.MethodPost, "/goals", `{"text":"belajar gitar"}`)
			if w.Code != tc.status {
				t.Fatalf("status = %d; want %d", w.Code, tc.status)
			}
			if !strings.Contains(w.Body.String(), `"code":"`+tc.code+`"`) {
				t.Fatalf("code %q missing: %s", tc.code, w.Body.String())
			}
		})
	}
}

func TestCreateGoal_PlannerFailureHidesDetails(t *testing.T) {
	wrapped := errors.New("POST https://upstream/internal: 500")
	r := newGoalRouter(&fakeGoalSvc{createErr: errors.Join(planner.ErrRequestFailed, wrapped)}, nil, nil)
	w := doJSON(r, http.MethodPost, "/goals", `{"text":"belajar gitar"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d; want 502", w.Code)
	}
	if strings.Contains(w.Body.String(), "upstream") {
		t.Fatalf("upstream details leaked: %s", w.Body.String())
	}
}

// --- GenerateSchedules ---

func TestGenerateSchedules_Validation(t *testing.T) {
	r := newGoalRouter(nil, nil, nil)

	if w := doJSON(r, http.MethodPost, "/goals/generate-schedules", `{"start_date":"2025-10-01"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing goal_id: status = %d; want 400", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/goals/generate-schedules", `{"goal_id":"not-a-uuid"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad goal_id: status = %d; want 400", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/goals/generate-schedules", `{"goal_id":"`+testGoalID+`","start_date":"01/10/2025"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad start_date: status = %d; want 400", w.Code)
	}
}

func TestGenerateSchedules_Success(t *testing.T) {
	next := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	mat := &fakeMatSvc{res: &services.BatchResult{Created: 5, HasMore: true, NextStartDate: next, Progress: 43}}
	r := newGoalRouter(nil, mat, nil)

	w := doJSON(r, http.MethodPost, "/goals/generate-schedules", `{"goal_id":"`+testGoalID+`","start_date":"2025-09-01"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp GenerateSchedulesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Created != 5 || !resp.HasMore || resp.NextStartDate != "2025-10-01" || resp.Progress != 43 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	want := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	if !mat.lastStart.Equal(want) {
		t.Fatalf("start cursor not forwarded: %v", mat.lastStart)
	}
}

func TestGenerateSchedules_FinalBatchOmitsNextStart(t *testing.T) {
	mat := &fakeMatSvc{res: &services.BatchResult{Created: 3, HasMore: false, Progress: 100}}
	r := newGoalRouter(nil, mat, nil)

	w := doJSON(r, http.MethodPost, "/goals/generate-schedules", `{"goal_id":"`+testGoalID+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "next_start_date") {
		t.Fatalf("next_start_date should be omitted: %s", w.Body.String())
	}
}

func TestGenerateSchedules_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", services.ErrGoalNotFound, http.StatusNotFound},
		{"not active", services.ErrGoalNotActive, http.StatusConflict},
		{"stale cursor", services.ErrNonMonotonicBatch, http.StatusConflict},
		{"planner down", planner.ErrRequestFailed, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newGoalRouter(nil, &fakeMatSvc{err: tc.err}, nil)
			w := doJSON(r, http.MethodPost, "/goals/generate-schedules", `{"goal_id":"`+testGoalID+`"}`)
			if w.Code != tc.status {
				t.Fatalf("status = %d; want %d", w.Code, tc.status)
			}
		})
	}
}

// --- ListGoals ---

func TestListGoals_PaginationClamp(t *testing.T) {
	svc := &fakeGoalSvc{
		listItems: []domain.Goal{{ID: testGoalID}},
		listTotal: 250,
	}
	r := newGoalRouter(svc, nil, nil)

	w := doJSON(r, http.MethodGet, "/goals?page=-3&page_size=1000", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if svc.lastPage != 1 || svc.lastSize != 100 {
		t.Fatalf("clamp failed: page=%d size=%d", svc.lastPage, svc.lastSize)
	}

	var resp ListGoalsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Pagination.TotalPages != 3 || !resp.Pagination.HasNext {
		t.Fatalf("pagination unexpected: %+v", resp.Pagination)
	}
}

func TestListGoals_ServiceError(t *testing.T) {
	r := newGoalRouter(&fakeGoalSvc{listErr: errors.New("db down")}, nil, nil)
	w := doJSON(r, http.MethodGet, "/goals", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d; want 500", w.Code)
	}
}

// --- GetGoal / AbandonGoal ---

func TestGetGoal(t *testing.T) {
	svc := &fakeGoalSvc{
		getGoal:   &domain.Goal{ID: testGoalID, Title: "Belajar Gitar"},
		getScheds: []domain.Schedule{{ID: "s1"}},
	}
	r := newGoalRouter(svc, nil, nil)

	if w := doJSON(r, http.MethodGet, "/goals/nope", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad uuid: status = %d; want 400", w.Code)
	}

	w := doJSON(r, http.MethodGet, "/goals/"+testGoalID, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Belajar Gitar") {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	r = newGoalRouter(&fakeGoalSvc{getErr: services.ErrGoalNotFound}, nil, nil)
	if w := doJSON(r, http.MethodGet, "/goals/"+testGoalID, ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing goal: status = %d; want 404", w.Code)
	}
}

func TestAbandonGoal(t *testing.T) {
	r := newGoalRouter(&fakeGoalSvc{}, nil, nil)
	if w := doJSON(r, http.MethodPost, "/goals/"+testGoalID+"/abandon", ""); w.Code != http.StatusNoContent {
		t.Fatalf("status = %d; want 204", w.Code)
	}

	r = newGoalRouter(&fakeGoalSvc{abandonErr: services.ErrGoalNotActive}, nil, nil)
	if w := doJSON(r, http.MethodPost, "/goals/"+testGoalID+"/abandon", ""); w.Code != http.StatusConflict {
		t.Fatalf("status = %d; want 409", w.Code)
	}
}
