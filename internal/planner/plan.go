// Plan decoding.
//
// The generative service answers with free text that should contain a JSON
// object. DecodePlan is the tagged-variant boundary required between raw
// model output and the rest of the pipeline: it either yields a GoalPlan or
// a decode error, and nothing downstream ever touches the raw payload.
package planner

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrPlanDecode indicates the model response did not contain a usable JSON
// plan object.
var ErrPlanDecode = errors.New("plan payload is not valid JSON")

// PlanRequest carries the user's goal text plus any fields that are already
// known (from form input or date extraction) so the prompt can pin them.
type PlanRequest struct {
	Text      string
	Title     string     // optional, user-provided
	StartDate *time.Time // optional, extracted or user-provided
	EndDate   *time.Time // optional
}

// StepsRequest describes one date-bounded batch of schedule steps.
type StepsRequest struct {
	GoalTitle       string
	GoalDescription string
	WindowStart     time.Time
	WindowEnd       time.Time
	PercentFrom     int // cumulative percent at the start of the window
	PercentTo       int // cumulative percent the window should reach
}

// GoalPlan is the structured plan decoded from model output. String fields
// are raw model text; callers must run them through sanitize before
// persistence.
type GoalPlan struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Emoji       string `json:"emoji"`
	StartDate   string `json:"start_date"` // YYYY-MM-DD
	EndDate     string `json:"end_date"`   // YYYY-MM-DD
}

// DecodePlan extracts and unmarshals the JSON object from a raw model
// response. Markdown code fences are stripped and the first {...} span is
// used, since models routinely wrap JSON in prose.
func DecodePlan(raw string) (*GoalPlan, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, ErrPlanDecode
	}
	var plan GoalPlan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		return nil, ErrPlanDecode
	}
	if strings.TrimSpace(plan.Title) == "" && strings.TrimSpace(plan.Description) == "" {
		return nil, ErrPlanDecode
	}
	return &plan, nil
}

// extractJSON returns the first top-level {...} span in raw, after removing
// any markdown code fences.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		// Drop the opening fence line (``` or ```json) and a closing fence.
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
