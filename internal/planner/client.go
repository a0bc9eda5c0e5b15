// Package planner talks to the external generative-language API that turns
// free-text goals into structured plans and dated schedule steps.
//
// The client is deliberately thin: one HTTP POST per request, an API key
// from configuration, and no automatic retries — a failed call surfaces as
// ErrRequestFailed and retrying is the caller's decision. Model output is
// never trusted directly; it passes through DecodePlan / ParseStepsCSV and
// the sanitize layer before anything reaches persistence.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// ErrRequestFailed is returned for any transport, status, or payload failure
// of the generative service. Callers branch on this single condition; the
// wrapped cause is kept for diagnostics only.
var ErrRequestFailed = errors.New("plan request failed")

// maxResponseSize caps the response body read to guard against a misbehaving
// upstream streaming an unbounded payload.
const maxResponseSize = 4 * 1024 * 1024 // 4MB

// planReqs counts outbound generation requests by kind and outcome.
var planReqs = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "planner_requests_total",
		Help: "Total generative-service requests.",
	},
	[]string{"kind", "outcome"},
)

func init() {
	prometheus.MustRegister(planReqs)
}

// Config carries the connection settings for the generative service.
type Config struct {
	BaseURL string        // e.g. https://generativelanguage.googleapis.com/v1beta
	APIKey  string        // credential supplied via process configuration
	Model   string        // model identifier, e.g. gemini-2.0-flash
	Timeout time.Duration // per-request timeout (default 60s)
}

// Client is the HTTP client for the generative-language API.
type Client struct {
	cfg    Config
	httpc  *http.Client
	logger zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (tests use httptest servers).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient constructs a Client for the configured model endpoint.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	c := &Client{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: cfg.Timeout},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wire types for the generateContent endpoint.

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GenerateText submits a prompt and returns the first candidate's text.
// Any transport error, non-2xx status, or empty/malformed payload is wrapped
// in ErrRequestFailed. The method never retries.
func (c *Client) GenerateText(ctx context.Context, kind, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrRequestFailed, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.cfg.APIKey)

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		planReqs.WithLabelValues(kind, "error").Inc()
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		planReqs.WithLabelValues(kind, "error").Inc()
		return "", fmt.Errorf("%w: read response: %v", ErrRequestFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		planReqs.WithLabelValues(kind, "error").Inc()
		c.logger.Warn().
			Str("kind", kind).
			Int("status", resp.StatusCode).
			Dur("latency", time.Since(start)).
			Msg("generative service returned non-2xx")
		return "", fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		planReqs.WithLabelValues(kind, "error").Inc()
		return "", fmt.Errorf("%w: decode response: %v", ErrRequestFailed, err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		planReqs.WithLabelValues(kind, "error").Inc()
		return "", fmt.Errorf("%w: empty candidate list", ErrRequestFailed)
	}

	planReqs.WithLabelValues(kind, "ok").Inc()
	c.logger.Debug().
		Str("kind", kind).
		Dur("latency", time.Since(start)).
		Msg("generative service call ok")
	return gr.Candidates[0].Content.Parts[0].Text, nil
}

// GeneratePlan asks the service to decompose a goal description into a
// structured plan (title, description, emoji, dates).
func (c *Client) GeneratePlan(ctx context.Context, req PlanRequest) (*GoalPlan, error) {
	text, err := c.GenerateText(ctx, "plan", BuildPlanPrompt(req))
	if err != nil {
		return nil, err
	}
	plan, err := DecodePlan(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	return plan, nil
}

// GenerateStepsCSV asks the service for the CSV-encoded step list covering a
// date window. The raw CSV text is returned for parsing and validation by
// the caller; token-efficient CSV is preferred over JSON for long plans.
func (c *Client) GenerateStepsCSV(ctx context.Context, req StepsRequest) (string, error) {
	return c.GenerateText(ctx, "steps", BuildStepsPrompt(req))
}
