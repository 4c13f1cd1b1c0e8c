// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the remote coach service.
//
// The service exposes chat, meal-photo analysis, and meal finalization
// endpoints. Failed requests are never retried; the user re-triggers the action.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Tri-Phung/chatbot-project/internal/logging"
	"github.com/Tri-Phung/chatbot-project/internal/model"
)

// Configuration constants for the coach API.
const (
	// DefaultBaseURL is the local-loopback address used in development.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout is the default timeout for API requests.
	// Vision analysis is slow, so this is generous.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 4 * 1024 * 1024

	// Endpoint paths.
	PathChat         = "/api/chat"
	PathAnalyzeMeal  = "/api/analyze-meal"
	PathMealFinalize = "/api/meal-finalize"
	PathHealth       = "/health"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrMissingReply indicates a successful response without a reply field.
var ErrMissingReply = errors.New("response missing reply")

// APIError is a non-2xx response from the coach service.
type APIError struct {
	Status int
	// Detail is the server-supplied reason from {"detail": "..."}, if any.
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("coach API error (HTTP %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("coach API error (HTTP %d)", e.Status)
}

// Is matches any *APIError with the same status, or any *APIError when the
// target status is zero.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return t.Status == 0 || t.Status == e.Status
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatReply is the response of PathChat.
type ChatReply struct {
	Reply              string
	GuardrailTriggered bool
}

// MealReply is the response of PathAnalyzeMeal.
type MealReply struct {
	Reply         string
	NeedsFollowUp bool
}

// FinalizeReply is the response of PathMealFinalize.
type FinalizeReply struct {
	Reply string
}

type chatRequest struct {
	Messages []model.APIMessage `json:"messages"`
}

type finalizeRequest struct {
	Clarifications string `json:"clarifications"`
}

// replyBody decodes every success shape; Reply is a pointer so absence is detectable.
type replyBody struct {
	Reply              *string `json:"reply"`
	GuardrailTriggered bool    `json:"guardrail_triggered"`
	NeedsFollowUp      bool    `json:"needs_follow_up"`
}

type errorBody struct {
	// Detail is a string for HTTPException and a list for request validation errors.
	Detail json.RawMessage `json:"detail"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the coach service. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a client for baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zap.NewNop(),
	}
}

// WithTimeout sets the request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithRateLimit caps outgoing requests. A non-positive rate disables the limiter.
func (c *Client) WithRateLimit(perSecond float64, burst int) *Client {
	if perSecond <= 0 {
		c.limiter = nil
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(l *zap.Logger) *Client {
	c.logger = logging.OrNop(l)
	return c
}

// =============================================================================
// ENDPOINTS
// =============================================================================

// Chat sends the conversation and returns the coach's reply.
func (c *Client) Chat(ctx context.Context, messages []model.APIMessage) (*ChatReply, error) {
	if messages == nil {
		messages = []model.APIMessage{}
	}
	body, err := json.Marshal(chatRequest{Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	rb, err := c.doReply(ctx, PathChat, "application/json", body)
	if err != nil {
		return nil, err
	}
	return &ChatReply{Reply: *rb.Reply, GuardrailTriggered: rb.GuardrailTriggered}, nil
}

// AnalyzeMeal uploads a meal photo with an optional note.
func (c *Client) AnalyzeMeal(ctx context.Context, img Image, note string) (*MealReply, error) {
	body, contentType, err := encodeMealForm(img, note)
	if err != nil {
		return nil, err
	}

	rb, err := c.doReply(ctx, PathAnalyzeMeal, contentType, body)
	if err != nil {
		return nil, err
	}
	return &MealReply{Reply: *rb.Reply, NeedsFollowUp: rb.NeedsFollowUp}, nil
}

// FinalizeMeal sends clarifications for the last meal analysis.
func (c *Client) FinalizeMeal(ctx context.Context, clarifications string) (*FinalizeReply, error) {
	body, err := json.Marshal(finalizeRequest{Clarifications: clarifications})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	rb, err := c.doReply(ctx, PathMealFinalize, "application/json", body)
	if err != nil {
		return nil, err
	}
	return &FinalizeReply{Reply: *rb.Reply}, nil
}

// Health checks that the service is up.
func (c *Client) Health(ctx context.Context) error {
	status, body, err := c.do(ctx, http.MethodGet, PathHealth, "", nil)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return handleErrorResponse(status, body)
	}

	var h struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &h); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if h.Status != "ok" {
		return fmt.Errorf("service unhealthy: status %q", h.Status)
	}
	return nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// doReply POSTs body and decodes a {reply, ...} response.
func (c *Client) doReply(ctx context.Context, path, contentType string, body []byte) (*replyBody, error) {
	status, respBody, err := c.do(ctx, http.MethodPost, path, contentType, body)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, handleErrorResponse(status, respBody)
	}

	var rb replyBody
	if err := json.Unmarshal(respBody, &rb); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if rb.Reply == nil {
		return nil, ErrMissingReply
	}
	return &rb, nil
}

// do performs a single request and returns the status and size-limited body.
func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := readResponse(resp)
	c.logger.Info("request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Int("request_bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, respBody, nil
}

// readResponse reads the response body with size limits to prevent memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse converts a non-2xx response to an *APIError.
func handleErrorResponse(status int, body []byte) error {
	apiErr := &APIError{Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && len(eb.Detail) > 0 {
		var detail string
		if json.Unmarshal(eb.Detail, &detail) == nil {
			apiErr.Detail = strings.TrimSpace(detail)
		}
	}
	return apiErr
}
